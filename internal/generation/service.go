package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"loom/internal/config"
	"loom/internal/graph"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/services/comfy"
	"loom/internal/workflows"
)

// Engine is the remote engine surface the service depends on.
type Engine interface {
	SubmitPrompt(ctx context.Context, wire graph.WireGraph) (string, error)
	QueueState(ctx context.Context) (comfy.QueueSnapshot, error)
	History(ctx context.Context, promptID string) (*comfy.HistoryEntry, error)
	UploadImage(ctx context.Context, r io.Reader, filename string) (string, error)
	Cancel(ctx context.Context, promptID string) error
	Download(ctx context.Context, ref comfy.FileRef, destDir string) (string, error)
}

// Archiver records terminal tasks for the history surface.
type Archiver interface {
	Record(ctx context.Context, task *queue.Task) error
}

// Service is the authoritative registry of generation tasks.
type Service struct {
	cfg      *config.Config
	engine   Engine
	notifier notifications.Service
	archive  Archiver
	logger   *slog.Logger
	now      func() time.Time

	hub *hub

	mu    sync.Mutex
	tasks map[string]*queue.Task
	order []string

	wg sync.WaitGroup
}

// Option customizes the service.
type Option func(*Service)

// WithNotifier sets the push notification sink.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithArchiver sets the terminal-task archive.
func WithArchiver(archive Archiver) Option {
	return func(s *Service) {
		s.archive = archive
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logging.WithComponent(logger, "generation")
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a generation service over the supplied engine.
func NewService(cfg *config.Config, engine Engine, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		engine:   engine,
		notifier: notifications.NewService(nil),
		logger:   logging.NewNop(),
		now:      time.Now,
		hub:      newHub(),
		tasks:    make(map[string]*queue.Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a task-event listener; the cancel function releases it.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.hub.subscribe()
}

// submission describes the per-type work needed to get a task onto the
// engine. Variants differ only in these fields; there is no per-type task
// struct.
type submission struct {
	taskType    queue.TaskType
	description string

	// config is the validated per-variant request record, kept on the task
	// for inspection and the history archive.
	config any

	// initImagePath is a local file to upload before the graph is built;
	// build receives the engine-side stored name (empty when no upload).
	initImagePath string
	build         func(storedInit string) (*graph.Workflow, error)
}

// QueueAudio validates the request and registers an audio generation task.
// Submission to the engine proceeds asynchronously.
func (s *Service) QueueAudio(ctx context.Context, cfg workflows.AudioConfig) (string, error) {
	if strings.TrimSpace(cfg.Checkpoint) == "" {
		cfg.Checkpoint = s.cfg.Generation.AudioCheckpoint
	}
	if err := cfg.Validate(); err != nil {
		return "", services.Wrap(services.ErrValidation, "generation", "queue audio", "", err)
	}
	return s.register(ctx, submission{
		taskType:    queue.TaskAudio,
		description: cfg.Tags,
		config:      cfg,
		build: func(string) (*graph.Workflow, error) {
			return workflows.CreateAudioWorkflow(cfg)
		},
	})
}

// QueueImage validates the request and registers an image generation task.
// initImagePath optionally names a local image uploaded to the engine before
// submission.
func (s *Service) QueueImage(ctx context.Context, cfg workflows.ImageConfig, initImagePath string) (string, error) {
	s.fillImageDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return "", services.Wrap(services.ErrValidation, "generation", "queue image", "", err)
	}
	return s.register(ctx, submission{
		taskType:      queue.TaskImage,
		description:   cfg.Prompt,
		config:        cfg,
		initImagePath: strings.TrimSpace(initImagePath),
		build: func(storedInit string) (*graph.Workflow, error) {
			if storedInit != "" {
				cfg.InitImage = storedInit
			}
			return workflows.CreateImageWorkflow(cfg)
		},
	})
}

// QueueVideo validates the request and registers a video generation task.
func (s *Service) QueueVideo(ctx context.Context, cfg workflows.VideoConfig, initImagePath string) (string, error) {
	s.fillVideoDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return "", services.Wrap(services.ErrValidation, "generation", "queue video", "", err)
	}
	description := fmt.Sprintf("image-to-video %dx%d, %.1fs @ %d fps", cfg.Width, cfg.Height, cfg.DurationSeconds, cfg.FPS)
	return s.register(ctx, submission{
		taskType:      queue.TaskVideo,
		description:   description,
		config:        cfg,
		initImagePath: strings.TrimSpace(initImagePath),
		build: func(storedInit string) (*graph.Workflow, error) {
			if storedInit != "" {
				cfg.InitImage = storedInit
			}
			return workflows.CreateVideoWorkflow(cfg)
		},
	})
}

func (s *Service) fillImageDefaults(cfg *workflows.ImageConfig) {
	if strings.TrimSpace(cfg.Checkpoint) == "" {
		cfg.Checkpoint = s.cfg.Generation.ImageCheckpoint
	}
	if strings.TrimSpace(cfg.PlaceholderImage) == "" {
		cfg.PlaceholderImage = s.cfg.Generation.PlaceholderImage
	}
}

func (s *Service) fillVideoDefaults(cfg *workflows.VideoConfig) {
	if strings.TrimSpace(cfg.Checkpoint) == "" {
		cfg.Checkpoint = s.cfg.Generation.VideoCheckpoint
	}
	if strings.TrimSpace(cfg.PlaceholderImage) == "" {
		cfg.PlaceholderImage = s.cfg.Generation.PlaceholderImage
	}
}

func (s *Service) register(ctx context.Context, sub submission) (string, error) {
	task := &queue.Task{
		ID:          uuid.NewString(),
		Type:        sub.taskType,
		Status:      queue.StatusPending,
		Config:      sub.config,
		Description: strings.TrimSpace(sub.description),
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.order = append(s.order, task.ID)
	snapshot := task.Clone()
	s.mu.Unlock()

	s.hub.publish(Event{Type: EventTaskQueued, Task: snapshot})
	if err := s.notifier.NotifyGenerationQueued(ctx, string(task.Type), task.Description); err != nil {
		s.logger.Warn("queued notification failed", logging.Error(err))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.submit(context.WithoutCancel(ctx), task.ID, sub)
	}()
	return task.ID, nil
}

// submit uploads inputs, builds the wire graph, and hands the task to the
// engine. Runs outside the registry lock.
func (s *Service) submit(ctx context.Context, taskID string, sub submission) {
	ctx = services.WithTaskID(ctx, taskID)
	ctx = services.WithOperation(ctx, "submit")
	logger := s.logger.With(
		logging.String(logging.FieldTaskID, taskID),
		logging.String(logging.FieldTaskType, string(sub.taskType)))

	var storedInit string
	if sub.initImagePath != "" {
		name, err := s.uploadInitImage(ctx, sub.initImagePath)
		if err != nil {
			logger.Error("init image upload failed", logging.Error(err))
			s.failTask(taskID, fmt.Sprintf("upload init image: %v", err))
			return
		}
		storedInit = name
		logger.Info("init image uploaded", logging.String("stored_name", name))
	}

	workflow, err := sub.build(storedInit)
	if err != nil {
		logger.Error("workflow construction failed", logging.Error(err))
		s.failTask(taskID, fmt.Sprintf("build workflow: %v", err))
		return
	}
	wire, err := workflow.ToWire()
	if err != nil {
		logger.Error("workflow wiring failed", logging.Error(err))
		s.failTask(taskID, fmt.Sprintf("wire workflow: %v", err))
		return
	}

	promptID, err := s.engine.SubmitPrompt(ctx, wire)
	if err != nil {
		logger.Error("engine submission failed", logging.Error(err))
		s.failTask(taskID, fmt.Sprintf("submit to engine: %v", err))
		return
	}

	submitted := s.now()
	snapshot := s.mutate(taskID, func(task *queue.Task) bool {
		if !task.Status.CanTransition(queue.StatusQueued) {
			// Cancelled while submitting; best-effort remote cleanup.
			return false
		}
		task.Status = queue.StatusQueued
		task.PromptID = promptID
		task.SubmittedAt = &submitted
		return true
	})
	if snapshot == nil {
		logger.Info("task finished before submission completed; cancelling remote prompt",
			logging.String(logging.FieldPromptID, promptID))
		if err := s.engine.Cancel(ctx, promptID); err != nil {
			logger.Warn("remote cancel failed", logging.Error(err))
		}
		return
	}
	logger.Info("task submitted", logging.String(logging.FieldPromptID, promptID))
	s.hub.publish(Event{Type: EventTaskUpdated, Task: snapshot})
}

func (s *Service) uploadInitImage(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return s.engine.UploadImage(ctx, file, filepath.Base(path))
}

// Task returns a snapshot of one task.
func (s *Service) Task(id string) (*queue.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

// Tasks returns snapshots of every registered task in creation order.
func (s *Service) Tasks() []*queue.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*queue.Task, 0, len(s.order))
	for _, id := range s.order {
		if task, ok := s.tasks[id]; ok {
			out = append(out, task.Clone())
		}
	}
	return out
}

// ActiveCount reports how many tasks have not reached a terminal status.
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, task := range s.tasks {
		if task.Status.IsActive() {
			count++
		}
	}
	return count
}

// Cancel transitions the task to Cancelled and fires a best-effort remote
// cancellation. It reports false when the task is unknown or already
// terminal.
func (s *Service) Cancel(id string) bool {
	completed := s.now()
	var promptID string
	snapshot := s.mutate(id, func(task *queue.Task) bool {
		if !task.Status.CanTransition(queue.StatusCancelled) {
			return false
		}
		task.Status = queue.StatusCancelled
		task.ErrorMessage = queue.CancelledByUserMessage
		task.QueuePosition = nil
		task.CompletedAt = &completed
		promptID = task.PromptID
		return true
	})
	if snapshot == nil {
		return false
	}

	// The local transition is authoritative; the engine call only reclaims
	// remote resources.
	if promptID != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.checkTimeout())
			defer cancel()
			if err := s.engine.Cancel(ctx, promptID); err != nil {
				s.logger.Warn("remote cancel failed",
					logging.String(logging.FieldTaskID, id),
					logging.String(logging.FieldPromptID, promptID),
					logging.Error(err))
			}
		}()
	}
	s.finishTask(snapshot)
	return true
}

// ClearCompleted removes terminal tasks from the registry and returns how
// many were dropped.
func (s *Service) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		task, ok := s.tasks[id]
		if !ok {
			continue
		}
		if task.Status.IsTerminal() {
			delete(s.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}

// StopActive fails every non-terminal task, used during daemon shutdown.
func (s *Service) StopActive() int {
	completed := s.now()
	s.mu.Lock()
	var snapshots []*queue.Task
	for _, task := range s.tasks {
		if !task.Status.IsActive() {
			continue
		}
		task.Status = queue.StatusFailed
		task.ErrorMessage = queue.DaemonStopMessage
		task.QueuePosition = nil
		task.CompletedAt = &completed
		snapshots = append(snapshots, task.Clone())
	}
	s.mu.Unlock()

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt) })
	for _, snapshot := range snapshots {
		s.archiveTask(snapshot)
		s.hub.publish(Event{Type: EventTaskFinished, Task: snapshot})
	}
	return len(snapshots)
}

// Wait blocks until background submission and cancellation goroutines are
// done. Intended for shutdown and tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

// mutate applies fn to the task under the lock and returns a snapshot when fn
// reports a change, nil otherwise.
func (s *Service) mutate(id string, fn func(*queue.Task) bool) *queue.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil
	}
	if !fn(task) {
		return nil
	}
	return task.Clone()
}

func (s *Service) failTask(id, message string) {
	completed := s.now()
	snapshot := s.mutate(id, func(task *queue.Task) bool {
		if !task.Status.CanTransition(queue.StatusFailed) {
			return false
		}
		task.Status = queue.StatusFailed
		task.ErrorMessage = message
		task.QueuePosition = nil
		task.CompletedAt = &completed
		return true
	})
	if snapshot == nil {
		return
	}
	s.finishTask(snapshot)
	if err := s.notifier.NotifyGenerationFailed(context.Background(), string(snapshot.Type), snapshot.Description, snapshot.ErrorMessage); err != nil {
		s.logger.Warn("failure notification failed", logging.Error(err))
	}
}

func (s *Service) completeTask(id, filePath string) {
	completed := s.now()
	snapshot := s.mutate(id, func(task *queue.Task) bool {
		if !task.Status.CanTransition(queue.StatusCompleted) {
			return false
		}
		task.Status = queue.StatusCompleted
		task.GeneratedFilePath = filePath
		task.QueuePosition = nil
		task.CompletedAt = &completed
		return true
	})
	if snapshot == nil {
		return
	}
	s.finishTask(snapshot)
	if err := s.notifier.NotifyGenerationCompleted(context.Background(), string(snapshot.Type), snapshot.Description, filePath); err != nil {
		s.logger.Warn("completion notification failed", logging.Error(err))
	}
}

// finishTask archives and publishes a terminal snapshot. Caller must hold no
// locks.
func (s *Service) finishTask(snapshot *queue.Task) {
	s.archiveTask(snapshot)
	s.hub.publish(Event{Type: EventTaskFinished, Task: snapshot})
}

func (s *Service) archiveTask(snapshot *queue.Task) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.archive.Record(ctx, snapshot); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("history archive failed",
			logging.String(logging.FieldTaskID, snapshot.ID),
			logging.Error(err))
	}
}

func (s *Service) checkTimeout() time.Duration {
	seconds := s.cfg.Workflow.CheckTimeoutSeconds
	if seconds <= 0 {
		seconds = 15
	}
	return time.Duration(seconds) * time.Second
}
