package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"loom/internal/api"
	"loom/internal/config"
	"loom/internal/generation"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/services/comfy"
	"loom/internal/services/textgen"
	"loom/internal/workflows"
)

// EngineClient is the engine surface the daemon composes. The comfy client
// satisfies it; tests substitute fakes.
type EngineClient interface {
	generation.Engine
	HealthCheck(ctx context.Context) error
	BaseURL() string
}

// Enhancer rewrites prompts through the text-generation runtime.
type Enhancer interface {
	EnhancePrompt(ctx context.Context, prompt, mediaKind string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Daemon coordinates the background generation services and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	engine    EngineClient
	enhancer  Enhancer
	notifier  notifications.Service
	history   *queue.History
	generator *generation.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option customizes daemon construction.
type Option func(*Daemon)

// WithEngine overrides the engine client, primarily for tests.
func WithEngine(engine EngineClient) Option {
	return func(d *Daemon) {
		if engine != nil {
			d.engine = engine
		}
	}
}

// WithEnhancer overrides the prompt enhancer, primarily for tests.
func WithEnhancer(enhancer Enhancer) Option {
	return func(d *Daemon) {
		d.enhancer = enhancer
	}
}

// New constructs a daemon with initialized dependencies. The history database
// is opened immediately; callers own Close.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		notifier: notifications.NewService(cfg),
		lockPath: cfg.LockPath(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.engine == nil {
		d.engine = comfy.NewClient(comfy.Config{
			BaseURL:        cfg.Engine.BaseURL,
			ClientID:       cfg.Engine.ClientID,
			TimeoutSeconds: cfg.Engine.TimeoutSeconds,
			UploadSeconds:  cfg.Engine.UploadSeconds,
		})
	}
	if d.enhancer == nil && cfg.TextGen.Enabled {
		d.enhancer = textgen.NewClient(textgen.Config{
			BaseURL:        cfg.TextGen.BaseURL,
			Model:          cfg.TextGen.Model,
			APIKey:         cfg.TextGen.APIKey,
			TimeoutSeconds: cfg.TextGen.TimeoutSeconds,
		})
	}

	history, err := queue.OpenHistory(cfg.HistoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	d.history = history
	d.lock = flock.New(d.lockPath)
	d.generator = generation.NewService(cfg, d.engine,
		generation.WithNotifier(d.notifier),
		generation.WithArchiver(history),
		generation.WithLogger(logger))
	return d, nil
}

// Generator exposes the task registry, used by the IPC layer for
// subscriptions.
func (d *Daemon) Generator() *generation.Service {
	return d.generator
}

// Start acquires the daemon lock and launches the queue poller and, when
// configured, the engine progress listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another loom daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.generator.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("queue poller stopped", logging.Error(err))
		}
	}()

	if d.cfg.Engine.WebSocket {
		d.startProgressListener()
	}

	d.running.Store(true)
	d.logger.Info("loom daemon started",
		logging.String("lock", d.lockPath),
		logging.String("engine_url", d.engine.BaseURL()))
	return nil
}

// startProgressListener attaches to the engine websocket for live progress
// frames. Failure to connect is logged, not fatal; polling still covers task
// completion.
func (d *Daemon) startProgressListener() {
	listener, err := comfy.NewProgressListener(d.engine.BaseURL(), d.cfg.Engine.ClientID, d.logger)
	if err != nil {
		d.logger.Warn("progress listener unavailable", logging.Error(err))
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := listener.Run(d.ctx, func(event comfy.ProgressEvent) {
			d.generator.HandleProgress(event)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("progress listener stopped", logging.Error(err))
		}
	}()
}

// Stop fails active tasks, stops background goroutines, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	failed := d.generator.StopActive()
	if failed > 0 {
		d.logger.Info("active tasks failed during shutdown", logging.Int("count", failed))
	}
	d.generator.Wait()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("loom daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Status reports daemon runtime information, including remote health probes.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:        d.running.Load(),
		PID:            pid(),
		EngineURL:      d.engine.BaseURL(),
		TextGenEnabled: d.enhancer != nil,
		ActiveTasks:    d.generator.ActiveCount(),
		TotalTasks:     len(d.generator.Tasks()),
		LockFilePath:   d.lockPath,
		HistoryDBPath:  d.cfg.HistoryDBPath(),
	}
	status.EngineHealthy = d.engine.HealthCheck(ctx) == nil
	if d.enhancer != nil {
		status.TextGenHealthy = d.enhancer.HealthCheck(ctx) == nil
	}
	return status
}

// QueueAudio registers an audio generation task.
func (d *Daemon) QueueAudio(ctx context.Context, cfg workflows.AudioConfig) (string, error) {
	return d.generator.QueueAudio(ctx, cfg)
}

// QueueImage registers an image generation task.
func (d *Daemon) QueueImage(ctx context.Context, cfg workflows.ImageConfig, initImagePath string) (string, error) {
	return d.generator.QueueImage(ctx, cfg, initImagePath)
}

// QueueVideo registers a video generation task.
func (d *Daemon) QueueVideo(ctx context.Context, cfg workflows.VideoConfig, initImagePath string) (string, error) {
	return d.generator.QueueVideo(ctx, cfg, initImagePath)
}

// Tasks returns snapshots of every registered task in creation order.
func (d *Daemon) Tasks() []*queue.Task {
	return d.generator.Tasks()
}

// Task returns a snapshot of one task.
func (d *Daemon) Task(id string) (*queue.Task, bool) {
	return d.generator.Task(id)
}

// CancelTask cancels a task locally and fires a best-effort remote cancel.
func (d *Daemon) CancelTask(id string) bool {
	return d.generator.Cancel(id)
}

// ClearCompleted removes terminal tasks from the in-memory registry.
func (d *Daemon) ClearCompleted() int {
	return d.generator.ClearCompleted()
}

// HistoryList returns archived terminal tasks, newest first.
func (d *Daemon) HistoryList(ctx context.Context, limit int) ([]*queue.Task, error) {
	if d.history == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.history.List(ctx, limit)
}

// EnhancePrompt rewrites a prompt through the text-generation runtime.
func (d *Daemon) EnhancePrompt(ctx context.Context, prompt, mediaKind string) (string, error) {
	if d.enhancer == nil {
		return "", services.Wrap(services.ErrConfiguration, "daemon", "enhance prompt",
			"prompt enhancement is not enabled", nil)
	}
	return d.enhancer.EnhancePrompt(ctx, prompt, mediaKind)
}

// TestNotification sends a test push notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the daemon log file location, or empty when file logging is
// disabled.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}

func pid() int {
	return os.Getpid()
}
