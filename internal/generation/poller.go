package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/services/comfy"
)

const (
	defaultPollInterval    = 3 * time.Second
	defaultStalePollLimit  = 40
	vanishedMessage        = "Generation disappeared from the engine queue"
	retrievalFailedMessage = "Failed to retrieve generation output"
)

// Run drives the poll loop until ctx is cancelled. Poll failures are logged
// and retried on the next tick; the loop itself never stops on error.
func (s *Service) Run(ctx context.Context) error {
	interval := s.pollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("poll loop started", logging.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("poll loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.pollOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("poll cycle failed", logging.Error(err))
			}
		}
	}
}

// pollOnce reconciles every submitted task against the engine queue.
func (s *Service) pollOnce(ctx context.Context) error {
	tracked := s.submittedTasks()
	if len(tracked) == 0 {
		return nil
	}

	queueCtx, cancel := context.WithTimeout(ctx, s.checkTimeout())
	snapshot, err := s.engine.QueueState(queueCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch queue state: %w", err)
	}

	for _, task := range tracked {
		// Each task gets an independent check so one slow or failing
		// lookup cannot stall the rest of the cycle.
		checkCtx, cancel := context.WithTimeout(ctx, s.checkTimeout())
		s.checkTask(checkCtx, task, snapshot)
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// submittedTasks snapshots every task that has an engine prompt id and is
// still active.
func (s *Service) submittedTasks() []*queue.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*queue.Task
	for _, id := range s.order {
		task, ok := s.tasks[id]
		if !ok {
			continue
		}
		if task.Status.IsActive() && task.PromptID != "" {
			out = append(out, task.Clone())
		}
	}
	return out
}

func (s *Service) checkTask(ctx context.Context, task *queue.Task, snapshot comfy.QueueSnapshot) {
	ctx = services.WithTaskID(ctx, task.ID)
	ctx = services.WithOperation(ctx, "poll")
	logger := s.logger.With(
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldPromptID, task.PromptID))

	position, running, found := snapshot.Contains(task.PromptID)
	switch {
	case found && running:
		s.markProcessing(task.ID)
	case found:
		s.markQueuedAt(task.ID, position)
	default:
		s.checkCompletion(ctx, task, logger)
	}
}

func (s *Service) markProcessing(id string) {
	snapshot := s.mutate(id, func(task *queue.Task) bool {
		task.StalePolls = 0
		task.RetrievalFailures = 0
		if task.Status == queue.StatusProcessing {
			return false
		}
		if !task.Status.CanTransition(queue.StatusProcessing) {
			return false
		}
		task.Status = queue.StatusProcessing
		task.QueuePosition = nil
		return true
	})
	if snapshot != nil {
		s.logger.Info("task processing",
			logging.String(logging.FieldTaskID, snapshot.ID),
			logging.String(logging.FieldPromptID, snapshot.PromptID))
		s.hub.publish(Event{Type: EventTaskUpdated, Task: snapshot})
	}
}

func (s *Service) markQueuedAt(id string, position int) {
	snapshot := s.mutate(id, func(task *queue.Task) bool {
		task.StalePolls = 0
		task.RetrievalFailures = 0
		if task.Status != queue.StatusQueued {
			return false
		}
		if task.QueuePosition != nil && *task.QueuePosition == position {
			return false
		}
		task.QueuePosition = &position
		return true
	})
	if snapshot != nil {
		s.hub.publish(Event{Type: EventTaskUpdated, Task: snapshot})
	}
}

// checkCompletion handles a prompt absent from the engine queue: either it
// finished (history has outputs) or it vanished, which is tolerated up to the
// stale-poll budget.
func (s *Service) checkCompletion(ctx context.Context, task *queue.Task, logger *slog.Logger) {
	entry, err := s.engine.History(ctx, task.PromptID)
	if err != nil {
		s.noteRetrievalFailure(task.ID, "history lookup failed", err, logger)
		return
	}

	if entry != nil {
		if ref, ok := s.pickOutput(task.Type, entry.Outputs); ok {
			destDir := s.cfg.Paths.OutputDir
			localPath, err := s.engine.Download(ctx, ref, destDir)
			if err != nil {
				s.noteRetrievalFailure(task.ID, "artifact download failed", err, logger)
				return
			}
			logger.Info("artifact downloaded", logging.String("path", localPath))
			s.completeTask(task.ID, localPath)
			return
		}
	}

	stale := s.mutate(task.ID, func(t *queue.Task) bool {
		if !t.Status.IsActive() {
			return false
		}
		// The lookup itself worked, so retrieval is healthy even though the
		// prompt has no outputs yet.
		t.RetrievalFailures = 0
		t.StalePolls++
		return true
	})
	if stale == nil {
		return
	}
	if stale.StalePolls >= s.stalePollLimit() {
		logger.Warn("stale poll budget exhausted", logging.Int("stale_polls", stale.StalePolls))
		s.failTask(task.ID, vanishedMessage)
	}
}

// noteRetrievalFailure charges a failed history lookup or download against the
// task's retrieval budget. Errors classified as permanent fail the task at
// once; everything else is retried until the budget runs out.
func (s *Service) noteRetrievalFailure(id, what string, err error, logger *slog.Logger) {
	logger.Warn(what, logging.Error(err))

	if permanentFailure(err) {
		s.failTask(id, retrievalFailedMessage)
		return
	}

	snapshot := s.mutate(id, func(t *queue.Task) bool {
		if !t.Status.IsActive() {
			return false
		}
		t.RetrievalFailures++
		return true
	})
	if snapshot == nil {
		return
	}
	if snapshot.RetrievalFailures >= s.stalePollLimit() {
		logger.Warn("retrieval budget exhausted",
			logging.Int("retrieval_failures", snapshot.RetrievalFailures))
		s.failTask(id, retrievalFailedMessage)
	}
}

// permanentFailure reports whether the error carries a classification no
// retry can fix. Unclassified errors get the benefit of the doubt and count
// against the retry budget instead.
func permanentFailure(err error) bool {
	if services.IsRetryable(err) {
		return false
	}
	return errors.Is(err, services.ErrEngine) ||
		errors.Is(err, services.ErrValidation) ||
		errors.Is(err, services.ErrConfiguration) ||
		errors.Is(err, services.ErrNotFound)
}

// pickOutput selects the artifact for the task's media kind, falling back to
// any output when the preferred group is empty.
func (s *Service) pickOutput(taskType queue.TaskType, outputs comfy.HistoryOutputs) (comfy.FileRef, bool) {
	var preferred []comfy.FileRef
	switch taskType {
	case queue.TaskAudio:
		preferred = outputs.Audio
	case queue.TaskImage:
		preferred = outputs.Images
	case queue.TaskVideo:
		preferred = outputs.Gifs
		if len(preferred) == 0 {
			preferred = outputs.Images
		}
	}
	if len(preferred) > 0 {
		return preferred[0], true
	}
	return outputs.First()
}

func (s *Service) pollInterval() time.Duration {
	seconds := s.cfg.Workflow.QueuePollInterval
	if seconds <= 0 {
		return defaultPollInterval
	}
	return time.Duration(seconds) * time.Second
}

func (s *Service) stalePollLimit() int {
	limit := s.cfg.Workflow.StalePollLimit
	if limit <= 0 {
		return defaultStalePollLimit
	}
	return limit
}
