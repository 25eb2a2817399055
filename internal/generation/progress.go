package generation

import (
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services/comfy"
)

// HandleProgress reacts to one engine WebSocket frame. Execution frames move
// the matching task to processing ahead of the next poll cycle; progress
// frames are republished to subscribers; error frames fail the task with the
// engine's message.
func (s *Service) HandleProgress(event comfy.ProgressEvent) {
	if event.PromptID == "" {
		return
	}
	task, ok := s.taskByPrompt(event.PromptID)
	if !ok {
		return
	}

	switch event.Type {
	case "executing":
		s.markProcessing(task.ID)
	case "progress":
		s.markProcessing(task.ID)
		if event.Max > 0 {
			s.hub.publish(Event{
				Type:     EventTaskProgress,
				Task:     task,
				Progress: &Progress{Value: event.Value, Max: event.Max},
			})
		}
	case "execution_error":
		s.logger.Warn("engine reported execution error",
			logging.String(logging.FieldTaskID, task.ID),
			logging.String(logging.FieldPromptID, event.PromptID),
			logging.String("node_id", event.NodeID))
		s.failTask(task.ID, "Engine execution error")
	}
}

// taskByPrompt finds the active task bound to an engine prompt id.
func (s *Service) taskByPrompt(promptID string) (*queue.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.PromptID == promptID && task.Status.IsActive() {
			return task.Clone(), true
		}
	}
	return nil, false
}
