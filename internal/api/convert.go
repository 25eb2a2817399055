package api

import (
	"time"

	"loom/internal/queue"
)

// FromTask converts a task snapshot to its API representation.
func FromTask(task *queue.Task) TaskView {
	if task == nil {
		return TaskView{}
	}
	view := TaskView{
		ID:                task.ID,
		Type:              string(task.Type),
		Status:            string(task.Status),
		Description:       task.Description,
		PromptID:          task.PromptID,
		GeneratedFilePath: task.GeneratedFilePath,
		ErrorMessage:      task.ErrorMessage,
		CreatedAt:         FormatTime(task.CreatedAt),
	}
	if task.QueuePosition != nil {
		pos := *task.QueuePosition
		view.QueuePosition = &pos
	}
	if task.SubmittedAt != nil {
		view.SubmittedAt = FormatTime(*task.SubmittedAt)
	}
	if task.CompletedAt != nil {
		view.CompletedAt = FormatTime(*task.CompletedAt)
	}
	return view
}

// FromTasks converts a slice of task snapshots into API DTOs.
func FromTasks(tasks []*queue.Task) []TaskView {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
