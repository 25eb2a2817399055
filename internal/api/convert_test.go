package api_test

import (
	"testing"
	"time"

	"loom/internal/api"
	"loom/internal/queue"
)

func TestFromTask(t *testing.T) {
	pos := 3
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	submitted := created.Add(time.Second)
	task := &queue.Task{
		ID:            "task-1",
		Type:          queue.TaskVideo,
		Status:        queue.StatusQueued,
		Description:   "image-to-video 1024x576",
		PromptID:      "prompt-7",
		QueuePosition: &pos,
		CreatedAt:     created,
		SubmittedAt:   &submitted,
	}

	view := api.FromTask(task)
	if view.ID != "task-1" || view.Type != "video" || view.Status != "queued" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.QueuePosition == nil || *view.QueuePosition != 3 {
		t.Fatalf("queue position = %v", view.QueuePosition)
	}
	if view.CreatedAt != "2026-08-01T12:00:00.000Z" {
		t.Fatalf("created at = %q", view.CreatedAt)
	}
	if view.SubmittedAt == "" || view.CompletedAt != "" {
		t.Fatalf("timestamps: submitted %q, completed %q", view.SubmittedAt, view.CompletedAt)
	}
}

func TestFromTaskNil(t *testing.T) {
	if view := api.FromTask(nil); view.ID != "" {
		t.Fatalf("nil task view = %+v", view)
	}
}

func TestFromTasksEmpty(t *testing.T) {
	if out := api.FromTasks(nil); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
}
