package queue

import (
	"fmt"
	"strings"
	"time"
)

// TaskType identifies the media kind a task generates.
type TaskType string

const (
	TaskAudio TaskType = "audio"
	TaskImage TaskType = "image"
	TaskVideo TaskType = "video"
)

// ParseTaskType validates a task type string.
func ParseTaskType(value string) (TaskType, error) {
	switch TaskType(strings.ToLower(strings.TrimSpace(value))) {
	case TaskAudio:
		return TaskAudio, nil
	case TaskImage:
		return TaskImage, nil
	case TaskVideo:
		return TaskVideo, nil
	default:
		return "", fmt.Errorf("unknown task type %q", value)
	}
}

// Status represents the lifecycle of a generation task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// CancelledByUserMessage is the error message recorded on user cancellation.
const CancelledByUserMessage = "Cancelled by user"

// DaemonStopMessage is the error message recorded when in-flight tasks are
// failed due to daemon shutdown.
const DaemonStopMessage = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if candidate == status {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// IsTerminal reports whether the status ends the task lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the task still needs polling.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusQueued, StatusProcessing:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Terminal states accept no further transitions.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusQueued || next == StatusFailed || next == StatusCancelled
	case StatusQueued:
		return next == StatusProcessing || next == StatusCompleted ||
			next == StatusFailed || next == StatusCancelled
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	default:
		return false
	}
}

// Task is one generation request tracked by the daemon.
type Task struct {
	ID     string
	Type   TaskType
	Status Status

	// Config holds the per-variant request record (workflows.AudioConfig,
	// ImageConfig, or VideoConfig, matching Type) as passed at queue time.
	// The variants are flat value structs, so copies are safe.
	Config any

	// Description is a short human-readable summary of the request (prompt
	// or tags), used by list surfaces.
	Description string

	// PromptID is the engine-assigned identifier, set once the task has
	// been accepted by the engine.
	PromptID string

	// QueuePosition is the zero-based position in the engine queue, nil
	// when unknown or not applicable.
	QueuePosition *int

	GeneratedFilePath string
	ErrorMessage      string

	CreatedAt   time.Time
	SubmittedAt *time.Time
	CompletedAt *time.Time

	// StalePolls counts consecutive polls where the prompt was absent from
	// both the engine queue and its history.
	StalePolls int

	// RetrievalFailures counts consecutive failed attempts to look up or
	// download a finished generation's output.
	RetrievalFailures int
}

// Clone returns a deep copy safe to hand to readers outside the registry
// lock.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	copied := *t
	if t.QueuePosition != nil {
		pos := *t.QueuePosition
		copied.QueuePosition = &pos
	}
	if t.SubmittedAt != nil {
		at := *t.SubmittedAt
		copied.SubmittedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		copied.CompletedAt = &at
	}
	return &copied
}
