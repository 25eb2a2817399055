package ipc

import (
	"loom/internal/api"
	"loom/internal/workflows"
)

// StatusRequest asks for daemon runtime information.
type StatusRequest struct{}

// StatusResponse carries daemon runtime information.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// GenerateAudioRequest queues an audio generation task.
type GenerateAudioRequest struct {
	Config workflows.AudioConfig `json:"config"`
}

// GenerateImageRequest queues an image generation task. InitImagePath names a
// daemon-local image to upload before submission.
type GenerateImageRequest struct {
	Config        workflows.ImageConfig `json:"config"`
	InitImagePath string                `json:"initImagePath,omitempty"`
}

// GenerateVideoRequest queues a video generation task.
type GenerateVideoRequest struct {
	Config        workflows.VideoConfig `json:"config"`
	InitImagePath string                `json:"initImagePath,omitempty"`
}

// GenerateResponse reports the task created for a generation request.
type GenerateResponse struct {
	TaskID string       `json:"taskId"`
	Task   api.TaskView `json:"task"`
}

// QueueListRequest lists tasks, optionally filtered by status names.
type QueueListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

// QueueListResponse carries the matching tasks in creation order.
type QueueListResponse struct {
	Tasks []api.TaskView `json:"tasks"`
}

// QueueDescribeRequest fetches one task by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse carries the requested task.
type QueueDescribeResponse struct {
	Task api.TaskView `json:"task"`
}

// QueueCancelRequest cancels one task by id.
type QueueCancelRequest struct {
	ID string `json:"id"`
}

// QueueCancelResponse reports whether the task was cancelled. Cancelled is
// false when the task was already terminal.
type QueueCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// QueueClearCompletedRequest removes terminal tasks from the registry.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports how many tasks were removed.
type QueueClearCompletedResponse struct {
	Removed int `json:"removed"`
}

// HistoryListRequest lists archived terminal tasks, newest first.
type HistoryListRequest struct {
	Limit int `json:"limit,omitempty"`
}

// HistoryListResponse carries the archived tasks.
type HistoryListResponse struct {
	Tasks []api.TaskView `json:"tasks"`
}

// EnhancePromptRequest rewrites a prompt through the text-generation runtime.
type EnhancePromptRequest struct {
	Prompt    string `json:"prompt"`
	MediaKind string `json:"mediaKind"`
}

// EnhancePromptResponse carries the rewritten prompt.
type EnhancePromptResponse struct {
	Enhanced string `json:"enhanced"`
}

// StopRequest asks the daemon to shut down.
type StopRequest struct{}

// StopResponse acknowledges a shutdown request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// LogTailRequest reads daemon log lines. A negative Offset asks for the last
// Limit lines; subsequent requests pass the returned offset. When Follow is
// set and no new lines exist, the server waits up to WaitMillis for more.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit,omitempty"`
	Follow     bool  `json:"follow,omitempty"`
	WaitMillis int   `json:"waitMillis,omitempty"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a test push notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
