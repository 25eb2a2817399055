package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TaskView describes a generation task in a transport-friendly format.
type TaskView struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	Status            string `json:"status"`
	Description       string `json:"description"`
	PromptID          string `json:"promptId,omitempty"`
	QueuePosition     *int   `json:"queuePosition,omitempty"`
	GeneratedFilePath string `json:"generatedFilePath,omitempty"`
	ErrorMessage      string `json:"errorMessage,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
	SubmittedAt       string `json:"submittedAt,omitempty"`
	CompletedAt       string `json:"completedAt,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool   `json:"running"`
	PID            int    `json:"pid"`
	EngineURL      string `json:"engineUrl"`
	EngineHealthy  bool   `json:"engineHealthy"`
	TextGenEnabled bool   `json:"textgenEnabled"`
	TextGenHealthy bool   `json:"textgenHealthy"`
	ActiveTasks    int    `json:"activeTasks"`
	TotalTasks     int    `json:"totalTasks"`
	LockFilePath   string `json:"lockFilePath"`
	HistoryDBPath  string `json:"historyDbPath"`
}

// TaskListResponse wraps a collection of tasks for API responses.
type TaskListResponse struct {
	Tasks []TaskView `json:"tasks"`
}
