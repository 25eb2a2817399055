package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"loom/internal/api"
	"loom/internal/queue"
)

const descriptionColumnWidth = 48

// shortID abbreviates a task UUID for table display. Full ids remain valid
// arguments everywhere.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}

// displayTime reformats an API timestamp for table output.
func displayTime(value string) string {
	if value == "" {
		return ""
	}
	parsed, err := time.Parse("2006-01-02T15:04:05.000Z07:00", value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

// statusCell renders a task status with its queue position when waiting.
func statusCell(view api.TaskView) string {
	if view.Status == string(queue.StatusQueued) && view.QueuePosition != nil {
		return fmt.Sprintf("%s (#%d)", view.Status, *view.QueuePosition)
	}
	return view.Status
}

// resultCell summarizes the task outcome: artifact name on success, error
// message otherwise.
func resultCell(view api.TaskView) string {
	if view.GeneratedFilePath != "" {
		return filepath.Base(view.GeneratedFilePath)
	}
	return truncate(view.ErrorMessage, descriptionColumnWidth)
}

func buildTaskRows(views []api.TaskView) [][]string {
	rows := make([][]string, 0, len(views))
	for _, view := range views {
		rows = append(rows, []string{
			shortID(view.ID),
			view.Type,
			statusCell(view),
			truncate(view.Description, descriptionColumnWidth),
			displayTime(view.CreatedAt),
			resultCell(view),
		})
	}
	return rows
}

var taskTableHeaders = []string{"ID", "Type", "Status", "Description", "Created", "Result"}

var taskTableAligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}

// resolveTaskID expands a short id prefix against the daemon's task list.
// Exact matches win; a prefix must be unambiguous.
func resolveTaskID(views []api.TaskView, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("task id is required")
	}
	var matches []string
	for _, view := range views {
		if view.ID == arg {
			return view.ID, nil
		}
		if strings.HasPrefix(view.ID, arg) {
			matches = append(matches, view.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("task %s not found", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("task id %s is ambiguous (%d matches)", arg, len(matches))
	}
}
