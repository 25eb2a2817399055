package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"loom/internal/config"
)

var titleCaser = cases.Title(language.English)

const userAgent = "Loom-Go/0.1.0"

// Service defines the notification surface exposed to the generation
// pipeline.
type Service interface {
	NotifyGenerationQueued(ctx context.Context, taskType, description string) error
	NotifyGenerationCompleted(ctx context.Context, taskType, description, filePath string) error
	NotifyGenerationFailed(ctx context.Context, taskType, description, errorMessage string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	completion bool
	errors     bool
}

func (n *ntfyService) NotifyGenerationQueued(ctx context.Context, taskType, description string) error {
	if !n.completion {
		return nil
	}
	data := payload{
		title:   "Loom - Queued",
		message: fmt.Sprintf("Queued %s generation: %s", taskType, summarize(description)),
		tags:    []string{"loom", taskType, "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationCompleted(ctx context.Context, taskType, description, filePath string) error {
	if !n.completion {
		return nil
	}
	message := fmt.Sprintf("%s generation complete: %s", titleCaser.String(taskType), summarize(description))
	if filePath = strings.TrimSpace(filePath); filePath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, filepath.Base(filePath))
	}
	data := payload{
		title:    "Loom - Complete",
		message:  message,
		tags:     []string{"loom", taskType, "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationFailed(ctx context.Context, taskType, description, errorMessage string) error {
	if !n.errors {
		return nil
	}
	message := fmt.Sprintf("%s generation failed: %s", titleCaser.String(taskType), summarize(description))
	if errorMessage = strings.TrimSpace(errorMessage); errorMessage != "" {
		message = fmt.Sprintf("%s\nReason: %s", message, errorMessage)
	}
	data := payload{
		title:    "Loom - Failed",
		message:  message,
		tags:     []string{"loom", taskType, "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Loom - Error",
		message:  builder.String(),
		tags:     []string{"loom", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Loom - Test",
		message:  "Notification system test",
		tags:     []string{"loom", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func summarize(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return "(no description)"
	}
	const limit = 80
	runes := []rune(description)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return description
}

type noopService struct{}

func (noopService) NotifyGenerationQueued(context.Context, string, string) error            { return nil }
func (noopService) NotifyGenerationCompleted(context.Context, string, string, string) error { return nil }
func (noopService) NotifyGenerationFailed(context.Context, string, string, string) error    { return nil }
func (noopService) NotifyError(context.Context, error, string) error                        { return nil }
func (noopService) TestNotification(context.Context) error                                  { return nil }
