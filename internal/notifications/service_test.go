package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"loom/internal/config"
	"loom/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyGenerationCompleted(context.Background(), "image", "a red barn", "/out/barn.png"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	message  string
}

func newCapturingService(t *testing.T, mutate func(*config.Config)) (notifications.Service, *[]captured) {
	t.Helper()
	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			message:  string(body),
		})
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completion = true
	cfg.Notifications.Errors = true
	if mutate != nil {
		mutate(&cfg)
	}
	return notifications.NewService(&cfg), &requests
}

func TestNotifyGenerationCompletedFormatsPayload(t *testing.T) {
	svc, requests := newCapturingService(t, nil)

	err := svc.NotifyGenerationCompleted(context.Background(), "audio", "pop, female voice", "/outputs/loom_audio_00001.flac")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	got := (*requests)[0]
	if got.title != "Loom - Complete" {
		t.Errorf("title = %q", got.title)
	}
	if got.tags != "loom,audio,completed" {
		t.Errorf("tags = %q", got.tags)
	}
	if got.priority != "high" {
		t.Errorf("priority = %q", got.priority)
	}
	if !strings.Contains(got.message, "pop, female voice") || !strings.Contains(got.message, "loom_audio_00001.flac") {
		t.Errorf("message = %q", got.message)
	}
}

func TestNotifyGenerationFailedIncludesReason(t *testing.T) {
	svc, requests := newCapturingService(t, nil)

	err := svc.NotifyGenerationFailed(context.Background(), "video", "waves crashing", "engine rejected prompt")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	got := (*requests)[0]
	if got.tags != "loom,video,failed" {
		t.Errorf("tags = %q", got.tags)
	}
	if !strings.Contains(got.message, "engine rejected prompt") {
		t.Errorf("message = %q", got.message)
	}
}

func TestCompletionToggleSuppressesNotifications(t *testing.T) {
	svc, requests := newCapturingService(t, func(cfg *config.Config) {
		cfg.Notifications.Completion = false
	})

	if err := svc.NotifyGenerationCompleted(context.Background(), "image", "a barn", ""); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(*requests) != 0 {
		t.Fatalf("expected no request when completion notifications disabled, got %d", len(*requests))
	}
}

func TestErrorsToggleSuppressesFailureNotifications(t *testing.T) {
	svc, requests := newCapturingService(t, func(cfg *config.Config) {
		cfg.Notifications.Errors = false
	})

	if err := svc.NotifyGenerationFailed(context.Background(), "image", "a barn", "boom"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(*requests) != 0 {
		t.Fatalf("expected no request when error notifications disabled, got %d", len(*requests))
	}
}
