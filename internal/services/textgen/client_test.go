package textgen_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"loom/internal/services/textgen"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...textgen.Option) *textgen.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]textgen.Option{textgen.WithSleeper(func(time.Duration) {})}, opts...)
	return textgen.NewClient(textgen.Config{BaseURL: server.URL, Model: "test-model"}, opts...)
}

func completionBody(content string) string {
	encoded, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(encoded)
}

func TestEnhancePrompt(t *testing.T) {
	var gotRequest struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		payload, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(payload, &gotRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, completionBody("  a serene mountain lake at golden hour, mist rising  "))
	}))

	enhanced, err := client.EnhancePrompt(context.Background(), "mountain lake", "image")
	if err != nil {
		t.Fatalf("enhance prompt: %v", err)
	}
	if enhanced != "a serene mountain lake at golden hour, mist rising" {
		t.Fatalf("enhanced = %q", enhanced)
	}
	if gotRequest.Model != "test-model" {
		t.Errorf("model = %q", gotRequest.Model)
	}
	if len(gotRequest.Messages) != 2 || gotRequest.Messages[0].Role != "system" {
		t.Fatalf("expected system+user messages, got %+v", gotRequest.Messages)
	}
	if gotRequest.Messages[1].Content != "mountain lake" {
		t.Errorf("user prompt = %q", gotRequest.Messages[1].Content)
	}
}

func TestEnhancePromptRejectsUnknownKind(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for invalid media kind")
	}))
	if _, err := client.EnhancePrompt(context.Background(), "something", "hologram"); err == nil {
		t.Fatal("expected error for unknown media kind")
	}
}

func TestEnhancePromptRetriesServerErrors(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, completionBody("enhanced"))
	}))

	enhanced, err := client.EnhancePrompt(context.Background(), "a cat", "image")
	if err != nil {
		t.Fatalf("enhance prompt: %v", err)
	}
	if enhanced != "enhanced" {
		t.Fatalf("enhanced = %q", enhanced)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestEnhancePromptDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	_, err := client.EnhancePrompt(context.Background(), "a cat", "image")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "http 400") {
		t.Fatalf("expected status in error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
}

func TestHealthCheck(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, completionBody("ok"))
	}))
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}
}

func TestHealthCheckReportsAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error": {"message": "model not loaded"}}`)
	}))
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected api error detail, got %v", err)
	}
}
