package comfy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"loom/internal/graph"
	"loom/internal/services"
)

const (
	defaultHTTPTimeout   = 15 * time.Second
	defaultUploadTimeout = 60 * time.Second
)

// Config captures the runtime settings required to talk to the engine.
type Config struct {
	BaseURL        string
	ClientID       string
	TimeoutSeconds int
	UploadSeconds  int
}

// Client wraps the engine's HTTP API.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	uploadClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUploadClient overrides the HTTP client used for uploads and downloads,
// which carry a longer timeout than control-plane calls.
func WithUploadClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.uploadClient = client
		}
	}
}

// NewClient constructs an engine client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	uploadTimeout := defaultUploadTimeout
	if cfg.UploadSeconds > 0 {
		uploadTimeout = time.Duration(cfg.UploadSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			ClientID: strings.TrimSpace(cfg.ClientID),
		},
		httpClient:   &http.Client{Timeout: timeout},
		uploadClient: &http.Client{Timeout: uploadTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "http://127.0.0.1:8188"
	}
	return client
}

// BaseURL reports the normalized engine endpoint.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

type promptRequest struct {
	Prompt   graph.WireGraph `json:"prompt"`
	ClientID string          `json:"client_id,omitempty"`
}

type promptResponse struct {
	PromptID string `json:"prompt_id"`
	Error    *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	NodeErrors map[string]struct {
		Errors []NodeError `json:"errors"`
	} `json:"node_errors"`
}

// SubmitPrompt sends a wire graph to the engine and returns the assigned
// prompt id. Rejections come back as *SubmitError carrying the engine's
// node-level detail.
func (c *Client) SubmitPrompt(ctx context.Context, wire graph.WireGraph) (string, error) {
	if len(wire) == 0 {
		return "", errors.New("submit prompt: empty wire graph")
	}
	body, err := json.Marshal(promptRequest{Prompt: wire, ClientID: c.cfg.ClientID})
	if err != nil {
		return "", fmt.Errorf("submit prompt: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("submit prompt: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", annotate(ctx, fmt.Errorf("submit prompt: %w", classifyTransport(err)))
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("submit prompt: read body: %w", err)
	}

	var parsed promptResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		if resp.StatusCode >= http.StatusMultipleChoices {
			return "", annotate(ctx, fmt.Errorf("submit prompt: %w",
				classifyStatus(resp.StatusCode, strings.TrimSpace(string(payload)))))
		}
		return "", fmt.Errorf("submit prompt: decode response: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices || parsed.Error != nil {
		submitErr := &SubmitError{StatusCode: resp.StatusCode}
		if parsed.Error != nil {
			submitErr.Type = parsed.Error.Type
			submitErr.Message = parsed.Error.Message
		}
		if len(parsed.NodeErrors) > 0 {
			submitErr.NodeErrors = make(map[string][]NodeError, len(parsed.NodeErrors))
			for id, entry := range parsed.NodeErrors {
				submitErr.NodeErrors[id] = entry.Errors
			}
		}
		return "", submitErr
	}
	if parsed.PromptID == "" {
		return "", errors.New("submit prompt: engine returned no prompt id")
	}
	return parsed.PromptID, nil
}

// QueueState fetches the engine queue. Running and pending entries arrive as
// positional tuples whose second element is the prompt id.
func (c *Client) QueueState(ctx context.Context) (QueueSnapshot, error) {
	var snapshot QueueSnapshot
	var parsed struct {
		Running [][]any `json:"queue_running"`
		Pending [][]any `json:"queue_pending"`
	}
	if err := c.getJSON(ctx, "/queue", &parsed); err != nil {
		return snapshot, annotate(ctx, fmt.Errorf("queue state: %w", err))
	}
	snapshot.Running = queueEntries(parsed.Running)
	snapshot.Pending = queueEntries(parsed.Pending)
	for i := range snapshot.Pending {
		snapshot.Pending[i].Position = i
	}
	return snapshot, nil
}

func queueEntries(rows [][]any) []QueueEntry {
	entries := make([]QueueEntry, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		id, ok := row[1].(string)
		if !ok || id == "" {
			continue
		}
		entries = append(entries, QueueEntry{PromptID: id})
	}
	return entries
}

// History fetches the engine's record for one prompt. A nil entry with nil
// error means the engine has no record yet.
func (c *Client) History(ctx context.Context, promptID string) (*HistoryEntry, error) {
	promptID = strings.TrimSpace(promptID)
	if promptID == "" {
		return nil, errors.New("history: prompt id required")
	}
	var parsed map[string]struct {
		Status struct {
			Completed bool `json:"completed"`
		} `json:"status"`
		Outputs map[string]struct {
			Images []FileRef `json:"images"`
			Gifs   []FileRef `json:"gifs"`
			Audio  []FileRef `json:"audio"`
		} `json:"outputs"`
	}
	if err := c.getJSON(ctx, "/history/"+url.PathEscape(promptID), &parsed); err != nil {
		return nil, annotate(ctx, fmt.Errorf("history: %w", err))
	}
	record, ok := parsed[promptID]
	if !ok {
		return nil, nil
	}
	entry := &HistoryEntry{PromptID: promptID, Completed: record.Status.Completed}
	for _, nodeOutputs := range record.Outputs {
		entry.Outputs.Images = append(entry.Outputs.Images, nodeOutputs.Images...)
		entry.Outputs.Gifs = append(entry.Outputs.Gifs, nodeOutputs.Gifs...)
		entry.Outputs.Audio = append(entry.Outputs.Audio, nodeOutputs.Audio...)
	}
	return entry, nil
}

// UploadImage streams an image to the engine's input store and returns the
// name the engine assigned, which may differ from the requested one.
func (c *Client) UploadImage(ctx context.Context, r io.Reader, filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", errors.New("upload image: filename required")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("upload image: build form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("upload image: copy payload: %w", err)
	}
	if err := writer.WriteField("overwrite", "true"); err != nil {
		return "", fmt.Errorf("upload image: build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("upload image: finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload/image", &buf)
	if err != nil {
		return "", fmt.Errorf("upload image: new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return "", annotate(ctx, fmt.Errorf("upload image: %w", classifyTransport(err)))
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("upload image: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", annotate(ctx, fmt.Errorf("upload image: %w",
			classifyStatus(resp.StatusCode, strings.TrimSpace(string(payload)))))
	}
	var parsed struct {
		Name      string `json:"name"`
		Subfolder string `json:"subfolder"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("upload image: decode response: %w", err)
	}
	if parsed.Name == "" {
		return "", errors.New("upload image: engine returned no stored name")
	}
	if parsed.Subfolder != "" {
		return parsed.Subfolder + "/" + parsed.Name, nil
	}
	return parsed.Name, nil
}

// Cancel reclaims the engine resources behind a prompt. A pending prompt is
// deleted from the queue; only the currently executing prompt is interrupted,
// since /interrupt aborts whatever the engine is running regardless of id.
func (c *Client) Cancel(ctx context.Context, promptID string) error {
	promptID = strings.TrimSpace(promptID)
	if promptID == "" {
		return errors.New("cancel: prompt id required")
	}

	snapshot, stateErr := c.QueueState(ctx)
	if stateErr == nil {
		_, running, found := snapshot.Contains(promptID)
		if !found {
			// Already finished or gone; nothing to reclaim.
			return nil
		}
		if running {
			if err := c.postJSON(ctx, "/interrupt", nil); err != nil {
				return annotate(ctx, fmt.Errorf("cancel: interrupt: %w", err))
			}
			return nil
		}
	}
	// Pending, or the queue state is unknown: the delete is harmless either
	// way, and never blindly interrupt.
	if err := c.postJSON(ctx, "/queue", map[string]any{"delete": []string{promptID}}); err != nil {
		return annotate(ctx, fmt.Errorf("cancel: queue delete: %w", err))
	}
	return nil
}

// Download fetches one output file via /view and writes it under destDir,
// returning the local path.
func (c *Client) Download(ctx context.Context, ref FileRef, destDir string) (string, error) {
	if strings.TrimSpace(ref.Filename) == "" {
		return "", errors.New("download: filename required")
	}
	query := url.Values{}
	query.Set("filename", ref.Filename)
	query.Set("subfolder", ref.Subfolder)
	query.Set("type", ref.Type)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/view?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("download: new request: %w", err)
	}
	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return "", annotate(ctx, fmt.Errorf("download %s: %w", ref.Filename, classifyTransport(err)))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", annotate(ctx, fmt.Errorf("download %s: %w", ref.Filename,
			classifyStatus(resp.StatusCode, "")))
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("download %s: create dest dir: %w", ref.Filename, err)
	}
	destPath := filepath.Join(destDir, filepath.Base(ref.Filename))
	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("download %s: create file: %w", ref.Filename, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return "", fmt.Errorf("download %s: write file: %w", ref.Filename, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("download %s: close file: %w", ref.Filename, err)
	}
	return destPath, nil
}

// HealthCheck verifies the engine is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	var stats map[string]any
	if err := c.getJSON(ctx, "/system_stats", &stats); err != nil {
		return fmt.Errorf("engine health: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return classifyStatus(resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return classifyStatus(resp.StatusCode, "")
	}
	return nil
}

// classifyTransport tags a failed HTTP round trip so callers can separate
// timeouts from other transient transport faults.
func classifyTransport(err error) error {
	marker := services.ErrTransient
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		marker = services.ErrTimeout
	}
	return fmt.Errorf("%w: %w", marker, err)
}

// classifyStatus tags an HTTP error status: 404 means the resource does not
// exist, server errors are worth retrying, anything else is an engine fault.
func classifyStatus(code int, detail string) error {
	marker := services.ErrEngine
	switch {
	case code == http.StatusNotFound:
		marker = services.ErrNotFound
	case code >= http.StatusInternalServerError:
		marker = services.ErrTransient
	}
	if detail != "" {
		return fmt.Errorf("%w: http %d: %s", marker, code, detail)
	}
	return fmt.Errorf("%w: http %d", marker, code)
}

// annotate prefixes the error with the task and pipeline operation stamped on
// the context by the generation service, keeping engine errors traceable in
// logs without a shared logger.
func annotate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if op, ok := services.OperationFromContext(ctx); ok {
		err = fmt.Errorf("%s: %w", op, err)
	}
	if id, ok := services.TaskIDFromContext(ctx); ok {
		err = fmt.Errorf("task %s: %w", id, err)
	}
	return err
}
