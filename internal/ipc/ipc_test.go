package ipc_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"loom/internal/config"
	"loom/internal/daemon"
	"loom/internal/graph"
	"loom/internal/ipc"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services/comfy"
	"loom/internal/workflows"
)

type fakeEngine struct {
	mu        sync.Mutex
	submitted int
	cancelled []string
}

func (f *fakeEngine) SubmitPrompt(context.Context, graph.WireGraph) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted++
	return fmt.Sprintf("prompt-%d", f.submitted), nil
}

func (f *fakeEngine) QueueState(context.Context) (comfy.QueueSnapshot, error) {
	return comfy.QueueSnapshot{}, nil
}

func (f *fakeEngine) History(context.Context, string) (*comfy.HistoryEntry, error) {
	return nil, nil
}

func (f *fakeEngine) UploadImage(_ context.Context, _ io.Reader, filename string) (string, error) {
	return filename, nil
}

func (f *fakeEngine) Cancel(_ context.Context, promptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, promptID)
	return nil
}

func (f *fakeEngine) Download(context.Context, comfy.FileRef, string) (string, error) {
	return "", nil
}

func (f *fakeEngine) HealthCheck(context.Context) error { return nil }

func (f *fakeEngine) BaseURL() string { return "http://127.0.0.1:8188" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(dir, "output")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Generation.AudioCheckpoint = "audio.safetensors"
	cfg.Generation.ImageCheckpoint = "image.safetensors"
	cfg.Generation.VideoCheckpoint = "video.safetensors"
	cfg.Generation.PlaceholderImage = "placeholder.png"
	cfg.Engine.WebSocket = false
	cfg.TextGen.Enabled = false
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return &cfg
}

func TestIPCServerClient(t *testing.T) {
	cfg := testConfig(t)
	logger := logging.NewNop()
	engine := &fakeEngine{}

	d, err := daemon.New(cfg, logger, daemon.WithEngine(engine))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	stopRequested := make(chan struct{})
	var stopOnce sync.Once
	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger, func() {
		stopOnce.Do(func() { close(stopRequested) })
	})
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Status.Running {
		t.Fatal("expected daemon to be running")
	}
	if !status.Status.EngineHealthy {
		t.Fatal("expected healthy engine")
	}

	imageCfg := workflows.DefaultImageConfig()
	imageCfg.Prompt = "a watercolor lighthouse"
	genResp, err := client.GenerateImage(imageCfg, "")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if genResp.TaskID == "" {
		t.Fatal("expected a task id")
	}
	if genResp.Task.Type != string(queue.TaskImage) {
		t.Fatalf("task type = %s", genResp.Task.Type)
	}

	audioCfg := workflows.DefaultAudioConfig()
	audioCfg.Tags = "ambient, drone"
	if _, err := client.GenerateAudio(audioCfg); err != nil {
		t.Fatalf("GenerateAudio failed: %v", err)
	}

	badCfg := workflows.DefaultImageConfig()
	if _, err := client.GenerateImage(badCfg, ""); err == nil {
		t.Fatal("expected validation error for empty prompt")
	}

	d.Generator().Wait()

	listResp, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listResp.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(listResp.Tasks))
	}

	queuedResp, err := client.QueueList([]string{string(queue.StatusQueued)})
	if err != nil {
		t.Fatalf("QueueList filtered failed: %v", err)
	}
	if len(queuedResp.Tasks) != 2 {
		t.Fatalf("expected 2 queued tasks, got %d", len(queuedResp.Tasks))
	}

	describeResp, err := client.QueueDescribe(genResp.TaskID)
	if err != nil {
		t.Fatalf("QueueDescribe failed: %v", err)
	}
	if describeResp.Task.ID != genResp.TaskID {
		t.Fatalf("described task %s, want %s", describeResp.Task.ID, genResp.TaskID)
	}

	if _, err := client.QueueDescribe("no-such-task"); err == nil {
		t.Fatal("expected error for unknown task id")
	}

	cancelResp, err := client.QueueCancel(genResp.TaskID)
	if err != nil {
		t.Fatalf("QueueCancel failed: %v", err)
	}
	if !cancelResp.Cancelled {
		t.Fatal("expected task to cancel")
	}
	d.Generator().Wait()

	repeatCancel, err := client.QueueCancel(genResp.TaskID)
	if err != nil {
		t.Fatalf("QueueCancel repeat failed: %v", err)
	}
	if repeatCancel.Cancelled {
		t.Fatal("expected repeat cancel to report false")
	}

	clearResp, err := client.QueueClearCompleted()
	if err != nil {
		t.Fatalf("QueueClearCompleted failed: %v", err)
	}
	if clearResp.Removed != 1 {
		t.Fatalf("expected 1 cleared task, got %d", clearResp.Removed)
	}

	historyResp, err := client.HistoryList(10)
	if err != nil {
		t.Fatalf("HistoryList failed: %v", err)
	}
	if len(historyResp.Tasks) != 1 {
		t.Fatalf("expected 1 archived task, got %d", len(historyResp.Tasks))
	}
	if historyResp.Tasks[0].Status != string(queue.StatusCancelled) {
		t.Fatalf("archived status = %s", historyResp.Tasks[0].Status)
	}

	if _, err := client.EnhancePrompt("a cat", "image"); err == nil {
		t.Fatal("expected enhance error when textgen is disabled")
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp.Sent {
		t.Fatal("expected no notification without a configured topic")
	}
	if notifyResp.Message == "" {
		t.Fatal("expected a notification message")
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected stop response to be true")
	}
	select {
	case <-stopRequested:
	case <-time.After(5 * time.Second):
		t.Fatal("stop callback not invoked")
	}

	if _, err := os.Stat(socket); err != nil {
		t.Fatalf("socket missing before close: %v", err)
	}
	srv.Close()
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Fatalf("socket should be removed after close, stat err = %v", err)
	}
}
