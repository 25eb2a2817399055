package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"loom/internal/config"
	"loom/internal/graph"
	"loom/internal/queue"
	"loom/internal/services/comfy"
	"loom/internal/workflows"
)

type fakeEngine struct {
	mu sync.Mutex

	submitted  []graph.WireGraph
	submitErr  error
	nextPrompt int

	snapshot comfy.QueueSnapshot
	queueErr error

	histories  map[string]*comfy.HistoryEntry
	historyErr error

	uploadedNames []string
	uploadErr     error

	cancelled []string

	downloadErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{histories: make(map[string]*comfy.HistoryEntry)}
}

func (f *fakeEngine) SubmitPrompt(_ context.Context, wire graph.WireGraph) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, wire)
	f.nextPrompt++
	return fmt.Sprintf("prompt-%d", f.nextPrompt), nil
}

func (f *fakeEngine) QueueState(context.Context) (comfy.QueueSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, f.queueErr
}

func (f *fakeEngine) History(_ context.Context, promptID string) (*comfy.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.histories[promptID], nil
}

func (f *fakeEngine) UploadImage(_ context.Context, r io.Reader, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	io.Copy(io.Discard, r)
	stored := "stored_" + filename
	f.uploadedNames = append(f.uploadedNames, stored)
	return stored, nil
}

func (f *fakeEngine) Cancel(_ context.Context, promptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, promptID)
	return nil
}

func (f *fakeEngine) Download(_ context.Context, ref comfy.FileRef, destDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	path := filepath.Join(destDir, ref.Filename)
	if err := os.WriteFile(path, []byte("artifact"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeEngine) cancelledPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Generation.AudioCheckpoint = "audio.safetensors"
	cfg.Generation.ImageCheckpoint = "image.safetensors"
	cfg.Generation.VideoCheckpoint = "video.safetensors"
	cfg.Generation.PlaceholderImage = "placeholder.png"
	cfg.Workflow.StalePollLimit = 3
	return &cfg
}

func newTestService(t *testing.T, engine Engine) *Service {
	t.Helper()
	return NewService(testConfig(t), engine)
}

func imageRequest() workflows.ImageConfig {
	cfg := workflows.DefaultImageConfig()
	cfg.Prompt = "a red barn"
	cfg.Seed = 5
	return cfg
}

func TestQueueImageSubmitsAsynchronously(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	id, err := svc.QueueImage(context.Background(), imageRequest(), "")
	if err != nil {
		t.Fatalf("queue image: %v", err)
	}
	svc.Wait()

	task, ok := svc.Task(id)
	if !ok {
		t.Fatal("task not registered")
	}
	if task.Status != queue.StatusQueued {
		t.Fatalf("status = %s, want queued", task.Status)
	}
	if task.PromptID != "prompt-1" {
		t.Fatalf("prompt id = %q", task.PromptID)
	}
	if task.SubmittedAt == nil {
		t.Fatal("submitted-at not set")
	}
	if len(engine.submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(engine.submitted))
	}
}

func TestQueueImageValidationFailsFast(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	cfg := imageRequest()
	cfg.Prompt = ""
	if _, err := svc.QueueImage(context.Background(), cfg, ""); err == nil {
		t.Fatal("expected validation error")
	}
	if len(svc.Tasks()) != 0 {
		t.Fatal("invalid request must not register a task")
	}
}

func TestQueueImageFillsCheckpointAndPlaceholderDefaults(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	if _, err := svc.QueueImage(context.Background(), imageRequest(), ""); err != nil {
		t.Fatalf("queue image: %v", err)
	}
	svc.Wait()

	wire := engine.submitted[0]
	var loadImage, checkpoint string
	for _, node := range wire {
		switch node.ClassType {
		case "LoadImage":
			loadImage, _ = node.Inputs["image"].(string)
		case "CheckpointLoaderSimple":
			checkpoint, _ = node.Inputs["ckpt_name"].(string)
		}
	}
	if checkpoint != "image.safetensors" {
		t.Errorf("checkpoint = %q", checkpoint)
	}
	if loadImage != "placeholder.png" {
		t.Errorf("load image = %q, want placeholder fallback", loadImage)
	}
}

func TestQueueImageUploadsInitImage(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	initPath := filepath.Join(t.TempDir(), "init.png")
	if err := os.WriteFile(initPath, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.QueueImage(context.Background(), imageRequest(), initPath); err != nil {
		t.Fatalf("queue image: %v", err)
	}
	svc.Wait()

	if len(engine.uploadedNames) != 1 || engine.uploadedNames[0] != "stored_init.png" {
		t.Fatalf("uploads = %v", engine.uploadedNames)
	}
	var loadImage string
	for _, node := range engine.submitted[0] {
		if node.ClassType == "LoadImage" {
			loadImage, _ = node.Inputs["image"].(string)
		}
	}
	if loadImage != "stored_init.png" {
		t.Fatalf("load image = %q, want uploaded name", loadImage)
	}
}

func TestSubmissionFailureFailsTask(t *testing.T) {
	engine := newFakeEngine()
	engine.submitErr = errors.New("engine offline")
	svc := newTestService(t, engine)

	id, err := svc.QueueImage(context.Background(), imageRequest(), "")
	if err != nil {
		t.Fatalf("queue image: %v", err)
	}
	svc.Wait()

	task, _ := svc.Task(id)
	if task.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", task.Status)
	}
	if !strings.Contains(task.ErrorMessage, "engine offline") {
		t.Fatalf("error message = %q", task.ErrorMessage)
	}
}

func TestQueueAudioUsesTagsAsDescription(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	cfg := workflows.DefaultAudioConfig()
	cfg.Tags = "ambient, piano"
	id, err := svc.QueueAudio(context.Background(), cfg)
	if err != nil {
		t.Fatalf("queue audio: %v", err)
	}
	svc.Wait()

	task, _ := svc.Task(id)
	if task.Type != queue.TaskAudio {
		t.Fatalf("type = %s", task.Type)
	}
	if task.Description != "ambient, piano" {
		t.Fatalf("description = %q", task.Description)
	}
}

func TestCancelActiveTask(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	id, err := svc.QueueImage(context.Background(), imageRequest(), "")
	if err != nil {
		t.Fatal(err)
	}
	svc.Wait()

	if !svc.Cancel(id) {
		t.Fatal("cancel returned false for active task")
	}
	svc.Wait()

	task, _ := svc.Task(id)
	if task.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", task.Status)
	}
	if task.ErrorMessage != queue.CancelledByUserMessage {
		t.Fatalf("error message = %q", task.ErrorMessage)
	}
	if got := engine.cancelledPrompts(); len(got) != 1 || got[0] != "prompt-1" {
		t.Fatalf("remote cancels = %v", got)
	}

	if svc.Cancel(id) {
		t.Fatal("cancel must be false for already-terminal task")
	}
}

func TestClearCompletedRemovesTerminalOnly(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	first, err := svc.QueueImage(context.Background(), imageRequest(), "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.QueueImage(context.Background(), imageRequest(), "")
	if err != nil {
		t.Fatal(err)
	}
	svc.Wait()
	svc.Cancel(first)
	svc.Wait()

	if removed := svc.ClearCompleted(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := svc.Task(first); ok {
		t.Error("terminal task should be gone")
	}
	if _, ok := svc.Task(second); !ok {
		t.Error("active task should remain")
	}
}

func TestClearCompletedTwiceRemovesNothingTwice(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	id, err := svc.QueueImage(context.Background(), imageRequest(), "")
	if err != nil {
		t.Fatal(err)
	}
	svc.Wait()
	svc.Cancel(id)
	svc.Wait()

	if removed := svc.ClearCompleted(); removed != 1 {
		t.Fatalf("first clear removed = %d, want 1", removed)
	}
	if removed := svc.ClearCompleted(); removed != 0 {
		t.Fatalf("second clear removed = %d, want 0", removed)
	}
}

func TestCancelUnknownIDLeavesRegistryUntouched(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	id, err := svc.QueueImage(context.Background(), imageRequest(), "")
	if err != nil {
		t.Fatal(err)
	}
	svc.Wait()

	if svc.Cancel("no-such-task") {
		t.Fatal("cancel must be false for an unknown id")
	}
	svc.Wait()

	task, _ := svc.Task(id)
	if task.Status != queue.StatusQueued {
		t.Fatalf("existing task status = %s, must be untouched", task.Status)
	}
	if got := engine.cancelledPrompts(); len(got) != 0 {
		t.Fatalf("remote cancels = %v, want none", got)
	}
}

func TestQueuedTaskCarriesRequestConfig(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	id, err := svc.QueueImage(context.Background(), imageRequest(), "")
	if err != nil {
		t.Fatal(err)
	}
	svc.Wait()

	task, _ := svc.Task(id)
	cfg, ok := task.Config.(workflows.ImageConfig)
	if !ok {
		t.Fatalf("config type = %T, want workflows.ImageConfig", task.Config)
	}
	if cfg.Prompt != "a red barn" {
		t.Fatalf("config prompt = %q", cfg.Prompt)
	}
	if cfg.Checkpoint != "image.safetensors" {
		t.Fatalf("config checkpoint = %q, defaults must be captured", cfg.Checkpoint)
	}
}

func TestStopActiveFailsInFlightTasks(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	id, err := svc.QueueImage(context.Background(), imageRequest(), "")
	if err != nil {
		t.Fatal(err)
	}
	svc.Wait()

	if stopped := svc.StopActive(); stopped != 1 {
		t.Fatalf("stopped = %d, want 1", stopped)
	}
	task, _ := svc.Task(id)
	if task.Status != queue.StatusFailed || task.ErrorMessage != queue.DaemonStopMessage {
		t.Fatalf("task after stop: %s %q", task.Status, task.ErrorMessage)
	}
}

func TestSubscribeReceivesLifecycleEvents(t *testing.T) {
	engine := newFakeEngine()
	svc := newTestService(t, engine)

	events, cancel := svc.Subscribe()
	defer cancel()

	if _, err := svc.QueueImage(context.Background(), imageRequest(), ""); err != nil {
		t.Fatal(err)
	}
	svc.Wait()

	var types []EventType
	timeout := time.After(time.Second)
	for len(types) < 2 {
		select {
		case event := <-events:
			types = append(types, event.Type)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", types)
		}
	}
	if types[0] != EventTaskQueued {
		t.Fatalf("first event = %s", types[0])
	}
	if types[1] != EventTaskUpdated {
		t.Fatalf("second event = %s", types[1])
	}
}

type recordingArchive struct {
	mu    sync.Mutex
	tasks []*queue.Task
}

func (a *recordingArchive) Record(_ context.Context, task *queue.Task) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks = append(a.tasks, task)
	return nil
}

func TestTerminalTasksAreArchived(t *testing.T) {
	engine := newFakeEngine()
	archive := &recordingArchive{}
	svc := NewService(testConfig(t), engine, WithArchiver(archive))

	id, err := svc.QueueImage(context.Background(), imageRequest(), "")
	if err != nil {
		t.Fatal(err)
	}
	svc.Wait()
	svc.Cancel(id)
	svc.Wait()

	archive.mu.Lock()
	defer archive.mu.Unlock()
	if len(archive.tasks) != 1 {
		t.Fatalf("archived = %d tasks, want 1", len(archive.tasks))
	}
	if archive.tasks[0].Status != queue.StatusCancelled {
		t.Fatalf("archived status = %s", archive.tasks[0].Status)
	}
}
