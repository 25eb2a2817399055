package generation

import (
	"sync"

	"loom/internal/queue"
)

// EventType identifies what happened to a task.
type EventType string

const (
	// EventTaskQueued fires when a task is registered.
	EventTaskQueued EventType = "task_queued"
	// EventTaskUpdated fires on any status or position change.
	EventTaskUpdated EventType = "task_updated"
	// EventTaskFinished fires when a task reaches a terminal status.
	EventTaskFinished EventType = "task_finished"
	// EventTaskProgress fires on per-node progress frames from the engine
	// WebSocket feed.
	EventTaskProgress EventType = "task_progress"
)

// Progress reports sampler step counts for one executing node.
type Progress struct {
	Value int
	Max   int
}

// Event is one task lifecycle notification. Task is a snapshot owned by the
// receiver. Progress is set only for EventTaskProgress.
type Event struct {
	Type     EventType
	Task     *queue.Task
	Progress *Progress
}

const subscriberBuffer = 16

type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

// subscribe registers a listener. The returned cancel function must be called
// to release the channel.
func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// publish delivers the event to every subscriber without blocking; slow
// subscribers miss events rather than stalling the pipeline.
func (h *hub) publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
