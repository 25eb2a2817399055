package comfy

import (
	"fmt"
	"sort"
	"strings"

	"loom/internal/services"
)

// NodeError is the engine's per-node validation failure detail.
type NodeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// SubmitError is returned when the engine rejects a prompt submission. It
// preserves the top-level error plus any node-scoped validation failures.
type SubmitError struct {
	StatusCode int
	Type       string
	Message    string
	NodeErrors map[string][]NodeError
}

func (e *SubmitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "engine rejected prompt (http %d)", e.StatusCode)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if len(e.NodeErrors) > 0 {
		ids := make([]string, 0, len(e.NodeErrors))
		for id := range e.NodeErrors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			for _, ne := range e.NodeErrors[id] {
				fmt.Fprintf(&b, "; node %s: %s", id, ne.Message)
			}
		}
	}
	return b.String()
}

// Unwrap classifies a rejection as an engine fault, so errors.Is against the
// services markers works on submission failures too.
func (e *SubmitError) Unwrap() error {
	return services.ErrEngine
}

// QueueEntry is one prompt sitting in the engine queue.
type QueueEntry struct {
	PromptID string
	Position int
}

// QueueSnapshot is the engine queue at one poll instant.
type QueueSnapshot struct {
	Running []QueueEntry
	Pending []QueueEntry
}

// Contains reports whether the prompt appears anywhere in the snapshot and, if
// pending, its zero-based position.
func (s QueueSnapshot) Contains(promptID string) (position int, running, found bool) {
	for _, entry := range s.Running {
		if entry.PromptID == promptID {
			return 0, true, true
		}
	}
	for i, entry := range s.Pending {
		if entry.PromptID == promptID {
			return i, false, true
		}
	}
	return 0, false, false
}

// FileRef locates one output file on the engine.
type FileRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// HistoryOutputs groups the files a finished prompt produced, keyed by the
// media kind the engine reported them under.
type HistoryOutputs struct {
	Images []FileRef
	Gifs   []FileRef
	Audio  []FileRef
}

// First returns the first output file in images/gifs/audio order.
func (o HistoryOutputs) First() (FileRef, bool) {
	for _, group := range [][]FileRef{o.Images, o.Gifs, o.Audio} {
		if len(group) > 0 {
			return group[0], true
		}
	}
	return FileRef{}, false
}

// HistoryEntry is the engine's record of one executed prompt.
type HistoryEntry struct {
	PromptID  string
	Completed bool
	Outputs   HistoryOutputs
}

// ProgressEvent is one message from the engine's WebSocket feed.
type ProgressEvent struct {
	// Type is the engine message type: "executing", "progress",
	// "execution_error", "status".
	Type     string
	PromptID string
	NodeID   string
	Value    int
	Max      int
}
