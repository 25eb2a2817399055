package graph_test

import (
	"strings"
	"testing"

	"loom/internal/graph"
)

func TestAddNodeAssignsUniqueIDs(t *testing.T) {
	w := graph.New()
	first := w.AddNode("CheckpointLoaderSimple", 0, 0)
	second := w.AddNode("KSampler", 100, 0)

	if first.ID == second.ID {
		t.Fatalf("expected unique node ids, both are %d", first.ID)
	}
	if first.ID <= 0 || second.ID <= 0 {
		t.Fatalf("node ids must be positive, got %d and %d", first.ID, second.ID)
	}
	if w.LastNodeID != second.ID {
		t.Fatalf("expected LastNodeID %d, got %d", second.ID, w.LastNodeID)
	}
}

func TestNewWorkflowsHaveDistinctIDs(t *testing.T) {
	if graph.New().ID == graph.New().ID {
		t.Fatal("expected distinct workflow ids per instance")
	}
}

func TestAddLinkValidatesEndpoints(t *testing.T) {
	w := graph.New()
	loader := w.AddNode("CheckpointLoaderSimple", 0, 0)
	loader.WidgetsValues = []any{"model.safetensors"}
	encode := w.AddNode("CLIPTextEncode", 0, 100)
	encode.WidgetsValues = []any{"a prompt"}

	if err := w.AddLink(loader.ID, 1, encode.ID, 0, graph.TypeClip); err != nil {
		t.Fatalf("valid CLIP link rejected: %v", err)
	}

	tests := []struct {
		name    string
		src     int
		srcSlot int
		dst     int
		dstSlot int
		tag     string
		wantSub string
	}{
		{"missing source", 99, 0, encode.ID, 0, graph.TypeClip, "source node 99"},
		{"missing target", loader.ID, 1, 99, 0, graph.TypeClip, "target node 99"},
		{"source slot out of range", loader.ID, 3, encode.ID, 0, graph.TypeClip, "no output slot 3"},
		{"target slot out of range", loader.ID, 1, encode.ID, 5, graph.TypeClip, "no input slot 5"},
		{"type mismatch at source", loader.ID, 0, encode.ID, 0, graph.TypeClip, "type mismatch"},
		{"declared tag mismatch", loader.ID, 1, encode.ID, 0, graph.TypeVAE, "type mismatch"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := w.AddLink(tc.src, tc.srcSlot, tc.dst, tc.dstSlot, tc.tag)
			if err == nil {
				t.Fatal("expected link validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error containing %q, got %v", tc.wantSub, err)
			}
		})
	}
}

// The conditioning-vs-latent slot confusion on SVD_img2vid_Conditioning was a
// real defect class: slot 1 is conditioning, slot 2 is the latent.
func TestAddLinkCatchesLatentSlotConfusion(t *testing.T) {
	w := graph.New()
	cond := w.AddNode("SVD_img2vid_Conditioning", 0, 0)
	cond.WidgetsValues = []any{1024, 576, 24, 127, 8, 0.0}
	sampler := w.AddNode("KSampler", 200, 0)
	sampler.WidgetsValues = []any{int64(1), "fixed", 20, 2.5, "euler", "karras", 1.0}

	err := w.AddLink(cond.ID, 1, sampler.ID, 3, graph.TypeLatent)
	if err == nil {
		t.Fatal("expected mismatch wiring conditioning output as latent")
	}
	if !strings.Contains(err.Error(), "CONDITIONING") {
		t.Fatalf("expected error naming the actual slot type, got %v", err)
	}

	if err := w.AddLink(cond.ID, 2, sampler.ID, 3, graph.TypeLatent); err != nil {
		t.Fatalf("correct latent slot rejected: %v", err)
	}
}

func TestLinkJSONRoundTrip(t *testing.T) {
	link := graph.Link{ID: 7, SourceID: 3, SourceSlot: 1, TargetID: 5, TargetSlot: 0, Type: graph.TypeClip}
	data, err := link.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal link: %v", err)
	}
	want := `[7,3,1,5,0,"CLIP"]`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}

	var decoded graph.Link
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal link: %v", err)
	}
	if decoded != link {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, link)
	}
}

func TestLinkUnmarshalRejectsShortTuple(t *testing.T) {
	var link graph.Link
	if err := link.UnmarshalJSON([]byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected error for short tuple")
	}
}
