package graph

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Data type tags carried by links. These must match the declared slot types at
// both endpoints of every link.
const (
	TypeModel        = "MODEL"
	TypeClip         = "CLIP"
	TypeClipVision   = "CLIP_VISION"
	TypeVAE          = "VAE"
	TypeConditioning = "CONDITIONING"
	TypeLatent       = "LATENT"
	TypeImage        = "IMAGE"
	TypeMask         = "MASK"
	TypeAudio        = "AUDIO"
)

// Format versioning tags, constant per engine compatibility level.
const (
	formatVersion  = 0.4
	formatRevision = 0
)

// Node is one processing step in a workflow.
//
// Pos and Size are presentation-only layout hints; compilation logic never
// reads them. WidgetsValues is the ordered literal parameter list for the node
// class; the order is a wire contract dictated by the engine's node schema.
type Node struct {
	ID            int        `json:"id"`
	Type          string     `json:"type"`
	Pos           [2]float64 `json:"pos"`
	Size          [2]float64 `json:"size"`
	WidgetsValues []any      `json:"widgets_values"`
}

// Link connects one node's output slot to another node's input slot. It is
// serialized as the fixed 6-tuple
// [id, source, sourceSlot, target, targetSlot, type].
type Link struct {
	ID         int
	SourceID   int
	SourceSlot int
	TargetID   int
	TargetSlot int
	Type       string
}

// MarshalJSON encodes the link as its wire 6-tuple.
func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.ID, l.SourceID, l.SourceSlot, l.TargetID, l.TargetSlot, l.Type})
}

// UnmarshalJSON decodes the wire 6-tuple form.
func (l *Link) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("link: decode tuple: %w", err)
	}
	if len(tuple) != 6 {
		return fmt.Errorf("link: expected 6 elements, got %d", len(tuple))
	}
	ints := []*int{&l.ID, &l.SourceID, &l.SourceSlot, &l.TargetID, &l.TargetSlot}
	for i, dst := range ints {
		if err := json.Unmarshal(tuple[i], dst); err != nil {
			return fmt.Errorf("link: element %d: %w", i, err)
		}
	}
	if err := json.Unmarshal(tuple[5], &l.Type); err != nil {
		return fmt.Errorf("link: type tag: %w", err)
	}
	return nil
}

// Workflow is the serializable graph document.
type Workflow struct {
	ID         string  `json:"id"`
	Version    float64 `json:"version"`
	Revision   int     `json:"revision"`
	LastNodeID int     `json:"last_node_id"`
	LastLinkID int     `json:"last_link_id"`
	Nodes      []*Node `json:"nodes"`
	Links      []Link  `json:"links"`
}

// New returns an empty workflow with a freshly generated id.
func New() *Workflow {
	return &Workflow{
		ID:       uuid.NewString(),
		Version:  formatVersion,
		Revision: formatRevision,
	}
}

// AddNode appends a node of the given class with an auto-assigned unique id
// and returns a mutable handle for populating WidgetsValues. The builder is
// append-only; nodes are never removed during construction.
func (w *Workflow) AddNode(nodeType string, x, y float64) *Node {
	w.LastNodeID++
	node := &Node{
		ID:   w.LastNodeID,
		Type: nodeType,
		Pos:  [2]float64{x, y},
		Size: defaultNodeSize(nodeType),
	}
	w.Nodes = append(w.Nodes, node)
	return node
}

// AddLink appends a validated link. Both endpoints must reference nodes
// present in the workflow, slot indices must be within the declared arity of
// the node class, and the declared data type must match both slots.
func (w *Workflow) AddLink(sourceID, sourceSlot, targetID, targetSlot int, dataType string) error {
	source := w.Node(sourceID)
	if source == nil {
		return fmt.Errorf("link %s: source node %d not in workflow", dataType, sourceID)
	}
	target := w.Node(targetID)
	if target == nil {
		return fmt.Errorf("link %s: target node %d not in workflow", dataType, targetID)
	}

	srcSpec, ok := LookupClass(source.Type)
	if !ok {
		return fmt.Errorf("link %s: unknown source class %q", dataType, source.Type)
	}
	if sourceSlot < 0 || sourceSlot >= len(srcSpec.Outputs) {
		return fmt.Errorf("link %s: %s has no output slot %d", dataType, source.Type, sourceSlot)
	}
	if got := srcSpec.Outputs[sourceSlot].Type; got != dataType {
		return fmt.Errorf("link type mismatch: %s output %d emits %s, link declares %s",
			source.Type, sourceSlot, got, dataType)
	}

	dstSpec, ok := LookupClass(target.Type)
	if !ok {
		return fmt.Errorf("link %s: unknown target class %q", dataType, target.Type)
	}
	if targetSlot < 0 || targetSlot >= len(dstSpec.Inputs) {
		return fmt.Errorf("link %s: %s has no input slot %d", dataType, target.Type, targetSlot)
	}
	if got := dstSpec.Inputs[targetSlot].Type; got != dataType {
		return fmt.Errorf("link type mismatch: %s input %d accepts %s, link declares %s",
			target.Type, targetSlot, got, dataType)
	}

	w.LastLinkID++
	w.Links = append(w.Links, Link{
		ID:         w.LastLinkID,
		SourceID:   sourceID,
		SourceSlot: sourceSlot,
		TargetID:   targetID,
		TargetSlot: targetSlot,
		Type:       dataType,
	})
	return nil
}

// Node returns the node with the given id, or nil.
func (w *Workflow) Node(id int) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}
	return nil
}

// NodesOfType returns every node of the given class in insertion order.
func (w *Workflow) NodesOfType(nodeType string) []*Node {
	var out []*Node
	for _, node := range w.Nodes {
		if node.Type == nodeType {
			out = append(out, node)
		}
	}
	return out
}

// LinkSpec describes one edge for batch wiring via Wire.
type LinkSpec struct {
	SourceID   int
	SourceSlot int
	TargetID   int
	TargetSlot int
	Type       string
}

// Wire adds every link in specs, stopping at the first invalid edge.
func (w *Workflow) Wire(specs []LinkSpec) error {
	for _, s := range specs {
		if err := w.AddLink(s.SourceID, s.SourceSlot, s.TargetID, s.TargetSlot, s.Type); err != nil {
			return err
		}
	}
	return nil
}

func defaultNodeSize(nodeType string) [2]float64 {
	// Layout hint only; the engine re-measures nodes it renders.
	if spec, ok := LookupClass(nodeType); ok {
		height := 60 + 22*float64(len(spec.Inputs)+len(spec.Widgets))
		return [2]float64{320, height}
	}
	return [2]float64{320, 120}
}
