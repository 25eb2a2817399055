package graph

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

// WireNode is one entry of the engine's submission format.
type WireNode struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

// WireGraph is the flat node map the engine accepts: string node ids mapping
// to class type plus named inputs. A connected input is a 2-element array
// [sourceNodeID, sourceOutputSlot]; everything else is a literal widget value.
type WireGraph map[string]WireNode

// ToWire converts the workflow into the engine submission format. Every
// declared connection input must be linked and every widget populated; partial
// graphs are an error here rather than an engine-side rejection later.
func (w *Workflow) ToWire() (WireGraph, error) {
	wire := make(WireGraph, len(w.Nodes))

	for _, node := range w.Nodes {
		spec, ok := LookupClass(node.Type)
		if !ok {
			return nil, fmt.Errorf("wire: unknown node class %q (node %d)", node.Type, node.ID)
		}
		if len(node.WidgetsValues) != len(spec.Widgets) {
			return nil, fmt.Errorf("wire: node %d (%s) has %d widget values, schema declares %d",
				node.ID, node.Type, len(node.WidgetsValues), len(spec.Widgets))
		}

		inputs := make(map[string]any, len(spec.Widgets)+len(spec.Inputs))
		for i, name := range spec.Widgets {
			inputs[name] = node.WidgetsValues[i]
		}
		wire[strconv.Itoa(node.ID)] = WireNode{ClassType: node.Type, Inputs: inputs}
	}

	for _, link := range w.Links {
		target := w.Node(link.TargetID)
		if target == nil {
			return nil, fmt.Errorf("wire: link %d references missing node %d", link.ID, link.TargetID)
		}
		spec, _ := LookupClass(target.Type)
		name := spec.Inputs[link.TargetSlot].Name
		wire[strconv.Itoa(target.ID)].Inputs[name] = []any{strconv.Itoa(link.SourceID), link.SourceSlot}
	}

	for _, node := range w.Nodes {
		spec, _ := LookupClass(node.Type)
		entry := wire[strconv.Itoa(node.ID)]
		for _, input := range spec.Inputs {
			if _, ok := entry.Inputs[input.Name]; !ok {
				return nil, fmt.Errorf("wire: input %q of node %d (%s) is not connected",
					input.Name, node.ID, node.Type)
			}
		}
	}

	return wire, nil
}

// FromWire reconstructs a workflow from the engine submission format. Only
// graphs built from catalog classes round-trip; the result carries a fresh
// workflow id and default layout hints.
func FromWire(wire WireGraph) (*Workflow, error) {
	ids := make([]int, 0, len(wire))
	for key := range wire {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("from wire: node key %q is not numeric", key)
		}
		if id <= 0 {
			return nil, fmt.Errorf("from wire: node id %d must be positive", id)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	w := New()
	for _, id := range ids {
		entry := wire[strconv.Itoa(id)]
		spec, ok := LookupClass(entry.ClassType)
		if !ok {
			return nil, fmt.Errorf("from wire: unknown node class %q (node %d)", entry.ClassType, id)
		}

		widgets := make([]any, len(spec.Widgets))
		for name, value := range entry.Inputs {
			if isConnection(value) {
				continue
			}
			idx, ok := spec.widgetIndexByName(name)
			if !ok {
				return nil, fmt.Errorf("from wire: node %d (%s) has unknown input %q", id, entry.ClassType, name)
			}
			widgets[idx] = value
		}

		node := &Node{
			ID:            id,
			Type:          entry.ClassType,
			Size:          defaultNodeSize(entry.ClassType),
			WidgetsValues: widgets,
		}
		w.Nodes = append(w.Nodes, node)
		if id > w.LastNodeID {
			w.LastNodeID = id
		}
	}

	// Deterministic link order: target node id ascending, then declared input
	// slot order.
	for _, id := range ids {
		entry := wire[strconv.Itoa(id)]
		spec, _ := LookupClass(entry.ClassType)
		for _, input := range spec.Inputs {
			value, ok := entry.Inputs[input.Name]
			if !ok {
				return nil, fmt.Errorf("from wire: input %q of node %d is missing", input.Name, id)
			}
			sourceID, sourceSlot, err := parseConnection(value)
			if err != nil {
				return nil, fmt.Errorf("from wire: input %q of node %d: %w", input.Name, id, err)
			}
			targetSlot, _ := spec.inputSlotByName(input.Name)
			if err := w.AddLink(sourceID, sourceSlot, id, targetSlot, input.Type); err != nil {
				return nil, fmt.Errorf("from wire: %w", err)
			}
		}
	}

	return w, nil
}

// EncodeJSON serializes the workflow document.
func (w *Workflow) EncodeJSON() ([]byte, error) {
	return json.Marshal(w)
}

// DecodeWorkflow parses a serialized workflow document.
func DecodeWorkflow(data []byte) (*Workflow, error) {
	var w Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	return &w, nil
}

func isConnection(value any) bool {
	arr, ok := value.([]any)
	return ok && len(arr) == 2
}

func parseConnection(value any) (int, int, error) {
	arr, ok := value.([]any)
	if !ok || len(arr) != 2 {
		return 0, 0, fmt.Errorf("expected [sourceNodeID, sourceSlot], got %v", value)
	}
	sourceID, err := toInt(arr[0])
	if err != nil {
		return 0, 0, fmt.Errorf("source node id: %w", err)
	}
	sourceSlot, err := toInt(arr[1])
	if err != nil {
		return 0, 0, fmt.Errorf("source slot: %w", err)
	}
	return sourceID, sourceSlot, nil
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", v)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported value %T", value)
	}
}
