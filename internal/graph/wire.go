package graph

import (
	"encoding/json"
	"fmt"
	"math"
)

// wireNode is the on-the-wire shape of a single node:
//
//	{"class_type": "Stats", "inputs": {"value": ["1", 0], "label": "mean"}}
//
// An input is a link when it is a two element array of a node id string and
// an output slot number; any other JSON value is a literal.
type wireNode struct {
	ClassType string                     `json:"class_type"`
	Inputs    map[string]json.RawMessage `json:"inputs,omitempty"`
}

// ParsePrompt decodes the wire format into an immutable Prompt. It fails on
// structurally broken input (missing class_type, a link whose slot is
// negative or fractional) rather than guessing.
func ParsePrompt(data []byte) (*Prompt, error) {
	var raw map[string]wireNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompt: %w", err)
	}

	nodes := make(map[string]Node, len(raw))
	for id, wn := range raw {
		if wn.ClassType == "" {
			return nil, fmt.Errorf("parse prompt: node %q is missing class_type", id)
		}
		inputs := make(map[string]Input, len(wn.Inputs))
		for name, msg := range wn.Inputs {
			in, err := decodeInput(msg)
			if err != nil {
				return nil, fmt.Errorf("parse prompt: node %q input %q: %w", id, name, err)
			}
			inputs[name] = in
		}
		nodes[id] = Node{Type: wn.ClassType, Inputs: inputs}
	}
	return &Prompt{nodes: nodes}, nil
}

// decodeInput applies the link detection rule: exactly two elements, the
// first a string and the second a number. Everything else, including arrays
// of other shapes, passes through as a literal.
func decodeInput(msg json.RawMessage) (Input, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(msg, &arr); err == nil && len(arr) == 2 {
		var node string
		var slot float64
		if json.Unmarshal(arr[0], &node) == nil && json.Unmarshal(arr[1], &slot) == nil {
			if slot != math.Trunc(slot) {
				return Input{}, fmt.Errorf("link slot %v is not an integer", slot)
			}
			if slot < 0 {
				return Input{}, fmt.Errorf("link slot %d is negative", int(slot))
			}
			return LinkInput(node, int(slot)), nil
		}
	}

	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return Input{}, err
	}
	return LiteralInput(v), nil
}

// MarshalJSON renders the input back into the wire format.
func (in Input) MarshalJSON() ([]byte, error) {
	if in.link != nil {
		return json.Marshal([2]any{in.link.Node, in.link.Slot})
	}
	return json.Marshal(in.literal)
}

type wireNodeOut struct {
	ClassType string           `json:"class_type"`
	Inputs    map[string]Input `json:"inputs,omitempty"`
}

// MarshalJSON renders the snapshot in the same wire format ParsePrompt
// accepts, so prompts round-trip through storage and the HTTP API.
func (p *Prompt) MarshalJSON() ([]byte, error) {
	out := make(map[string]wireNodeOut, len(p.nodes))
	for id, n := range p.nodes {
		out[id] = wireNodeOut{ClassType: n.Type, Inputs: n.Inputs}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire format in place, replacing the snapshot.
func (p *Prompt) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePrompt(data)
	if err != nil {
		return err
	}
	p.nodes = parsed.nodes
	return nil
}
