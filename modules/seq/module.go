// Package seq provides a node that produces a batch of sequential numbers,
// driving batched invocation in everything linked downstream.
package seq

import (
	"context"
	"fmt"

	"github.com/vk/promptgridgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the seq node.
type Input struct {
	Count float64 `pgg:"count"`
	From  float64 `pgg:"from"`
	Step  float64 `pgg:"step"`
}

// Deps is empty because this node uses no resources.
type Deps struct{}

// Output carries the produced batch on a single list slot.
type Output struct {
	Values []float64 `pgg:"values"`
}

// OnRunSeq produces count values starting at from, step apart. A count of
// zero yields an empty batch, which shorts downstream nodes to zero
// invocations.
func OnRunSeq(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	if input.Count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %v", input.Count)
	}
	out := &Output{Values: make([]float64, 0, int(input.Count))}
	for i := 0; i < int(input.Count); i++ {
		out.Values = append(out.Values, input.From+float64(i)*input.Step)
	}
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterNode("OnRunSeq", &registry.RegisteredNode{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunSeq,
	})
}
