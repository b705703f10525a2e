// Package constant provides the source node that emits a configured literal.
package constant

import (
	"context"

	"github.com/vk/promptgridgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the constant node.
type Input struct {
	Value any `pgg:"value"`
}

// Deps is empty because this node uses no resources.
type Deps struct{}

// Output carries the emitted value.
type Output struct {
	Value any `pgg:"value"`
}

// OnRunConstant emits the configured value unchanged.
func OnRunConstant(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	return &Output{Value: input.Value}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterNode("OnRunConstant", &registry.RegisteredNode{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunConstant,
	})
}
