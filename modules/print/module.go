// Package print provides the terminal sink node that renders its input to
// stdout. As a node with no outputs it always runs with an empty
// expected-outputs set.
package print

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the print node.
type Input struct {
	Value any `pgg:"value"`
}

// Deps is empty because this node uses no resources.
type Deps struct{}

// OnRunPrint renders the input value. Maps print one sorted key per line so
// repeated runs stay diffable.
func OnRunPrint(ctx context.Context, deps *Deps, input *Input) (any, error) {
	ctxlog.FromContext(ctx).Info("Printing input")

	switch v := input.Value.(type) {
	case nil:
		fmt.Println("      (null)")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("      %s = %v\n", k, v[k])
		}
	case []any:
		for i, item := range v {
			fmt.Printf("      [%d] %v\n", i, item)
		}
	default:
		fmt.Printf("      %v\n", v)
	}

	return nil, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterNode("OnRunPrint", &registry.RegisteredNode{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunPrint,
	})
}
