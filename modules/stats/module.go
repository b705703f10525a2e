// Package stats provides a node that reduces a whole batch of numbers to
// summary statistics. It consumes the batch via a list input and consults
// the expected-outputs set so unconsumed slots cost nothing to produce.
package stats

import (
	"context"
	"slices"

	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/execctx"
	"github.com/vk/promptgridgo/internal/registry"
)

// Output slots as addressed by links and the manifest.
const (
	SlotMin  = 0
	SlotMax  = 1
	SlotMean = 2
	SlotSum  = 3
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input takes the whole upstream batch in one invocation.
type Input struct {
	Values []float64 `pgg:"values"`
}

// Deps is empty because this node uses no resources.
type Deps struct{}

// Output carries one statistic per declared slot.
type Output struct {
	Min  float64 `pgg:"min"`
	Max  float64 `pgg:"max"`
	Mean float64 `pgg:"mean"`
	Sum  float64 `pgg:"sum"`
}

// OnRunStats computes the statistics that have a downstream consumer. An
// empty batch yields zeros on every slot.
func OnRunStats(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)
	out := &Output{}
	if len(input.Values) == 0 {
		logger.Debug("Stats over an empty batch, all outputs zero.")
		return out, nil
	}

	var sum float64
	for _, v := range input.Values {
		sum += v
	}

	if execctx.IsOutputNeeded(ctx, SlotMin) {
		out.Min = slices.Min(input.Values)
	}
	if execctx.IsOutputNeeded(ctx, SlotMax) {
		out.Max = slices.Max(input.Values)
	}
	if execctx.IsOutputNeeded(ctx, SlotMean) {
		out.Mean = sum / float64(len(input.Values))
	}
	if execctx.IsOutputNeeded(ctx, SlotSum) {
		out.Sum = sum
	}

	logger.Debug("Computed statistics.", "count", len(input.Values))
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterNode("OnRunStats", &registry.RegisteredNode{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunStats,
	})
}
