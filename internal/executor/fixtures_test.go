package executor

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	hhcl "github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/promptgridgo/internal/builder"
	"github.com/vk/promptgridgo/internal/config"
	"github.com/vk/promptgridgo/internal/dag"
	"github.com/vk/promptgridgo/internal/execctx"
	"github.com/vk/promptgridgo/internal/graph"
	"github.com/vk/promptgridgo/internal/hcl"
	"github.com/vk/promptgridgo/internal/registry"
)

// capture accumulates handler observations across worker goroutines.
type capture struct {
	mu      sync.Mutex
	records []record
}

type record struct {
	node    string
	value   any
	index   int
	indexed bool
}

func (c *capture) add(ctx context.Context, value any) {
	nc, _ := execctx.FromContext(ctx)
	idx, indexed := nc.Index()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, record{node: nc.NodeID(), value: value, index: idx, indexed: indexed})
}

func (c *capture) byNode(node string) []record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []record
	for _, r := range c.records {
		if r.node == node {
			out = append(out, r)
		}
	}
	return out
}

func (c *capture) values(node string) []any {
	var out []any
	for _, r := range c.byNode(node) {
		out = append(out, r.value)
	}
	return out
}

// order returns the position of a node's first record, or -1.
func (c *capture) order(node string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.records {
		if r.node == node {
			return i
		}
	}
	return -1
}

// lifecycleTracker records resource create and destroy calls in order.
type lifecycleTracker struct {
	mu     sync.Mutex
	events []string
}

func (l *lifecycleTracker) add(ev string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *lifecycleTracker) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// eventRecorder collects executor events for ordering assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) indexOf(ty EventType, node string) int {
	for i, ev := range r.snapshot() {
		if ev.Type == ty && ev.NodeID == node {
			return i
		}
	}
	return -1
}

type sessionAPI interface {
	Get(path string) string
}

type fakeSession struct {
	base string
}

func (s *fakeSession) Get(path string) string { return "GET " + s.base + path }

type testRig struct {
	reg     *registry.Registry
	capture *capture
	tracker *lifecycleTracker
}

// newTestRig assembles a registry of small node and resource types that
// exercise every executor path: literals, batch mapping, list inputs and
// outputs, expected-output checks, failures, dependency passthrough,
// resource injection, and subgraph expansion.
func newTestRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{reg: registry.New(), capture: &capture{}, tracker: &lifecycleTracker{}}

	type anyIn struct {
		Value any `pgg:"value"`
	}
	type anyOut struct {
		Value any `pgg:"value"`
	}
	type numIn struct {
		Value float64 `pgg:"value"`
	}
	type numOut struct {
		Value float64 `pgg:"value"`
	}
	type listIn struct {
		Values []float64 `pgg:"values"`
	}

	rig.reg.RegisterNode("const.run", &registry.RegisteredNode{
		NewInput: func() any { return &anyIn{} },
		Fn: func(ctx context.Context, _ *struct{}, in *anyIn) (*anyOut, error) {
			return &anyOut{Value: in.Value}, nil
		},
	})
	rig.reg.DefinitionRegistry["const"] = &config.NodeDefinition{
		Type:      "const",
		Lifecycle: &config.Lifecycle{OnRun: "const.run"},
		Inputs:    map[string]*config.InputDefinition{"value": {Name: "value", Type: cty.DynamicPseudoType}},
		Outputs:   map[string]*config.OutputDefinition{"value": {Name: "value", Slot: 0, Type: cty.DynamicPseudoType}},
	}

	type seqIn struct {
		Count float64 `pgg:"count"`
	}
	type seqOut struct {
		Values []float64 `pgg:"values"`
	}
	rig.reg.RegisterNode("seq.run", &registry.RegisteredNode{
		NewInput: func() any { return &seqIn{} },
		Fn: func(ctx context.Context, _ *struct{}, in *seqIn) (*seqOut, error) {
			out := &seqOut{}
			for i := 0; i < int(in.Count); i++ {
				out.Values = append(out.Values, float64(i))
			}
			return out, nil
		},
	})
	rig.reg.DefinitionRegistry["seq"] = &config.NodeDefinition{
		Type:      "seq",
		Lifecycle: &config.Lifecycle{OnRun: "seq.run"},
		Inputs:    map[string]*config.InputDefinition{"count": {Name: "count", Type: cty.Number}},
		Outputs:   map[string]*config.OutputDefinition{"values": {Name: "values", Slot: 0, Type: cty.Number, List: true}},
	}

	rig.reg.RegisterNode("double.run", &registry.RegisteredNode{
		NewInput: func() any { return &numIn{} },
		Fn: func(ctx context.Context, _ *struct{}, in *numIn) (*numOut, error) {
			rig.capture.add(ctx, in.Value)
			return &numOut{Value: in.Value * 2}, nil
		},
	})
	rig.reg.DefinitionRegistry["double"] = &config.NodeDefinition{
		Type:      "double",
		Lifecycle: &config.Lifecycle{OnRun: "double.run"},
		Inputs:    map[string]*config.InputDefinition{"value": {Name: "value", Type: cty.Number}},
		Outputs:   map[string]*config.OutputDefinition{"value": {Name: "value", Slot: 0, Type: cty.Number}},
	}

	type addIn struct {
		A float64 `pgg:"a"`
		B float64 `pgg:"b"`
	}
	rig.reg.RegisterNode("add.run", &registry.RegisteredNode{
		NewInput: func() any { return &addIn{} },
		Fn: func(ctx context.Context, _ *struct{}, in *addIn) (*numOut, error) {
			return &numOut{Value: in.A + in.B}, nil
		},
	})
	rig.reg.DefinitionRegistry["add"] = &config.NodeDefinition{
		Type:      "add",
		Lifecycle: &config.Lifecycle{OnRun: "add.run"},
		Inputs: map[string]*config.InputDefinition{
			"a": {Name: "a", Type: cty.Number},
			"b": {Name: "b", Type: cty.Number},
		},
		Outputs: map[string]*config.OutputDefinition{"value": {Name: "value", Slot: 0, Type: cty.Number}},
	}

	rig.reg.RegisterNode("sum.run", &registry.RegisteredNode{
		NewInput: func() any { return &listIn{} },
		Fn: func(ctx context.Context, _ *struct{}, in *listIn) (*numOut, error) {
			var total float64
			for _, v := range in.Values {
				total += v
			}
			rig.capture.add(ctx, total)
			return &numOut{Value: total}, nil
		},
	})
	rig.reg.DefinitionRegistry["sum"] = &config.NodeDefinition{
		Type:      "sum",
		Lifecycle: &config.Lifecycle{OnRun: "sum.run"},
		Inputs:    map[string]*config.InputDefinition{"values": {Name: "values", Type: cty.Number, List: true}},
		Outputs:   map[string]*config.OutputDefinition{"value": {Name: "value", Slot: 0, Type: cty.Number}},
	}

	type statsOut struct {
		Total float64 `pgg:"total"`
		Mean  float64 `pgg:"mean"`
	}
	rig.reg.RegisterNode("stats.run", &registry.RegisteredNode{
		NewInput: func() any { return &listIn{} },
		Fn: func(ctx context.Context, _ *struct{}, in *listIn) (*statsOut, error) {
			out := &statsOut{}
			var total float64
			for _, v := range in.Values {
				total += v
			}
			if execctx.IsOutputNeeded(ctx, 0) {
				out.Total = total
				rig.capture.add(ctx, "total")
			}
			if execctx.IsOutputNeeded(ctx, 1) {
				if len(in.Values) > 0 {
					out.Mean = total / float64(len(in.Values))
				}
				rig.capture.add(ctx, "mean")
			}
			return out, nil
		},
	})
	rig.reg.DefinitionRegistry["stats"] = &config.NodeDefinition{
		Type:      "stats",
		Lifecycle: &config.Lifecycle{OnRun: "stats.run"},
		Inputs:    map[string]*config.InputDefinition{"values": {Name: "values", Type: cty.Number, List: true}},
		Outputs: map[string]*config.OutputDefinition{
			"total": {Name: "total", Slot: 0, Type: cty.Number},
			"mean":  {Name: "mean", Slot: 1, Type: cty.Number},
		},
	}

	rig.reg.RegisterNode("probe.run", &registry.RegisteredNode{
		NewInput: func() any { return &anyIn{} },
		Fn: func(ctx context.Context, _ *struct{}, in *anyIn) (*struct{}, error) {
			rig.capture.add(ctx, in.Value)
			return nil, nil
		},
	})
	rig.reg.DefinitionRegistry["probe"] = &config.NodeDefinition{
		Type:      "probe",
		Lifecycle: &config.Lifecycle{OnRun: "probe.run"},
		Inputs:    map[string]*config.InputDefinition{"value": {Name: "value", Type: cty.DynamicPseudoType, Optional: true}},
	}

	defaultMessage := cty.StringVal("boom")
	type failIn struct {
		Message string `pgg:"message"`
	}
	rig.reg.RegisterNode("fail.run", &registry.RegisteredNode{
		NewInput: func() any { return &failIn{} },
		Fn: func(ctx context.Context, _ *struct{}, in *failIn) (*anyOut, error) {
			return nil, errors.New(in.Message)
		},
	})
	rig.reg.DefinitionRegistry["fail"] = &config.NodeDefinition{
		Type:      "fail",
		Lifecycle: &config.Lifecycle{OnRun: "fail.run"},
		Inputs:    map[string]*config.InputDefinition{"message": {Name: "message", Type: cty.String, Default: &defaultMessage}},
		Outputs:   map[string]*config.OutputDefinition{"value": {Name: "value", Slot: 0, Type: cty.DynamicPseudoType}},
	}

	rig.reg.RegisterNode("relay.run", &registry.RegisteredNode{
		NewInput:              func() any { return &anyIn{} },
		AcceptsDependency:     true,
		PassthroughDependency: true,
		Fn: func(ctx context.Context, _ *struct{}, in *anyIn) (*anyOut, error) {
			rig.capture.add(ctx, in.Value)
			return &anyOut{Value: in.Value}, nil
		},
	})
	relayBase := &config.NodeDefinition{
		Type:      "relay",
		Lifecycle: &config.Lifecycle{OnRun: "relay.run"},
		Inputs:    map[string]*config.InputDefinition{"value": {Name: "value", Type: cty.DynamicPseudoType, Optional: true}},
		Outputs:   map[string]*config.OutputDefinition{"value": {Name: "value", Slot: 0, Type: cty.DynamicPseudoType}},
	}
	rig.reg.DefinitionRegistry["relay"] = registry.WithDependencyInput(relayBase, true)

	rig.reg.RegisterNode("expand_double.run", &registry.RegisteredNode{
		NewInput: func() any { return &numIn{} },
		Fn: func(ctx context.Context, _ *struct{}, in *numIn) (*registry.Expansion, error) {
			nc, _ := execctx.FromContext(ctx)
			inner := nc.NodeID() + ".dbl"
			return &registry.Expansion{
				Nodes: map[string]graph.Node{
					inner: {Type: "double", Inputs: map[string]graph.Input{"value": graph.LiteralInput(in.Value)}},
				},
				Results: []graph.Input{graph.LinkInput(inner, 0)},
			}, nil
		},
	})
	rig.reg.DefinitionRegistry["expand_double"] = &config.NodeDefinition{
		Type:      "expand_double",
		Lifecycle: &config.Lifecycle{OnRun: "expand_double.run"},
		Inputs:    map[string]*config.InputDefinition{"value": {Name: "value", Type: cty.Number}},
		Outputs:   map[string]*config.OutputDefinition{"value": {Name: "value", Slot: 0, Type: cty.Number}},
	}

	type chainIn struct {
		Value float64 `pgg:"value"`
		Depth float64 `pgg:"depth"`
	}
	rig.reg.RegisterNode("expand_chain.run", &registry.RegisteredNode{
		NewInput: func() any { return &chainIn{} },
		Fn: func(ctx context.Context, _ *struct{}, in *chainIn) (*registry.Expansion, error) {
			if in.Depth < 1 {
				return &registry.Expansion{Results: []graph.Input{graph.LiteralInput(in.Value)}}, nil
			}
			nc, _ := execctx.FromContext(ctx)
			dbl := nc.NodeID() + ".dbl"
			next := nc.NodeID() + ".next"
			return &registry.Expansion{
				Nodes: map[string]graph.Node{
					dbl: {Type: "double", Inputs: map[string]graph.Input{"value": graph.LiteralInput(in.Value)}},
					next: {Type: "expand_chain", Inputs: map[string]graph.Input{
						"value": graph.LinkInput(dbl, 0),
						"depth": graph.LiteralInput(in.Depth - 1),
					}},
				},
				Results: []graph.Input{graph.LinkInput(next, 0)},
			}, nil
		},
	})
	rig.reg.DefinitionRegistry["expand_chain"] = &config.NodeDefinition{
		Type:      "expand_chain",
		Lifecycle: &config.Lifecycle{OnRun: "expand_chain.run"},
		Inputs: map[string]*config.InputDefinition{
			"value": {Name: "value", Type: cty.Number},
			"depth": {Name: "depth", Type: cty.Number},
		},
		Outputs: map[string]*config.OutputDefinition{"value": {Name: "value", Slot: 0, Type: cty.Number}},
	}

	rig.reg.RegisterNode("expand_dup.run", &registry.RegisteredNode{
		Fn: func(ctx context.Context, _ *struct{}, _ *struct{}) (*registry.Expansion, error) {
			return &registry.Expansion{
				Nodes: map[string]graph.Node{
					"dup": {Type: "const", Inputs: map[string]graph.Input{"value": graph.LiteralInput(1)}},
				},
				Results: []graph.Input{graph.LinkInput("dup", 0)},
			}, nil
		},
	})
	rig.reg.DefinitionRegistry["expand_dup"] = &config.NodeDefinition{
		Type:      "expand_dup",
		Lifecycle: &config.Lifecycle{OnRun: "expand_dup.run"},
		Outputs:   map[string]*config.OutputDefinition{"value": {Name: "value", Slot: 0, Type: cty.DynamicPseudoType}},
	}

	rig.reg.RegisterNode("expand_fail.run", &registry.RegisteredNode{
		Fn: func(ctx context.Context, _ *struct{}, _ *struct{}) (*registry.Expansion, error) {
			nc, _ := execctx.FromContext(ctx)
			inner := nc.NodeID() + ".boom"
			return &registry.Expansion{
				Nodes: map[string]graph.Node{
					inner: {Type: "fail", Inputs: map[string]graph.Input{}},
				},
				Results: []graph.Input{graph.LinkInput(inner, 0)},
			}, nil
		},
	})
	rig.reg.DefinitionRegistry["expand_fail"] = &config.NodeDefinition{
		Type:      "expand_fail",
		Lifecycle: &config.Lifecycle{OnRun: "expand_fail.run"},
		Outputs:   map[string]*config.OutputDefinition{"value": {Name: "value", Slot: 0, Type: cty.DynamicPseudoType}},
	}

	type fetchDeps struct {
		Session sessionAPI `pgg:"session"`
	}
	type fetchIn struct {
		Path string `pgg:"path"`
	}
	type fetchOut struct {
		Body string `pgg:"body"`
	}
	rig.reg.RegisterNode("fetch.run", &registry.RegisteredNode{
		NewInput: func() any { return &fetchIn{} },
		NewDeps:  func() any { return &fetchDeps{} },
		Fn: func(ctx context.Context, deps *fetchDeps, in *fetchIn) (*fetchOut, error) {
			body := deps.Session.Get(in.Path)
			rig.capture.add(ctx, body)
			return &fetchOut{Body: body}, nil
		},
	})
	rig.reg.DefinitionRegistry["fetch"] = &config.NodeDefinition{
		Type:      "fetch",
		Lifecycle: &config.Lifecycle{OnRun: "fetch.run"},
		Inputs:    map[string]*config.InputDefinition{"path": {Name: "path", Type: cty.String}},
		Outputs:   map[string]*config.OutputDefinition{"body": {Name: "body", Slot: 0, Type: cty.String}},
		Uses:      map[string]*config.UsesDefinition{"session": {LocalName: "session", ResourceType: "fake_session"}},
	}

	type sessionIn struct {
		Base string `pgg:"base"`
	}
	rig.reg.RegisterResourceHandler("fake_session.create", &registry.RegisteredResource{
		NewInput: func() any { return &sessionIn{} },
		CreateFn: func(ctx context.Context, in *sessionIn) (*fakeSession, error) {
			rig.tracker.add("create:" + in.Base)
			return &fakeSession{base: in.Base}, nil
		},
	})
	rig.reg.RegisterResourceHandler("fake_session.destroy", &registry.RegisteredResource{
		DestroyFn: func(s *fakeSession) {
			rig.tracker.add("destroy:" + s.base)
		},
	})
	rig.reg.ResourceDefinitionRegistry["fake_session"] = &config.ResourceDefinition{
		Type:      "fake_session",
		Lifecycle: &config.ResourceLifecycle{Create: "fake_session.create", Destroy: "fake_session.destroy"},
		Inputs:    map[string]*config.InputDefinition{"base": {Name: "base", Type: cty.String, Optional: true}},
	}
	rig.reg.RegisterResourceInterface("fake_session", reflect.TypeOf((*sessionAPI)(nil)).Elem())

	return rig
}

func pnode(typ string, inputs map[string]graph.Input) graph.Node {
	return graph.Node{Type: typ, Inputs: inputs}
}

func testPlan(nodes map[string]graph.Node) *builder.Result {
	return &builder.Result{
		Prompt:    graph.NewPrompt(nodes),
		Uses:      map[string]map[string]string{},
		Resources: map[string]*config.ResourceConfig{},
	}
}

func runPlan(t *testing.T, rig *testRig, plan *builder.Result, opts Options) (*Executor, error) {
	t.Helper()
	g, err := dag.Build(context.Background(), plan)
	require.NoError(t, err)
	exec := New("test-prompt", plan, g, rig.reg, hcl.NewConverter(), opts)
	return exec, exec.Run(context.Background())
}

func literalExpr(t *testing.T, src string) hhcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hhcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), diags.Error())
	return expr
}

func slotValues(t *testing.T, e *Executor, id string, slot int) []any {
	t.Helper()
	slots, ok := e.Outputs(id)
	require.True(t, ok, "node %q published nothing", id)
	require.Less(t, slot, len(slots), "node %q has no slot %d", id, slot)
	return slots[slot]
}

func nodeState(t *testing.T, e *Executor, id string) dag.State {
	t.Helper()
	n, ok := e.graph.Node(id)
	require.True(t, ok, "node %q not in graph", id)
	return n.GetState()
}
