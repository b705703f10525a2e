package registry

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/promptgridgo/internal/config"
)

type fakeInput struct {
	Value string `pgg:"value"`
	Count int    `pgg:"count"`
}

type fakeOutput struct {
	Result string `pgg:"result"`
}

type fakeSession interface {
	Do() error
}

type fakeDeps struct {
	Session fakeSession `pgg:"session"`
}

func fakeFn(ctx context.Context, deps *fakeDeps, input *fakeInput) (*fakeOutput, error) {
	return &fakeOutput{}, nil
}

func fakeDef() *config.NodeDefinition {
	return &config.NodeDefinition{
		Type:      "fake",
		Lifecycle: &config.Lifecycle{OnRun: "OnRunFake"},
		Inputs: map[string]*config.InputDefinition{
			"value": {Name: "value", Type: cty.String},
			"count": {Name: "count", Type: cty.Number},
		},
		Outputs: map[string]*config.OutputDefinition{
			"result": {Name: "result", Slot: 0, Type: cty.String},
		},
		Uses: map[string]*config.UsesDefinition{
			"session": {LocalName: "session", ResourceType: "fake_session"},
		},
	}
}

func fakeHandler() *RegisteredNode {
	return &RegisteredNode{
		NewInput: func() any { return new(fakeInput) },
		NewDeps:  func() any { return new(fakeDeps) },
		Fn:       fakeFn,
	}
}

func newValidatedRegistry(t *testing.T, def *config.NodeDefinition, handler *RegisteredNode) *Registry {
	t.Helper()
	r := New()
	r.RegisterNode("OnRunFake", handler)
	r.RegisterResourceInterface("fake_session", reflect.TypeOf((*fakeSession)(nil)).Elem())
	r.DefinitionRegistry[def.Type] = def
	return r
}

func TestRegisterNode(t *testing.T) {
	r := New()
	r.RegisterNode("OnRunFake", fakeHandler())

	_, ok := r.HandlerRegistry["OnRunFake"]
	assert.True(t, ok)

	assert.Panics(t, func() {
		r.RegisterNode("OnRunFake", fakeHandler())
	})
}

func TestRegisterResourceHandler(t *testing.T) {
	r := New()
	r.RegisterResourceHandler("CreateFake", &RegisteredResource{})

	assert.Panics(t, func() {
		r.RegisterResourceHandler("CreateFake", &RegisteredResource{})
	})
}

func TestRegisterResourceInterface(t *testing.T) {
	r := New()
	iface := reflect.TypeOf((*fakeSession)(nil)).Elem()
	r.RegisterResourceInterface("fake_session", iface)

	assert.Equal(t, iface, r.ResourceInterfaceRegistry["fake_session"])
	assert.Panics(t, func() {
		r.RegisterResourceInterface("fake_session", iface)
	})
}

func TestNodeHandlerLookup(t *testing.T) {
	r := New()
	handler := fakeHandler()
	r.RegisterNode("OnRunFake", handler)

	got, ok := r.NodeHandler(fakeDef())
	require.True(t, ok)
	assert.Same(t, handler, got)

	_, ok = r.NodeHandler(&config.NodeDefinition{Type: "bare"})
	assert.False(t, ok)
}

func TestWithDependencyInput(t *testing.T) {
	t.Run("adds the reserved input", func(t *testing.T) {
		def := fakeDef()
		wrapped := WithDependencyInput(def, false)

		in, ok := wrapped.Inputs[DependsOnInput]
		require.True(t, ok)
		assert.True(t, in.Optional)
		assert.Len(t, wrapped.Outputs, 1, "no passthrough requested")

		_, ok = def.Inputs[DependsOnInput]
		assert.False(t, ok, "original definition must stay untouched")
	})

	t.Run("passthrough takes the next free slot", func(t *testing.T) {
		wrapped := WithDependencyInput(fakeDef(), true)

		out, ok := wrapped.Outputs[PassthroughOutput]
		require.True(t, ok)
		assert.Equal(t, 1, out.Slot)
		assert.Equal(t, 2, wrapped.NumOutputSlots())
	})

	t.Run("wrapping twice is a no-op", func(t *testing.T) {
		once := WithDependencyInput(fakeDef(), true)
		twice := WithDependencyInput(once, true)
		assert.Same(t, once, twice)
	})
}

func TestPopulateDefinitionsFromModel(t *testing.T) {
	r := New()
	handler := fakeHandler()
	handler.AcceptsDependency = true
	handler.PassthroughDependency = true
	r.RegisterNode("OnRunFake", handler)

	model := &config.Model{
		Nodes:     map[string]*config.NodeDefinition{"fake": fakeDef()},
		Resources: map[string]*config.ResourceDefinition{"fake_session": {Type: "fake_session"}},
	}
	r.PopulateDefinitionsFromModel(model)

	def, ok := r.NodeDefinition("fake")
	require.True(t, ok)
	_, ok = def.Inputs[DependsOnInput]
	assert.True(t, ok, "definition should be wrapped for an opted-in handler")
	_, ok = def.Outputs[PassthroughOutput]
	assert.True(t, ok)

	_, ok = r.ResourceDefinitionRegistry["fake_session"]
	assert.True(t, ok)
}

func TestValidateRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("aligned manifest and handler pass", func(t *testing.T) {
		r := newValidatedRegistry(t, fakeDef(), fakeHandler())
		assert.NoError(t, r.ValidateRegistry(ctx))
	})

	t.Run("wrapped definition passes without a struct field", func(t *testing.T) {
		r := newValidatedRegistry(t, WithDependencyInput(fakeDef(), true), fakeHandler())
		assert.NoError(t, r.ValidateRegistry(ctx))
	})

	t.Run("manifest input missing from struct fails", func(t *testing.T) {
		def := fakeDef()
		def.Inputs["ghost"] = &config.InputDefinition{Name: "ghost", Type: cty.String}
		r := newValidatedRegistry(t, def, fakeHandler())
		assert.ErrorContains(t, r.ValidateRegistry(ctx), "input 'ghost' which is not found in Go struct")
	})

	t.Run("struct field missing from manifest fails", func(t *testing.T) {
		def := fakeDef()
		delete(def.Inputs, "count")
		r := newValidatedRegistry(t, def, fakeHandler())
		assert.ErrorContains(t, r.ValidateRegistry(ctx), "input 'count' which is not declared in manifest")
	})

	t.Run("input type mismatch fails", func(t *testing.T) {
		def := fakeDef()
		def.Inputs["count"].Type = cty.String
		r := newValidatedRegistry(t, def, fakeHandler())
		assert.ErrorContains(t, r.ValidateRegistry(ctx), "type mismatch")
	})

	t.Run("manifest output missing from output struct fails", func(t *testing.T) {
		def := fakeDef()
		def.Outputs["extra"] = &config.OutputDefinition{Name: "extra", Slot: 1, Type: cty.String}
		r := newValidatedRegistry(t, def, fakeHandler())
		assert.ErrorContains(t, r.ValidateRegistry(ctx), "output 'extra'")
	})

	t.Run("unregistered resource interface fails", func(t *testing.T) {
		r := New()
		r.RegisterNode("OnRunFake", fakeHandler())
		def := fakeDef()
		r.DefinitionRegistry[def.Type] = def
		assert.ErrorContains(t, r.ValidateRegistry(ctx), "no interface registered for resource type 'fake_session'")
	})

	t.Run("malformed handler function fails", func(t *testing.T) {
		handler := fakeHandler()
		handler.Fn = func() {}
		r := newValidatedRegistry(t, fakeDef(), handler)
		err := r.ValidateRegistry(ctx)
		assert.ErrorContains(t, err, "must take")
		assert.ErrorContains(t, err, "must return")
	})
}
