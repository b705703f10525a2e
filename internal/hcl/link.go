package hcl

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/promptgridgo/internal/graph"
)

// linkCapsule wraps a graph.Link so that a link() result survives expression
// evaluation as an opaque value the builder can recognize and unwrap.
var linkCapsule = cty.Capsule("link", reflect.TypeOf(graph.Link{}))

// linkFunc is the `link(node_id, slot)` workflow function. It wires another
// node's output slot into the argument it appears in.
var linkFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "node_id", Type: cty.String},
		{Name: "slot", Type: cty.Number},
	},
	Type: function.StaticReturnType(linkCapsule),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		var slot int
		if err := gocty.FromCtyValue(args[1], &slot); err != nil {
			return cty.NilVal, fmt.Errorf("link slot must be an integer: %w", err)
		}
		if slot < 0 {
			return cty.NilVal, fmt.Errorf("link slot %d is negative", slot)
		}
		return cty.CapsuleVal(linkCapsule, &graph.Link{Node: args[0].AsString(), Slot: slot}), nil
	},
})

// EvalContext returns the evaluation context workflow argument expressions
// are resolved in. It exposes the link function and nothing else; values
// flow between nodes along links, not through interpolation.
func EvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"link": linkFunc,
		},
	}
}

// AsLink unwraps a link() result. The second return is false for any value
// that did not come from the link function.
func AsLink(v cty.Value) (graph.Link, bool) {
	if v.IsNull() || !v.Type().Equals(linkCapsule) {
		return graph.Link{}, false
	}
	return *(v.EncapsulatedValue().(*graph.Link)), true
}

// EvaluateLiterals resolves argument expressions in a position where links
// make no sense, such as resource arguments. Values come back as plain Go
// values ready for DecodeInputs.
func EvaluateLiterals(args map[string]hcl.Expression) (map[string]any, error) {
	evalCtx := EvalContext()
	out := make(map[string]any, len(args))
	for name, expr := range args {
		val, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate argument %q: %w", name, diags)
		}
		if _, isLink := AsLink(val); isLink {
			return nil, fmt.Errorf("argument %q: link() is not allowed here", name)
		}
		goVal, err := GoValue(val)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = goVal
	}
	return out, nil
}
