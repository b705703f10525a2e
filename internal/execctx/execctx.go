package execctx

import (
	"context"
	"fmt"

	"github.com/vk/promptgridgo/internal/graph"
)

// NodeContext identifies one node invocation: the prompt being executed,
// the node within it, the element index when the invocation is one slice of
// a batch, and the set of output slots the rest of the graph consumes.
// Values are immutable once created.
type NodeContext struct {
	promptID string
	nodeID   string
	index    int // -1 when the invocation is not part of a batch
	expected *graph.OutputSet
}

// PromptID returns the id of the executing prompt.
func (nc NodeContext) PromptID() string {
	return nc.promptID
}

// NodeID returns the id of the executing node.
func (nc NodeContext) NodeID() string {
	return nc.nodeID
}

// Index returns the batch element index and true, or false when the
// invocation is not part of a batch.
func (nc NodeContext) Index() (int, bool) {
	if nc.index < 0 {
		return 0, false
	}
	return nc.index, true
}

// ExpectedOutputs returns the consumed output slots recorded for this
// invocation. A nil set means no expectation was recorded and every output
// must be treated as needed.
func (nc NodeContext) ExpectedOutputs() *graph.OutputSet {
	return nc.expected
}

// String renders the context for logs.
func (nc NodeContext) String() string {
	if idx, ok := nc.Index(); ok {
		return fmt.Sprintf("prompt=%s node=%s index=%d expected=%s", nc.promptID, nc.nodeID, idx, nc.expected)
	}
	return fmt.Sprintf("prompt=%s node=%s expected=%s", nc.promptID, nc.nodeID, nc.expected)
}

// key is an unexported type to prevent collisions with context keys from other packages.
type key struct{}

// nodeKey is the key for the NodeContext in a context.Context.
var nodeKey = key{}

// Scope returns a context carrying the identity of a node invocation.
// Opening a scope never mutates shared state: the parent context is
// untouched, so falling back to it on return, error, or panic restores the
// previous view automatically.
func Scope(ctx context.Context, promptID, nodeID string, expected *graph.OutputSet) (context.Context, error) {
	return scope(ctx, promptID, nodeID, -1, expected)
}

// ScopeIndexed is Scope for one element of a batched invocation. The index
// must be non-negative.
func ScopeIndexed(ctx context.Context, promptID, nodeID string, index int, expected *graph.OutputSet) (context.Context, error) {
	if index < 0 {
		return nil, fmt.Errorf("execctx: negative batch index %d for node %q", index, nodeID)
	}
	return scope(ctx, promptID, nodeID, index, expected)
}

func scope(ctx context.Context, promptID, nodeID string, index int, expected *graph.OutputSet) (context.Context, error) {
	if promptID == "" {
		return nil, fmt.Errorf("execctx: empty prompt id for node %q", nodeID)
	}
	if nodeID == "" {
		return nil, fmt.Errorf("execctx: empty node id in prompt %q", promptID)
	}
	nc := NodeContext{promptID: promptID, nodeID: nodeID, index: index, expected: expected}
	return context.WithValue(ctx, nodeKey, nc), nil
}

// FromContext extracts the innermost NodeContext. The second return is
// false when the context is not inside any node scope.
func FromContext(ctx context.Context) (NodeContext, bool) {
	nc, ok := ctx.Value(nodeKey).(NodeContext)
	return nc, ok
}

// IsOutputNeeded reports whether the output slot at idx should be computed.
// Outside any scope, or inside a scope with no recorded expectation, the
// answer is always true: absent knowledge must never suppress work. With a
// recorded set, even an empty one, the answer is plain membership.
func IsOutputNeeded(ctx context.Context, idx int) bool {
	nc, ok := FromContext(ctx)
	if !ok {
		return true
	}
	if nc.expected == nil {
		return true
	}
	return nc.expected.Contains(idx)
}
