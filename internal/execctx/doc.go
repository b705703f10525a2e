// Package execctx carries the identity of the currently executing prompt
// node through context.Context, the same way ctxlog carries the logger.
//
// The executor opens a scope around each node invocation with Scope (or
// ScopeIndexed for one element of a batch), and node handlers running under
// that context can ask FromContext who they are and IsOutputNeeded whether
// a given output slot is worth computing. Because a scope is a derived
// context and never a mutation of shared state, the caller's view is
// restored on every exit path, nesting unwinds innermost first, and
// concurrent goroutines each see only the scope they were started with.
package execctx
