// Package executor runs a built plan over a concurrent worker pool.
//
// Before every handler invocation it consults the expected-outputs index for
// the current prompt snapshot and opens a context scope carrying the node's
// identity and that set; handlers observe both only through the execctx
// accessors. Completed nodes publish per-slot value batches that downstream
// links resolve against. A handler may expand the graph mid-run, which merges
// a new snapshot, swaps the index, and grafts the new nodes into the live
// scheduling graph before any of them executes.
package executor
