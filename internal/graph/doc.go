// Package graph is the "Model Layer" of the application. It holds the
// immutable prompt snapshot (nodes, their typed inputs, and the links that
// wire one node's output slot into another node's input), the JSON wire
// codec for that format, and the expected-outputs analyzer that derives
// which output slots of a node are actually consumed downstream.
//
// A Prompt is a point-in-time snapshot: once built it never changes. Graph
// expansion produces a new Prompt via Merge, and consumers swap to it (and
// to a fresh Analyzer) between queries rather than mutating in place.
package graph
