// Package dag is the scheduling layer of the engine. It derives a
// dependency graph from a prompt snapshot (one vertex per node, one edge per
// link or ordering constraint), tracks per-node execution state, and keeps
// the producer-before-consumer guarantee intact while workers complete nodes
// concurrently and expansions graft new nodes onto a running graph.
package dag
