// Package builder is the "Planning Layer" of the application. It turns a
// loaded workflow model into the runnable form the executor schedules: an
// immutable prompt snapshot, the ordering-only edges contributed by
// depends_on, and the resource wiring.
//
// The builder also owns prompt validation, shared by both frontends: HCL
// workflows pass through Build, wire-format prompts submitted over HTTP go
// straight to ValidatePrompt.
package builder
