// Package config defines the format-agnostic configuration model for the
// application, along with the core interfaces (Loader, Converter) for
// loading and interpreting configuration from various sources.
//
// The config.Model carries two kinds of things: manifests, which describe
// the node and resource types the binary ships (their inputs, output slots,
// and lifecycle handler names), and an optional workflow, which instantiates
// those types into a runnable graph. The builder package turns a workflow
// into a graph.Prompt; concrete format support, such as HCL, lives in
// separate packages.
package config
