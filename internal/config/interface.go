package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths, translates it into the
	// format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter is the interface for a format-specific data binding and type
// conversion implementation. It bridges the assembled input values of a
// node invocation and the Go structs the handlers consume.
type Converter interface {
	// DecodeInputs populates the target Go struct from the assembled input
	// values, applying declared defaults and rejecting missing required
	// arguments. Values may come from workflow literals, wire literals, or
	// upstream outputs routed along links; all are plain Go values here.
	DecodeInputs(
		ctx context.Context,
		target any,
		values map[string]any,
		defs map[string]*InputDefinition,
	) error
}
