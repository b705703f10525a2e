// Package env provides a node that reads environment variables into a
// string map, so workflows can be parametrized without editing HCL.
package env

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input selects which variables to read and how to present them.
type Input struct {
	Include     []string          `pgg:"include"`
	Required    []string          `pgg:"required"`
	Defaults    map[string]string `pgg:"defaults"`
	Prefix      string            `pgg:"prefix"`
	StripPrefix bool              `pgg:"strip_prefix"`
}

// Deps is empty because this node uses no resources.
type Deps struct{}

// Output carries the resolved variables.
type Output struct {
	Vars map[string]string `pgg:"vars"`
}

// OnRunEnv resolves the selected environment variables. Explicitly named
// variables (include, required, defaults keys) win over discovery; with no
// explicit names the node falls back to prefix discovery, or the whole
// environment when no prefix is set either.
func OnRunEnv(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	candidates := make(map[string]struct{})
	for _, key := range input.Include {
		candidates[key] = struct{}{}
	}
	for _, key := range input.Required {
		candidates[key] = struct{}{}
	}
	for key := range input.Defaults {
		candidates[key] = struct{}{}
	}

	if len(candidates) == 0 {
		for _, entry := range os.Environ() {
			key := strings.SplitN(entry, "=", 2)[0]
			if input.Prefix == "" || strings.HasPrefix(key, input.Prefix) {
				candidates[key] = struct{}{}
			}
		}
	}

	required := make(map[string]struct{}, len(input.Required))
	for _, key := range input.Required {
		required[key] = struct{}{}
	}

	vars := make(map[string]string, len(candidates))
	var missing []string
	for key := range candidates {
		value, isSet := os.LookupEnv(key)
		if !isSet {
			if fallback, hasDefault := input.Defaults[key]; hasDefault {
				value = fallback
			} else if _, isRequired := required[key]; isRequired {
				missing = append(missing, key)
				continue
			} else {
				continue
			}
		}

		outKey := key
		if input.StripPrefix && input.Prefix != "" {
			outKey = strings.TrimPrefix(key, input.Prefix)
		}
		vars[outKey] = value
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	logger.Debug("Resolved environment variables.", "count", len(vars))
	return &Output{Vars: vars}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterNode("OnRunEnv", &registry.RegisteredNode{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunEnv,
	})
}
