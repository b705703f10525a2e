package integration_tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/promptgridgo/internal/registry"
	"github.com/vk/promptgridgo/internal/testutil"
)

// Test for: a manifest type that disagrees with the Go struct field type is
// a startup error, caught before any workflow runs.
func TestTypeSystem_ManifestAndGoTypeMismatch(t *testing.T) {
	t.Parallel()

	type driftedInput struct {
		Timeout float64 `pgg:"timeout"`
	}
	mod := &testutil.SimpleModule{
		NodeName: "OnRunDrifted",
		Node: &registry.RegisteredNode{
			NewInput: func() any { return new(driftedInput) },
			NewDeps:  func() any { return new(struct{}) },
			Fn: func(_ context.Context, _ *struct{}, _ *driftedInput) (*struct{}, error) {
				return &struct{}{}, nil
			},
		},
	}

	files := map[string]string{
		"modules/drifted/manifest.hcl": `
			node_type "drifted" {
			  lifecycle {
			    on_run = "OnRunDrifted"
			  }
			  input "timeout" {
			    type = string
			  }
			}
		`,
		"workflow/main.hcl": `
			node "drifted" "d" {
				arguments {
					timeout = "5s"
				}
			}
		`,
	}

	result := testutil.RunIntegrationTest(t, files, mod)

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "registry validation failed")
	assert.Contains(t, result.Err.Error(), "type mismatch")
	assert.Contains(t, result.Err.Error(), "Manifest requires 'string'")
}

// Test for: an `any` typed manifest input skips the static check and takes
// whatever shape the workflow provides.
func TestTypeSystem_AnyInputSkipsStaticCheck(t *testing.T) {
	t.Parallel()

	var got any
	type looseInput struct {
		Payload any `pgg:"payload"`
	}
	mod := &testutil.SimpleModule{
		NodeName: "OnRunLoose",
		Node: &registry.RegisteredNode{
			NewInput: func() any { return new(looseInput) },
			NewDeps:  func() any { return new(struct{}) },
			Fn: func(_ context.Context, _ *struct{}, input *looseInput) (*struct{}, error) {
				got = input.Payload
				return &struct{}{}, nil
			},
		},
	}

	files := map[string]string{
		"modules/loose/manifest.hcl": `
			node_type "loose" {
			  lifecycle {
			    on_run = "OnRunLoose"
			  }
			  input "payload" {
			    type = any
			  }
			}
		`,
		"workflow/main.hcl": `
			node "loose" "l" {
				arguments {
					payload = {
						kind  = "mixed"
						count = 3
					}
				}
			}
		`,
	}

	result := testutil.RunIntegrationTest(t, files, mod)

	require.NoError(t, result.Err)
	payload, ok := got.(map[string]any)
	require.True(t, ok, "expected a map payload, got %T", got)
	assert.Equal(t, "mixed", payload["kind"])
	assert.Equal(t, 3.0, payload["count"])
}
