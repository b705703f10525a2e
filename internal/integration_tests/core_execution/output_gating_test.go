package integration_tests

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/promptgridgo/internal/execctx"
	"github.com/vk/promptgridgo/internal/registry"
	"github.com/vk/promptgridgo/internal/testutil"
	"github.com/vk/promptgridgo/modules/print"
)

const gatedManifest = `
	node_type "gated" {
	  lifecycle {
	    on_run = "OnRunGated"
	  }
	  output "cheap" {
	    slot = 0
	    type = number
	  }
	  output "expensive" {
	    slot = 1
	    type = string
	  }
	}
`

// gatedModule records whether the runtime told the handler its expensive
// output slot was worth computing.
type gatedModule struct {
	mu              sync.Mutex
	expensiveNeeded []bool
}

func (m *gatedModule) Register(r *registry.Registry) {
	type gatedOutput struct {
		Cheap     float64 `pgg:"cheap"`
		Expensive string  `pgg:"expensive"`
	}
	r.RegisterNode("OnRunGated", &registry.RegisteredNode{
		NewDeps: func() any { return new(struct{}) },
		Fn: func(ctx context.Context, _ *struct{}, _ *struct{}) (*gatedOutput, error) {
			needed := execctx.IsOutputNeeded(ctx, 1)
			m.mu.Lock()
			m.expensiveNeeded = append(m.expensiveNeeded, needed)
			m.mu.Unlock()

			out := &gatedOutput{Cheap: 1}
			if needed {
				out.Expensive = "computed"
			}
			return out, nil
		},
	})
}

// Test for: the expected-outputs analysis reaches handlers through the
// context, so a slot nobody links to reports as not needed and a linked
// slot reports as needed.
func TestCoreExecution_ExpectedOutputsReachHandlers(t *testing.T) {
	t.Parallel()

	t.Run("unlinked slot is reported as not needed", func(t *testing.T) {
		t.Parallel()
		files := map[string]string{
			"modules/gated/manifest.hcl": gatedManifest,
			"modules/print/manifest.hcl": testutil.CoreManifest(t, "print"),
			"workflow/main.hcl": `
				node "gated" "make" {
				}

				node "print" "show" {
					arguments {
						value = link("make", 0)
					}
				}
			`,
		}

		mod := &gatedModule{}
		result := testutil.RunIntegrationTest(t, files, mod, &print.Module{})

		require.NoError(t, result.Err)
		mod.mu.Lock()
		defer mod.mu.Unlock()
		require.Len(t, mod.expensiveNeeded, 1)
		assert.False(t, mod.expensiveNeeded[0])
	})

	t.Run("linked slot is reported as needed", func(t *testing.T) {
		t.Parallel()
		files := map[string]string{
			"modules/gated/manifest.hcl": gatedManifest,
			"modules/print/manifest.hcl": testutil.CoreManifest(t, "print"),
			"workflow/main.hcl": `
				node "gated" "make" {
				}

				node "print" "show" {
					arguments {
						value = link("make", 1)
					}
				}
			`,
		}

		mod := &gatedModule{}
		result := testutil.RunIntegrationTest(t, files, mod, &print.Module{})

		require.NoError(t, result.Err)
		mod.mu.Lock()
		defer mod.mu.Unlock()
		require.Len(t, mod.expensiveNeeded, 1)
		assert.True(t, mod.expensiveNeeded[0])
	})
}
