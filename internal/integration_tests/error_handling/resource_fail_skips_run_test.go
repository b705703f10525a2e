package integration_tests

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/promptgridgo/internal/registry"
	"github.com/vk/promptgridgo/internal/testutil"
)

// brokenResourceModule registers a resource whose create handler always
// fails, plus a consumer node that counts its runs.
type brokenResourceModule struct {
	nodeRuns atomic.Int32
}

type brokenHandle struct{}

func (m *brokenResourceModule) Register(r *registry.Registry) {
	r.RegisterResourceHandler("CreateBroken", &registry.RegisteredResource{
		CreateFn: func(_ context.Context, _ *struct{}) (*brokenHandle, error) {
			return nil, errors.New("upstream is down")
		},
	})
	r.RegisterResourceHandler("DestroyBroken", &registry.RegisteredResource{
		DestroyFn: func(_ *brokenHandle) error { return nil },
	})
	r.RegisterResourceInterface("broken", reflect.TypeOf((*brokenHandle)(nil)))

	type consumerDeps struct {
		Handle *brokenHandle `pgg:"handle"`
	}
	r.RegisterNode("OnRunConsumer", &registry.RegisteredNode{
		NewDeps: func() any { return new(consumerDeps) },
		Fn: func(_ context.Context, _ *consumerDeps, _ *struct{}) (*struct{}, error) {
			m.nodeRuns.Add(1)
			return &struct{}{}, nil
		},
	})
}

// Test for: a resource create failure aborts the run before any node
// executes.
func TestErrorHandling_ResourceCreateFailureAbortsRun(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"modules/broken/manifest.hcl": `
			resource_type "broken" {
			  lifecycle {
			    create  = "CreateBroken"
			    destroy = "DestroyBroken"
			  }
			}

			node_type "consumer" {
			  lifecycle {
			    on_run = "OnRunConsumer"
			  }
			  uses "handle" {
			    resource_type = "broken"
			  }
			}
		`,
		"workflow/main.hcl": `
			resource "broken" "conn" {
			}

			node "consumer" "use" {
				uses {
					handle = "conn"
				}
			}
		`,
	}

	mod := &brokenResourceModule{}
	result := testutil.RunIntegrationTest(t, files, mod)

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "resource 'conn'")
	assert.Contains(t, result.Err.Error(), "upstream is down")
	assert.Equal(t, int32(0), mod.nodeRuns.Load(), "no node may run without its resource")
}
