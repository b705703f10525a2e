package integration_tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vk/promptgridgo/internal/registry"
	"github.com/vk/promptgridgo/internal/testutil"
)

// recorderModule is a self-contained module for the dependency ordering
// tests. It only registers the Go handler; the manifest comes from the HCL
// files of each test.
type recorderModule struct {
	mu             sync.Mutex
	executionTimes map[string]time.Time
}

func newRecorderModule() *recorderModule {
	return &recorderModule{executionTimes: make(map[string]time.Time)}
}

func (m *recorderModule) Register(r *registry.Registry) {
	type recorderInput struct {
		Name  string `pgg:"name"`
		After string `pgg:"after"`
	}
	type recorderOutput struct {
		Name string `pgg:"name"`
	}
	r.RegisterNode("OnRunRecorder", &registry.RegisteredNode{
		NewInput: func() any { return new(recorderInput) },
		NewDeps:  func() any { return new(struct{}) },
		Fn: func(_ context.Context, _ *struct{}, input *recorderInput) (*recorderOutput, error) {
			m.mu.Lock()
			m.executionTimes[input.Name] = time.Now()
			m.mu.Unlock()
			// A small pause keeps the recorded times distinguishable.
			time.Sleep(10 * time.Millisecond)
			return &recorderOutput{Name: input.Name}, nil
		},
	})
}

func (m *recorderModule) ranAt(t *testing.T, name string) time.Time {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.executionTimes[name]
	require.True(t, ok, "node %q never recorded an execution time", name)
	return at
}

const recorderManifest = `
	node_type "recorder" {
	  lifecycle {
	    on_run = "OnRunRecorder"
	  }
	  input "name" {
	    type = string
	  }
	  input "after" {
	    type    = string
	    default = ""
	  }
	  output "name" {
	    slot = 0
	    type = string
	  }
	}
`

// Test for: explicit dependency via depends_on forces execution order even
// with no data flowing between the nodes.
func TestHclFeatures_ExplicitDependency(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"modules/recorder/manifest.hcl": recorderManifest,
		"workflow/main.hcl": `
			node "recorder" "A" {
				arguments {
					name = "A"
				}
			}

			node "recorder" "B" {
				arguments {
					name = "B"
				}
				depends_on = ["A"]
			}
		`,
	}

	mod := newRecorderModule()
	result := testutil.RunIntegrationTest(t, files, mod)

	require.NoError(t, result.Err)
	timeA := mod.ranAt(t, "A")
	timeB := mod.ranAt(t, "B")
	require.False(t, timeB.Before(timeA),
		"B executed before A, but depends_on should have forced B to wait. A: %v, B: %v", timeA, timeB)
}

// Test for: a link() argument is an implicit dependency; the consumer waits
// for the producer without any depends_on.
func TestHclFeatures_ImplicitDependencyViaLink(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"modules/recorder/manifest.hcl": recorderManifest,
		"workflow/main.hcl": `
			node "recorder" "producer" {
				arguments {
					name = "producer"
				}
			}

			node "recorder" "consumer" {
				arguments {
					name  = "consumer"
					after = link("producer", 0)
				}
			}
		`,
	}

	mod := newRecorderModule()
	result := testutil.RunIntegrationTest(t, files, mod)

	require.NoError(t, result.Err)
	timeProducer := mod.ranAt(t, "producer")
	timeConsumer := mod.ranAt(t, "consumer")
	require.False(t, timeConsumer.Before(timeProducer),
		"consumer executed before producer, but the link should have forced it to wait")
}
