package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/promptgridgo/internal/app"
	"github.com/vk/promptgridgo/internal/registry"
)

// SleeperManifest is the manifest HCL that matches MockSleeperModule. Tests
// place it in the files map under a "modules/" path.
const SleeperManifest = `
node_type "sleeper" {
  lifecycle {
    on_run = "OnRunSleeper"
  }
  input "id" {
    type = string
  }
}
`

// MockSleeperModule is a shared, self-contained module for concurrency tests.
// It records the execution window of each node that uses it.
type MockSleeperModule struct {
	ExecutionTimes map[string]*app.ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewMockSleeperModule creates a new sleeper module for testing.
func NewMockSleeperModule(completionChan chan<- string, sleep time.Duration) *MockSleeperModule {
	return &MockSleeperModule{
		ExecutionTimes: make(map[string]*app.ExecutionRecord),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

// Register registers the "sleeper" node type's Go handler.
func (m *MockSleeperModule) Register(r *registry.Registry) {
	type sleeperInput struct {
		ID string `pgg:"id"`
	}
	type sleeperOutput struct{}

	r.RegisterNode("OnRunSleeper", &registry.RegisteredNode{
		NewInput: func() any { return new(sleeperInput) },
		NewDeps:  func() any { return new(struct{}) },
		Fn: func(_ context.Context, _ *struct{}, input *sleeperInput) (*sleeperOutput, error) {
			start := time.Now()
			time.Sleep(m.sleepDuration)
			end := time.Now()

			m.mu.Lock()
			m.ExecutionTimes[input.ID] = &app.ExecutionRecord{Start: start, End: end}
			m.mu.Unlock()

			if m.completionChan != nil {
				m.completionChan <- input.ID
			}
			return &sleeperOutput{}, nil
		},
	})
}

// Record returns the execution record for a node ID, if it ran.
func (m *MockSleeperModule) Record(id string) (*app.ExecutionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ExecutionTimes[id]
	return rec, ok
}
