package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vk/promptgridgo/internal/builder"
	"github.com/vk/promptgridgo/internal/config"
	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/dag"
	"github.com/vk/promptgridgo/internal/graph"
	"github.com/vk/promptgridgo/internal/registry"
)

// Executor drives one prompt run to completion. It owns the worker pool,
// the output routing table, the resource lifecycle, and the pending state
// of any mid-run expansions. An Executor is single-use.
type Executor struct {
	promptID  string
	graph     *dag.Graph
	plan      *builder.Result
	registry  *registry.Registry
	converter config.Converter

	numWorkers int
	events     EventSink

	// analyzer indexes the current prompt snapshot. Expansions swap in a
	// rebuilt index before any grafted node can be delivered.
	analyzer atomic.Pointer[graph.Analyzer]

	// outputs maps node id -> per-slot value batches ([][]any).
	outputs sync.Map

	expMu   sync.Mutex
	pending map[string]*pendingExpansion

	resources    map[string]any
	resourceRefs map[string]*atomic.Int32
	cleanupMu    sync.Mutex
	cleanups     []*cleanupEntry

	readyChan chan *dag.Node
	wg        sync.WaitGroup
	// enqueueWG tracks overflow sends so the channel closes only after the
	// last one lands.
	enqueueWG sync.WaitGroup
}

// Options tunes a run.
type Options struct {
	// Workers caps pool concurrency. Zero or negative means NumCPU.
	Workers int
	// Events receives progress reports. Nil disables reporting.
	Events EventSink
}

// New wires an executor for a built plan and its scheduling graph. promptID
// tags every scope and event of the run.
func New(promptID string, plan *builder.Result, g *dag.Graph, reg *registry.Registry, conv config.Converter, opts Options) *Executor {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	events := opts.Events
	if events == nil {
		events = NoopSink{}
	}
	e := &Executor{
		promptID:     promptID,
		graph:        g,
		plan:         plan,
		registry:     reg,
		converter:    conv,
		numWorkers:   workers,
		events:       events,
		pending:      make(map[string]*pendingExpansion),
		resources:    make(map[string]any),
		resourceRefs: make(map[string]*atomic.Int32),
	}
	e.analyzer.Store(graph.NewAnalyzer(plan.Prompt))
	return e
}

// Run executes the entire graph concurrently and returns an error if any
// node fails. It respects the cancellation signal from the provided context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	defer e.executeCleanupStack(ctx)

	if err := e.createResources(ctx); err != nil {
		e.events.Publish(ctx, Event{Type: EventPromptDone, PromptID: e.promptID, Error: err.Error()})
		return err
	}

	e.readyChan = make(chan *dag.Node, e.graph.Len())
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Debug("Initializing executor, finding root nodes...")
	roots := e.graph.Roots()
	for _, n := range roots {
		logger.Debug("Found root node.", "nodeID", n.ID)
		e.enqueueReady(n)
	}
	logger.Debug("Found all root nodes.", "count", len(roots))

	e.wg.Add(e.graph.Len())

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, cancel, i)
	}

	logger.Debug("Waiting for all nodes to complete...")
	e.wg.Wait()
	logger.Debug("All nodes completed.")
	e.enqueueWG.Wait()
	close(e.readyChan)

	err := e.collectFailures(ctx)
	done := Event{Type: EventPromptDone, PromptID: e.promptID}
	if err != nil {
		done.Error = err.Error()
	}
	e.events.Publish(ctx, done)
	return err
}

// Outputs returns the published slot batches for a node, or false if the
// node never published. Callers read it after Run returns.
func (e *Executor) Outputs(id string) ([][]any, bool) {
	raw, ok := e.outputs.Load(id)
	if !ok {
		return nil, false
	}
	return raw.([][]any), true
}

// collectFailures reduces per-node errors into the run's verdict.
func (e *Executor) collectFailures(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var failedNodes []string
	var rootCauseError error
	for _, node := range e.graph.Nodes() {
		if node.GetState() != dag.Failed {
			continue
		}
		logger.Error("Node failed execution.", "nodeID", node.ID, "error", node.Error)
		// A "skipped" error is a symptom, not a cause.
		if node.Error != nil && !strings.HasPrefix(node.Error.Error(), "skipped") && !errors.Is(node.Error, context.Canceled) {
			failedNodes = append(failedNodes, node.ID)
			if rootCauseError == nil {
				rootCauseError = node.Error
			}
		}
	}
	if rootCauseError != nil {
		slices.Sort(failedNodes)
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failedNodes, ", "), rootCauseError)
	}
	// All failures were cancellation symptoms; surface the caller's cancel.
	return ctx.Err()
}
