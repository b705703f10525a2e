package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/dag"
)

// errExpansionPending tells the worker loop that the node it just ran
// expanded: its outputs arrive later, so the node keeps its WaitGroup slot
// and is delivered again once the grafted producers publish.
var errExpansionPending = errors.New("expansion pending")

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range e.readyChan {
		workerLogger := logger.With("workerID", workerID, "nodeID", n.ID)

		if n.GetState() == dag.Failed {
			// Settled while queued, e.g. poisoned by an expansion onto a
			// failed producer. Its accounting is already done.
			continue
		}
		if ctx.Err() != nil {
			if n.Skip(ctx.Err(), &e.wg) {
				workerLogger.Warn("Context canceled, skipping node execution.")
				e.skipDependents(ctx, n)
			}
			continue
		}

		workerLogger.Debug("Worker picked up node for execution.")
		firstDelivery := n.GetState() != dag.Running
		n.SetState(dag.Running)
		if firstDelivery {
			e.events.Publish(ctx, Event{Type: EventNodeStarted, PromptID: e.promptID, NodeID: n.ID})
		}

		err := e.runNode(ctx, n)
		if errors.Is(err, errExpansionPending) {
			workerLogger.Debug("Node expanded, awaiting grafted producers.")
			continue
		}
		if err != nil {
			workerLogger.Error("Node execution failed.", "error", err)
			n.SetState(dag.Failed)
			n.Error = err
			e.events.Publish(ctx, Event{Type: EventNodeFailed, PromptID: e.promptID, NodeID: n.ID, Error: err.Error()})
			cancel()
			e.skipDependents(ctx, n)
			e.wg.Done()
			continue
		}

		workerLogger.Debug("Node execution succeeded.")
		e.events.Publish(ctx, Event{Type: EventNodeFinished, PromptID: e.promptID, NodeID: n.ID})

		for _, dependent := range e.graph.Complete(n) {
			workerLogger.Debug("Unlocking dependent node.", "dependentID", dependent.ID)
			e.enqueueReady(dependent)
		}
		e.releaseResources(ctx, n)
		e.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// skipDependents recursively marks all downstream nodes as failed and
// releases their WaitGroup slots.
func (e *Executor) skipDependents(ctx context.Context, n *dag.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range e.graph.Dependents(n) {
		err := fmt.Errorf("skipped due to upstream failure of '%s'", n.ID)
		if dependent.Skip(err, &e.wg) {
			logger.Warn("Skipping dependent node due to upstream failure.", "nodeID", dependent.ID, "dependency", n.ID)
			e.events.Publish(ctx, Event{Type: EventNodeFailed, PromptID: e.promptID, NodeID: dependent.ID, Error: err.Error()})
			e.skipDependents(ctx, dependent)
		}
	}
}

// enqueueReady hands a node to the pool without blocking the caller;
// expansions can outgrow the channel's original capacity. Settled nodes
// drained after such an overflow are caught by the worker's state guard.
func (e *Executor) enqueueReady(n *dag.Node) {
	select {
	case e.readyChan <- n:
	default:
		e.enqueueWG.Add(1)
		go func() {
			defer e.enqueueWG.Done()
			e.readyChan <- n
		}()
	}
}
