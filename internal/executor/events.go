package executor

import (
	"context"

	"github.com/vk/promptgridgo/internal/ctxlog"
)

// EventType names a moment in a prompt's execution.
type EventType string

const (
	// EventQueued marks a prompt entering the queue, before any node runs.
	EventQueued EventType = "queued"
	// EventNodeStarted fires when a worker picks a node up.
	EventNodeStarted EventType = "node_started"
	// EventNodeFinished fires once a node has published its outputs.
	EventNodeFinished EventType = "node_finished"
	// EventNodeFailed fires when a node errors or is skipped.
	EventNodeFailed EventType = "node_failed"
	// EventPromptDone fires once per run, after the last node settles.
	EventPromptDone EventType = "prompt_done"
)

// Event is one progress report. The JSON shape is what the websocket feed
// sends to clients verbatim.
type Event struct {
	Type     EventType `json:"type"`
	PromptID string    `json:"prompt_id"`
	NodeID   string    `json:"node_id,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// EventSink receives progress events. Implementations must be safe for
// concurrent use; workers publish from multiple goroutines.
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}

// NoopSink drops every event.
type NoopSink struct{}

// Publish implements EventSink.
func (NoopSink) Publish(context.Context, Event) {}

// MultiSink forwards each event to every sink in order.
type MultiSink []EventSink

// Publish implements EventSink.
func (m MultiSink) Publish(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Publish(ctx, ev)
	}
}

// LogSink writes events to the context logger, so a local run shows the
// same progress a websocket client would see.
type LogSink struct{}

// Publish implements EventSink.
func (LogSink) Publish(ctx context.Context, ev Event) {
	logger := ctxlog.FromContext(ctx)
	switch ev.Type {
	case EventNodeFailed:
		logger.Warn("Node failed.", "prompt_id", ev.PromptID, "node_id", ev.NodeID, "error", ev.Error)
	case EventPromptDone:
		if ev.Error != "" {
			logger.Warn("Prompt finished with errors.", "prompt_id", ev.PromptID, "error", ev.Error)
			return
		}
		logger.Info("Prompt finished.", "prompt_id", ev.PromptID)
	default:
		logger.Debug("Execution progress.", "event", string(ev.Type), "prompt_id", ev.PromptID, "node_id", ev.NodeID)
	}
}
