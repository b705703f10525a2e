package server

import (
	"context"

	"github.com/vk/promptgridgo/internal/builder"
	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/dag"
	"github.com/vk/promptgridgo/internal/executor"
)

// queuedPrompt is one accepted prompt waiting for the engine.
type queuedPrompt struct {
	id   string
	plan *builder.Result
}

// Run drains the prompt queue until the context is canceled. Prompts
// execute one at a time: the engine is shared, and a run owns its
// resources and routing table exclusively.
func (s *Server) Run(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Prompt queue started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("✅ Prompt queue stopped")
			return
		case job := <-s.queue:
			s.execute(ctx, job)
		}
	}
}

func (s *Server) execute(ctx context.Context, job queuedPrompt) {
	logger := ctxlog.FromContext(ctx).With("promptID", job.id)
	logger.Info("▶️ Executing prompt", "nodes", job.plan.Prompt.Len())

	g, err := dag.Build(ctx, job.plan)
	if err != nil {
		// The plan validated at submit time, so a build failure here is a bug.
		logger.Error("Failed to build scheduling graph", "error", err)
		s.feed.Publish(ctx, executor.Event{Type: executor.EventPromptDone, PromptID: job.id, Error: err.Error()})
		return
	}

	exec := executor.New(job.id, job.plan, g, s.registry, s.converter, executor.Options{
		Workers: s.workers,
		Events:  executor.MultiSink{s.feed, executor.LogSink{}},
	})
	if err := exec.Run(ctx); err != nil {
		logger.Warn("Prompt execution failed", "error", err)
		return
	}
	logger.Info("✅ Prompt executed")
}
