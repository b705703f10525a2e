package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vk/promptgridgo/internal/builder"
	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/dag"
	"github.com/vk/promptgridgo/internal/executor"
	"github.com/vk/promptgridgo/internal/graph"
	"github.com/vk/promptgridgo/internal/server"
	"github.com/vk/promptgridgo/internal/store"
)

// Run executes the main application logic based on the provided configuration.
// In serve mode it blocks until ctx is cancelled; otherwise it executes the
// configured workflow once and returns.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.Serve {
		return a.serve(ctx)
	}

	plan, err := a.plan(ctx)
	if err != nil {
		return err
	}

	a.logger.Debug("Building scheduling graph from execution plan...")
	g, err := dag.Build(ctx, plan)
	if err != nil {
		return fmt.Errorf("failed to build scheduling graph: %w", err)
	}
	a.logger.Debug("Scheduling graph built.", "node_count", g.Len())

	if g.Len() == 0 {
		a.logger.Warn("No nodes found in graph, execution not required")
		a.logger.Debug("App.Run method finished.")
		return nil
	}

	promptID := uuid.NewString()
	a.logger.Info("🚀 Starting concurrent execution...", "promptID", promptID)
	exec := executor.New(promptID, plan, g, a.registry, a.converter, executor.Options{
		Workers: a.config.WorkerCount,
		Events:  executor.LogSink{},
	})
	if err := exec.Run(ctx); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Execution finished.")

	a.logger.Debug("App.Run method finished.")
	return nil
}

// plan turns the configured workflow into an execution plan. HCL workflows
// were already loaded into the config model at startup; JSON wire prompts are
// read and planned here.
func (a *App) plan(ctx context.Context) (*builder.Result, error) {
	if isWirePromptPath(a.config.WorkflowPath) {
		raw, err := os.ReadFile(a.config.WorkflowPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file: %w", err)
		}
		p, err := graph.ParsePrompt(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %q: %w", a.config.WorkflowPath, err)
		}
		return builder.PlanPrompt(ctx, p, a.registry)
	}
	return builder.Build(ctx, a.model, a.registry)
}

// serve runs the API server until ctx is cancelled.
func (a *App) serve(ctx context.Context) error {
	st, err := store.NewStore(a.config.StoreDSN)
	if err != nil {
		return fmt.Errorf("failed to open workflow store: %w", err)
	}

	srv, err := server.New(server.Config{
		Registry:  a.registry,
		Converter: a.converter,
		Store:     st,
		Workers:   a.config.WorkerCount,
		Logger:    a.logger,
	})
	if err != nil {
		st.Close()
		return err
	}
	defer srv.Close()

	// The prompt queue consumer stops with the server.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go srv.Run(runCtx)

	httpServer := &http.Server{
		Addr:    a.config.ListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		<-ctx.Done()
		a.logger.Info("🩺 Shutting down API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("API server shutdown failed", "error", err)
		}
	}()

	a.logger.Info("🩺 API server starting", "address", fmt.Sprintf("http://localhost%s", a.config.ListenAddr))
	// ListenAndServe returns ErrServerClosed on graceful shutdown. We check
	// for this specific error to avoid reporting a false positive.
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}

	a.logger.Debug("API server shut down gracefully.")
	return nil
}
