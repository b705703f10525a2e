package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/vk/promptgridgo/internal/builder"
	"github.com/vk/promptgridgo/internal/executor"
	"github.com/vk/promptgridgo/internal/graph"
	"github.com/vk/promptgridgo/internal/store"
)

// maxPromptBytes bounds request bodies on the prompt and workflow routes.
const maxPromptBytes = 4 << 20

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// handlePrompt accepts a wire-format prompt, validates it against the
// registry, assigns it a prompt id, and queues it for execution.
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPromptBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read prompt: %w", err))
		return
	}

	plan, err := s.compilePrompt(r.Context(), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := uuid.NewString()

	// Announce before enqueueing so feed clients always see queued precede
	// this prompt's execution events.
	s.feed.Publish(r.Context(), executor.Event{Type: executor.EventQueued, PromptID: id})
	select {
	case s.queue <- queuedPrompt{id: id, plan: plan}:
	default:
		s.feed.Publish(r.Context(), executor.Event{Type: executor.EventPromptDone, PromptID: id, Error: "prompt queue is full"})
		writeError(w, http.StatusServiceUnavailable, errors.New("prompt queue is full"))
		return
	}
	s.logger.Info("Prompt queued.", "promptID", id, "nodes", plan.Prompt.Len())

	writeJSON(w, http.StatusAccepted, PromptResponse{PromptID: id})
}

// compilePrompt parses and validates a wire-format prompt into an execution
// plan.
func (s *Server) compilePrompt(ctx context.Context, body []byte) (*builder.Result, error) {
	p, err := graph.ParsePrompt(body)
	if err != nil {
		return nil, err
	}
	return builder.PlanPrompt(ctx, p, s.registry)
}

func (s *Server) handleWorkflowList(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.store.ListWorkflows(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if workflows == nil {
		workflows = []store.Workflow{}
	}
	writeJSON(w, http.StatusOK, workflows)
}

// handleWorkflowSave stores a named definition. Definitions are validated
// structurally only: the node types they reference may belong to manifests
// loaded by a later process.
func (s *Server) handleWorkflowSave(w http.ResponseWriter, r *http.Request) {
	var req SaveWorkflowRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPromptBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("workflow name is required"))
		return
	}
	if _, err := graph.ParsePrompt(req.Definition); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	wf := store.Workflow{ID: uuid.NewString(), Name: req.Name, Definition: req.Definition}
	if err := s.store.SaveWorkflow(r.Context(), wf); err != nil {
		if errors.Is(err, store.ErrNameTaken) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	saved, err := s.store.GetWorkflow(r.Context(), wf.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("Workflow saved.", "id", saved.ID, "name", saved.Name)
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleWorkflowGet(w http.ResponseWriter, r *http.Request) {
	wf, err := s.store.GetWorkflow(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleWorkflowDelete(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteWorkflow(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("Workflow deleted.", "id", r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, ErrorResponse{Error: err.Error()})
}
