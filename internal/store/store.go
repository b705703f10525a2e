// Package store persists named workflow definitions. Only definitions live
// here: execution results stay in the engine for the lifetime of a run and
// are never written to disk.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no workflow matches the requested id.
	ErrNotFound = errors.New("workflow not found")

	// ErrNameTaken is returned when saving a workflow whose name already
	// belongs to a different workflow.
	ErrNameTaken = errors.New("workflow name already in use")
)

// Workflow is one saved workflow definition.
type Workflow struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Store defines the persistence contract for workflow definitions.
type Store interface {
	SaveWorkflow(ctx context.Context, w Workflow) error
	GetWorkflow(ctx context.Context, id string) (Workflow, error)
	ListWorkflows(ctx context.Context) ([]Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	Close() error
}
