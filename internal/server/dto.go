package server

import "encoding/json"

// PromptResponse acknowledges an accepted prompt submission.
type PromptResponse struct {
	PromptID string `json:"prompt_id"`
}

// SaveWorkflowRequest creates a named workflow definition. The definition
// is a prompt in the same wire format POST /prompt accepts.
type SaveWorkflowRequest struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

// ErrorResponse carries a machine-readable error message.
type ErrorResponse struct {
	Error string `json:"error"`
}
