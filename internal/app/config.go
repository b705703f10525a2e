package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// WorkflowPath points at an .hcl workflow file or directory, or a .json
	// prompt file in the wire format.
	WorkflowPath string

	// ModulesPath points at the node-type manifest files.
	ModulesPath string

	LogFormat string
	LogLevel  string

	// WorkerCount sizes the executor pool. Zero picks the executor default.
	WorkerCount int

	// Serve starts the API server on ListenAddr instead of running a
	// workflow once.
	Serve      bool
	ListenAddr string
	StoreDSN   string
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" && !cfg.Serve {
		return nil, errors.New("a workflow path is required unless running in serve mode")
	}
	if cfg.Serve && cfg.ListenAddr == "" {
		return nil, errors.New("serve mode requires a listen address")
	}
	return &cfg, nil
}
