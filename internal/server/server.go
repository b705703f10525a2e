package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vk/promptgridgo/internal/config"
	"github.com/vk/promptgridgo/internal/registry"
	"github.com/vk/promptgridgo/internal/store"
)

// Config configures a new Server instance.
type Config struct {
	Registry  *registry.Registry
	Converter config.Converter
	Store     store.Store

	// Workers sizes the per-prompt worker pool. Zero picks the executor
	// default.
	Workers int

	// QueueSize caps how many accepted prompts may wait for the engine.
	// Zero means 16.
	QueueSize int

	Logger *slog.Logger
}

// Server is the HTTP surface of the engine.
type Server struct {
	registry  *registry.Registry
	converter config.Converter
	store     store.Store
	feed      *Feed
	workers   int
	queue     chan queuedPrompt
	logger    *slog.Logger
}

// New creates a new Server with the given configuration. Call Run to start
// draining the prompt queue.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("server: registry is required")
	}
	if cfg.Converter == nil {
		return nil, fmt.Errorf("server: converter is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("server: store is required")
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		registry:  cfg.Registry,
		converter: cfg.Converter,
		store:     cfg.Store,
		feed:      NewFeed(logger),
		workers:   cfg.Workers,
		queue:     make(chan queuedPrompt, queueSize),
		logger:    logger,
	}, nil
}

// Feed returns the websocket fan-out, which doubles as the event sink for
// queued prompts.
func (s *Server) Feed() *Feed {
	return s.feed
}

// Handler returns the http.Handler for all API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /prompt", s.handlePrompt)
	mux.HandleFunc("GET /ws", s.handleFeed)

	mux.HandleFunc("GET /workflows", s.handleWorkflowList)
	mux.HandleFunc("POST /workflows", s.handleWorkflowSave)
	mux.HandleFunc("GET /workflows/{id}", s.handleWorkflowGet)
	mux.HandleFunc("DELETE /workflows/{id}", s.handleWorkflowDelete)

	return mux
}

// Close releases the server's resources.
func (s *Server) Close() error {
	return s.store.Close()
}
