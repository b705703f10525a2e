// Package apicall provides a node that performs one HTTP request against a
// shared httpsession resource.
package apicall

import (
	"context"
	"fmt"
	"strings"

	"resty.dev/v3"

	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/execctx"
	"github.com/vk/promptgridgo/internal/registry"
)

// Output slots as addressed by links and the manifest.
const (
	SlotStatus     = 0
	SlotBody       = 1
	SlotDurationMS = 2
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the apicall node.
type Input struct {
	URL     string            `pgg:"url"`
	Method  string            `pgg:"method"`
	Body    string            `pgg:"body"`
	Headers map[string]string `pgg:"headers"`
}

// Deps declares the shared session injected by the executor.
type Deps struct {
	Session *resty.Client `pgg:"session"`
}

// Output carries the response fields, one per declared slot.
type Output struct {
	Status     float64 `pgg:"status"`
	Body       string  `pgg:"body"`
	DurationMS float64 `pgg:"duration_ms"`
}

// OnRunApiCall performs the request. The response body is only copied into
// the output when a downstream link consumes that slot.
func OnRunApiCall(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx)

	req := deps.Session.R().SetContext(ctx)
	for k, v := range input.Headers {
		req.SetHeader(k, v)
	}
	if input.Body != "" {
		req.SetBody(input.Body)
	}

	method := strings.ToUpper(input.Method)
	logger.Debug("Performing HTTP request.", "method", method, "url", input.URL)
	resp, err := req.Execute(method, input.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, input.URL, err)
	}

	out := &Output{
		Status:     float64(resp.StatusCode()),
		DurationMS: float64(resp.Duration().Milliseconds()),
	}
	if execctx.IsOutputNeeded(ctx, SlotBody) {
		out.Body = resp.String()
	}
	logger.Debug("HTTP request completed.", "status", resp.StatusCode(), "durationMs", out.DurationMS)
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterNode("OnRunApiCall", &registry.RegisteredNode{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunApiCall,
	})
}
