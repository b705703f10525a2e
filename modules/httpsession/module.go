// Package httpsession provides a shared HTTP session as a managed resource.
// The live object is a resty client configured once at create time and
// injected into every node that declares a uses entry for it.
package httpsession

import (
	"context"
	"reflect"
	"time"

	"resty.dev/v3"

	"github.com/vk/promptgridgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for creating an httpsession resource.
type Input struct {
	BaseURL    string  `pgg:"base_url"`
	TimeoutMS  float64 `pgg:"timeout_ms"`
	RetryCount float64 `pgg:"retry_count"`
}

// CreateSession is the 'create' handler. It returns the live client that
// will be shared by every consumer of the resource.
func CreateSession(ctx context.Context, input *Input) (*resty.Client, error) {
	client := resty.New()
	if input.BaseURL != "" {
		client.SetBaseURL(input.BaseURL)
	}
	if input.TimeoutMS > 0 {
		client.SetTimeout(time.Duration(input.TimeoutMS) * time.Millisecond)
	}
	if input.RetryCount > 0 {
		client.SetRetryCount(int(input.RetryCount))
	}
	return client, nil
}

// DestroySession is the 'destroy' handler. It releases the client's idle
// connections.
func DestroySession(client *resty.Client) error {
	return client.Close()
}

// Register registers the resource handlers and interface with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterResourceHandler("CreateSession", &registry.RegisteredResource{
		NewInput: func() any { return new(Input) },
		CreateFn: CreateSession,
	})
	r.RegisterResourceHandler("DestroySession", &registry.RegisteredResource{
		DestroyFn: DestroySession,
	})
	r.RegisterResourceInterface("httpsession", reflect.TypeOf((*resty.Client)(nil)))
}
