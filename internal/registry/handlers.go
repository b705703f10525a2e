package registry

import (
	"fmt"
	"log/slog"
	"reflect"
)

// RegisteredNode holds the compiled Go parts of a node type's lifecycle
// function. Fn has the shape
//
//	func(ctx context.Context, deps *Deps, input *Input) (*Output, error)
//
// where Deps and Input are the structs NewDeps and NewInput produce, and
// Output's `pgg` tagged fields supply the values for the manifest's output
// slots. Handlers that opt into AcceptsDependency get the reserved
// depends_on input added to their manifest definition; with
// PassthroughDependency set, the depends_on value is also re-emitted on an
// extra output slot.
type RegisteredNode struct {
	NewInput func() any
	NewDeps  func() any
	Fn       any

	AcceptsDependency     bool
	PassthroughDependency bool
}

// RegisterNode registers a Go function for a node type's on_run event.
func (r *Registry) RegisterNode(name string, handler *RegisteredNode) {
	if _, exists := r.HandlerRegistry[name]; exists {
		panic(fmt.Sprintf("node handler with name '%s' already registered", name))
	}
	slog.Debug("Registering node handler.", "name", name)
	r.HandlerRegistry[name] = handler
}

// RegisteredResource holds Go functions for a resource type's lifecycle.
// CreateFn builds the live object, DestroyFn releases it. The object
// returned by CreateFn must satisfy the interface registered for the
// resource type.
type RegisteredResource struct {
	NewInput  func() any
	CreateFn  any
	DestroyFn any
}

// RegisterResourceHandler registers Go functions for a resource type's
// lifecycle events.
func (r *Registry) RegisterResourceHandler(name string, handler *RegisteredResource) {
	if _, exists := r.ResourceHandlerRegistry[name]; exists {
		panic(fmt.Sprintf("resource handler with name '%s' already registered", name))
	}
	slog.Debug("Registering resource handler.", "name", name)
	r.ResourceHandlerRegistry[name] = handler
}

// RegisterResourceInterface registers the Go interface contract for a
// resource type. Node deps structs declare fields of this interface type to
// receive the live resource.
func (r *Registry) RegisterResourceInterface(resourceType string, iface reflect.Type) {
	if _, exists := r.ResourceInterfaceRegistry[resourceType]; exists {
		panic(fmt.Sprintf("interface for resource type '%s' already registered", resourceType))
	}
	slog.Debug("Registering resource interface.", "resourceType", resourceType, "interface", iface.String())
	r.ResourceInterfaceRegistry[resourceType] = iface
}
