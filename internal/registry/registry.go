package registry

import (
	"reflect"

	"github.com/vk/promptgridgo/internal/config"
)

// Module is the interface that all core modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds all the registered handlers, definitions, and interfaces for
// a single application instance.
type Registry struct {
	HandlerRegistry            map[string]*RegisteredNode
	ResourceHandlerRegistry    map[string]*RegisteredResource
	DefinitionRegistry         map[string]*config.NodeDefinition
	ResourceDefinitionRegistry map[string]*config.ResourceDefinition
	ResourceInterfaceRegistry  map[string]reflect.Type
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		HandlerRegistry:            make(map[string]*RegisteredNode),
		ResourceHandlerRegistry:    make(map[string]*RegisteredResource),
		DefinitionRegistry:         make(map[string]*config.NodeDefinition),
		ResourceDefinitionRegistry: make(map[string]*config.ResourceDefinition),
		ResourceInterfaceRegistry:  make(map[string]reflect.Type),
	}
}

// PopulateDefinitionsFromModel copies the loaded manifest definitions from
// the config model into the registry. Node types whose handler opted into
// the dependency input get their definition wrapped here, so the manifest
// on disk never has to declare the reserved input itself.
func (r *Registry) PopulateDefinitionsFromModel(model *config.Model) {
	for key, def := range model.Nodes {
		if def.Lifecycle != nil {
			if handler, ok := r.HandlerRegistry[def.Lifecycle.OnRun]; ok && handler.AcceptsDependency {
				def = WithDependencyInput(def, handler.PassthroughDependency)
			}
		}
		r.DefinitionRegistry[key] = def
	}
	for key, def := range model.Resources {
		r.ResourceDefinitionRegistry[key] = def
	}
}

// NodeDefinition returns the definition registered for a node type.
func (r *Registry) NodeDefinition(nodeType string) (*config.NodeDefinition, bool) {
	def, ok := r.DefinitionRegistry[nodeType]
	return def, ok
}

// NodeHandler returns the Go handler for a node type's on_run event.
func (r *Registry) NodeHandler(def *config.NodeDefinition) (*RegisteredNode, bool) {
	if def == nil || def.Lifecycle == nil || def.Lifecycle.OnRun == "" {
		return nil, false
	}
	handler, ok := r.HandlerRegistry[def.Lifecycle.OnRun]
	return handler, ok
}
