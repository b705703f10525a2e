package testutil

import "github.com/vk/promptgridgo/internal/registry"

// SimpleModule is a test helper for easily creating a mock module that
// registers a single node or resource handler.
type SimpleModule struct {
	NodeName string
	Node     *registry.RegisteredNode

	ResourceName string
	Resource     *registry.RegisteredResource
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.NodeName != "" && m.Node != nil {
		r.RegisterNode(m.NodeName, m.Node)
	}
	if m.ResourceName != "" && m.Resource != nil {
		r.RegisterResourceHandler(m.ResourceName, m.Resource)
	}
}
