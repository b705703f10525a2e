package builder

import (
	"github.com/vk/promptgridgo/internal/config"
	"github.com/vk/promptgridgo/internal/graph"
)

// Result is the primary artifact of the builder: the complete, validated
// execution plan for one workflow.
type Result struct {
	// Prompt is the immutable graph snapshot the executor schedules.
	Prompt *graph.Prompt

	// Edges are ordering-only dependencies from depends_on. Unlike links
	// they carry no value and never count as output consumption.
	Edges []Edge

	// Uses maps a node id to its resource wiring: local name to resource
	// instance name.
	Uses map[string]map[string]string

	// Resources holds the workflow's resource instances by name.
	Resources map[string]*config.ResourceConfig

	// ResourceOrder lists resource names so that every depends_on target
	// comes before its dependers. Creation follows it; destruction walks it
	// backwards.
	ResourceOrder []string
}

// Edge is a pure execution-order constraint: To must not start before From
// has finished.
type Edge struct {
	From string
	To   string
}
