package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/promptgridgo/internal/config"
	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot is a struct used to decode all possible top-level blocks from any
// file. Manifests and workflows may live in the same file or in separate
// trees; the loader does not care.
type fileRoot struct {
	NodeTypes     []*schema.NodeDefinition     `hcl:"node_type,block"`
	ResourceTypes []*schema.ResourceDefinition `hcl:"resource_type,block"`
	Nodes         []*schema.Node               `hcl:"node,block"`
	Resources     []*schema.Resource           `hcl:"resource,block"`
	Remain        hcl.Body                     `hcl:",remain"`
}

// Load orchestrates the entire HCL configuration loading process. It is
// agnostic to the origin of the paths and parses any valid block from any
// file found under them.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := &config.Model{
		Nodes:     make(map[string]*config.NodeDefinition),
		Resources: make(map[string]*config.ResourceDefinition),
		Workflow:  &config.Workflow{},
	}

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		// Translate and merge all discovered blocks into the model.
		for _, nodeType := range root.NodeTypes {
			def, err := l.translateNodeDefinition(ctx, nodeType)
			if err != nil {
				return nil, nil, err
			}
			if _, exists := model.Nodes[def.Type]; exists {
				logger.Warn("Duplicate node_type manifest found, overwriting.", "type", def.Type, "file", file)
			}
			model.Nodes[def.Type] = def
		}
		for _, resourceType := range root.ResourceTypes {
			def, err := l.translateResourceDefinition(ctx, resourceType)
			if err != nil {
				return nil, nil, err
			}
			if _, exists := model.Resources[def.Type]; exists {
				logger.Warn("Duplicate resource_type manifest found, overwriting.", "type", def.Type, "file", file)
			}
			model.Resources[def.Type] = def
		}
		for _, node := range root.Nodes {
			model.Workflow.Nodes = append(model.Workflow.Nodes, l.translateNode(node))
		}
		for _, resource := range root.Resources {
			model.Workflow.Resources = append(model.Workflow.Resources, l.translateResource(resource))
		}
	}

	logger.Debug("HCL loading complete.",
		"node_types", len(model.Nodes),
		"resource_types", len(model.Resources),
		"nodes", len(model.Workflow.Nodes),
		"resources", len(model.Workflow.Resources),
	)
	return model, NewConverter(), nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl
// files found. A path that does not exist is skipped, not an error.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}

		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return allFiles, nil
}
