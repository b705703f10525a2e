package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/promptgridgo/internal/config"
	"github.com/vk/promptgridgo/internal/ctxlog"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()
var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// ValidateRegistry performs a strict parity check between manifests and Go
// code: handler signatures, input presence and types, output coverage, and
// resource wiring. It runs once at startup so that a drifted manifest fails
// the boot instead of some prompt three hours in.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string

	for nodeType, def := range r.DefinitionRegistry {
		handler, ok := r.NodeHandler(def)
		if !ok {
			continue
		}
		errs = append(errs, r.validateNodeFn(nodeType, handler)...)
		errs = append(errs, r.validateInputs(ctx, nodeType, def, handler)...)
		errs = append(errs, r.validateOutputs(nodeType, def, handler)...)
		errs = append(errs, r.validateUses(nodeType, def, handler)...)
	}

	for resourceType, def := range r.ResourceDefinitionRegistry {
		errs = append(errs, r.validateResourceFns(resourceType, def)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// validateResourceFns checks a resource type's lifecycle wiring: both
// handlers registered, CreateFn shaped func(ctx, input) (object, error),
// DestroyFn taking the live object.
func (r *Registry) validateResourceFns(resourceType string, def *config.ResourceDefinition) []string {
	if def.Lifecycle == nil {
		return []string{fmt.Sprintf("resource '%s': manifest has no lifecycle block", resourceType)}
	}
	var errs []string

	create, ok := r.ResourceHandlerRegistry[def.Lifecycle.Create]
	if !ok || create.CreateFn == nil {
		errs = append(errs, fmt.Sprintf("resource '%s': create handler '%s' not registered", resourceType, def.Lifecycle.Create))
	} else {
		fnType := reflect.TypeOf(create.CreateFn)
		if fnType.Kind() != reflect.Func || fnType.NumIn() != 2 || !fnType.In(0).Implements(contextType) ||
			fnType.NumOut() != 2 || !fnType.Out(1).Implements(errorType) {
			errs = append(errs, fmt.Sprintf("resource '%s': CreateFn must be func(context.Context, input) (object, error)", resourceType))
		}
	}

	destroy, ok := r.ResourceHandlerRegistry[def.Lifecycle.Destroy]
	if !ok || destroy.DestroyFn == nil {
		errs = append(errs, fmt.Sprintf("resource '%s': destroy handler '%s' not registered", resourceType, def.Lifecycle.Destroy))
	} else {
		fnType := reflect.TypeOf(destroy.DestroyFn)
		if fnType.Kind() != reflect.Func || fnType.NumIn() != 1 {
			errs = append(errs, fmt.Sprintf("resource '%s': DestroyFn must take the live object", resourceType))
		}
	}
	return errs
}

// validateNodeFn checks the handler function shape the executor will invoke:
// func(ctx, *Deps, *Input) (*Output, error).
func (r *Registry) validateNodeFn(nodeType string, handler *RegisteredNode) []string {
	if handler.Fn == nil {
		return []string{fmt.Sprintf("node '%s': handler has no Fn", nodeType)}
	}
	fnType := reflect.TypeOf(handler.Fn)
	if fnType.Kind() != reflect.Func {
		return []string{fmt.Sprintf("node '%s': handler Fn is %s, not a function", nodeType, fnType.Kind())}
	}

	var errs []string
	if fnType.NumIn() != 3 || !fnType.In(0).Implements(contextType) {
		errs = append(errs, fmt.Sprintf("node '%s': Fn must take (context.Context, deps, input)", nodeType))
	}
	if fnType.NumOut() != 2 || !fnType.Out(1).Implements(errorType) {
		errs = append(errs, fmt.Sprintf("node '%s': Fn must return (output, error)", nodeType))
	}
	return errs
}

// taggedFields collects the exported struct fields keyed by their `pgg` tag.
func taggedFields(structType reflect.Type) map[string]reflect.StructField {
	fields := make(map[string]reflect.StructField)
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		tagName := strings.Split(field.Tag.Get("pgg"), ",")[0]
		if tagName != "" && tagName != "-" {
			fields[tagName] = field
		}
	}
	return fields
}

func (r *Registry) validateInputs(ctx context.Context, nodeType string, def *config.NodeDefinition, handler *RegisteredNode) []string {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	manifestInputs := make(map[string]struct{}, len(def.Inputs))
	for name := range def.Inputs {
		manifestInputs[name] = struct{}{}
	}
	delete(manifestInputs, DependsOnInput) // reserved, consumed by the runtime

	if handler.NewInput == nil {
		if len(manifestInputs) > 0 {
			errs = append(errs, fmt.Sprintf("node '%s': manifest declares inputs, but Go handler has no input struct", nodeType))
		}
		return errs
	}

	inputType := reflect.TypeOf(handler.NewInput())
	if inputType.Kind() == reflect.Ptr {
		inputType = inputType.Elem()
	}
	if inputType.Kind() != reflect.Struct {
		return []string{fmt.Sprintf("node '%s': NewInput must produce a struct, got %s", nodeType, inputType.Kind())}
	}

	goInputs := taggedFields(inputType)

	for name := range goInputs {
		if _, ok := manifestInputs[name]; !ok {
			errs = append(errs, fmt.Sprintf("node '%s': Go struct has field for input '%s' which is not declared in manifest", nodeType, name))
		}
	}
	for name := range manifestInputs {
		if _, ok := goInputs[name]; !ok {
			errs = append(errs, fmt.Sprintf("node '%s': manifest declares input '%s' which is not found in Go struct", nodeType, name))
		}
	}

	for name, inputDef := range def.Inputs {
		goField, ok := goInputs[name]
		if !ok {
			continue // already handled by the presence check
		}

		manifestType := inputDef.Type
		if manifestType.Equals(cty.DynamicPseudoType) {
			logger.Debug("Manifest input has 'type = any', static type checking disabled for it.", "node", nodeType, "input", name)
			continue
		}
		if inputDef.List {
			// A list input declares its element type; the Go field holds the
			// whole batch.
			manifestType = cty.List(manifestType)
		}

		goFieldType, err := gocty.ImpliedType(reflect.Zero(goField.Type).Interface())
		if err != nil {
			errs = append(errs, fmt.Sprintf("node '%s', input '%s': could not imply cty type from Go field type %s: %v", nodeType, name, goField.Type, err))
			continue
		}

		if !manifestType.Equals(goFieldType) {
			errs = append(errs, fmt.Sprintf("node '%s', input '%s': type mismatch. Manifest requires '%s' but Go struct field '%s' provides '%s'",
				nodeType, name, manifestType.FriendlyName(), goField.Name, goFieldType.FriendlyName()))
		}
	}
	return errs
}

// validateOutputs checks that every manifest output (except the runtime
// filled passthrough) is backed by a field of the handler's output struct.
func (r *Registry) validateOutputs(nodeType string, def *config.NodeDefinition, handler *RegisteredNode) []string {
	outputDefs := make(map[string]struct{}, len(def.Outputs))
	for name := range def.Outputs {
		outputDefs[name] = struct{}{}
	}
	delete(outputDefs, PassthroughOutput) // reserved, filled by the runtime
	if len(outputDefs) == 0 {
		return nil
	}

	fnType := reflect.TypeOf(handler.Fn)
	if fnType == nil || fnType.Kind() != reflect.Func || fnType.NumOut() < 1 {
		return nil // shape problems are reported by validateNodeFn
	}
	outType := fnType.Out(0)
	if outType == reflect.TypeOf((*Expansion)(nil)) {
		// Expanding handlers map their slots at run time.
		return nil
	}
	if outType.Kind() == reflect.Ptr {
		outType = outType.Elem()
	}
	if outType.Kind() != reflect.Struct {
		// Map shaped outputs are matched by key at run time.
		return nil
	}

	goOutputs := taggedFields(outType)
	var errs []string
	for name := range outputDefs {
		if _, ok := goOutputs[name]; !ok {
			errs = append(errs, fmt.Sprintf("node '%s': manifest declares output '%s' which is not found in Go output struct", nodeType, name))
		}
	}
	return errs
}

// validateUses checks the resource wiring: every manifest `uses` entry must
// have a deps struct field of the registered interface type, and vice versa.
func (r *Registry) validateUses(nodeType string, def *config.NodeDefinition, handler *RegisteredNode) []string {
	if handler.NewDeps == nil {
		if len(def.Uses) > 0 {
			return []string{fmt.Sprintf("node '%s': manifest declares uses, but Go handler has no deps struct", nodeType)}
		}
		return nil
	}

	depsType := reflect.TypeOf(handler.NewDeps())
	if depsType.Kind() == reflect.Ptr {
		depsType = depsType.Elem()
	}
	if depsType.Kind() != reflect.Struct {
		return []string{fmt.Sprintf("node '%s': NewDeps must produce a struct, got %s", nodeType, depsType.Kind())}
	}

	goDeps := taggedFields(depsType)
	var errs []string

	for localName, use := range def.Uses {
		field, ok := goDeps[localName]
		if !ok {
			errs = append(errs, fmt.Sprintf("node '%s': manifest declares uses '%s' which is not found in Go deps struct", nodeType, localName))
			continue
		}
		iface, registered := r.ResourceInterfaceRegistry[use.ResourceType]
		if !registered {
			errs = append(errs, fmt.Sprintf("node '%s', uses '%s': no interface registered for resource type '%s'", nodeType, localName, use.ResourceType))
			continue
		}
		if field.Type != iface {
			errs = append(errs, fmt.Sprintf("node '%s', uses '%s': deps field '%s' is %s, want %s", nodeType, localName, field.Name, field.Type, iface))
		}
	}
	for localName := range goDeps {
		if _, ok := def.Uses[localName]; !ok {
			errs = append(errs, fmt.Sprintf("node '%s': Go deps struct has field for uses '%s' which is not declared in manifest", nodeType, localName))
		}
	}
	return errs
}
