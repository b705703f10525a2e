package executor

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/registry"
)

// buildDepsStruct populates a handler's deps struct from the plan's
// resource wiring. Fields are matched by `pgg` tag against the node's uses
// entries; interface fields receive any live resource implementing them.
func (e *Executor) buildDepsStruct(ctx context.Context, id string, handler *registry.RegisteredNode) (any, error) {
	logger := ctxlog.FromContext(ctx)
	if handler.NewDeps == nil {
		return nil, nil
	}
	depsStruct := handler.NewDeps()

	wiring := e.plan.Uses[id]
	if len(wiring) == 0 {
		logger.Debug("Node has no resource wiring, returning empty deps.", "node", id)
		return depsStruct, nil
	}

	depsValue := reflect.ValueOf(depsStruct).Elem()
	depsType := depsValue.Type()

	for i := 0; i < depsValue.NumField(); i++ {
		field := depsType.Field(i)
		fieldLogger := logger.With("node", id, "goField", field.Name)

		tag := strings.Split(field.Tag.Get("pgg"), ",")[0]
		if tag == "" || tag == "-" {
			fieldLogger.Debug("Dependency field has no 'pgg' tag, skipping.")
			continue
		}

		resName, ok := wiring[tag]
		if !ok {
			fieldLogger.Debug("No matching entry in 'uses' wiring for key, skipping.", "key", tag)
			continue
		}

		instance, found := e.resources[resName]
		if !found {
			return nil, fmt.Errorf("node '%s' requires resource '%s', which has not been created", id, resName)
		}

		instanceType := reflect.TypeOf(instance)
		fieldType := field.Type

		if fieldType.Kind() == reflect.Interface {
			if !instanceType.Implements(fieldType) {
				err := fmt.Errorf("type mismatch for '%s': resource of type %v does not implement required interface %v", tag, instanceType, fieldType)
				fieldLogger.Error("Dependency injection failed.", "error", err)
				return nil, err
			}
		} else if !instanceType.AssignableTo(fieldType) {
			err := fmt.Errorf("type mismatch for '%s': resource of type %v is not assignable to field of type %v", tag, instanceType, fieldType)
			fieldLogger.Error("Dependency injection failed.", "error", err)
			return nil, err
		}

		fieldLogger.Debug("Injecting resource dependency.")
		depsValue.Field(i).Set(reflect.ValueOf(instance))
	}

	logger.Debug("Successfully built dependency struct.", "node", id)
	return depsStruct, nil
}
