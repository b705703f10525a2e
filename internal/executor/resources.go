package executor

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/vk/promptgridgo/internal/ctxlog"
	"github.com/vk/promptgridgo/internal/dag"
	"github.com/vk/promptgridgo/internal/hcl"
)

// cleanupEntry is one parked destroy callback. once makes early destruction
// and the run-end sweep safe to race.
type cleanupEntry struct {
	name string
	once sync.Once
	fn   func()
}

// createResources brings up every declared resource in dependency order,
// parks the matching destroy callbacks, and primes the usage counts that
// drive early destruction.
func (e *Executor) createResources(ctx context.Context) error {
	for _, name := range e.plan.ResourceOrder {
		rc := e.plan.Resources[name]
		logger := ctxlog.FromContext(ctx).With("resource", name)
		logger.Info("▶️ Creating resource", "type", rc.Type)

		def, ok := e.registry.ResourceDefinitionRegistry[rc.Type]
		if !ok {
			return fmt.Errorf("unknown resource type '%s'", rc.Type)
		}
		if def.Lifecycle == nil {
			return fmt.Errorf("resource type '%s' has no lifecycle", rc.Type)
		}
		createHandler, ok := e.registry.ResourceHandlerRegistry[def.Lifecycle.Create]
		if !ok || createHandler.CreateFn == nil {
			return fmt.Errorf("create handler '%s' not registered", def.Lifecycle.Create)
		}
		destroyHandler, ok := e.registry.ResourceHandlerRegistry[def.Lifecycle.Destroy]
		if !ok || destroyHandler.DestroyFn == nil {
			return fmt.Errorf("destroy handler '%s' not registered", def.Lifecycle.Destroy)
		}

		logger.Debug("Decoding resource arguments.")
		values, err := hcl.EvaluateLiterals(rc.Arguments)
		if err != nil {
			return fmt.Errorf("resource '%s': %w", name, err)
		}
		var inputStruct any
		if createHandler.NewInput != nil {
			inputStruct = createHandler.NewInput()
			if err := e.converter.DecodeInputs(ctx, inputStruct, values, def.Inputs); err != nil {
				return fmt.Errorf("resource '%s': %w", name, err)
			}
		}

		logger.Debug("Calling resource create handler.", "handler", def.Lifecycle.Create)
		fn := reflect.ValueOf(createHandler.CreateFn)
		callArgs := []reflect.Value{reflect.ValueOf(ctx)}
		if inputStruct == nil {
			callArgs = append(callArgs, reflect.Zero(fn.Type().In(1)))
		} else {
			callArgs = append(callArgs, reflect.ValueOf(inputStruct))
		}
		results := fn.Call(callArgs)
		if errResult := results[1].Interface(); errResult != nil {
			return fmt.Errorf("resource '%s': %w", name, errResult.(error))
		}
		resourceObj := results[0].Interface()
		if resourceObj == nil {
			return fmt.Errorf("resource '%s': create handler returned no object", name)
		}

		e.resources[name] = resourceObj
		destroyFn := destroyHandler.DestroyFn
		e.pushCleanup(name, func() {
			logger.Info("🔥 Destroying resource")
			out := reflect.ValueOf(destroyFn).Call([]reflect.Value{reflect.ValueOf(resourceObj)})
			if len(out) == 1 {
				if derr, ok := out[0].Interface().(error); ok && derr != nil {
					logger.Warn("Resource destroy reported an error.", "error", derr)
				}
			}
		})
		logger.Info("✅ Resource created")
	}

	for _, wiring := range e.plan.Uses {
		for _, resName := range wiring {
			ref, ok := e.resourceRefs[resName]
			if !ok {
				ref = &atomic.Int32{}
				e.resourceRefs[resName] = ref
			}
			ref.Add(1)
		}
	}
	return nil
}

// pushCleanup parks a destroy callback on the LIFO cleanup stack.
func (e *Executor) pushCleanup(name string, fn func()) {
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()
	e.cleanups = append(e.cleanups, &cleanupEntry{name: name, fn: fn})
}

// releaseResources drops n's claim on each resource it uses and tears down
// any resource this node was the last consumer of.
func (e *Executor) releaseResources(ctx context.Context, n *dag.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, resName := range e.plan.Uses[n.ID] {
		ref, ok := e.resourceRefs[resName]
		if !ok {
			continue
		}
		if ref.Add(-1) == 0 {
			logger.Debug("Scheduling efficient destruction for resource.", "resourceID", resName)
			go e.destroyResource(resName)
		}
	}
}

// destroyResource runs one resource's parked cleanup early.
func (e *Executor) destroyResource(name string) {
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()
	for _, entry := range e.cleanups {
		if entry.name == name {
			entry.once.Do(entry.fn)
			return
		}
	}
}

// executeCleanupStack destroys every remaining resource in reverse creation
// order. It runs on success and failure alike.
func (e *Executor) executeCleanupStack(ctx context.Context) {
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()
	ctxlog.FromContext(ctx).Debug("Executing cleanup stack.", "entries", len(e.cleanups))
	for i := len(e.cleanups) - 1; i >= 0; i-- {
		e.cleanups[i].once.Do(e.cleanups[i].fn)
	}
}
