// Package expression resolves templated node parameters against per-item
// execution context.
package expression

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/weftlabs/weft/pkg/models"
)

const (
	exprPrefix = "={{"
	exprSuffix = "}}"
)

// Env is the evaluation environment for one item. Keys become top-level
// variables inside expressions.
type Env map[string]any

// NewEnv builds the environment for resolving one item's parameters:
// the current item payload, sibling node outputs, workflow static data and
// execution identity.
func NewEnv(item models.ExecutionItem, itemIndex int, execution *models.Execution, workflow *models.Workflow) Env {
	nodes := make(map[string]any)

	if execution != nil && execution.Data != nil {
		for name, runs := range execution.Data.RunData {
			if len(runs) == 0 {
				continue
			}

			last := runs[len(runs)-1]
			if len(last.Data) > 0 && len(last.Data[0]) > 0 {
				items := make([]any, 0, len(last.Data[0]))
				for _, it := range last.Data[0] {
					items = append(items, it.JSON)
				}

				nodes[name] = map[string]any{"json": items[0], "items": items}
			}
		}
	}

	env := Env{
		"json":  item.JSON,
		"item":  map[string]any{"json": item.JSON, "index": itemIndex},
		"index": itemIndex,
		"nodes": nodes,
	}

	if workflow != nil {
		env["workflow"] = map[string]any{"id": workflow.ID, "name": workflow.Name}
		env["static"] = workflow.StaticData
	}

	if execution != nil {
		env["execution"] = map[string]any{"id": execution.ID, "mode": string(execution.Mode)}
	}

	return env
}

// Resolver evaluates "={{ ... }}" template strings. Compiled programs are
// cached and reused across goroutines.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewResolver creates a resolver with an empty program cache.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]*vm.Program)}
}

// IsExpression reports whether a string value is a template expression.
func IsExpression(value string) bool {
	return strings.HasPrefix(value, exprPrefix) && strings.HasSuffix(value, exprSuffix)
}

// Resolve walks a parameter value and evaluates every expression string in
// it against env. Maps and slices are resolved deeply; all other values pass
// through unchanged.
func (r *Resolver) Resolve(value any, env Env) (any, error) {
	switch typed := value.(type) {
	case string:
		if !IsExpression(typed) {
			return typed, nil
		}

		return r.evaluate(typed, env)
	case map[string]any:
		resolved := make(map[string]any, len(typed))

		for key, val := range typed {
			out, err := r.Resolve(val, env)
			if err != nil {
				return nil, err
			}

			resolved[key] = out
		}

		return resolved, nil
	case []any:
		resolved := make([]any, len(typed))

		for i, val := range typed {
			out, err := r.Resolve(val, env)
			if err != nil {
				return nil, err
			}

			resolved[i] = out
		}

		return resolved, nil
	default:
		return value, nil
	}
}

// ResolveParameters resolves a node's full parameter map for one item.
func (r *Resolver) ResolveParameters(parameters map[string]any, env Env) (map[string]any, error) {
	resolved, err := r.Resolve(parameters, env)
	if err != nil {
		return nil, err
	}

	if resolved == nil {
		return map[string]any{}, nil
	}

	out, ok := resolved.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parameters resolved to %T, expected object", resolved)
	}

	return out, nil
}

func (r *Resolver) evaluate(value string, env Env) (any, error) {
	source := strings.TrimSuffix(strings.TrimPrefix(value, exprPrefix), exprSuffix)
	source = strings.TrimSpace(source)

	program, err := r.getOrCompile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", source, err)
	}

	out, err := vm.Run(program, map[string]any(env))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", source, err)
	}

	return out, nil
}

func (r *Resolver) getOrCompile(source string) (*vm.Program, error) {
	r.mu.RLock()
	program, ok := r.cache[source]
	r.mu.RUnlock()

	if ok {
		return program, nil
	}

	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[source] = program
	r.mu.Unlock()

	return program, nil
}
