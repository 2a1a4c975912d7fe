// Package registry resolves declared node types to executable implementations.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// Registry maps (type name, type version) to a node factory. Lookups happen
// once per node invocation; factories are registered at startup.
type Registry struct {
	logger    *slog.Logger
	factories map[string]map[int]protocol.NodeFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[string]map[int]protocol.NodeFactory),
	}
}

// Register adds a node factory, replacing any factory previously registered
// for the same type and version.
func (r *Registry) Register(factory protocol.NodeFactory) {
	versions, ok := r.factories[factory.Type()]
	if !ok {
		versions = make(map[int]protocol.NodeFactory)
		r.factories[factory.Type()] = versions
	}

	versions[factory.Version()] = factory
}

// Factory resolves a type name and version. Version 0 selects the highest
// registered version.
func (r *Registry) Factory(typeName string, version int) (protocol.NodeFactory, error) {
	versions, ok := r.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("node type %q not registered", typeName)
	}

	if version == 0 {
		for v := range versions {
			if v > version {
				version = v
			}
		}
	}

	factory, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("node type %q has no version %d", typeName, version)
	}

	return factory, nil
}

// CreateHandler validates a node's parameters against the type's schema and
// builds a handler instance for it.
func (r *Registry) CreateHandler(ctx context.Context, node *models.Node) (protocol.NodeHandler, error) {
	factory, err := r.Factory(node.Type, node.TypeVersion)
	if err != nil {
		return nil, err
	}

	if err := r.validateParameters(factory, node); err != nil {
		return nil, err
	}

	return factory.Create(ctx, node)
}

// Types returns the registered type names, for diagnostics.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for typeName := range r.factories {
		types = append(types, typeName)
	}

	return types
}

func (r *Registry) validateParameters(factory protocol.NodeFactory, node *models.Node) error {
	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	parameters := node.Parameters
	if parameters == nil {
		parameters = map[string]any{}
	}

	// Expression-valued parameters are resolved per item at execution time;
	// they cannot be schema-checked statically.
	if containsExpression(parameters) {
		return nil
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema for node type %q: %w", node.Type, err)
	}

	documentJSON, err := json.Marshal(parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters of node %q: %w", node.Name, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(documentJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to validate parameters of node %q: %w", node.Name, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid parameters for node %q: %s", node.Name, strings.Join(details, "; "))
	}

	return nil
}

func containsExpression(value any) bool {
	switch typed := value.(type) {
	case string:
		return strings.HasPrefix(typed, "={{")
	case map[string]any:
		for _, val := range typed {
			if containsExpression(val) {
				return true
			}
		}
	case []any:
		for _, val := range typed {
			if containsExpression(val) {
				return true
			}
		}
	}

	return false
}
