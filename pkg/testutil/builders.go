// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// CreateTestNode creates a test node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		Name:       "Test Node",
		Type:       "noop",
		Parameters: map[string]any{},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithType sets the node type.
func WithType(typeName string) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = typeName
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// WithParameters sets the node parameters.
func WithParameters(parameters map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Parameters = parameters
	}
}

// CreateTestWorkflow creates a minimal valid workflow around the given nodes.
func CreateTestWorkflow(nodes []*models.Node, connections models.Connections) *models.Workflow {
	return &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Status:      models.WorkflowStatusActive,
		Nodes:       nodes,
		Connections: connections,
	}
}

// CreateTestExecution creates a fresh execution for the given workflow.
func CreateTestExecution(workflowID string) *models.Execution {
	return models.NewExecution(uuid.New().String(), workflowID, models.ModeManual)
}

// Items builds execution items from JSON payloads.
func Items(payloads ...map[string]any) []models.ExecutionItem {
	items := make([]models.ExecutionItem, 0, len(payloads))
	for _, payload := range payloads {
		items = append(items, models.NewItem(payload))
	}

	return items
}

// CreateExecuteRequest builds a node invocation request whose parameters
// resolve to the node's raw parameter map for every item index.
func CreateExecuteRequest(node *models.Node, inputs [][]models.ExecutionItem) *protocol.ExecuteRequest {
	return &protocol.ExecuteRequest{
		Node:   node,
		Inputs: inputs,
		Parameters: func(int) (map[string]any, error) {
			return node.Parameters, nil
		},
		Logger: slog.Default(),
	}
}
