package engine

import (
	"context"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// pendingInputs accumulates the item batches delivered to a node that is not
// ready yet. A nil slot means the input has not received data; routing never
// delivers empty batches, so nil-ness is the arrival marker.
type pendingInputs struct {
	inputs  [][]models.ExecutionItem
	sources []models.ItemSource
}

// route distributes one node's output data to its downstream connections.
// Items emitted on output N reach only the connections declared on output N,
// in declaration order; outputs that produced no items feed nothing.
func (e *Engine) route(ctx context.Context, node *models.Node, outputs [][]models.ExecutionItem, runIndex int, queue []*task, pending map[string]*pendingInputs) []*task {
	connections := e.workflow.Connections[node.Name]

	for outputIndex, targets := range connections {
		var items []models.ExecutionItem
		if outputIndex < len(outputs) {
			items = outputs[outputIndex]
		}

		if len(items) == 0 {
			continue
		}

		source := models.ItemSource{
			PreviousNode:       node.Name,
			PreviousNodeOutput: outputIndex,
			PreviousNodeRun:    runIndex,
		}

		for _, conn := range targets {
			queue = e.deliver(ctx, conn.Node, conn.Index, items, source, queue, pending)
		}
	}

	return queue
}

// deliver hands one item batch to a target input slot and promotes the target
// to the ready queue once every required connected input has data.
func (e *Engine) deliver(ctx context.Context, targetName string, inputIndex int, items []models.ExecutionItem, source models.ItemSource, queue []*task, pending map[string]*pendingInputs) []*task {
	target := e.workflow.NodeByName(targetName)
	if target == nil || !e.inScope(targetName) {
		return queue
	}

	entry, ok := pending[targetName]
	if !ok {
		entry = &pendingInputs{}
		pending[targetName] = entry
	}

	for len(entry.inputs) <= inputIndex {
		entry.inputs = append(entry.inputs, nil)
	}

	entry.inputs[inputIndex] = append(entry.inputs[inputIndex], items...)
	entry.sources = append(entry.sources, source)

	if e.ready(ctx, target, entry) {
		queue = append(queue, &task{
			node:   target,
			inputs: entry.inputs,
			source: entry.sources,
		})

		delete(pending, targetName)
	}

	return queue
}

// ready reports whether every connected, non-optional input of the node has
// received at least one batch. Loop-back connections target optional inputs,
// so cycles stay bounded by data availability instead of structural analysis.
func (e *Engine) ready(ctx context.Context, node *models.Node, entry *pendingInputs) bool {
	specs := e.specsFor(ctx, node)

	for inputIndex := range e.connectedInputs[node.Name] {
		optional := inputIndex < len(specs) && specs[inputIndex].Optional
		if optional {
			continue
		}

		if inputIndex >= len(entry.inputs) || entry.inputs[inputIndex] == nil {
			return false
		}
	}

	return true
}

// specsFor returns the node's input slot declarations. When the handler
// cannot be built the node is treated as single-input; the real error
// surfaces when the node executes.
func (e *Engine) specsFor(ctx context.Context, node *models.Node) []protocol.InputSpec {
	if specs, ok := e.inputSpecs[node.Name]; ok {
		return specs
	}

	if _, err := e.handler(ctx, node); err != nil {
		return nil
	}

	return e.inputSpecs[node.Name]
}

// seedFresh builds the initial queue for a brand-new run: every start node of
// the graph receives the trigger input on its first slot.
func (e *Engine) seedFresh(input []models.ExecutionItem) []*task {
	if len(input) == 0 {
		input = []models.ExecutionItem{models.NewItem(nil)}
	}

	starts := e.workflow.StartNodes()

	queue := make([]*task, 0, len(starts))
	for _, node := range starts {
		if !e.inScope(node.Name) {
			continue
		}

		queue = append(queue, &task{
			node:   node,
			inputs: [][]models.ExecutionItem{input},
		})
	}

	return queue
}

// seedPartial builds the queue for a partial re-execution: the named start
// nodes are fed from the recorded output of their upstream nodes, falling
// back to the provided input when no prior run data covers them.
func (e *Engine) seedPartial(execution *models.Execution, input []models.ExecutionItem) []*task {
	queue := make([]*task, 0, len(execution.Data.StartNodes))

	for _, name := range execution.Data.StartNodes {
		node := e.workflow.NodeByName(name)
		if node == nil || node.Disabled || !e.inScope(name) {
			continue
		}

		inputs, sources := e.recordedInputs(execution, name)

		if inputs == nil {
			seed := input
			if len(seed) == 0 {
				seed = []models.ExecutionItem{models.NewItem(nil)}
			}

			inputs = [][]models.ExecutionItem{seed}
		}

		queue = append(queue, &task{node: node, inputs: inputs, source: sources})
	}

	return queue
}

// recordedInputs reconstructs a node's input batches from prior run data,
// reading the last recorded invocation of each upstream node.
func (e *Engine) recordedInputs(execution *models.Execution, name string) ([][]models.ExecutionItem, []models.ItemSource) {
	var (
		inputs  [][]models.ExecutionItem
		sources []models.ItemSource
	)

	for sourceName, outputs := range e.workflow.Connections {
		runs := execution.Data.RunData[sourceName]
		if len(runs) == 0 {
			continue
		}

		last := runs[len(runs)-1]

		for outputIndex, targets := range outputs {
			if outputIndex >= len(last.Data) || len(last.Data[outputIndex]) == 0 {
				continue
			}

			for _, conn := range targets {
				if conn.Node != name {
					continue
				}

				for len(inputs) <= conn.Index {
					inputs = append(inputs, nil)
				}

				inputs[conn.Index] = append(inputs[conn.Index], last.Data[outputIndex]...)
				sources = append(sources, models.ItemSource{
					PreviousNode:       sourceName,
					PreviousNodeOutput: outputIndex,
					PreviousNodeRun:    len(runs) - 1,
				})
			}
		}
	}

	return inputs, sources
}

// restoreStack rebuilds the ready queue and the partial accumulations of a
// parked run. Entries with every required connected input present become
// tasks; the rest go back to pending and wake up when the missing inputs
// arrive again.
func (e *Engine) restoreStack(ctx context.Context, execution *models.Execution, pending map[string]*pendingInputs) []*task {
	var queue []*task

	for _, parked := range execution.Data.NodeExecutionStack {
		node := e.workflow.NodeByName(parked.NodeName)
		if node == nil || !e.inScope(parked.NodeName) {
			continue
		}

		entry := &pendingInputs{inputs: parked.Inputs, sources: parked.Source}

		if e.ready(ctx, node, entry) {
			queue = append(queue, &task{node: node, inputs: parked.Inputs, source: parked.Source})

			continue
		}

		pending[parked.NodeName] = entry
	}

	return queue
}
