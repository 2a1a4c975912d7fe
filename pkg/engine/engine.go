// Package engine drives a workflow graph to completion node-by-node,
// item-by-item, producing the run's execution state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/weftlabs/weft/pkg/expression"
	"github.com/weftlabs/weft/pkg/hooks"
	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/otelhelper"
	"github.com/weftlabs/weft/pkg/protocol"
	"github.com/weftlabs/weft/pkg/registry"
)

// Config wires one engine instance to its collaborators.
type Config struct {
	Workflow *models.Workflow
	Registry *registry.Registry
	Resolver *expression.Resolver
	Hooks    *hooks.ExecutionHooks
	Logger   *slog.Logger

	// Binary resolves and stores binary payload references for handlers.
	Binary protocol.BinaryDataService
	// ExecuteWorkflow runs sub-workflows on behalf of nodes.
	ExecuteWorkflow protocol.ExecuteWorkflowFunc
	// Tracer is optional; a noop tracer is used when absent.
	Tracer trace.Tracer
}

// Engine executes one workflow run. Node processing is single-threaded and
// cooperative: one ready node at a time, cancellation and deadline observed
// between node invocations.
type Engine struct {
	workflow *models.Workflow
	registry *registry.Registry
	resolver *expression.Resolver
	hooks    *hooks.ExecutionHooks
	logger   *slog.Logger
	binary   protocol.BinaryDataService
	executeWorkflow protocol.ExecuteWorkflowFunc
	tracer   trace.Tracer

	// connectedInputs maps target node name to the set of input indexes fed
	// by at least one connection, computed once per run.
	connectedInputs map[string]map[int]bool

	handlers   map[string]protocol.NodeHandler
	inputSpecs map[string][]protocol.InputSpec

	// scope restricts the run to the destination node and its ancestors.
	// Nil means the whole graph runs.
	scope map[string]bool

	deadline time.Time
}

// task is one entry of the ready queue: a node whose inputs are available.
type task struct {
	node   *models.Node
	inputs [][]models.ExecutionItem
	source []models.ItemSource
}

// New validates the workflow and prepares an engine for a single run.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Workflow.Validate(); err != nil {
		return nil, err
	}

	if cfg.Resolver == nil {
		cfg.Resolver = expression.NewResolver()
	}

	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("engine")
	}

	connected := make(map[string]map[int]bool)

	for _, outputs := range cfg.Workflow.Connections {
		for _, targets := range outputs {
			for _, conn := range targets {
				if connected[conn.Node] == nil {
					connected[conn.Node] = make(map[int]bool)
				}

				connected[conn.Node][conn.Index] = true
			}
		}
	}

	return &Engine{
		workflow:        cfg.Workflow,
		registry:        cfg.Registry,
		resolver:        cfg.Resolver,
		hooks:           cfg.Hooks,
		logger:          cfg.Logger.With("module", "engine", "workflow_id", cfg.Workflow.ID),
		binary:          cfg.Binary,
		executeWorkflow: cfg.ExecuteWorkflow,
		tracer:          cfg.Tracer,
		connectedInputs: connected,
		handlers:        make(map[string]protocol.NodeHandler),
		inputSpecs:      make(map[string][]protocol.InputSpec),
	}, nil
}

// Run drives the execution to a terminal or waiting state. Fresh runs start
// from the graph's start nodes seeded with input; resumed runs continue from
// the parked node stack. Node failures never escape as errors: they land in
// the execution's result data.
func (e *Engine) Run(ctx context.Context, execution *models.Execution, input []models.ExecutionItem) *models.Execution {
	if e.workflow.Settings.Timeout > 0 {
		e.deadline = time.Now().Add(e.workflow.Settings.Timeout)
	}

	resumed := execution.Status == models.ExecutionStatusWaiting

	e.scope = e.destinationScope(execution.Data.DestinationNode)

	if !execution.Transition(models.ExecutionStatusRunning) {
		execution.Data.ResultData.Error = models.NewPermissionError(
			fmt.Sprintf("execution %s cannot start from status %q", execution.ID, execution.Status))
		execution.Transition(models.ExecutionStatusError)

		return execution
	}

	execution.WaitTill = nil

	e.hooks.WorkflowExecuteBefore(ctx)

	var queue []*task

	pending := make(map[string]*pendingInputs)

	switch {
	case resumed && len(execution.Data.NodeExecutionStack) > 0:
		queue = e.restoreStack(ctx, execution, pending)
	case len(execution.Data.StartNodes) > 0:
		queue = e.seedPartial(execution, input)
	default:
		queue = e.seedFresh(input)
	}

	execution.Data.NodeExecutionStack = nil

	e.process(ctx, execution, queue, pending)

	return execution
}

// process is the engine main loop over the ready queue.
func (e *Engine) process(ctx context.Context, execution *models.Execution, queue []*task, pending map[string]*pendingInputs) {
	for len(queue) > 0 {
		if stopped := e.checkBoundary(ctx, execution); stopped {
			return
		}

		current := queue[0]
		queue = queue[1:]

		if current.node.Disabled {
			// Disabled nodes pass their first input through to their first
			// output without being recorded in run data.
			passthrough := [][]models.ExecutionItem{nil}
			if len(current.inputs) > 0 {
				passthrough[0] = current.inputs[0]
			}

			queue = e.route(ctx, current.node, passthrough, 0, queue, pending)

			continue
		}

		taskData, waitTill, fatal := e.executeNode(ctx, execution, current)

		execution.Data.RunData[current.node.Name] = append(execution.Data.RunData[current.node.Name], taskData)
		execution.Data.ResultData.LastNodeExecuted = current.node.Name

		e.hooks.NodeExecuteAfter(ctx, current.node.Name, taskData)

		if fatal != nil {
			execution.Data.ResultData.Error = fatal
			execution.Transition(models.ExecutionStatusError)
			e.finish(ctx, execution)

			return
		}

		if waitTill != nil {
			// The node's output is routed downstream first, so the resumed
			// run continues after the parked node instead of re-running it.
			runIndex := len(execution.Data.RunData[current.node.Name]) - 1
			queue = e.route(ctx, current.node, taskData.Data, runIndex, queue, pending)
			e.park(ctx, execution, queue, pending, waitTill)

			return
		}

		if execution.Data.DestinationNode != "" && current.node.Name == execution.Data.DestinationNode {
			// Early stop: the destination produced output. Branches outside
			// its ancestry were never queued; see destinationScope.
			break
		}

		runIndex := len(execution.Data.RunData[current.node.Name]) - 1
		queue = e.route(ctx, current.node, taskData.Data, runIndex, queue, pending)
	}

	execution.Transition(models.ExecutionStatusSuccess)
	e.finish(ctx, execution)
}

// executeNode invokes one node (or applies its pin data) and returns its
// TaskData. A non-nil fatal error means the run must halt.
func (e *Engine) executeNode(ctx context.Context, execution *models.Execution, current *task) (*models.TaskData, *time.Time, *models.ExecutionError) {
	start := time.Now().UTC()

	taskData := &models.TaskData{
		StartTime: start,
		Source:    current.source,
	}

	e.hooks.NodeExecuteBefore(ctx, current.node.Name)

	// Pinned data always overrides live execution for the node.
	if pinned, ok := e.workflow.PinData[current.node.Name]; ok {
		taskData.Data = [][]models.ExecutionItem{pinned}
		taskData.ExecutionTime = time.Since(start)

		return taskData, nil, nil
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "node.execute",
		attribute.String(otelhelper.NodeNameKey, current.node.Name),
		attribute.String(otelhelper.NodeTypeKey, current.node.Type),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	)
	defer span.End()

	result, err := e.invoke(ctx, execution, current)

	taskData.ExecutionTime = time.Since(start)

	if err != nil {
		otelhelper.SetError(span, err)

		if current.node.ContinueOnFail {
			// Recover the error into data: one error-carrying item per
			// failed input item, at the same positions.
			inputLen := 0
			if len(current.inputs) > 0 {
				inputLen = len(current.inputs[0])
			}

			if inputLen == 0 {
				inputLen = 1
			}

			items := make([]models.ExecutionItem, 0, inputLen)
			for i := range inputLen {
				items = append(items, models.NewErrorItem(err.Error(), i))
			}

			taskData.Error = models.NewNodeError(current.node.Name, err)
			taskData.Data = [][]models.ExecutionItem{items}

			return taskData, nil, nil
		}

		nodeErr := models.NewNodeError(current.node.Name, err)
		taskData.Error = nodeErr

		return taskData, nil, nodeErr
	}

	taskData.Data = result.Outputs

	return taskData, result.WaitTill, nil
}

// invoke resolves parameters and calls the node handler once for the whole
// input batch.
func (e *Engine) invoke(ctx context.Context, execution *models.Execution, current *task) (*protocol.ExecuteResult, error) {
	handler, err := e.handler(ctx, current.node)
	if err != nil {
		return nil, err
	}

	items := current.inputs
	if len(items) == 0 {
		items = [][]models.ExecutionItem{{models.NewItem(nil)}}
	}

	request := &protocol.ExecuteRequest{
		Node:      current.node,
		Inputs:    items,
		Workflow:  e.workflow,
		Execution: execution,
		StaticData: e.workflow.StaticData,
		Binary:     e.binary,
		ExecuteWorkflow: e.executeWorkflow,
		Logger:          e.logger.With("node", current.node.Name),
		Parameters: func(itemIndex int) (map[string]any, error) {
			item := models.NewItem(nil)
			if len(items) > 0 && itemIndex < len(items[0]) {
				item = items[0][itemIndex]
			}

			env := expression.NewEnv(item, itemIndex, execution, e.workflow)

			return e.resolver.ResolveParameters(current.node.Parameters, env)
		},
	}

	result, err := handler.Execute(ctx, request)
	if err != nil {
		return nil, err
	}

	if result == nil {
		result = &protocol.ExecuteResult{}
	}

	return result, nil
}

// checkBoundary observes cancellation and the workflow deadline between node
// invocations. Returns true when the run was finalized.
func (e *Engine) checkBoundary(ctx context.Context, execution *models.Execution) bool {
	timedOut := !e.deadline.IsZero() && time.Now().After(e.deadline)

	if err := ctx.Err(); err != nil || timedOut {
		// Cause distinguishes a deadline (also when injected by the worker's
		// timeout message) from a user-requested stop.
		if timedOut || errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
			execution.Data.ResultData.Error = models.NewTimeoutError()
			execution.Transition(models.ExecutionStatusError)
		} else {
			execution.Data.ResultData.Error = models.NewCancelationError()
			execution.Transition(models.ExecutionStatusCanceled)
		}

		e.finish(ctx, execution)

		return true
	}

	return false
}

// park snapshots the remaining work and leaves the run waiting until the
// given wall-clock time.
func (e *Engine) park(ctx context.Context, execution *models.Execution, queue []*task, pending map[string]*pendingInputs, waitTill *time.Time) {
	stack := make([]models.PendingNode, 0, len(queue)+len(pending))

	for _, queued := range queue {
		stack = append(stack, models.PendingNode{
			NodeName: queued.node.Name,
			Inputs:   queued.inputs,
			Source:   queued.source,
		})
	}

	for name, partial := range pending {
		stack = append(stack, models.PendingNode{
			NodeName: name,
			Inputs:   partial.inputs,
			Source:   partial.sources,
		})
	}

	execution.Data.NodeExecutionStack = stack
	execution.WaitTill = waitTill
	execution.Transition(models.ExecutionStatusWaiting)

	e.logger.InfoContext(ctx, "Execution parked until wake-up time",
		"execution_id", execution.ID, "wait_till", waitTill)

	e.hooks.WorkflowExecuteAfter(ctx, execution, e.workflow.StaticData)
}

// finish fires the terminal lifecycle hook with the workflow static data,
// which persistence handlers store atomically with the run. Webhook runs
// additionally answer the waiting caller with the final node's first item.
func (e *Engine) finish(ctx context.Context, execution *models.Execution) {
	if execution.Mode == models.ModeWebhook && execution.Status == models.ExecutionStatusSuccess {
		if response := lastOutputItem(execution); response != nil {
			e.hooks.SendResponse(ctx, response)
		}
	}

	e.hooks.WorkflowExecuteAfter(ctx, execution, e.workflow.StaticData)
}

// lastOutputItem returns the JSON payload of the first item the last
// executed node emitted, or nil when it produced nothing.
func lastOutputItem(execution *models.Execution) map[string]any {
	runs := execution.Data.RunData[execution.Data.ResultData.LastNodeExecuted]
	if len(runs) == 0 {
		return nil
	}

	for _, items := range runs[len(runs)-1].Data {
		if len(items) > 0 {
			return items[0].JSON
		}
	}

	return nil
}

// destinationScope returns the destination node and all its ancestors, the
// only nodes a destination-bound run may execute. The set is closed under
// incoming edges: every input of an in-scope node comes from an in-scope
// node, so readiness gating never stalls on a pruned branch.
func (e *Engine) destinationScope(destination string) map[string]bool {
	if destination == "" || e.workflow.NodeByName(destination) == nil {
		return nil
	}

	incoming := make(map[string][]string)

	for source, outputs := range e.workflow.Connections {
		for _, targets := range outputs {
			for _, conn := range targets {
				incoming[conn.Node] = append(incoming[conn.Node], source)
			}
		}
	}

	scope := map[string]bool{destination: true}
	frontier := []string{destination}

	for len(frontier) > 0 {
		name := frontier[0]
		frontier = frontier[1:]

		for _, source := range incoming[name] {
			if scope[source] {
				continue
			}

			scope[source] = true
			frontier = append(frontier, source)
		}
	}

	return scope
}

// inScope reports whether a node may execute in this run.
func (e *Engine) inScope(name string) bool {
	return e.scope == nil || e.scope[name]
}

// handler returns the cached handler instance for a node, creating it
// through the registry on first use.
func (e *Engine) handler(ctx context.Context, node *models.Node) (protocol.NodeHandler, error) {
	if handler, ok := e.handlers[node.Name]; ok {
		return handler, nil
	}

	handler, err := e.registry.CreateHandler(ctx, node)
	if err != nil {
		return nil, err
	}

	e.handlers[node.Name] = handler

	specs := []protocol.InputSpec{{Name: "main"}}
	if multi, ok := handler.(protocol.MultiInputNode); ok {
		specs = multi.Inputs()
	}

	e.inputSpecs[node.Name] = specs

	return handler, nil
}
