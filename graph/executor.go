//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	itelemetry "trpc.group/trpc-go/trpc-flow-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-flow-go/log"
)

// NodeResult is what a NodeRunner reports back for one successful node
// execution.
type NodeResult struct {
	// Skip lists direct dependents the node chose not to activate, e.g. the
	// untaken paths of a decision node. Each is pruned together with its
	// downstream closure.
	Skip []string
	// ResetForLoop lists node ids to re-arm for another loop iteration. The
	// executor applies the reset before recording this node's completion,
	// so the completion of a loop's closing node immediately satisfies the
	// re-armed entry.
	ResetForLoop []string
	// AwaitingInteraction pauses the node instead of completing it. The run
	// halts as paused once nothing else is in flight.
	AwaitingInteraction bool
}

// NodeRunner executes a node's behavior. Implementations do the actual
// work; the executor only schedules. The node record must be treated as
// read-only: its counters are owned by the executor.
type NodeRunner interface {
	RunNode(ctx context.Context, node *NodeDependencies) (*NodeResult, error)
}

// NodeRunnerFunc adapts a function to the NodeRunner interface.
type NodeRunnerFunc func(ctx context.Context, node *NodeDependencies) (*NodeResult, error)

// RunNode implements NodeRunner.
func (f NodeRunnerFunc) RunNode(ctx context.Context, node *NodeDependencies) (*NodeResult, error) {
	return f(ctx, node)
}

// FailurePolicy selects how the executor reacts to a failed node. The graph
// itself never cascades failure; the policy is applied here.
type FailurePolicy int

const (
	// FailurePolicySkipDownstream prunes every dependent of a failed node
	// together with its downstream closure. This is the default.
	FailurePolicySkipDownstream FailurePolicy = iota
	// FailurePolicyStopRun stops dispatching after a failure; in-flight
	// nodes drain and everything unfinished is marked stopped.
	FailurePolicyStopRun
	// FailurePolicyContinue keeps executing unaffected branches. Dependents
	// of the failed node stay pending, so the run ends stalled rather than
	// complete unless the caller intervenes.
	FailurePolicyContinue
)

// ExecutorOption configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// ExecutorOptions contains configuration options for creating an Executor.
type ExecutorOptions struct {
	// MaxConcurrency caps how many nodes run at once (default: NumCPU).
	MaxConcurrency int
	// EventBufferSize is the buffer size for the event channel (default: 256).
	EventBufferSize int
	// FailurePolicy is applied when a node fails (default: skip downstream).
	FailurePolicy FailurePolicy
}

// WithMaxConcurrency caps how many nodes run at once.
func WithMaxConcurrency(n int) ExecutorOption {
	return func(o *ExecutorOptions) {
		o.MaxConcurrency = n
	}
}

// WithEventBufferSize sets the buffer size for the event channel.
func WithEventBufferSize(size int) ExecutorOption {
	return func(o *ExecutorOptions) {
		o.EventBufferSize = size
	}
}

// WithFailurePolicy selects the reaction to a failed node.
func WithFailurePolicy(policy FailurePolicy) ExecutorOption {
	return func(o *ExecutorOptions) {
		o.FailurePolicy = policy
	}
}

// Executor coordinates one workflow run over an ExecutionGraph. Ready nodes
// are dispatched concurrently through a bounded goroutine pool, while every
// graph mutation is funneled through a single consuming loop, which is what
// keeps the dependency counters safe.
type Executor struct {
	graph   *ExecutionGraph
	runner  NodeRunner
	options ExecutorOptions
}

// NewExecutor creates an executor for the given graph and runner.
func NewExecutor(g *ExecutionGraph, runner NodeRunner, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if runner == nil {
		return nil, ErrNilRunner
	}
	options := ExecutorOptions{
		MaxConcurrency:  runtime.NumCPU(),
		EventBufferSize: 256,
		FailurePolicy:   FailurePolicySkipDownstream,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxConcurrency <= 0 {
		options.MaxConcurrency = runtime.NumCPU()
	}
	return &Executor{graph: g, runner: runner, options: options}, nil
}

// Graph returns the execution graph owned by this executor.
func (e *Executor) Graph() *ExecutionGraph {
	return e.graph
}

// Execute runs the workflow until every node is terminal, the run pauses or
// stalls, or ctx is canceled. Events stream over the returned channel and
// the channel closes when the run ends.
func (e *Executor) Execute(ctx context.Context) (<-chan *Event, error) {
	events := make(chan *Event, e.options.EventBufferSize)
	invocationID := uuid.NewString()
	go func() {
		defer close(events)
		e.run(ctx, invocationID, events)
	}()
	return events, nil
}

// nodeOutcome carries one worker result back to the consuming loop.
type nodeOutcome struct {
	nodeID string
	result *NodeResult
	err    error
}

func (e *Executor) run(ctx context.Context, invocationID string, events chan<- *Event) {
	g := e.graph
	itelemetry.IncExecutionStart(ctx, g.WorkflowID)

	pool, err := ants.NewPool(e.options.MaxConcurrency)
	if err != nil {
		log.Errorf("workflow %s: create dispatch pool: %v", g.WorkflowID, err)
		return
	}
	defer pool.Release()

	// Every in-flight node occupies a distinct EXECUTING slot, so a buffer
	// sized to the graph guarantees workers never block on this channel even
	// while the consuming loop is parked inside pool.Submit.
	results := make(chan nodeOutcome, len(g.Nodes)+1)
	inFlight := 0
	stopping := false

	handleFailure := func(nodeID string, failErr error) {
		if stopping {
			// The run is already winding down; outcomes drained from
			// in-flight workers are not failures to react to.
			_ = g.MarkStopped(nodeID)
			return
		}
		_ = g.MarkFailed(nodeID)
		itelemetry.IncNodeFailed(ctx, g.WorkflowID)
		ev := e.progressEvent(invocationID, ObjectTypeNodeError, nodeID)
		ev.Error = failErr.Error()
		e.emit(ctx, events, ev)

		switch e.options.FailurePolicy {
		case FailurePolicyStopRun:
			log.Debugf("workflow %s: node %s failed, stopping run", g.WorkflowID, nodeID)
			stopping = true
		case FailurePolicySkipDownstream:
			var skipped []string
			for _, depID := range sortedKeys(g.Nodes[nodeID].Dependents) {
				closure, _ := g.MarkSkipped(depID)
				skipped = append(skipped, closure...)
			}
			if len(skipped) > 0 {
				log.Debugf("workflow %s: node %s failed, skipped downstream %v", g.WorkflowID, nodeID, skipped)
				itelemetry.IncNodeSkipped(ctx, g.WorkflowID, int64(len(skipped)))
				ev := e.progressEvent(invocationID, ObjectTypeNodeSkipped, nodeID)
				ev.Skipped = skipped
				e.emit(ctx, events, ev)
			}
		case FailurePolicyContinue:
		}
	}

	handleOutcome := func(out nodeOutcome) {
		if out.err != nil {
			handleFailure(out.nodeID, out.err)
			return
		}
		if out.result != nil && out.result.AwaitingInteraction {
			_ = g.MarkAwaitingInteraction(out.nodeID)
			e.emit(ctx, events, e.progressEvent(invocationID, ObjectTypeNodeAwaiting, out.nodeID))
			return
		}
		if out.result != nil && len(out.result.ResetForLoop) > 0 {
			g.ResetForLoop(out.result.ResetForLoop)
		}
		if _, err := g.MarkCompleted(out.nodeID); err != nil {
			log.Errorf("workflow %s: mark %s completed: %v", g.WorkflowID, out.nodeID, err)
			return
		}
		itelemetry.IncNodeCompleted(ctx, g.WorkflowID)
		e.emit(ctx, events, e.progressEvent(invocationID, ObjectTypeNodeComplete, out.nodeID))
		if out.result == nil || len(out.result.Skip) == 0 {
			return
		}
		var skipped []string
		for _, id := range out.result.Skip {
			closure, err := g.MarkSkipped(id)
			if err != nil {
				log.Errorf("workflow %s: skip %s: %v", g.WorkflowID, id, err)
				continue
			}
			skipped = append(skipped, closure...)
		}
		if len(skipped) > 0 {
			itelemetry.IncNodeSkipped(ctx, g.WorkflowID, int64(len(skipped)))
			ev := e.progressEvent(invocationID, ObjectTypeNodeSkipped, out.nodeID)
			ev.Skipped = skipped
			e.emit(ctx, events, ev)
		}
	}

	dispatch := func() {
		// A UI node whose dependencies are all met is a pause point: it is
		// handed to a human, never to the runner.
		for _, id := range sortedKeys(g.UINodes) {
			node := g.Nodes[id]
			if node.OriginalDepCount > 0 && node.RemainingDeps == 0 && node.Phase == PhasePending {
				_ = g.MarkAwaitingInteraction(id)
				e.emit(ctx, events, e.progressEvent(invocationID, ObjectTypeNodeAwaiting, id))
			}
		}
		for _, id := range g.ReadyNodes() {
			if stopping {
				return
			}
			node := g.Nodes[id]
			_ = g.MarkExecuting(id)
			e.emit(ctx, events, e.progressEvent(invocationID, ObjectTypeNodeStart, id))
			task := func(id string, node *NodeDependencies) func() {
				return func() {
					result, err := e.runNode(ctx, invocationID, node)
					results <- nodeOutcome{nodeID: id, result: result, err: err}
				}
			}(id, node)
			inFlight++
			if err := pool.Submit(task); err != nil {
				inFlight--
				handleFailure(id, err)
			}
		}
	}

	dispatch()
	done := ctx.Done()
	for inFlight > 0 {
		select {
		case <-done:
			stopping = true
			done = nil
		case out := <-results:
			inFlight--
			handleOutcome(out)
			if !stopping {
				dispatch()
			}
		}
	}

	e.finish(ctx, invocationID, events, stopping)
}

func (e *Executor) finish(ctx context.Context, invocationID string, events chan<- *Event, stopping bool) {
	g := e.graph
	if !stopping {
		// Side-channel nodes that were never consulted do not hold the run
		// open: still-pending tools/memory-only nodes and unfired UI
		// triggers are pruned so the run can close.
		for _, id := range g.NodeIDs() {
			if g.Nodes[id].Phase != PhasePending {
				continue
			}
			if g.ToolsMemoryOnlyNodes[id] || (g.UINodes[id] && g.Nodes[id].OriginalDepCount == 0) {
				_, _ = g.MarkSkipped(id)
			}
		}
	}
	var object, outcome string
	switch {
	case stopping:
		for _, id := range g.NodeIDs() {
			if !g.Nodes[id].Phase.Terminal() {
				_ = g.MarkStopped(id)
			}
		}
		object, outcome = ObjectTypeExecutionStopped, "stopped"
	case g.IsComplete():
		object, outcome = ObjectTypeExecutionComplete, "completed"
	case g.IsPaused():
		object, outcome = ObjectTypeExecutionPaused, "paused"
	default:
		log.Warnf("workflow %s: run stalled with pending nodes", g.WorkflowID)
		object, outcome = ObjectTypeExecutionStalled, "stalled"
	}
	itelemetry.IncExecutionFinish(ctx, g.WorkflowID, outcome)

	// The terminal event must reach even a consumer slower than the buffer;
	// emit only gives up once ctx is canceled and the consumer may be gone.
	e.emit(ctx, events, e.progressEvent(invocationID, object, ""))
}

func (e *Executor) runNode(ctx context.Context, invocationID string, node *NodeDependencies) (*NodeResult, error) {
	ctx, span := itelemetry.Tracer.Start(ctx, itelemetry.NewExecuteNodeSpanName(node.NodeID),
		trace.WithAttributes(
			attribute.String(itelemetry.KeyWorkflowID, e.graph.WorkflowID),
			attribute.String(itelemetry.KeyInvocationID, invocationID),
			attribute.String(itelemetry.KeyNodeID, node.NodeID),
		))
	defer span.End()

	start := time.Now()
	result, err := e.runner.RunNode(ctx, node)
	itelemetry.RecordNodeRunDuration(ctx, e.graph.WorkflowID, node.NodeID, time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(itelemetry.KeyErrorType, itelemetry.ValueDefaultErrorType))
	}
	return result, err
}

func (e *Executor) progressEvent(invocationID, object, nodeID string) *Event {
	ev := newEvent(invocationID, object, nodeID)
	progress := e.graph.Progress()
	ev.Progress = &progress
	return ev
}

func (e *Executor) emit(ctx context.Context, events chan<- *Event, ev *Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
