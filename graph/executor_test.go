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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-flow-go/workflow"
)

// recordingRunner counts node executions and replies per node id.
type recordingRunner struct {
	mu      sync.Mutex
	runs    map[string]int
	order   []string
	results map[string]func(runs int) (*NodeResult, error)
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{
		runs:    make(map[string]int),
		results: make(map[string]func(runs int) (*NodeResult, error)),
	}
}

func (r *recordingRunner) RunNode(_ context.Context, node *NodeDependencies) (*NodeResult, error) {
	r.mu.Lock()
	r.runs[node.NodeID]++
	runs := r.runs[node.NodeID]
	r.order = append(r.order, node.NodeID)
	reply := r.results[node.NodeID]
	r.mu.Unlock()
	if reply != nil {
		return reply(runs)
	}
	return &NodeResult{}, nil
}

func (r *recordingRunner) runCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id]
}

// drain collects every event until the channel closes and returns the last.
func drain(t *testing.T, events <-chan *Event) (all []*Event, last *Event) {
	t.Helper()
	for ev := range events {
		all = append(all, ev)
		last = ev
	}
	require.NotNil(t, last, "expected at least one event")
	return all, last
}

func eventsOfType(all []*Event, object string) []*Event {
	var filtered []*Event
	for _, ev := range all {
		if ev.Object == object {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

func TestExecutorLinearChain(t *testing.T) {
	g, err := Build(chainWorkflow())
	require.NoError(t, err)
	runner := newRecordingRunner()
	exec, err := NewExecutor(g, runner)
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)
	all, last := drain(t, events)

	assert.True(t, g.IsComplete())
	assert.Equal(t, ObjectTypeExecutionComplete, last.Object)
	assert.Equal(t, 100.0, last.Progress.ProgressPercent)
	assert.Equal(t, []string{"a", "b", "c"}, runner.order)
	assert.Len(t, eventsOfType(all, ObjectTypeNodeComplete), 3)
	for _, ev := range all {
		assert.Equal(t, AuthorGraphExecutor, ev.Author)
		assert.NotEmpty(t, ev.ID)
		assert.NotEmpty(t, ev.InvocationID)
	}
}

func TestExecutorValidation(t *testing.T) {
	g, err := Build(chainWorkflow())
	require.NoError(t, err)

	_, err = NewExecutor(nil, newRecordingRunner())
	assert.ErrorIs(t, err, ErrNilGraph)
	_, err = NewExecutor(g, nil)
	assert.ErrorIs(t, err, ErrNilRunner)
}

func TestExecutorFailureSkipsDownstream(t *testing.T) {
	g, err := Build(chainWorkflow())
	require.NoError(t, err)
	runner := newRecordingRunner()
	runner.results["b"] = func(int) (*NodeResult, error) {
		return nil, errors.New("boom")
	}
	exec, err := NewExecutor(g, runner)
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)
	all, last := drain(t, events)

	assert.Equal(t, PhaseCompleted, g.Nodes["a"].Phase)
	assert.Equal(t, PhaseFailed, g.Nodes["b"].Phase)
	assert.Equal(t, PhaseSkipped, g.Nodes["c"].Phase)
	assert.True(t, g.IsComplete(), "skip-downstream lets the run close")
	assert.Equal(t, ObjectTypeExecutionComplete, last.Object)

	errorEvents := eventsOfType(all, ObjectTypeNodeError)
	require.Len(t, errorEvents, 1)
	assert.Equal(t, "b", errorEvents[0].NodeID)
	assert.Equal(t, "boom", errorEvents[0].Error)

	skipEvents := eventsOfType(all, ObjectTypeNodeSkipped)
	require.Len(t, skipEvents, 1)
	assert.Equal(t, []string{"c"}, skipEvents[0].Skipped)
	assert.Equal(t, 0, runner.runCount("c"))
}

func TestExecutorStopRunPolicy(t *testing.T) {
	g, err := Build(chainWorkflow())
	require.NoError(t, err)
	runner := newRecordingRunner()
	runner.results["a"] = func(int) (*NodeResult, error) {
		return nil, errors.New("boom")
	}
	exec, err := NewExecutor(g, runner, WithFailurePolicy(FailurePolicyStopRun))
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)
	_, last := drain(t, events)

	assert.Equal(t, ObjectTypeExecutionStopped, last.Object)
	assert.Equal(t, PhaseFailed, g.Nodes["a"].Phase)
	assert.Equal(t, PhaseStopped, g.Nodes["b"].Phase)
	assert.Equal(t, PhaseStopped, g.Nodes["c"].Phase)
	assert.Equal(t, 0, runner.runCount("b"))
}

func TestExecutorContinuePolicyStalls(t *testing.T) {
	// Two independent branches: a -> b and d -> e. a fails; with the
	// continue policy the d branch still finishes but b stays pending, so
	// the run ends stalled rather than complete.
	wf := &workflow.Workflow{
		ID: "wf-branches",
		Nodes: []workflow.Node{
			node("a", "http"), node("b", "transform"),
			node("d", "http"), node("e", "transform"),
		},
		Connections: []workflow.Connection{
			conn("c1", "a", "b"),
			conn("c2", "d", "e"),
		},
	}
	g, err := Build(wf)
	require.NoError(t, err)
	runner := newRecordingRunner()
	runner.results["a"] = func(int) (*NodeResult, error) {
		return nil, errors.New("boom")
	}
	exec, err := NewExecutor(g, runner, WithFailurePolicy(FailurePolicyContinue))
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)
	_, last := drain(t, events)

	assert.Equal(t, ObjectTypeExecutionStalled, last.Object)
	assert.Equal(t, PhaseCompleted, g.Nodes["e"].Phase)
	assert.Equal(t, PhasePending, g.Nodes["b"].Phase)
	assert.False(t, g.IsComplete())
}

func TestExecutorBranchSkip(t *testing.T) {
	// A decision node prunes its untaken branch through the node result.
	wf := &workflow.Workflow{
		ID: "wf-decision",
		Nodes: []workflow.Node{
			node("d", "decision"), node("yes", "http"), node("no", "http"),
		},
		Connections: []workflow.Connection{
			conn("c1", "d", "yes"),
			conn("c2", "d", "no"),
		},
	}
	g, err := Build(wf)
	require.NoError(t, err)
	runner := newRecordingRunner()
	runner.results["d"] = func(int) (*NodeResult, error) {
		return &NodeResult{Skip: []string{"no"}}, nil
	}
	exec, err := NewExecutor(g, runner)
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)
	all, last := drain(t, events)

	assert.Equal(t, ObjectTypeExecutionComplete, last.Object)
	assert.Equal(t, PhaseCompleted, g.Nodes["yes"].Phase)
	assert.Equal(t, PhaseSkipped, g.Nodes["no"].Phase)
	assert.Equal(t, 0, runner.runCount("no"))

	skipEvents := eventsOfType(all, ObjectTypeNodeSkipped)
	require.Len(t, skipEvents, 1)
	assert.Equal(t, []string{"no"}, skipEvents[0].Skipped)
}

func TestExecutorLoopIterations(t *testing.T) {
	const iterations = 3

	g, err := Build(loopWorkflow())
	require.NoError(t, err)
	runner := newRecordingRunner()
	// The loop controller re-arms the body while it keeps iterating; the
	// closing node re-arms the controller so its completion satisfies the
	// re-armed back-edge.
	runner.results["l"] = func(runs int) (*NodeResult, error) {
		if runs < iterations {
			return &NodeResult{ResetForLoop: []string{"m", "z"}}, nil
		}
		return &NodeResult{}, nil
	}
	runner.results["z"] = func(int) (*NodeResult, error) {
		return &NodeResult{ResetForLoop: []string{"l"}}, nil
	}
	exec, err := NewExecutor(g, runner)
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)
	_, last := drain(t, events)

	assert.Equal(t, ObjectTypeExecutionComplete, last.Object)
	assert.True(t, g.IsComplete())
	assert.Equal(t, iterations, runner.runCount("l"))
	assert.Equal(t, iterations-1, runner.runCount("m"))
	assert.Equal(t, iterations-1, runner.runCount("z"))
}

func TestExecutorAwaitingInteractionPauses(t *testing.T) {
	g, err := Build(chainWorkflow())
	require.NoError(t, err)
	runner := newRecordingRunner()
	runner.results["b"] = func(int) (*NodeResult, error) {
		return &NodeResult{AwaitingInteraction: true}, nil
	}
	exec, err := NewExecutor(g, runner)
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)
	all, last := drain(t, events)

	assert.Equal(t, ObjectTypeExecutionPaused, last.Object)
	assert.Equal(t, PhaseAwaitingInteraction, g.Nodes["b"].Phase)
	assert.Equal(t, PhasePending, g.Nodes["c"].Phase)
	assert.False(t, g.IsComplete())
	assert.Len(t, eventsOfType(all, ObjectTypeNodeAwaiting), 1)
}

func TestExecutorUINodePausesRun(t *testing.T) {
	// A mid-graph UI node becomes a pause point once its dependencies are
	// met: it is handed to a human, never to the runner.
	wf := &workflow.Workflow{
		ID: "wf-ui-pause",
		Nodes: []workflow.Node{
			node("a", "http"),
			{ID: "review", Type: "approval", Category: workflow.CategoryUI},
		},
		Connections: []workflow.Connection{conn("c1", "a", "review")},
	}
	g, err := Build(wf)
	require.NoError(t, err)
	runner := newRecordingRunner()
	exec, err := NewExecutor(g, runner)
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)
	_, last := drain(t, events)

	assert.Equal(t, ObjectTypeExecutionPaused, last.Object)
	assert.Equal(t, PhaseAwaitingInteraction, g.Nodes["review"].Phase)
	assert.Equal(t, 0, runner.runCount("review"))
}

func TestExecutorToolsOnlyNodeNeverDispatched(t *testing.T) {
	wf := &workflow.Workflow{
		ID:    "wf-agent-run",
		Nodes: []workflow.Node{node("calculator", "calculatorTool"), node("agent", "llmAgent")},
		Connections: []workflow.Connection{
			connPort("c1", "calculator", "main", "agent", PortTools),
		},
	}
	g, err := Build(wf)
	require.NoError(t, err)
	runner := newRecordingRunner()
	exec, err := NewExecutor(g, runner)
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)
	_, last := drain(t, events)

	assert.Equal(t, ObjectTypeExecutionComplete, last.Object)
	assert.Equal(t, 0, runner.runCount("calculator"))
	assert.Equal(t, PhaseCompleted, g.Nodes["agent"].Phase)
	assert.Equal(t, PhaseSkipped, g.Nodes["calculator"].Phase,
		"unconsulted side-channel nodes are pruned at the end of the run")
}

func TestExecutorFinalEventReachesSlowConsumer(t *testing.T) {
	// A consumer slower than a one-slot buffer must still see the terminal
	// event once it drains the backlog.
	g, err := Build(chainWorkflow())
	require.NoError(t, err)
	runner := newRecordingRunner()
	exec, err := NewExecutor(g, runner, WithEventBufferSize(1))
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)

	var all []*Event
	for ev := range events {
		time.Sleep(10 * time.Millisecond)
		all = append(all, ev)
	}

	require.NotEmpty(t, all)
	assert.True(t, g.IsComplete())
	assert.Equal(t, ObjectTypeExecutionComplete, all[len(all)-1].Object)
}

func TestExecutorCancel(t *testing.T) {
	g, err := Build(chainWorkflow())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	runner := NodeRunnerFunc(func(ctx context.Context, node *NodeDependencies) (*NodeResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	exec, err := NewExecutor(g, runner)
	require.NoError(t, err)

	events, err := exec.Execute(ctx)
	require.NoError(t, err)
	go func() {
		<-started
		cancel()
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				assert.Equal(t, PhaseStopped, g.Nodes["b"].Phase)
				assert.Equal(t, PhaseStopped, g.Nodes["c"].Phase)
				return
			}
		case <-deadline:
			t.Fatal("executor did not shut down after cancellation")
		}
	}
}

func TestExecutorConcurrentFanOut(t *testing.T) {
	// A wide fan-out joined back into one sink, dispatched with a small
	// pool: every branch runs exactly once and the join waits for all.
	nodes := []workflow.Node{node("start", "http")}
	var conns []workflow.Connection
	for _, id := range []string{"w1", "w2", "w3", "w4", "w5"} {
		nodes = append(nodes, node(id, "worker"))
		conns = append(conns,
			conn("in-"+id, "start", id),
			conn("out-"+id, id, "join"),
		)
	}
	nodes = append(nodes, node("join", "merge"))
	g, err := Build(&workflow.Workflow{ID: "wf-fanout", Nodes: nodes, Connections: conns})
	require.NoError(t, err)

	runner := newRecordingRunner()
	exec, err := NewExecutor(g, runner, WithMaxConcurrency(2))
	require.NoError(t, err)

	events, err := exec.Execute(context.Background())
	require.NoError(t, err)
	_, last := drain(t, events)

	assert.Equal(t, ObjectTypeExecutionComplete, last.Object)
	assert.True(t, g.IsComplete())
	for _, id := range []string{"w1", "w2", "w3", "w4", "w5", "join"} {
		assert.Equal(t, 1, runner.runCount(id), id)
	}
	assert.Equal(t, "join", runner.order[len(runner.order)-1])
}
