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
	"fmt"
	"math"
	"sort"
)

// ExecutionGraph is the dependency-resolution state of one workflow run.
//
// The graph performs no I/O and holds no locks of its own; it is owned by
// exactly one coordinator per run. Ready nodes may be dispatched
// concurrently, but every mutating call must be serialized relative to the
// others because the dependency counters are not safe for concurrent
// decrement. See Executor for a conforming coordinator.
type ExecutionGraph struct {
	// WorkflowID identifies the workflow this run was built from.
	WorkflowID string

	// Nodes maps node ids to their scheduling records.
	Nodes map[string]*NodeDependencies

	// SourceNodes holds the nodes execution starts from: nodes without
	// dependencies (excluding tools/memory-only and UI nodes) plus injected
	// loop entry points.
	SourceNodes map[string]bool
	// SinkNodes holds the nodes nothing depends on.
	SinkNodes map[string]bool
	// ToolsMemoryOnlyNodes holds nodes whose outputs all target special
	// ports. They never drive downstream data flow and must not auto-fire;
	// they activate reactively when queried through their special port.
	ToolsMemoryOnlyNodes map[string]bool
	// UINodes holds nodes declared with the "ui" category.
	UINodes map[string]bool

	// HasLoops reports whether any cycle was detected at build time.
	HasLoops bool
	// LoopBackEdges lists each detected cycle in traversal order, closing
	// back to its start.
	LoopBackEdges [][]string

	// CompletedNodes, SkippedNodes and FailedNodes track terminal outcomes
	// across the run.
	CompletedNodes map[string]bool
	SkippedNodes   map[string]bool
	FailedNodes    map[string]bool

	// order preserves the definition order of node ids so read operations
	// return deterministic results.
	order []string
}

func newExecutionGraph(workflowID string) *ExecutionGraph {
	return &ExecutionGraph{
		WorkflowID:           workflowID,
		Nodes:                make(map[string]*NodeDependencies),
		SourceNodes:          make(map[string]bool),
		SinkNodes:            make(map[string]bool),
		ToolsMemoryOnlyNodes: make(map[string]bool),
		UINodes:              make(map[string]bool),
		CompletedNodes:       make(map[string]bool),
		SkippedNodes:         make(map[string]bool),
		FailedNodes:          make(map[string]bool),
	}
}

// ReadyNodes returns, in definition order, every node whose dependencies
// are all met and that has not been dispatched yet. Tools/memory-only and
// UI nodes never show up here: they must not auto-fire, they activate
// reactively when something queries them through their special port.
func (g *ExecutionGraph) ReadyNodes() []string {
	var ready []string
	for _, id := range g.order {
		node := g.Nodes[id]
		if node.RemainingDeps != 0 || node.Phase != PhasePending {
			continue
		}
		if g.ToolsMemoryOnlyNodes[id] || g.UINodes[id] {
			continue
		}
		ready = append(ready, id)
	}
	return ready
}

// MarkCompleted records a successful node outcome and advances the
// countdown of its direct dependents. It returns the ids of dependents that
// just became ready. Only direct dependents of the completed node are
// touched, keeping the operation O(out-degree).
func (g *ExecutionGraph) MarkCompleted(nodeID string) ([]string, error) {
	node, ok := g.Nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	node.Phase = PhaseCompleted
	g.CompletedNodes[nodeID] = true

	var ready []string
	for depID := range node.Dependents {
		dep := g.Nodes[depID]
		if dep.RemainingDeps == 0 {
			// Floor at zero: a loop entry's countdown excludes back-edges,
			// so the closing node's completion may arrive with nothing left
			// to count down.
			continue
		}
		dep.RemainingDeps--
		if dep.RemainingDeps == 0 && dep.Phase == PhasePending {
			ready = append(ready, depID)
		}
	}
	sort.Strings(ready)
	return ready, nil
}

// MarkFailed records a failed node outcome. Failure never cascades here;
// the coordinator decides whether to stop the run, skip dependents, or
// continue unaffected branches.
func (g *ExecutionGraph) MarkFailed(nodeID string) error {
	node, ok := g.Nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	node.Phase = PhaseFailed
	g.FailedNodes[nodeID] = true
	return nil
}

// MarkSkipped prunes a node and everything reachable exclusively through
// it: every downstream dependent that is not already completed or skipped
// joins the skipped set. The returned list contains all nodes skipped by
// this call, the argument included. Calling it again for an already-skipped
// node is a no-op, which also makes the propagation safe on cyclic graphs.
func (g *ExecutionGraph) MarkSkipped(nodeID string) ([]string, error) {
	node, ok := g.Nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if g.SkippedNodes[nodeID] {
		return nil, nil
	}

	node.Phase = PhaseSkipped
	g.SkippedNodes[nodeID] = true
	skipped := []string{nodeID}

	// Explicit worklist instead of recursion: the skipped-set membership
	// check above doubles as the visited guard, so cycles terminate and the
	// stack depth stays bounded on large graphs.
	stack := make([]string, 0, len(node.Dependents))
	for depID := range node.Dependents {
		stack = append(stack, depID)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if g.SkippedNodes[id] || g.CompletedNodes[id] {
			continue
		}
		n := g.Nodes[id]
		n.Phase = PhaseSkipped
		g.SkippedNodes[id] = true
		skipped = append(skipped, id)
		for depID := range n.Dependents {
			if !g.SkippedNodes[depID] && !g.CompletedNodes[depID] {
				stack = append(stack, depID)
			}
		}
	}
	sort.Strings(skipped[1:])
	return skipped, nil
}

// MarkExecuting transitions a dispatched node out of the pending phase so
// it is not returned by ReadyNodes again.
func (g *ExecutionGraph) MarkExecuting(nodeID string) error {
	return g.setPhase(nodeID, PhaseExecuting)
}

// MarkAwaitingInteraction pauses a node without ending the workflow. The
// run is paused, not done: IsComplete stays false until the node reaches a
// terminal phase.
func (g *ExecutionGraph) MarkAwaitingInteraction(nodeID string) error {
	return g.setPhase(nodeID, PhaseAwaitingInteraction)
}

// MarkStopped records that the run ended before the node could finish.
func (g *ExecutionGraph) MarkStopped(nodeID string) error {
	return g.setPhase(nodeID, PhaseStopped)
}

func (g *ExecutionGraph) setPhase(nodeID string, phase Phase) error {
	node, ok := g.Nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	node.Phase = phase
	return nil
}

// IsComplete reports whether every node has reached a terminal phase.
func (g *ExecutionGraph) IsComplete() bool {
	for _, node := range g.Nodes {
		if !node.Phase.Terminal() {
			return false
		}
	}
	return true
}

// IsPaused reports whether any node is awaiting interaction.
func (g *ExecutionGraph) IsPaused() bool {
	for _, node := range g.Nodes {
		if node.Phase == PhaseAwaitingInteraction {
			return true
		}
	}
	return false
}

// ProgressSnapshot is a point-in-time view of run progress for display.
type ProgressSnapshot struct {
	// TotalNodes is the full node count of the graph.
	TotalNodes int
	// Completed, Failed and Skipped are the tracking-set sizes; Executing
	// and Pending are live phase counts.
	Completed int
	Failed    int
	Skipped   int
	Executing int
	Pending   int
	// EffectiveTotal is TotalNodes minus the skipped count, the denominator
	// of ProgressPercent.
	EffectiveTotal int
	// ProgressPercent is 100 * (Completed + Failed) / EffectiveTotal,
	// rounded to one decimal.
	ProgressPercent float64
}

// Progress computes the current progress snapshot. Skipped nodes shrink the
// denominator so a pruned branch does not hold the percentage down. When
// nothing effective remains, a fully pruned graph reads 100% while an empty
// or unstarted graph reads 0%.
func (g *ExecutionGraph) Progress() ProgressSnapshot {
	snapshot := ProgressSnapshot{
		TotalNodes: len(g.Nodes),
		Completed:  len(g.CompletedNodes),
		Failed:     len(g.FailedNodes),
		Skipped:    len(g.SkippedNodes),
	}
	for _, node := range g.Nodes {
		switch node.Phase {
		case PhaseExecuting:
			snapshot.Executing++
		case PhasePending:
			snapshot.Pending++
		}
	}
	snapshot.EffectiveTotal = snapshot.TotalNodes - snapshot.Skipped
	if snapshot.EffectiveTotal <= 0 {
		if snapshot.Skipped > 0 {
			snapshot.ProgressPercent = 100.0
		}
		return snapshot
	}
	percent := 100 * float64(snapshot.Completed+snapshot.Failed) / float64(snapshot.EffectiveTotal)
	snapshot.ProgressPercent = math.Round(percent*10) / 10
	return snapshot
}

// ResetForLoop re-arms the given nodes for another loop iteration: each is
// reset locally and removed from the outcome tracking sets. Nodes outside
// the set keep their current state, so upstream non-looping work stays
// finished. Unknown ids are ignored.
func (g *ExecutionGraph) ResetForLoop(nodeIDs []string) {
	for _, id := range nodeIDs {
		node, ok := g.Nodes[id]
		if !ok {
			continue
		}
		node.Reset()
		delete(g.CompletedNodes, id)
		delete(g.SkippedNodes, id)
		delete(g.FailedNodes, id)
	}
}

// Reset rewinds the whole graph for a fresh run: every node is reset and
// the tracking sets are cleared.
func (g *ExecutionGraph) Reset() {
	for _, node := range g.Nodes {
		node.Reset()
	}
	g.CompletedNodes = make(map[string]bool)
	g.SkippedNodes = make(map[string]bool)
	g.FailedNodes = make(map[string]bool)
}

// NodeIDs returns all node ids in definition order.
func (g *ExecutionGraph) NodeIDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return ids
}
