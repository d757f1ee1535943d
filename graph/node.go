//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package graph

// Phase is a node's current lifecycle state.
type Phase string

const (
	// PhasePending means the node has not been dispatched yet. A pending
	// node with zero remaining dependencies is ready.
	PhasePending Phase = "pending"
	// PhaseExecuting means the node has been dispatched and is running.
	PhaseExecuting Phase = "executing"
	// PhaseCompleted means the node finished successfully.
	PhaseCompleted Phase = "completed"
	// PhaseFailed means the node finished with an error.
	PhaseFailed Phase = "failed"
	// PhaseSkipped means the node was pruned and will not run.
	PhaseSkipped Phase = "skipped"
	// PhaseStopped means the run ended before the node could finish.
	PhaseStopped Phase = "stopped"
	// PhaseAwaitingInteraction pauses the node without ending the workflow,
	// e.g. while waiting for human input.
	PhaseAwaitingInteraction Phase = "awaiting_interaction"
)

// Terminal reports whether the phase ends the node's participation in the
// run. AwaitingInteraction is deliberately non-terminal: it pauses the
// workflow rather than finishing it.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseSkipped, PhaseStopped:
		return true
	}
	return false
}

// NodeDependencies is the per-node mutable scheduling record of the
// execution graph.
type NodeDependencies struct {
	// NodeID is the identifier of the node this record belongs to.
	NodeID string

	// Dependencies holds the nodes this node waits for; Dependents holds
	// the nodes waiting on it. The two relations mirror each other across
	// the whole graph, except for the temporary asymmetry at a loop entry
	// whose back-edges are held aside in LoopBackDependencies.
	Dependencies map[string]bool
	Dependents   map[string]bool

	// LoopBackDependencies holds dependency edges identified as back-edges
	// of a detected cycle. They are excluded from Dependencies so the loop
	// entry can become ready on the first iteration; Reset moves them back.
	LoopBackDependencies map[string]bool

	// OriginalDepCount is the dependency count the live countdown restarts
	// from. RemainingDeps is the countdown itself, decremented as direct
	// dependencies complete and never recomputed from scratch outside Reset.
	OriginalDepCount int
	RemainingDeps    int

	// Phase is the node's current lifecycle state.
	Phase Phase

	// InputConnections and OutputConnections cache every connection touching
	// this node, special ones included, for data-flow use by the executor.
	InputConnections  []Connection
	OutputConnections []Connection
}

func newNodeDependencies(nodeID string) *NodeDependencies {
	return &NodeDependencies{
		NodeID:               nodeID,
		Dependencies:         make(map[string]bool),
		Dependents:           make(map[string]bool),
		LoopBackDependencies: make(map[string]bool),
		Phase:                PhasePending,
	}
}

// Reset re-arms the node for another run or loop iteration. Loop-back
// dependencies move back into the active dependency set, which is how a
// loop entry becomes dependent again on the loop's closing node for the
// next iteration.
func (n *NodeDependencies) Reset() {
	if len(n.LoopBackDependencies) > 0 {
		for id := range n.LoopBackDependencies {
			n.Dependencies[id] = true
		}
		n.LoopBackDependencies = make(map[string]bool)
		n.OriginalDepCount = len(n.Dependencies)
	}
	n.RemainingDeps = n.OriginalDepCount
	n.Phase = PhasePending
}
