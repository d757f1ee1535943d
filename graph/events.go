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
	"time"

	"github.com/google/uuid"
)

// AuthorGraphExecutor is the author name carried on executor events.
const AuthorGraphExecutor = "graph-executor"

// Event object types emitted during a run.
const (
	// ObjectTypeNodeStart marks the dispatch of one node.
	ObjectTypeNodeStart = "graph.node.start"
	// ObjectTypeNodeComplete marks the successful completion of one node.
	ObjectTypeNodeComplete = "graph.node.complete"
	// ObjectTypeNodeError marks the failure of one node.
	ObjectTypeNodeError = "graph.node.error"
	// ObjectTypeNodeSkipped marks the pruning of one or more nodes.
	ObjectTypeNodeSkipped = "graph.node.skipped"
	// ObjectTypeNodeAwaiting marks a node paused for interaction.
	ObjectTypeNodeAwaiting = "graph.node.awaiting_interaction"
	// ObjectTypeExecutionComplete marks a run in which every node reached a
	// terminal phase.
	ObjectTypeExecutionComplete = "graph.execution.complete"
	// ObjectTypeExecutionPaused marks a run halted with at least one node
	// awaiting interaction.
	ObjectTypeExecutionPaused = "graph.execution.paused"
	// ObjectTypeExecutionStopped marks a run ended early by cancellation or
	// the stop-run failure policy.
	ObjectTypeExecutionStopped = "graph.execution.stopped"
	// ObjectTypeExecutionStalled marks a run that can make no further
	// progress while nodes remain pending, e.g. a failure under the
	// continue policy leaving dependents unsatisfiable.
	ObjectTypeExecutionStalled = "graph.execution.stalled"
)

// Event is one executor notification. Events stream in emission order over
// the channel returned by Executor.Execute.
type Event struct {
	// ID is the unique identifier of this event.
	ID string
	// InvocationID identifies the run the event belongs to.
	InvocationID string
	// Author identifies the component that produced the event.
	Author string
	// Object is the event type, one of the ObjectType constants.
	Object string
	// NodeID is the node the event refers to, empty for run-level events.
	NodeID string
	// Error holds the node error message for ObjectTypeNodeError.
	Error string
	// Skipped lists the ids pruned together in a skip event.
	Skipped []string
	// Progress is the snapshot taken right after the state change.
	Progress *ProgressSnapshot
	// Timestamp is the emission time.
	Timestamp time.Time
}

func newEvent(invocationID, object, nodeID string) *Event {
	return &Event{
		ID:           uuid.NewString(),
		InvocationID: invocationID,
		Author:       AuthorGraphExecutor,
		Object:       object,
		NodeID:       nodeID,
		Timestamp:    time.Now(),
	}
}
