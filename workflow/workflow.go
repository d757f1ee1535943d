//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package workflow defines the declarative workflow records consumed by the
// graph builder: the node list, the connection list, and the node-type
// registry that supplies per-type metadata.
package workflow

import (
	"errors"
	"fmt"
)

// CategoryUI is the declared category of human-in-the-loop UI nodes.
const CategoryUI = "ui"

// Node is one declared unit of work in a workflow definition.
type Node struct {
	// ID is the unique identifier of the node within the workflow.
	ID string
	// Type is the node-type string resolved through the TypeRegistry.
	Type string
	// Category is the declared category of the node. When empty, the
	// builder falls back to the registry's category for Type.
	Category string
}

// Connection is a directed edge between a source node's output port and a
// target node's input port.
type Connection struct {
	// ID is the unique identifier of the connection.
	ID string
	// SourceNodeID and SourcePort identify the producing end.
	SourceNodeID string
	SourcePort   string
	// TargetNodeID and TargetPort identify the consuming end.
	TargetNodeID string
	TargetPort   string
	// Metadata carries opaque connection data for the executor.
	Metadata map[string]any
}

// Workflow is the declarative definition a run is built from.
type Workflow struct {
	// ID identifies the workflow this definition belongs to.
	ID string
	// Nodes is the ordered node list.
	Nodes []Node
	// Connections is the edge list, including special-port attachments.
	Connections []Connection
}

// Validation errors returned by Workflow.Validate.
var (
	ErrEmptyNodeID             = errors.New("node ID cannot be empty")
	ErrDuplicateNodeID         = errors.New("duplicate node ID")
	ErrEmptyConnectionEndpoint = errors.New("connection endpoints cannot be empty")
)

// Validate checks the definition for structural problems that would make it
// impossible to build an execution graph from it.
func (w *Workflow) Validate() error {
	seen := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if n.ID == "" {
			return ErrEmptyNodeID
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
		seen[n.ID] = true
	}
	for _, c := range w.Connections {
		if c.SourceNodeID == "" || c.TargetNodeID == "" {
			return fmt.Errorf("%w: connection %s", ErrEmptyConnectionEndpoint, c.ID)
		}
	}
	return nil
}
