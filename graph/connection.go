//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package graph provides the dependency-resolution and reactive-scheduling
// core of the workflow engine. A builder turns a declarative workflow
// definition into an ExecutionGraph once per run; the executor then drives
// the run by asking for ready nodes and reporting node outcomes back.
package graph

// Special target ports. A connection into one of these ports supplies
// contextual data to an already-scheduled node (a tool or memory attachment
// of an agent, or a human-in-the-loop UI panel) and never imposes ordering.
const (
	PortTools  = "tools"
	PortMemory = "memory"
	PortUI     = "ui"
)

// Connection is the immutable runtime descriptor of one edge between two
// node ports.
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

// IsSpecial reports whether the connection targets a special port. Special
// connections carry data but never affect ordering; everything else is a
// regular connection that must complete before its target runs.
func (c Connection) IsSpecial() bool {
	switch c.TargetPort {
	case PortTools, PortMemory, PortUI:
		return true
	}
	return false
}
