//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "errors"

var (
	// ErrNilWorkflow is returned when Build is called without a workflow.
	ErrNilWorkflow = errors.New("workflow cannot be nil")
	// ErrUnknownConnectionNode is returned when a connection references a
	// node id absent from the workflow's node list.
	ErrUnknownConnectionNode = errors.New("connection references unknown node")
	// ErrNodeNotFound is returned by graph mutations targeting an unknown
	// node id.
	ErrNodeNotFound = errors.New("node not found")
	// ErrNilRunner is returned when an executor is created without a runner.
	ErrNilRunner = errors.New("node runner cannot be nil")
	// ErrNilGraph is returned when an executor is created without a graph.
	ErrNilGraph = errors.New("execution graph cannot be nil")
)
