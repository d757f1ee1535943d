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

	"trpc.group/trpc-go/trpc-flow-go/log"
	"trpc.group/trpc-go/trpc-flow-go/workflow"
)

// BuildOption configures the graph builder.
type BuildOption func(*buildOptions)

type buildOptions struct {
	registry workflow.TypeRegistry
}

// WithTypeRegistry injects the node-type registry used to resolve node
// categories and the loop-controller capability. Without a registry the
// builder falls back to the declared node categories and the legacy
// loop/while name heuristic.
func WithTypeRegistry(registry workflow.TypeRegistry) BuildOption {
	return func(o *buildOptions) {
		o.registry = registry
	}
}

// Build turns a workflow definition into a fully populated ExecutionGraph:
// it classifies connections, computes dependency counts, classifies special
// nodes, finds sources and sinks, detects cycles and adjusts loop-entry
// dependency counts so the first iteration can start.
//
// A connection referencing an unknown node is a fatal construction error;
// the graph is never returned partially built.
func Build(wf *workflow.Workflow, opts ...BuildOption) (*ExecutionGraph, error) {
	if wf == nil {
		return nil, ErrNilWorkflow
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}
	var options buildOptions
	for _, opt := range opts {
		opt(&options)
	}

	g := newExecutionGraph(wf.ID)
	for _, n := range wf.Nodes {
		g.Nodes[n.ID] = newNodeDependencies(n.ID)
		g.order = append(g.order, n.ID)
	}

	// dependents mirrors each node's dependent set in connection order so
	// cycle detection traverses deterministically.
	dependents := make(map[string][]string)
	for _, c := range wf.Connections {
		conn := Connection{
			ID:           c.ID,
			SourceNodeID: c.SourceNodeID,
			SourcePort:   c.SourcePort,
			TargetNodeID: c.TargetNodeID,
			TargetPort:   c.TargetPort,
			Metadata:     c.Metadata,
		}
		source, ok := g.Nodes[conn.SourceNodeID]
		if !ok {
			return nil, fmt.Errorf("%w: connection %s source %s",
				ErrUnknownConnectionNode, conn.ID, conn.SourceNodeID)
		}
		target, ok := g.Nodes[conn.TargetNodeID]
		if !ok {
			return nil, fmt.Errorf("%w: connection %s target %s",
				ErrUnknownConnectionNode, conn.ID, conn.TargetNodeID)
		}
		// Every connection is cached for data-flow use, but only regular
		// ones impose ordering.
		source.OutputConnections = append(source.OutputConnections, conn)
		target.InputConnections = append(target.InputConnections, conn)
		if conn.IsSpecial() {
			continue
		}
		if !target.Dependencies[conn.SourceNodeID] {
			target.Dependencies[conn.SourceNodeID] = true
			source.Dependents[conn.TargetNodeID] = true
			dependents[conn.SourceNodeID] = append(dependents[conn.SourceNodeID], conn.TargetNodeID)
		}
	}

	for _, node := range g.Nodes {
		node.OriginalDepCount = len(node.Dependencies)
		node.RemainingDeps = node.OriginalDepCount
	}

	classifySpecialNodes(g, wf, options.registry)
	for _, id := range g.order {
		node := g.Nodes[id]
		if node.OriginalDepCount == 0 && !g.ToolsMemoryOnlyNodes[id] && !g.UINodes[id] {
			g.SourceNodes[id] = true
		}
		if len(node.Dependents) == 0 {
			g.SinkNodes[id] = true
		}
	}

	cycles := findCycles(g.order, dependents)
	if len(cycles) > 0 {
		g.HasLoops = true
		g.LoopBackEdges = cycles
		adjustLoopEntries(g, wf, cycles, options.registry)
	}

	if len(g.SourceNodes) == 0 {
		log.Warnf("workflow %s built with no source nodes; execution must be driven by an external event", wf.ID)
	}
	return g, nil
}

func classifySpecialNodes(g *ExecutionGraph, wf *workflow.Workflow, registry workflow.TypeRegistry) {
	for _, n := range wf.Nodes {
		node := g.Nodes[n.ID]
		if len(node.OutputConnections) > 0 && !hasRegularOutput(node) {
			g.ToolsMemoryOnlyNodes[n.ID] = true
		}
		if workflow.CategoryOf(registry, n) == workflow.CategoryUI {
			g.UINodes[n.ID] = true
		}
	}
}

func hasRegularOutput(node *NodeDependencies) bool {
	for _, conn := range node.OutputConnections {
		if !conn.IsSpecial() {
			return true
		}
	}
	return false
}

// findCycles walks the dependents relation depth-first, tracking the active
// recursion path. Whenever a dependent is found already on the path, the
// sub-path from that node to the current node (inclusive) is one cycle.
// Multiple disjoint cycles may be found.
func findCycles(order []string, dependents map[string][]string) [][]string {
	visited := make(map[string]bool, len(order))
	onPath := make(map[string]bool, len(order))
	pathIndex := make(map[string]int, len(order))
	var path []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		if onPath[id] {
			cycle := make([]string, len(path)-pathIndex[id])
			copy(cycle, path[pathIndex[id]:])
			cycles = append(cycles, cycle)
			return
		}
		if visited[id] {
			return
		}
		visited[id] = true
		onPath[id] = true
		pathIndex[id] = len(path)
		path = append(path, id)
		for _, dep := range dependents[id] {
			visit(dep)
		}
		path = path[:len(path)-1]
		onPath[id] = false
	}

	for _, id := range order {
		visit(id)
	}
	return cycles
}

// adjustLoopEntries picks an entry point per cycle and holds its back-edges
// aside so the entry can become ready on the very first iteration despite
// an edge that is only satisfied after the loop body has executed once.
func adjustLoopEntries(g *ExecutionGraph, wf *workflow.Workflow, cycles [][]string, registry workflow.TypeRegistry) {
	typeByID := make(map[string]string, len(wf.Nodes))
	for _, n := range wf.Nodes {
		typeByID[n.ID] = n.Type
	}

	for _, cycle := range cycles {
		// Prefer a control node purpose-built to drive iteration; otherwise
		// fall back to the first node encountered on the cycle's path.
		entryID := cycle[0]
		for _, id := range cycle {
			if workflow.IsLoopControllerType(registry, typeByID[id]) {
				entryID = id
				break
			}
		}
		g.SourceNodes[entryID] = true

		inCycle := make(map[string]bool, len(cycle))
		for _, id := range cycle {
			inCycle[id] = true
		}
		entry := g.Nodes[entryID]
		var backEdges []string
		for depID := range entry.Dependencies {
			if inCycle[depID] {
				backEdges = append(backEdges, depID)
			}
		}
		if len(backEdges) == 0 {
			continue
		}
		for _, depID := range backEdges {
			delete(entry.Dependencies, depID)
			entry.LoopBackDependencies[depID] = true
		}
		entry.OriginalDepCount = len(entry.Dependencies)
		entry.RemainingDeps = entry.OriginalDepCount
	}
}
