//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import "strings"

// TypeInfo is the registry metadata for one node type.
type TypeInfo struct {
	// Category is the category assigned to nodes of this type when the node
	// record itself declares none.
	Category string
	// LoopController marks node types purpose-built to drive loop
	// iteration. The builder prefers these as loop entry points.
	LoopController bool
}

// TypeRegistry resolves node-type strings to their metadata. It is injected
// into the graph builder as a read-only collaborator.
type TypeRegistry interface {
	// Lookup returns the metadata for the given node type and whether the
	// registry knows the type at all.
	Lookup(nodeType string) (TypeInfo, bool)
}

// StaticTypeRegistry is a TypeRegistry backed by a fixed map, keyed by
// node-type string.
type StaticTypeRegistry map[string]TypeInfo

// Lookup implements TypeRegistry.
func (r StaticTypeRegistry) Lookup(nodeType string) (TypeInfo, bool) {
	info, ok := r[nodeType]
	return info, ok
}

// IsLoopControllerType reports whether a node type should be treated as a
// loop controller. The registry flag wins when the registry knows the type;
// otherwise the legacy name heuristic applies: a type containing "loop" or
// "while" (case-insensitively) is assumed to drive iteration.
func IsLoopControllerType(reg TypeRegistry, nodeType string) bool {
	if reg != nil {
		if info, ok := reg.Lookup(nodeType); ok {
			return info.LoopController
		}
	}
	lower := strings.ToLower(nodeType)
	return strings.Contains(lower, "loop") || strings.Contains(lower, "while")
}

// CategoryOf resolves the effective category of a node: its declared
// category when present, otherwise the registry's category for its type.
func CategoryOf(reg TypeRegistry, n Node) string {
	if n.Category != "" {
		return n.Category
	}
	if reg != nil {
		if info, ok := reg.Lookup(n.Type); ok {
			return info.Category
		}
	}
	return ""
}
