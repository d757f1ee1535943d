//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package trace provides tracing functionality for the trpc-flow-go
// workflow engine. It integrates with OpenTelemetry.
package trace

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"

	itelemetry "trpc.group/trpc-go/trpc-flow-go/internal/telemetry"
)

// InitTracerProvider installs the tracer provider used for node execution
// spans.
func InitTracerProvider(tp trace.TracerProvider) error {
	if tp == nil {
		return fmt.Errorf("tracer provider is nil")
	}
	itelemetry.TracerProvider = tp
	itelemetry.Tracer = tp.Tracer(itelemetry.InstrumentName)
	return nil
}

// GetTracerProvider returns the tracer provider.
func GetTracerProvider() trace.TracerProvider {
	return itelemetry.TracerProvider
}
