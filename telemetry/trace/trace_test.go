//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	itelemetry "trpc.group/trpc-go/trpc-flow-go/internal/telemetry"
)

func TestInitTracerProviderNil(t *testing.T) {
	assert.Error(t, InitTracerProvider(nil))
}

func TestInitTracerProviderInstallsTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, InitTracerProvider(tp))
	assert.Same(t, tp, GetTracerProvider().(*sdktrace.TracerProvider))

	_, span := itelemetry.Tracer.Start(context.Background(), itelemetry.NewExecuteNodeSpanName("node-1"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "execute_node node-1", spans[0].Name())
	assert.Equal(t, itelemetry.InstrumentName, spans[0].InstrumentationScope().Name)
}
