//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the shared tracer and meter state used by the
// graph executor. Both default to noop implementations; the public
// telemetry packages install real providers.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// telemetry service constants.
const (
	ServiceName      = "telemetry"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-flow"
	InstrumentName   = "trpc.flow.go"

	MeterNameGraphExecution = "graph_execution"

	OperationExecuteNode = "execute_node"
)

// telemetry attribute keys.
var (
	KeyWorkflowID   = "trpc.go.flow.workflow_id"
	KeyInvocationID = "trpc.go.flow.invocation_id"
	KeyNodeID       = "trpc.go.flow.node_id"
	KeyNodePhase    = "trpc.go.flow.node_phase"

	KeyErrorType          = "error.type"
	ValueDefaultErrorType = "_OTHER"
)

// metric names.
const (
	MetricNodeCompletedCnt   = "trpc_go_flow_node_completed_cnt"
	MetricNodeFailedCnt      = "trpc_go_flow_node_failed_cnt"
	MetricNodeSkippedCnt     = "trpc_go_flow_node_skipped_cnt"
	MetricNodeRunDuration    = "trpc_go_flow_node_run_duration"
	MetricExecutionStartCnt  = "trpc_go_flow_execution_start_cnt"
	MetricExecutionFinishCnt = "trpc_go_flow_execution_finish_cnt"
)

var (
	// TracerProvider and Tracer are the tracing entry points. The otel
	// global default is a noop until an SDK provider is installed.
	TracerProvider trace.TracerProvider = otel.GetTracerProvider()
	Tracer         trace.Tracer         = TracerProvider.Tracer(InstrumentName)

	// MeterProvider and the instruments below stay noop until
	// telemetry/metric.InitMeterProvider installs a real provider.
	MeterProvider metric.MeterProvider = noop.NewMeterProvider()
	Meter         metric.Meter         = MeterProvider.Meter(MeterNameGraphExecution)

	NodeCompletedCnt   metric.Int64Counter     = noop.Int64Counter{}
	NodeFailedCnt      metric.Int64Counter     = noop.Int64Counter{}
	NodeSkippedCnt     metric.Int64Counter     = noop.Int64Counter{}
	NodeRunDuration    metric.Float64Histogram = noop.Float64Histogram{}
	ExecutionStartCnt  metric.Int64Counter     = noop.Int64Counter{}
	ExecutionFinishCnt metric.Int64Counter     = noop.Int64Counter{}
)

// NewExecuteNodeSpanName creates the span name for one node execution,
// for example "execute_node http-request-1".
func NewExecuteNodeSpanName(nodeID string) string {
	return fmt.Sprintf("%s %s", OperationExecuteNode, nodeID)
}
