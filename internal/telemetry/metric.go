//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// IncNodeCompleted counts one completed node for the given workflow.
func IncNodeCompleted(ctx context.Context, workflowID string) {
	NodeCompletedCnt.Add(ctx, 1,
		metric.WithAttributes(attribute.String(KeyWorkflowID, workflowID)))
}

// IncNodeFailed counts one failed node for the given workflow.
func IncNodeFailed(ctx context.Context, workflowID string) {
	NodeFailedCnt.Add(ctx, 1,
		metric.WithAttributes(attribute.String(KeyWorkflowID, workflowID)))
}

// IncNodeSkipped counts n skipped nodes for the given workflow.
func IncNodeSkipped(ctx context.Context, workflowID string, n int64) {
	NodeSkippedCnt.Add(ctx, n,
		metric.WithAttributes(attribute.String(KeyWorkflowID, workflowID)))
}

// RecordNodeRunDuration records how long one node execution took.
func RecordNodeRunDuration(ctx context.Context, workflowID, nodeID string, duration time.Duration) {
	NodeRunDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String(KeyWorkflowID, workflowID),
			attribute.String(KeyNodeID, nodeID),
		))
}

// IncExecutionStart counts one started workflow run.
func IncExecutionStart(ctx context.Context, workflowID string) {
	ExecutionStartCnt.Add(ctx, 1,
		metric.WithAttributes(attribute.String(KeyWorkflowID, workflowID)))
}

// IncExecutionFinish counts one finished workflow run with its final state.
func IncExecutionFinish(ctx context.Context, workflowID, outcome string) {
	ExecutionFinishCnt.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(KeyWorkflowID, workflowID),
			attribute.String(KeyNodePhase, outcome),
		))
}
