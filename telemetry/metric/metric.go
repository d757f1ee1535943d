//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package metric provides metrics collection functionality for the
// trpc-flow-go workflow engine. It integrates with OpenTelemetry.
package metric

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"

	itelemetry "trpc.group/trpc-go/trpc-flow-go/internal/telemetry"
)

// InitMeterProvider initializes the meter provider and the graph execution
// instruments.
func InitMeterProvider(mp metric.MeterProvider) error {
	if mp == nil {
		return fmt.Errorf("meter provider is nil")
	}
	itelemetry.MeterProvider = mp
	itelemetry.Meter = mp.Meter(itelemetry.MeterNameGraphExecution)

	var err error
	if itelemetry.NodeCompletedCnt, err = itelemetry.Meter.Int64Counter(
		itelemetry.MetricNodeCompletedCnt,
		metric.WithDescription("Total number of completed nodes"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create metric NodeCompletedCnt: %w", err)
	}
	if itelemetry.NodeFailedCnt, err = itelemetry.Meter.Int64Counter(
		itelemetry.MetricNodeFailedCnt,
		metric.WithDescription("Total number of failed nodes"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create metric NodeFailedCnt: %w", err)
	}
	if itelemetry.NodeSkippedCnt, err = itelemetry.Meter.Int64Counter(
		itelemetry.MetricNodeSkippedCnt,
		metric.WithDescription("Total number of skipped nodes"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create metric NodeSkippedCnt: %w", err)
	}
	if itelemetry.NodeRunDuration, err = itelemetry.Meter.Float64Histogram(
		itelemetry.MetricNodeRunDuration,
		metric.WithDescription("Duration of one node execution"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create metric NodeRunDuration: %w", err)
	}
	if itelemetry.ExecutionStartCnt, err = itelemetry.Meter.Int64Counter(
		itelemetry.MetricExecutionStartCnt,
		metric.WithDescription("Total number of started workflow runs"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create metric ExecutionStartCnt: %w", err)
	}
	if itelemetry.ExecutionFinishCnt, err = itelemetry.Meter.Int64Counter(
		itelemetry.MetricExecutionFinishCnt,
		metric.WithDescription("Total number of finished workflow runs"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create metric ExecutionFinishCnt: %w", err)
	}
	return nil
}

// GetMeterProvider returns the meter provider.
func GetMeterProvider() metric.MeterProvider {
	return itelemetry.MeterProvider
}
