// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for the orchestrating pipeline.
var meter = otel.Meter("rescan.analysis")

var (
	pipelineRuns    metric.Int64Counter
	pipelineLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		pipelineRuns, err = meter.Int64Counter(
			"analysis_pipeline_total",
			metric.WithDescription("End-to-end analysis pipeline runs by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		pipelineLatency, err = meter.Float64Histogram(
			"analysis_pipeline_duration_seconds",
			metric.WithDescription("End-to-end latency from trigger to publish"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordAnalysis records one pipeline run with its outcome and latency.
func recordAnalysis(ctx context.Context, outcome string, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	pipelineRuns.Add(ctx, 1, attrs)
	pipelineLatency.Record(ctx, d.Seconds(), attrs)
}
