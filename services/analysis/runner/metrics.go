// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for one-shot analysis runs.
var meter = otel.Meter("rescan.runner")

var (
	runLatency  metric.Float64Histogram
	runsTotal   metric.Int64Counter
	reportItems metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"analysis_run_duration_seconds",
			metric.WithDescription("Wall time of one-shot analysis runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runsTotal, err = meter.Int64Counter(
			"analysis_runs_total",
			metric.WithDescription("One-shot analysis runs by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		reportItems, err = meter.Int64Histogram(
			"analysis_report_items",
			metric.WithDescription("Diagnostic items per successful run"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordRun records one run with its outcome and latency.
func recordRun(ctx context.Context, outcome string, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	runsTotal.Add(ctx, 1, attrs)
	runLatency.Record(ctx, d.Seconds(), attrs)
}

// recordItems records the item count of a successful run.
func recordItems(ctx context.Context, n int) {
	if err := initMetrics(); err != nil {
		return
	}
	reportItems.Record(ctx, int64(n))
}
