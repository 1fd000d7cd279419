// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for server lifecycle metrics.
var meter = otel.Meter("rescan.registry")

var (
	serverEvents   metric.Int64Counter
	socketWait     metric.Float64Histogram
	socketTimeouts metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		serverEvents, err = meter.Int64Counter(
			"analysis_server_events_total",
			metric.WithDescription("Server lifecycle events (started, adopted, stopped, exited)"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		socketWait, err = meter.Float64Histogram(
			"analysis_server_socket_wait_seconds",
			metric.WithDescription("Time until the control socket appeared after spawn"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		socketTimeouts, err = meter.Int64Counter(
			"analysis_server_socket_timeouts_total",
			metric.WithDescription("Spawns whose control socket never appeared within the ceiling"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordServerEvent counts one lifecycle event.
func recordServerEvent(ctx context.Context, event string) {
	if err := initMetrics(); err != nil {
		return
	}
	serverEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// recordSocketWait records how long the socket took to appear.
func recordSocketWait(ctx context.Context, d time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	socketWait.Record(ctx, d.Seconds())
}

// recordSocketTimeout counts one socket-wait timeout.
func recordSocketTimeout(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	socketTimeouts.Add(ctx, 1)
}
