// Package metrics provides functionality for tracking and exposing Gantry
// scan metrics. It integrates with Prometheus to monitor container scan
// outcomes, including scanned, updated, restarted, and failed counts.
//
// Key components:
//   - Metric: Data points from a single scan.
//   - Metrics: Handler queuing metrics and exposing Prometheus collectors.
//
// Usage example:
//
//	handler := metrics.Default()
//	handler.RegisterScan(metrics.NewMetric(report))
//
// Scan metrics are processed asynchronously; a full queue drops metrics and
// increments the gantry_metrics_dropped_total counter.
package metrics
