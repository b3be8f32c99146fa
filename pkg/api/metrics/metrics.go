// Package metrics exposes the Prometheus scrape endpoint for Gantry's scan
// metrics over the HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gantry-dev/gantry/pkg/metrics"
)

// Handler serves metric data in the Prometheus exposition format.
type Handler struct {
	Path    string
	Handle  http.HandlerFunc
	Metrics *metrics.Metrics
}

// New creates the metrics endpoint handler, initializing the default metrics
// registry if needed.
func New() *Handler {
	handler := metrics.Default()

	return &Handler{
		Path:    "/v1/metrics",
		Handle:  promhttp.Handler().ServeHTTP,
		Metrics: handler,
	}
}
