package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gantry-dev/gantry/pkg/types"
)

var metrics *Metrics

// Metric holds data points from a Gantry scan.
type Metric struct {
	Scanned   int // Number of containers scanned.
	Updated   int // Number of containers updated (excludes stale).
	Failed    int // Number of containers failed.
	Restarted int // Number of containers restarted onto an already pulled image.
}

// Metrics handles processing and exposing scan metrics.
type Metrics struct {
	channel        chan *Metric       // Channel for queuing metrics.
	scanned        prometheus.Gauge   // Gauge for scanned containers.
	updated        prometheus.Gauge   // Gauge for updated containers.
	failed         prometheus.Gauge   // Gauge for failed containers.
	restarted      prometheus.Gauge   // Gauge for restarted containers.
	restartedTotal prometheus.Counter // Counter for total restarted containers.
	total          prometheus.Counter // Counter for total scans.
	skipped        prometheus.Counter // Counter for skipped scans.
	dropped        prometheus.Counter // Counter for dropped metrics.
	stopCh         chan struct{}      // Channel for shutdown signaling.
	shutdownOnce   sync.Once          // Ensures shutdown is called only once.
	//nolint:containedctx
	ctx    context.Context    // Context for cancellation.
	cancel context.CancelFunc // Cancel function for the context.
}

// NewWithRegistry creates a new Metrics handler with a custom Prometheus
// registry and starts its processing goroutine.
func NewWithRegistry(registry prometheus.Registerer) (*Metrics, error) {
	// channelBufferSize sets the metrics channel capacity.
	const channelBufferSize = 10

	ctx, cancel := context.WithCancel(context.Background())

	metrics := &Metrics{
		scanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gantry_containers_scanned",
			Help: "Number of containers scanned for changes by gantry during the last scan",
		}),
		updated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gantry_containers_updated",
			Help: "Number of containers updated by gantry during the last scan",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gantry_containers_failed",
			Help: "Number of containers where update failed during the last scan",
		}),
		restarted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gantry_containers_restarted",
			Help: "Number of containers restarted onto an already pulled image during the last scan",
		}),
		restartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gantry_containers_restarted_total",
			Help: "Total number of containers restarted onto an already pulled image",
		}),
		total: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gantry_scans_total",
			Help: "Number of scans since gantry started",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gantry_scans_skipped_total",
			Help: "Number of skipped scans since gantry started",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gantry_metrics_dropped_total",
			Help: "Number of metrics dropped due to full channel",
		}),
		channel: make(chan *Metric, channelBufferSize),
		stopCh:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	// Registering an already registered collector is an error to avoid
	// duplicate collectors.
	metricsList := []prometheus.Collector{
		metrics.scanned,
		metrics.updated,
		metrics.failed,
		metrics.restarted,
		metrics.restartedTotal,
		metrics.total,
		metrics.skipped,
		metrics.dropped,
	}
	for _, m := range metricsList {
		err := registry.Register(m)
		if err != nil {
			alreadyRegisteredError := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, &alreadyRegisteredError) {
				return nil, fmt.Errorf("failed to register metric: %w", err)
			}
		}
	}

	go metrics.HandleUpdate()

	return metrics, nil
}

// NewMetric creates a Metric from a scan report.
func NewMetric(report types.Report) *Metric {
	if report == nil {
		panic("NewMetric: report is nil")
	}

	return &Metric{
		Scanned:   len(report.Scanned()),
		Updated:   len(report.Updated()), // Only count actually updated containers.
		Failed:    len(report.Failed()),
		Restarted: len(report.Restarted()),
	}
}

// QueueIsEmpty checks if the metrics channel is empty.
func (m *Metrics) QueueIsEmpty() bool {
	return len(m.channel) == 0
}

// Register attempts to enqueue a metric for processing. If the channel is
// full, the metric is dropped and the dropped counter is incremented.
func (m *Metrics) Register(metric *Metric) {
	select {
	case m.channel <- metric:
	default:
		m.dropped.Inc()
	}
}

// Default initializes or returns the singleton Metrics handler. It panics on
// registration failure, such as duplicate registration against the default
// registry.
func Default() *Metrics {
	if metrics != nil {
		return metrics
	}

	var err error

	metrics, err = NewWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	return metrics
}

// RegisterScan enqueues a scan metric.
func (m *Metrics) RegisterScan(metric *Metric) {
	m.Register(metric)
}

// Shutdown gracefully stops the metrics processing goroutine. It is
// idempotent and can be called multiple times safely.
func (m *Metrics) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.stopCh)
		m.cancel()
	})
}

// HandleUpdate processes metrics from the channel.
func (m *Metrics) HandleUpdate() {
	for {
		select {
		case change, ok := <-m.channel:
			if !ok {
				// Channel closed: exit handler.
				return
			}

			if change == nil {
				// Update was skipped and rescheduled.
				m.total.Inc()
				m.skipped.Inc()
				m.scanned.Set(0)
				m.updated.Set(0)
				m.failed.Set(0)
				m.restarted.Set(0)

				continue
			}

			m.total.Inc()
			m.scanned.Set(float64(change.Scanned))
			m.updated.Set(float64(change.Updated))
			m.failed.Set(float64(change.Failed))
			m.restarted.Set(float64(change.Restarted))
			m.restartedTotal.Add(float64(change.Restarted))
		case <-m.stopCh:
			return
		case <-m.ctx.Done():
			return
		}
	}
}
