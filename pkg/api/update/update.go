// Package update provides the HTTP API handler for triggering container
// update runs, with concurrency control and image targeting.
package update

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/metrics"
)

// Handler triggers container update scans via HTTP.
type Handler struct {
	fn   func(images []string) *metrics.Metric // Update execution function.
	Path string                                // API endpoint path.
	lock chan bool                             // Serializes concurrent update runs.
}

// New creates a new Handler instance. The updateLock channel is shared with
// the scheduler so HTTP-triggered and scheduled runs never overlap; if nil,
// a new lock is created.
func New(updateFn func(images []string) *metrics.Metric, updateLock chan bool) *Handler {
	var hLock chan bool

	if updateLock != nil {
		hLock = updateLock

		logrus.WithField("source", "provided").
			Debug("Initialized update lock from provided channel")
	} else {
		hLock = make(chan bool, 1)
		hLock <- true

		logrus.Debug("Initialized new update lock channel")
	}

	return &Handler{
		fn:   updateFn,
		Path: "/v1/update",
		lock: hLock,
	}
}

// Handle processes HTTP update requests.
//
// Targeted updates (with "image" query parameters) block until the lock is
// available, so the named images are updated even when another run is in
// progress. Full updates return HTTP 429 immediately when a run is already
// underway, since queuing a redundant full scan provides no benefit.
func (handle *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	logrus.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Info("Received HTTP API update request")

	_, err := io.Copy(io.Discard, r.Body)
	if err != nil {
		logrus.WithError(err).Debug("Failed to read request body")
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)

		return
	}

	var images []string

	imageQueries, found := r.URL.Query()["image"]
	if found {
		for _, image := range imageQueries {
			images = append(images, strings.Split(image, ",")...)
		}

		logrus.WithField("images", images).Debug("Extracted images from query parameters")
	}

	if len(images) > 0 {
		// Targeted update: block until the lock is available, watching the
		// request context so a disconnecting client does not leak us.
		select {
		case chanValue := <-handle.lock:
			defer func() { handle.lock <- chanValue }()
		case <-r.Context().Done():
			logrus.Debug("Request cancelled while waiting for update lock")
			http.Error(w, "request cancelled", http.StatusServiceUnavailable)

			return
		}

		logrus.WithField("images", images).Info("Executing targeted update")
	} else {
		select {
		case chanValue := <-handle.lock:
			defer func() { handle.lock <- chanValue }()
		default:
			logrus.Debug("Skipped update, another update already in progress")
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "another update is already running",
				"api_version": "v1",
				"timestamp":   time.Now().UTC().Format(time.RFC3339),
			}, map[string]string{"Retry-After": "30"})

			return
		}

		logrus.Info("Executing full update")
	}

	startTime := time.Now()
	metric := handle.fn(images)
	duration := time.Since(startTime)

	writeJSON(w, http.StatusOK, map[string]any{
		"summary": map[string]any{
			"scanned":   metric.Scanned,
			"updated":   metric.Updated,
			"failed":    metric.Failed,
			"restarted": metric.Restarted,
		},
		"timing": map[string]any{
			"duration_ms": duration.Milliseconds(),
			"duration":    duration.String(),
		},
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"api_version": "v1",
	}, nil)
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any, headers map[string]string) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	for k, v := range headers {
		w.Header().Set(k, v)
	}

	w.WriteHeader(status)

	if _, err := w.Write(buf.Bytes()); err != nil {
		logrus.WithError(err).Error("Failed to write response")
	}
}
