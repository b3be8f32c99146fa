// Package api wires Gantry's HTTP API endpoints to the update workflow and
// manages the server's lifecycle.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/api"
	metricsAPI "github.com/gantry-dev/gantry/pkg/api/metrics"
	"github.com/gantry-dev/gantry/pkg/api/update"
	"github.com/gantry-dev/gantry/pkg/metrics"
)

// Config carries the settings for the HTTP API.
type Config struct {
	Host             string
	Port             string
	Token            string
	EnableUpdateAPI  bool
	EnableMetricsAPI bool
	// Block keeps the server in the foreground. Set when the update API is
	// the only trigger, so the process has nothing else to do.
	Block bool
}

// GetAPIAddr formats the listen address, bracketing IPv6 hosts.
func GetAPIAddr(host, port string) string {
	address := host + ":" + port
	if host != "" && net.ParseIP(host) != nil && net.ParseIP(host).To4() == nil {
		address = "[" + host + "]:" + port
	}

	return address
}

// SetupAndStartAPI configures and launches the HTTP API if any endpoint is
// enabled.
//
// The update endpoint shares updateLock with the scheduler so HTTP-triggered
// and scheduled runs never overlap. runUpdate executes an update run for the
// given image targets and returns its metric.
//
// Returns an error if the server fails to start; a clean shutdown is not an
// error.
func SetupAndStartAPI(
	ctx context.Context,
	config Config,
	updateLock chan bool,
	runUpdate func(ctx context.Context, images []string) *metrics.Metric,
	server ...api.HTTPServer,
) error {
	address := GetAPIAddr(config.Host, config.Port)

	var httpAPI *api.API
	if len(server) > 0 {
		httpAPI = api.New(config.Token, address, server[0])
	} else {
		httpAPI = api.New(config.Token, address)
	}

	if config.EnableUpdateAPI {
		updateHandler := update.New(func(images []string) *metrics.Metric {
			metric := runUpdate(ctx, images)
			metrics.Default().RegisterScan(metric)

			return metric
		}, updateLock)
		httpAPI.RegisterFunc(updateHandler.Path, updateHandler.Handle)
	}

	if config.EnableMetricsAPI {
		metricsHandler := metricsAPI.New()
		httpAPI.RegisterHandler(metricsHandler.Path, metricsHandler.Handle)
	}

	if err := httpAPI.Start(ctx, config.Block); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Error("Failed to start API")

		return fmt.Errorf("failed to start HTTP API: %w", err)
	}

	return nil
}
