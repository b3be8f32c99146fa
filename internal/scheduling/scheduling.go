// Package scheduling runs periodic update checks on a cron schedule,
// serializing runs through a shared lock and shutting down gracefully on
// interrupt signals.
package scheduling

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/pkg/metrics"
	"github.com/gantry-dev/gantry/pkg/types"
)

// StartupMessageFunc writes the startup log given the first scheduled run
// time and the filter description.
type StartupMessageFunc func(
	c *cobra.Command,
	sched time.Time,
	filtering string,
	scope string,
	client types.Client,
	notifier types.Notifier,
	version string,
)

// WaitForRunningUpdate blocks until an in-flight update run finishes,
// giving up after a timeout or when the context is cancelled.
func WaitForRunningUpdate(ctx context.Context, lock chan bool) {
	const updateWaitTimeout = 60 * time.Second

	logrus.Debug("Checking lock status before shutdown.")

	if len(lock) == 0 {
		select {
		case <-lock:
			logrus.Debug("Lock acquired, update finished.")
		case <-time.After(updateWaitTimeout):
			logrus.Warn("Timeout waiting for running update to finish, proceeding with shutdown.")
		case <-ctx.Done():
			logrus.Warn("Context cancelled while waiting for running update.")
		}
	} else {
		logrus.Debug("No update running, lock available.")
	}
}

// RunUpdatesOnSchedule schedules periodic update runs according to the cron
// specification and blocks until shutdown.
//
// The lock channel serializes scheduled runs against HTTP-triggered ones; a
// nil lock creates a fresh one. Shutdown happens on SIGINT, SIGTERM, or
// context cancellation, waiting for an in-flight run and flushing the
// notifier before returning.
func RunUpdatesOnSchedule(
	ctx context.Context,
	c *cobra.Command,
	filtering string,
	lock chan bool,
	scheduleSpec string,
	writeStartupMessage StartupMessageFunc,
	runUpdate func(ctx context.Context) *metrics.Metric,
	client types.Client,
	scope string,
	notifier types.Notifier,
	version string,
) error {
	if lock == nil {
		lock = make(chan bool, 1)
		lock <- true
	}

	scheduler := cron.New()

	updateFunc := func() {
		select {
		case v := <-lock:
			defer func() { lock <- v }()

			metric := runUpdate(ctx)
			metrics.Default().RegisterScan(metric)
			logrus.Debug("Update run completed")
		default:
			// A run is already in flight; count the skip and move on.
			metrics.Default().RegisterScan(nil)
			logrus.Debug("Skipped update, another run already in progress.")
		}

		nextRuns := scheduler.Entries()
		if len(nextRuns) > 0 {
			logrus.Debug("Scheduled next run: " + nextRuns[0].Next.String())
		}
	}

	if scheduleSpec != "" {
		if err := scheduler.AddFunc(scheduleSpec, updateFunc); err != nil {
			return fmt.Errorf("failed to schedule updates: %w", err)
		}
	}

	var nextRun time.Time
	if len(scheduler.Entries()) > 0 {
		nextRun = scheduler.Entries()[0].Schedule.Next(time.Now())
	}

	writeStartupMessage(c, nextRun, filtering, scope, client, notifier, version)

	scheduler.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logrus.Debug("Context canceled, stopping scheduler...")
	case <-interrupt:
		logrus.Debug("Received interrupt signal, stopping scheduler...")
	}

	scheduler.Stop()
	logrus.Debug("Waiting for running update to be finished...")

	WaitForRunningUpdate(ctx, lock)

	if notifier != nil {
		notifier.Close()
	}

	logrus.Debug("Scheduler stopped and update completed.")

	return nil
}
