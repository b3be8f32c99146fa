// Package logging logs Gantry's startup information: version, notifier
// setup, filtering, scheduling, and HTTP API status.
package logging

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/internal/util"
	"github.com/gantry-dev/gantry/pkg/notifications"
	"github.com/gantry-dev/gantry/pkg/types"
)

// WriteStartupMessage logs or notifies startup information based on
// configuration flags: version, notification setup, container filtering,
// scheduling, and HTTP API status.
//
// sched is the time of the first scheduled run, or zero when no schedule is
// set. filtering is a human-readable description of the applied filter.
func WriteStartupMessage(
	c *cobra.Command,
	sched time.Time,
	filtering string,
	scope string,
	client types.Client,
	notifier types.Notifier,
	gantryVersion string,
) {
	noStartupMessage, _ := c.PersistentFlags().GetBool("no-startup-message")
	enableUpdateAPI, _ := c.PersistentFlags().GetBool("http-api-update")

	apiListenAddr, _ := c.PersistentFlags().GetString("http-api-host")

	apiPort, _ := c.PersistentFlags().GetString("http-api-port")
	if apiPort == "" {
		apiPort = "8080"
	}

	apiListenAddr = apiListenAddr + ":" + apiPort

	if noStartupMessage {
		return
	}

	startupLog := SetupStartupLogger(noStartupMessage, notifier)

	var apiVersion string
	if client != nil {
		apiVersion = client.GetVersion()
	}

	startupLog.Info("Gantry ", gantryVersion, " using Docker API v", apiVersion)

	var notifierNames []string
	if notifier != nil {
		notifierNames = notifier.GetNames()
	}

	LogNotifierInfo(startupLog, notifierNames)

	// Scope gets structured logging; plain filters only show up at debug.
	if scope != "" {
		startupLog.WithField("scope", scope).Info("Only checking containers in scope")
	} else {
		startupLog.Debug(filtering)
	}

	LogScheduleInfo(startupLog, c, sched)

	if enableUpdateAPI {
		startupLog.Info(fmt.Sprintf("The HTTP API is enabled at %s.", apiListenAddr))
	}

	// Flush the batched startup entries as one notification.
	if notifier != nil {
		notifier.SendNotification(nil)
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		startupLog.Warn(
			"Trace level enabled: log will include sensitive information as credentials and tokens",
		)
	}
}

// SetupStartupLogger returns the log entry startup messages are written to.
// When messages are suppressed it uses the local non-notifying logger,
// otherwise it opens a notification batch so startup info reaches the
// configured services in one message.
func SetupStartupLogger(noStartupMessage bool, notifier types.Notifier) *logrus.Entry {
	if noStartupMessage {
		return notifications.LocalLog
	}

	log := logrus.NewEntry(logrus.StandardLogger())

	if notifier != nil {
		notifier.StartNotification()
	}

	return log
}

// LogNotifierInfo logs the configured notification service names, or the
// lack of any.
func LogNotifierInfo(log *logrus.Entry, notifierNames []string) {
	if len(notifierNames) > 0 {
		log.Info("Using notifications: " + strings.Join(notifierNames, ", "))
	} else {
		log.Info("Using no notifications")
	}
}

// LogScheduleInfo logs when and how update runs will occur: scheduled,
// one-time, API-triggered, or the default periodic mode.
func LogScheduleInfo(log *logrus.Entry, c *cobra.Command, sched time.Time) {
	switch {
	case !sched.IsZero(): // scheduled runs
		until := util.FormatDuration(time.Until(sched))
		log.Info("Scheduling next run: " + sched.Format("2006-01-02 15:04:05 -0700 MST"))
		log.Info("Note that the next check will be performed in " + until)

	case func() bool { // one-time updates
		v, _ := c.PersistentFlags().GetBool("run-once")

		return v
	}():
		log.Info("Running a one time update.")

	case func() bool { // HTTP API without periodic polling
		a, _ := c.PersistentFlags().GetBool("http-api-update")
		b, _ := c.PersistentFlags().GetBool("http-api-periodic-polls")

		return a && !b
	}():
		log.Info("Updates via HTTP API enabled. Periodic updates are not enabled.")

	case func() bool { // HTTP API with periodic polling
		a, _ := c.PersistentFlags().GetBool("http-api-update")
		b, _ := c.PersistentFlags().GetBool("http-api-periodic-polls")

		return a && b
	}():
		log.Info("Updates via HTTP API enabled. Periodic updates are also enabled.")

	default: // default periodic
		log.Info("Periodic updates are enabled with default schedule.")
	}
}
