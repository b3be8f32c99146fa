package cmd

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/internal/actions"
	"github.com/gantry-dev/gantry/internal/api"
	"github.com/gantry-dev/gantry/internal/flags"
	"github.com/gantry-dev/gantry/internal/logging"
	"github.com/gantry-dev/gantry/internal/meta"
	"github.com/gantry-dev/gantry/internal/scheduling"
	"github.com/gantry-dev/gantry/pkg/container"
	"github.com/gantry-dev/gantry/pkg/filters"
	"github.com/gantry-dev/gantry/pkg/metrics"
	"github.com/gantry-dev/gantry/pkg/notifications"
	"github.com/gantry-dev/gantry/pkg/registry"
	"github.com/gantry-dev/gantry/pkg/types"
)

// client is the Docker engine client used for all container operations.
// It is initialized during preRun from DOCKER_HOST, DOCKER_TLS_VERIFY, and
// DOCKER_API_VERSION.
var client types.Client

// registryClient talks the registry v2 API for tag listing and digest
// queries during update detection.
var registryClient types.RegistryClient

// orchestrator runs update sessions against the engine and the registry.
var orchestrator *actions.Orchestrator

// notifier delivers update session reports to the configured shoutrrr URLs.
var notifier types.Notifier

// scheduleSpec holds the cron expression that dictates when periodic update
// runs occur, derived from --schedule or --interval.
var scheduleSpec string

// Core update behavior, read once in preRun.
var (
	noRestart         bool
	monitorOnly       bool
	dryRun            bool
	allowMajor        bool
	lifecycleHooks    bool
	labelPrecedence   bool
	enableLabel       bool
	disableContainers []string
	scope             string
	timeout           time.Duration
)

// rootCmd is the root command for the Gantry CLI.
var rootCmd = NewRootCommand()

// RunConfig encapsulates the configuration parameters for the runMain
// function, derived from flags and positional arguments.
type RunConfig struct {
	// Command is the executed cobra.Command, providing access to parsed flags.
	Command *cobra.Command
	// Names holds container names given as positional arguments.
	Names []string
	// Filter determines which containers are processed during updates.
	Filter types.Filter
	// FilterDesc is a human-readable description of the applied filter.
	FilterDesc string
	// RunOnce performs a single update run and exits.
	RunOnce bool
	// EnableUpdateAPI enables the HTTP update endpoint.
	EnableUpdateAPI bool
	// EnableMetricsAPI enables the HTTP metrics endpoint.
	EnableMetricsAPI bool
	// UnblockHTTPAPI keeps periodic runs enabled alongside the HTTP API.
	UnblockHTTPAPI bool
	// APIToken is the bearer token for HTTP API access.
	APIToken string
	// APIHost is the host the HTTP API binds to, empty for all interfaces.
	APIHost string
	// APIPort is the port for the HTTP API server.
	APIPort string
}

// NewRootCommand creates and configures the root command for the Gantry CLI.
func NewRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "gantry",
		Short:  "Automatically updates running Docker containers",
		Long:   "\nGantry automatically updates running Docker containers whenever a newer image version or a moved tag is published.",
		Run:    run,
		PreRun: preRun,
		Args:   cobra.ArbitraryArgs, // Positional arguments are container names.
	}
}

// init registers command-line flags for the root command.
func init() {
	flags.SetDefaults()
	flags.RegisterDockerFlags(rootCmd)
	flags.RegisterSystemFlags(rootCmd)
	flags.RegisterNotificationFlags(rootCmd)
}

// Execute runs the root command and terminates the program on fatal errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("Failed to execute root command")
	}
}

// preRun prepares logging, configuration, and the Docker and registry
// clients before the main command execution begins.
func preRun(cmd *cobra.Command, _ []string) {
	flagsSet := cmd.PersistentFlags()
	flags.ProcessFlagAliases(flagsSet)

	if err := flags.SetupLogging(flagsSet); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logging")
	}

	scheduleSpec, _ = flagsSet.GetString("schedule")
	logrus.WithField("schedule_spec", scheduleSpec).
		Debug("Retrieved cron schedule specification from flags")

	flags.GetSecretsFromFiles(cmd)

	timeout, _ = flagsSet.GetDuration("stop-timeout")
	if timeout < 0 {
		logrus.Fatal("Please specify a positive value for timeout value.")
	}

	noRestart, _ = flagsSet.GetBool("no-restart")
	monitorOnly, _ = flagsSet.GetBool("monitor-only")
	dryRun, _ = flagsSet.GetBool("dry-run")
	allowMajor, _ = flagsSet.GetBool("allow-major-upgrades")
	lifecycleHooks, _ = flagsSet.GetBool("enable-lifecycle-hooks")
	labelPrecedence, _ = flagsSet.GetBool("label-take-precedence")
	enableLabel, _ = flagsSet.GetBool("label-enable")
	disableContainers, _ = flagsSet.GetStringSlice("disable-containers")
	scope, _ = flagsSet.GetString("scope")

	if scope != "" {
		logrus.WithField("scope", scope).Debug("Configured operational scope")
	}

	// Export DOCKER_HOST and friends so the engine client picks them up.
	if err := flags.EnvConfig(cmd); err != nil {
		logrus.WithError(err).Fatal("Failed to configure Docker environment")
	}

	includeStopped, _ := flagsSet.GetBool("include-stopped")
	includeRestarting, _ := flagsSet.GetBool("include-restarting")
	reviveStopped, _ := flagsSet.GetBool("revive-stopped")

	client = container.NewClient(container.ClientOptions{
		IncludeStopped:    includeStopped,
		ReviveStopped:     reviveStopped,
		IncludeRestarting: includeRestarting,
	})

	registryClient = registry.NewClient()
	orchestrator = actions.NewOrchestrator(client, registryClient)

	notifier = notifications.NewNotifier(cmd)
	notifier.AddLogHook()
}

// run executes the main Gantry logic based on parsed command-line flags.
//
// It builds the container filter, determines the operational mode (one-time
// run, HTTP API, or scheduled runs), and delegates to runMain, exiting with
// a non-zero status on failure.
func run(c *cobra.Command, names []string) {
	filter, filterDesc := filters.BuildFilter(names, disableContainers, enableLabel, scope)

	flagsSet := c.PersistentFlags()

	runOnce, _ := flagsSet.GetBool("run-once")
	enableUpdateAPI, _ := flagsSet.GetBool("http-api-update")
	enableMetricsAPI, _ := flagsSet.GetBool("http-api-metrics")
	unblockHTTPAPI, _ := flagsSet.GetBool("http-api-periodic-polls")
	apiToken, _ := flagsSet.GetString("http-api-token")

	apiHost, err := flagsSet.GetString("http-api-host")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to get http-api-host flag")
	}

	if apiHost != "" && net.ParseIP(apiHost) == nil {
		logrus.Fatalf(
			"invalid http-api-host '%s': must be empty or a valid IP address (IPv4 or IPv6)",
			apiHost,
		)
	}

	apiPort, err := flagsSet.GetString("http-api-port")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to get http-api-port flag")
	}

	if apiPort == "" {
		apiPort = "8080"
	}

	cfg := RunConfig{
		Command:          c,
		Names:            names,
		Filter:           filter,
		FilterDesc:       filterDesc,
		RunOnce:          runOnce,
		EnableUpdateAPI:  enableUpdateAPI,
		EnableMetricsAPI: enableMetricsAPI,
		UnblockHTTPAPI:   unblockHTTPAPI,
		APIToken:         apiToken,
		APIHost:          apiHost,
		APIPort:          apiPort,
	}

	if exitCode := runMain(cfg); exitCode != 0 {
		logrus.WithField("exit_code", exitCode).Debug("Exiting with non-zero status")
		os.Exit(exitCode)
	}
}

// runMain contains the core Gantry logic after flag parsing.
//
// It performs one-time runs if requested, sets up the HTTP API, and
// schedules periodic update runs, sharing a lock channel so scheduled and
// HTTP-triggered runs never overlap.
func runMain(cfg RunConfig) int {
	logrus.WithField("names", cfg.Names).Debug("Processing specified containers")

	// Serializes update runs between the scheduler and the HTTP API.
	updateLock := make(chan bool, 1)
	updateLock <- true

	if cfg.RunOnce {
		logging.WriteStartupMessage(
			cfg.Command, time.Time{}, cfg.FilterDesc, scope, client, notifier, meta.Version,
		)

		metric := runUpdatesWithNotifications(context.Background(), cfg.Filter, cfg.Names)
		metrics.Default().RegisterScan(metric)
		notifier.Close()

		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.APIToken != "" || cfg.EnableUpdateAPI || cfg.EnableMetricsAPI {
		apiCfg := api.Config{
			Host:             cfg.APIHost,
			Port:             cfg.APIPort,
			Token:            cfg.APIToken,
			EnableUpdateAPI:  cfg.EnableUpdateAPI,
			EnableMetricsAPI: cfg.EnableMetricsAPI,
			Block:            cfg.EnableUpdateAPI && !cfg.UnblockHTTPAPI,
		}

		// With no periodic runs the API is the only trigger, so the startup
		// message is written here before the server blocks.
		if apiCfg.Block {
			logging.WriteStartupMessage(
				cfg.Command, time.Time{}, cfg.FilterDesc, scope, client, notifier, meta.Version,
			)
		}

		err := api.SetupAndStartAPI(
			ctx,
			apiCfg,
			updateLock,
			func(ctx context.Context, images []string) *metrics.Metric {
				return runUpdatesWithNotifications(
					ctx, filters.FilterByImage(images, cfg.Filter), nil,
				)
			},
		)
		if err != nil {
			return 1
		}

		if apiCfg.Block {
			return 0
		}
	}

	err := scheduling.RunUpdatesOnSchedule(
		ctx,
		cfg.Command,
		cfg.FilterDesc,
		updateLock,
		scheduleSpec,
		logging.WriteStartupMessage,
		func(ctx context.Context) *metrics.Metric {
			return runUpdatesWithNotifications(ctx, cfg.Filter, cfg.Names)
		},
		client,
		scope,
		notifier,
		meta.Version,
	)
	if err != nil {
		logrus.WithError(err).Error("Scheduled update runs failed")

		return 1
	}

	return 0
}

// runUpdatesWithNotifications performs a single update run and sends the
// batched notification with its results, returning the session metric.
func runUpdatesWithNotifications(
	ctx context.Context,
	filter types.Filter,
	names []string,
) *metrics.Metric {
	if notifier != nil {
		notifier.StartNotification()
	}

	updateParams := types.UpdateParams{
		Filter:            filter,
		Names:             names,
		DryRun:            dryRun,
		NoRestart:         noRestart,
		Timeout:           timeout,
		MonitorOnly:       monitorOnly,
		AllowMajorUpgrade: allowMajor,
		LifecycleHooks:    lifecycleHooks,
		LabelPrecedence:   labelPrecedence,
	}

	report, err := orchestrator.CheckAndUpdate(ctx, updateParams)
	if err != nil {
		logrus.WithError(err).Error("Update run failed")

		if notifier != nil {
			notifier.SendNotification(nil)
		}

		return &metrics.Metric{}
	}

	if notifier != nil {
		notifier.SendNotification(report)
	}

	logrus.Debug(actions.UpdateSummary(report))

	metric := metrics.NewMetric(report)
	notifications.LocalLog.WithFields(logrus.Fields{
		"scanned": metric.Scanned,
		"updated": metric.Updated,
		"failed":  metric.Failed,
	}).Info("Update run completed")

	return metric
}
