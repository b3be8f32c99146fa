// Package flags manages command-line flags and environment variables for
// Gantry configuration.
package flags

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DockerAPIMinVersion is the minimum Docker API version Gantry requires.
const DockerAPIMinVersion string = "1.44"

// defaultPollIntervalSeconds defines the default polling interval (24 hours).
const defaultPollIntervalSeconds = 86400

// defaultStopTimeoutSeconds defines the default container stop timeout.
const defaultStopTimeoutSeconds = 10

// Errors for flag handling.
var (
	// errInvalidLogFormat indicates an invalid log format was specified.
	errInvalidLogFormat = errors.New("invalid log format specified")
	// errInvalidLogLevel indicates an invalid log level was specified.
	errInvalidLogLevel = errors.New("invalid log level specified")
	// errSetEnvFailed indicates a failure to set an environment variable.
	errSetEnvFailed = errors.New("failed to set environment variable")
	// errOpenFileFailed indicates a failure to open a secret file.
	errOpenFileFailed = errors.New("failed to open secret file")
	// errCloseFileFailed indicates a failure to close a secret file.
	errCloseFileFailed = errors.New("failed to close secret file")
	// errReplaceSliceFailed indicates a failure to replace a slice flag value.
	errReplaceSliceFailed = errors.New("failed to replace slice value in flag")
	// errReadFileFailed indicates a failure to read a secret file.
	errReadFileFailed = errors.New("failed to read secret file")
	// errSetFlagFailed indicates a failure to set a flag's value.
	errSetFlagFailed = errors.New("failed to set flag value")
	// errInvalidFlagName indicates an unknown flag name was provided.
	errInvalidFlagName = errors.New("invalid flag name provided")
	// errNotSliceValue indicates a flag does not support slice values.
	errNotSliceValue = errors.New("flag does not support slice values")
)

// RegisterDockerFlags adds the flags used directly by the Docker API client.
func RegisterDockerFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringP("host", "H", envString("DOCKER_HOST"), "daemon socket to connect to")
	flags.BoolP("tlsverify", "v", envBool("DOCKER_TLS_VERIFY"), "use TLS and verify the remote")
	flags.StringP(
		"api-version",
		"a",
		envString("DOCKER_API_VERSION"),
		"api version to use by docker client",
	)
}

// RegisterSystemFlags adds the flags that modify Gantry's program flow.
func RegisterSystemFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.IntP(
		"interval",
		"i",
		envInt("GANTRY_POLL_INTERVAL"),
		"Poll interval (in seconds)")

	flags.StringP(
		"schedule",
		"s",
		envString("GANTRY_SCHEDULE"),
		"The cron expression which defines when to check for updates")

	flags.DurationP(
		"stop-timeout",
		"t",
		envDuration("GANTRY_TIMEOUT"),
		"Timeout before a container is forcefully stopped")

	flags.BoolP(
		"no-restart",
		"",
		envBool("GANTRY_NO_RESTART"),
		"Stop updated containers without starting a replacement")

	flags.BoolP(
		"no-startup-message",
		"",
		envBool("GANTRY_NO_STARTUP_MESSAGE"),
		"Prevents gantry from sending a startup message")

	flags.BoolP(
		"label-enable",
		"e",
		envBool("GANTRY_LABEL_ENABLE"),
		"Only watch containers where the dev.gantry.enable label is true")

	flags.StringSliceP(
		"disable-containers",
		"x",
		// Due to issue spf13/viper#380, can't use viper.GetStringSlice:
		regexp.MustCompile("[, ]+").Split(envString("GANTRY_DISABLE_CONTAINERS"), -1),
		"Comma-separated list of containers to explicitly exclude from watching.")

	flags.StringP(
		"log-format",
		"l",
		viper.GetString("GANTRY_LOG_FORMAT"),
		"Sets what logging format to use for console output. Possible values: Auto, LogFmt, Pretty, JSON",
	)

	flags.BoolP(
		"debug",
		"d",
		envBool("GANTRY_DEBUG"),
		"Enable debug mode with verbose logging")

	flags.BoolP(
		"trace",
		"",
		envBool("GANTRY_TRACE"),
		"Enable trace mode with very verbose logging - caution, exposes credentials")

	flags.BoolP(
		"monitor-only",
		"m",
		envBool("GANTRY_MONITOR_ONLY"),
		"Will only monitor for new images, not update the containers")

	flags.BoolP(
		"dry-run",
		"",
		envBool("GANTRY_DRY_RUN"),
		"Detect and report available updates without changing anything")

	flags.BoolP(
		"allow-major-upgrades",
		"",
		envBool("GANTRY_ALLOW_MAJOR_UPGRADES"),
		"Allow version updates that cross a major version boundary")

	flags.BoolP(
		"run-once",
		"R",
		envBool("GANTRY_RUN_ONCE"),
		"Run once now and exit")

	flags.BoolP(
		"include-restarting",
		"",
		envBool("GANTRY_INCLUDE_RESTARTING"),
		"Will also include restarting containers")

	flags.BoolP(
		"include-stopped",
		"S",
		envBool("GANTRY_INCLUDE_STOPPED"),
		"Will also include created and exited containers")

	flags.BoolP(
		"revive-stopped",
		"",
		envBool("GANTRY_REVIVE_STOPPED"),
		"Will also start stopped containers that were updated, if include-stopped is active")

	flags.BoolP(
		"enable-lifecycle-hooks",
		"",
		envBool("GANTRY_LIFECYCLE_HOOKS"),
		"Enable the execution of commands triggered by pre- and post-update lifecycle hooks")

	flags.BoolP(
		"http-api-update",
		"",
		envBool("GANTRY_HTTP_API_UPDATE"),
		"Runs Gantry in HTTP API mode, so that updates must be triggered by a request")

	flags.BoolP(
		"http-api-metrics",
		"",
		envBool("GANTRY_HTTP_API_METRICS"),
		"Runs Gantry with the Prometheus metrics API enabled")

	flags.StringP(
		"http-api-host",
		"",
		envString("GANTRY_HTTP_API_HOST"),
		"Host to bind the HTTP API to (default: all interfaces)")

	flags.StringP(
		"http-api-port",
		"",
		envString("GANTRY_HTTP_API_PORT"),
		"Port to bind the HTTP API to (default: 8080)")

	flags.StringP(
		"http-api-token",
		"",
		envString("GANTRY_HTTP_API_TOKEN"),
		"Sets an authentication token for HTTP API requests.")

	flags.BoolP(
		"http-api-periodic-polls",
		"",
		envBool("GANTRY_HTTP_API_PERIODIC_POLLS"),
		"Also run periodic updates (specified with --interval and --schedule) if HTTP API is enabled",
	)

	// https://no-color.org/
	flags.BoolP(
		"no-color",
		"",
		viper.IsSet("NO_COLOR"),
		"Disable ANSI color escape codes in log output")

	flags.StringP(
		"scope",
		"",
		envString("GANTRY_SCOPE"),
		"Defines a monitoring scope for the Gantry instance.")

	flags.StringP(
		"porcelain",
		"P",
		envString("GANTRY_PORCELAIN"),
		`Write session results to stdout using a stable versioned format. Supported values: "v1"`)

	flags.String(
		"log-level",
		envString("GANTRY_LOG_LEVEL"),
		"The maximum log level that will be written to STDERR. Possible values: panic, fatal, error, warn, info, debug or trace",
	)

	flags.BoolP(
		"label-take-precedence",
		"",
		envBool("GANTRY_LABEL_TAKE_PRECEDENCE"),
		"Labels applied to containers take precedence over arguments")
}

// RegisterNotificationFlags adds the flags configuring Gantry notifications.
func RegisterNotificationFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.StringArray(
		"notification-url",
		envStringSlice("GANTRY_NOTIFICATION_URL"),
		"The shoutrrr URL to send notifications to")

	flags.String(
		"notification-level",
		envString("GANTRY_NOTIFICATION_LEVEL"),
		"The log level used for sending notifications. Possible values: panic, fatal, error, warn, info or debug",
	)

	flags.IntP(
		"notification-delay",
		"",
		envInt("GANTRY_NOTIFICATION_DELAY"),
		"Delay before sending notifications, expressed in seconds")

	flags.StringP(
		"notification-hostname",
		"",
		envString("GANTRY_NOTIFICATION_HOSTNAME"),
		"Custom hostname for notification titles")

	flags.String(
		"notification-template",
		envString("GANTRY_NOTIFICATION_TEMPLATE"),
		"The shoutrrr text/template for the messages")

	flags.Bool("notification-report",
		envBool("GANTRY_NOTIFICATION_REPORT"),
		"Use the session report as the notification template data")

	flags.StringP(
		"notification-title-tag",
		"",
		envString("GANTRY_NOTIFICATION_TITLE_TAG"),
		"Title prefix tag for notifications")

	flags.Bool("notification-skip-title",
		envBool("GANTRY_NOTIFICATION_SKIP_TITLE"),
		"Do not pass the title param to notifications")

	flags.Bool(
		"notification-log-stdout",
		envBool("GANTRY_NOTIFICATION_LOG_STDOUT"),
		"Write notification logs to stdout instead of logging (to stderr)")
}

// envString retrieves a string value from an environment variable via viper.
func envString(key string) string {
	viper.MustBindEnv(key)

	return viper.GetString(key)
}

// envStringSlice retrieves a string slice from an environment variable via viper.
func envStringSlice(key string) []string {
	viper.MustBindEnv(key)

	return viper.GetStringSlice(key)
}

// envInt retrieves an integer value from an environment variable via viper.
func envInt(key string) int {
	viper.MustBindEnv(key)

	return viper.GetInt(key)
}

// envBool retrieves a boolean value from an environment variable via viper.
func envBool(key string) bool {
	viper.MustBindEnv(key)

	return viper.GetBool(key)
}

// envDuration retrieves a duration value from an environment variable via viper.
func envDuration(key string) time.Duration {
	viper.MustBindEnv(key)

	return viper.GetDuration(key)
}

// SetDefaults configures default values for environment variables, giving
// consistent fallback behavior when flags and environment are unset.
func SetDefaults() {
	viper.AutomaticEnv()
	viper.SetDefault("DOCKER_HOST", "unix:///var/run/docker.sock")
	viper.SetDefault("DOCKER_API_VERSION", DockerAPIMinVersion)
	viper.SetDefault("GANTRY_POLL_INTERVAL", defaultPollIntervalSeconds)
	viper.SetDefault("GANTRY_TIMEOUT", time.Second*defaultStopTimeoutSeconds)
	viper.SetDefault("GANTRY_HTTP_API_PORT", "8080")
	viper.SetDefault("GANTRY_NOTIFICATION_LEVEL", "info")
	viper.SetDefault("GANTRY_LOG_LEVEL", "info")
	viper.SetDefault("GANTRY_LOG_FORMAT", "auto")
}

// EnvConfig sets Docker client environment variables based on the Docker
// connection flags.
func EnvConfig(cmd *cobra.Command) error {
	var err error

	var host string

	var tls bool

	var version string

	flags := cmd.PersistentFlags()

	if host, err = flags.GetString("host"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if tls, err = flags.GetBool("tlsverify"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if version, err = flags.GetString("api-version"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err = setEnvOptStr("DOCKER_HOST", host); err != nil {
		return err
	}

	if err = setEnvOptBool("DOCKER_TLS_VERIFY", tls); err != nil {
		return err
	}

	if err = setEnvOptStr("DOCKER_API_VERSION", version); err != nil {
		return err
	}

	return nil
}

// setEnvOptStr sets an environment variable to the given value, skipping
// empty values and values already present in the environment.
func setEnvOptStr(env string, opt string) error {
	if opt == "" || opt == os.Getenv(env) {
		return nil
	}

	if err := os.Setenv(env, opt); err != nil {
		return fmt.Errorf("%w: %s: %w", errSetEnvFailed, env, err)
	}

	return nil
}

// setEnvOptBool sets an environment variable to "1" if the boolean is true.
func setEnvOptBool(env string, opt bool) error {
	if opt {
		return setEnvOptStr(env, "1")
	}

	return nil
}

// GetSecretsFromFiles replaces secret-carrying flag values with file contents
// when the value references a file.
func GetSecretsFromFiles(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	secrets := []string{
		"notification-url",
		"http-api-token",
	}
	for _, secret := range secrets {
		if err := getSecretFromFile(flags, secret); err != nil {
			logrus.Fatalf("failed to get secret from flag %v: %s", secret, err)
		}
	}
}

// getSecretFromFile updates a flag's value with file contents if it
// references a file, handling both string and slice flags.
func getSecretFromFile(flags *pflag.FlagSet, secret string) error {
	flag := flags.Lookup(secret)
	if sliceValue, ok := flag.Value.(pflag.SliceValue); ok {
		oldValues := sliceValue.GetSlice()
		values := make([]string, 0, len(oldValues))

		for _, value := range oldValues {
			if value != "" && isFilePath(value) {
				file, err := os.Open(value)
				if err != nil {
					return fmt.Errorf("%w: %w", errOpenFileFailed, err)
				}

				scanner := bufio.NewScanner(file)
				for scanner.Scan() {
					line := scanner.Text()
					if line == "" {
						continue
					}

					values = append(values, line)
				}

				if err := file.Close(); err != nil {
					return fmt.Errorf("%w: %w", errCloseFileFailed, err)
				}
			} else {
				values = append(values, value)
			}
		}

		if err := sliceValue.Replace(values); err != nil {
			return fmt.Errorf("%w: %w", errReplaceSliceFailed, err)
		}

		return nil
	}

	value := flag.Value.String()
	if value != "" && isFilePath(value) {
		content, err := os.ReadFile(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errReadFileFailed, err)
		}

		if err := flags.Set(secret, strings.TrimSpace(string(content))); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	return nil
}

// isFilePath determines if a string likely represents a file path, avoiding
// false positives from URLs and invalid Windows paths.
func isFilePath(path string) bool {
	firstColon := strings.IndexRune(path, ':')
	if firstColon != 1 && firstColon != -1 {
		// A ':' that is not the second character is likely a URL scheme.
		return false
	}

	_, err := os.Stat(path)

	return !errors.Is(err, os.ErrNotExist)
}

// ProcessFlagAliases synchronizes flag values based on helper flags and
// environment settings, exiting on invalid configurations.
func ProcessFlagAliases(flags *pflag.FlagSet) {
	porcelain, err := flags.GetString("porcelain")
	if err != nil {
		logrus.Fatalf("Failed to get flag: %v", err)
	}

	if porcelain != "" {
		if porcelain != "v1" {
			logrus.Fatalf("Unknown porcelain version %q. Supported values: \"v1\"", porcelain)
		}

		if err = appendFlagValue(flags, "notification-url", "logger://"); err != nil {
			logrus.Errorf("Failed to set flag: %v", err)
		}

		setFlagIfDefault(flags, "notification-log-stdout", "true")
		setFlagIfDefault(flags, "notification-report", "true")

		tpl := fmt.Sprintf("porcelain.%s.summary-no-log", porcelain)
		setFlagIfDefault(flags, "notification-template", tpl)
	}

	scheduleChanged := flags.Changed("schedule")
	intervalChanged := flags.Changed("interval")
	// Workaround for a viper default swapping issue: check whether values
	// differ from their defaults.
	if val, _ := flags.GetString("schedule"); val != "" {
		scheduleChanged = true
	}

	if val, _ := flags.GetInt("interval"); val != defaultPollIntervalSeconds {
		intervalChanged = true
	}

	if intervalChanged && scheduleChanged {
		logrus.Fatal("Only schedule or interval can be defined, not both.")
	}

	// Update schedule to match interval or default if needed.
	if intervalChanged || !scheduleChanged {
		interval, _ := flags.GetInt("interval")
		if err := flags.Set("schedule", fmt.Sprintf("@every %ds", interval)); err != nil {
			logrus.Errorf("Failed to set schedule flag: %v", err)
		}
	}

	if flagIsEnabled(flags, "debug") {
		if err := flags.Set("log-level", "debug"); err != nil {
			logrus.Errorf("Failed to set log-level flag: %v", err)
		}
	}

	if flagIsEnabled(flags, "trace") {
		if err := flags.Set("log-level", "trace"); err != nil {
			logrus.Errorf("Failed to set log-level flag: %v", err)
		}
	}
}

// SetupLogging configures the global logger based on the log-related flags.
func SetupLogging(flags *pflag.FlagSet) error {
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err := configureLogFormat(logFormat, noColor); err != nil {
		return err
	}

	rawLogLevel, err := flags.GetString("log-level")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	logLevel, err := logrus.ParseLevel(rawLogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	logrus.SetLevel(logLevel)

	return nil
}

// configureLogFormat sets the logrus formatter for the given format name.
func configureLogFormat(logFormat string, noColor bool) error {
	switch strings.ToLower(logFormat) {
	case "auto":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors:             noColor,
			EnvironmentOverrideColors: true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "logfmt":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	case "pretty":
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !noColor,
			FullTimestamp: false,
		})
	default:
		return fmt.Errorf("%w: %s", errInvalidLogFormat, logFormat)
	}

	return nil
}

// flagIsEnabled checks if a boolean flag is set to true, exiting when the
// flag is not defined.
func flagIsEnabled(flags *pflag.FlagSet, name string) bool {
	value, err := flags.GetBool(name)
	if err != nil {
		logrus.Fatalf("The flag %q is not defined", name)
	}

	return value
}

// appendFlagValue appends values to a slice-type flag.
func appendFlagValue(flags *pflag.FlagSet, name string, values ...string) error {
	flag := flags.Lookup(name)
	if flag == nil {
		return fmt.Errorf("%w: %q", errInvalidFlagName, name)
	}

	if flagValues, ok := flag.Value.(pflag.SliceValue); ok {
		for _, value := range values {
			if err := flagValues.Append(value); err != nil {
				logrus.Errorf("Failed to append value to flag %q: %v", name, err)
			}
		}
	} else {
		return fmt.Errorf("%w: %q", errNotSliceValue, name)
	}

	return nil
}

// setFlagIfDefault sets a flag's value if it hasn't been explicitly changed.
func setFlagIfDefault(flags *pflag.FlagSet, name string, value string) {
	if flags.Changed(name) {
		return
	}

	if err := flags.Set(name, value); err != nil {
		logrus.Errorf("Failed to set flag: %v", err)
	}
}
