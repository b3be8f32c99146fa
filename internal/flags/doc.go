// Package flags manages command-line flags and environment variables for
// Gantry configuration. It configures Docker connections, system behavior,
// and notifications via cobra and viper.
//
// Key components:
//   - RegisterDockerFlags: Adds Docker API client flags.
//   - RegisterSystemFlags: Adds operational control flags.
//   - RegisterNotificationFlags: Adds notification settings.
//   - SetupLogging: Configures logrus based on flags.
//
// Usage example:
//
//	cmd := &cobra.Command{}
//	flags.RegisterSystemFlags(cmd)
//	flags.SetDefaults()
//	err := flags.SetupLogging(cmd.PersistentFlags())
//	if err != nil {
//	    logrus.WithError(err).Fatal("Logging setup failed")
//	}
//
// Every flag has a GANTRY_* environment variable fallback bound through
// viper, with secrets optionally read from files.
package flags
