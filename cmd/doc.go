// Package cmd contains the command-line interface definitions and execution
// logic for Gantry. It provides the root command, orchestrating container
// update runs, the HTTP API, notifications, and scheduling.
//
// Key components:
//   - rootCmd: Root command for updates, API, and scheduling.
//   - RunConfig: Struct carrying the derived execution configuration.
//
// Usage example:
//   - Run the CLI from main.go:
//     cmd.Execute()
//
// The package integrates the actions, container, registry, notifications,
// and flags packages, using Cobra for CLI parsing and logrus for logging.
package cmd
