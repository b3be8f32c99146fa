// Package session manages container states and reporting during a Gantry
// update session. It tracks container progress, categorizes outcomes, and
// generates reports for scanned, updated, failed, skipped, stale, fresh,
// and restarted containers.
//
// Key components:
//   - State: Enum for container states (e.g., Updated, Failed).
//   - ContainerStatus: Tracks individual container details, state, and the
//     detector's reason for its verdict.
//   - Progress: Maps container statuses during a session.
//   - Report: Categorizes and sorts container outcomes.
//
// Usage example:
//
//	progress := session.Progress{}
//	progress.AddScanned(container, newImageID, reason, params)
//	progress.MarkForUpdate(container.ID())
//	report := progress.Report()
//	scanned := report.Scanned()
//
// The package integrates with types.Container and uses logrus for logging
// session events.
package session
