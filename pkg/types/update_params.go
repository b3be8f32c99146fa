package types

import (
	"time"
)

// UpdateParams defines options for a single update run.
type UpdateParams struct {
	Filter            Filter        // Container filter.
	Names             []string      // Explicit container names to target, slash-tolerant.
	DryRun            bool          // Detect only, mutate nothing.
	NoRestart         bool          // Skip restarts if true.
	Timeout           time.Duration // Container stop timeout.
	MonitorOnly       bool          // Monitor without updating if true.
	AllowMajorUpgrade bool          // Permit crossing major version boundaries.
	LifecycleHooks    bool          // Enable lifecycle hook commands if true.
	LabelPrecedence   bool          // Prioritize container labels over globals if true.
}
