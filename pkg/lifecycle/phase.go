package lifecycle

// Phase tracks how far a container recreation has progressed. Phases are
// strictly ordered; PhaseFailed is terminal and may follow any phase.
type Phase int

// Recreation phases in execution order.
const (
	// PhaseRunning is the initial state, the old container still runs.
	PhaseRunning Phase = iota
	// PhaseInspected means the create configuration has been captured.
	PhaseInspected
	// PhaseStopped means the old container no longer runs.
	PhaseStopped
	// PhaseRemoved means the old container is gone and its name is free.
	PhaseRemoved
	// PhaseCreated means the replacement container exists.
	PhaseCreated
	// PhaseStarted means the replacement container has been started.
	PhaseStarted
	// PhaseVerified means the replacement container reported running.
	PhaseVerified
	// PhaseFailed is the terminal state after an unrecoverable error.
	PhaseFailed
)

// String returns the phase name for logs and reports.
func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseInspected:
		return "inspected"
	case PhaseStopped:
		return "stopped"
	case PhaseRemoved:
		return "removed"
	case PhaseCreated:
		return "created"
	case PhaseStarted:
		return "started"
	case PhaseVerified:
		return "verified"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}
