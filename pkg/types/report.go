package types

// Report defines container session results.
type Report interface {
	Scanned() []ContainerReport   // Scanned containers.
	Updated() []ContainerReport   // Updated containers.
	Failed() []ContainerReport    // Failed containers.
	Skipped() []ContainerReport   // Skipped containers.
	Stale() []ContainerReport     // Stale containers.
	Fresh() []ContainerReport     // Fresh containers.
	Restarted() []ContainerReport // Containers restarted onto an already pulled image.
	All() []ContainerReport       // All unique containers.
}

// ContainerReport defines a container's session status.
type ContainerReport interface {
	ID() ContainerID             // Container ID.
	Name() string                // Container name.
	CurrentImageID() ImageID     // Original image ID.
	LatestImageID() ImageID      // Latest image ID.
	ImageName() string           // Image name with tag.
	Error() string               // Error message, if any.
	State() string               // Human-readable state.
	Reason() string              // Why the container is (or is not) being updated.
	IsMonitorOnly() bool         // Whether the container is monitor-only.
	NewContainerID() ContainerID // Replacement container ID after an update.
}
