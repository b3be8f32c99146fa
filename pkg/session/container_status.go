package session

import (
	"github.com/gantry-dev/gantry/pkg/types"
)

// State enum values.
const (
	UnknownState   State = iota // Uninitialized state.
	SkippedState                // Container skipped.
	ScannedState                // Container scanned.
	UpdatedState                // Container updated.
	FailedState                 // Container update failed.
	FreshState                  // Container is fresh.
	StaleState                  // Container is stale.
	RestartedState              // Container restarted onto an already pulled image.
)

// State indicates what the current state is of the container.
type State int

// ContainerStatus holds a container's state during a session.
//
//nolint:errname // ContainerStatus is not an error type, it contains an error field.
type ContainerStatus struct {
	containerID    types.ContainerID // Container ID.
	oldImage       types.ImageID     // Original image ID.
	newImage       types.ImageID     // Latest image ID.
	containerName  string            // Container name.
	imageName      string            // Image name with tag.
	containerError error             // Error encountered, if any.
	state          State             // Current state.
	reason         string            // Why the container is (or is not) being updated.
	monitorOnly    bool              // Monitor-only flag.
	newContainerID types.ContainerID // New container ID after update.
}

// ID returns the container ID.
func (u *ContainerStatus) ID() types.ContainerID {
	return u.containerID
}

// Name returns the container name.
func (u *ContainerStatus) Name() string {
	return u.containerName
}

// CurrentImageID returns the image ID the container was running at session
// start.
func (u *ContainerStatus) CurrentImageID() types.ImageID {
	return u.oldImage
}

// LatestImageID returns the newest image ID found during the session.
func (u *ContainerStatus) LatestImageID() types.ImageID {
	return u.newImage
}

// ImageName returns the image name with tag (e.g., "nginx:latest").
func (u *ContainerStatus) ImageName() string {
	return u.imageName
}

// Error returns the session error message, or empty if none.
func (u *ContainerStatus) Error() string {
	if u.containerError == nil {
		return ""
	}

	return u.containerError.Error()
}

// State returns the human-readable state name (e.g., "Updated").
func (u *ContainerStatus) State() string {
	switch u.state {
	case UnknownState:
		return "Unknown"
	case SkippedState:
		return "Skipped"
	case ScannedState:
		return "Scanned"
	case UpdatedState:
		return "Updated"
	case FailedState:
		return "Failed"
	case FreshState:
		return "Fresh"
	case StaleState:
		return "Stale"
	case RestartedState:
		return "Restarted"
	default:
		return "Unknown" // Fallback for unexpected values.
	}
}

// Reason returns the detection verdict explaining why the container is (or
// is not) being updated, as produced by the update detector.
func (u *ContainerStatus) Reason() string {
	return u.reason
}

// IsMonitorOnly returns whether the container is in monitor-only mode.
func (u *ContainerStatus) IsMonitorOnly() bool {
	return u.monitorOnly
}

// NewContainerID returns the replacement container ID, or empty if the
// container was not updated.
func (u *ContainerStatus) NewContainerID() types.ContainerID {
	return u.newContainerID
}

// SetNewContainerID records the replacement container ID after an update.
func (u *ContainerStatus) SetNewContainerID(newID types.ContainerID) {
	u.newContainerID = newID
}
