package types

import (
	"strings"

	dockerContainer "github.com/docker/docker/api/types/container"
	dockerImage "github.com/docker/docker/api/types/image"
)

// Container defines a docker container's interface in Gantry.
type Container interface {
	ContainerInfo() *dockerContainer.InspectResponse  // Container metadata.
	ID() ContainerID                                  // Container ID.
	IsRunning() bool                                  // Check if running.
	IsRestarting() bool                               // Restarting status check.
	Name() string                                     // Container name without leading slash.
	ImageID() ImageID                                 // Current image ID.
	ImageName() string                                // Image name with tag.
	TargetImage() string                              // Image ref updates pull and recreate onto.
	SetTargetImage(ref string)                        // Override the update target reference.
	ImageDigest() string                              // First repo digest, empty if unknown.
	IsPinned() bool                                   // Check if image ref is digest-pinned.
	Enabled() (bool, bool)                            // Enabled status and presence.
	IsMonitorOnly(params UpdateParams) bool           // Monitor-only check.
	AllowsMajorUpgrade(params UpdateParams) bool      // Major-upgrade policy check.
	Scope() (string, bool)                            // Scope value and presence.
	Links() []string                                  // Dependency links.
	ToRestart() bool                                  // Needs restart check.
	IsGantry() bool                                   // Gantry instance check.
	StopSignal() string                               // Custom stop signal.
	HasImageInfo() bool                               // Image metadata presence.
	ImageInfo() *dockerImage.InspectResponse          // Image metadata.
	GetLifecyclePreUpdateCommand() string             // Pre-update command.
	GetLifecyclePostUpdateCommand() string            // Post-update command.
	PreUpdateTimeout() int                            // Pre-update timeout in minutes.
	PostUpdateTimeout() int                           // Post-update timeout in minutes.
	VerifyConfiguration() error                       // Config validation.
	SetStale(status bool)                             // Set stale status.
	IsStale() bool                                    // Stale status check.
	SetLinkedToRestarting(status bool)                // Mark as depending on a restarting container.
	IsLinkedToRestarting() bool                       // Linked-to-restarting check.
	GetCreateConfig() *dockerContainer.Config         // Creation config.
	GetCreateHostConfig() *dockerContainer.HostConfig // Host creation config.
}

// ImageID is a hash string for a container image.
type ImageID string

// ContainerID is a hash string for a container instance.
type ContainerID string

// ShortID returns the 12-character short version of an image ID.
//
// Returns:
//   - string: Shortened ID without "sha256:" prefix.
func (id ImageID) ShortID() string {
	return shortID(string(id))
}

// ShortID returns the 12-character short version of a container ID.
//
// Returns:
//   - string: Shortened ID without "sha256:" prefix.
func (id ContainerID) ShortID() string {
	return shortID(string(id))
}

// shortID shortens a hash string to 12 characters.
//
// Parameters:
//   - longID: Full hash string.
//
// Returns:
//   - string: Shortened ID, adjusted for "sha256:" prefix.
func shortID(longID string) string {
	prefixSep := strings.IndexRune(longID, ':')
	offset := 0
	length := 12

	// Adjust offset for "sha256:" prefix.
	if prefixSep >= 0 {
		if longID[0:prefixSep] == "sha256" {
			offset = prefixSep + 1
		} else {
			length += prefixSep + 1
		}
	}

	// Return shortened ID or full string if too short.
	if len(longID) >= offset+length {
		return longID[offset : offset+length]
	}

	return longID
}
