package types

import (
	"context"
	"time"
)

// Client defines the interface for interacting with the Docker API within Gantry.
//
// It provides methods for managing containers and images, abstracting the underlying Docker client operations.
type Client interface {
	// ListContainers retrieves a filtered list of containers running on the host.
	//
	// The provided filter determines which containers are included in the result.
	ListContainers(filter Filter) ([]Container, error)

	// GetContainer fetches detailed information about a specific container by its ID.
	//
	// Returns the container object or an error if the container cannot be retrieved.
	GetContainer(containerID ContainerID) (Container, error)

	// StopContainer stops and removes a specified container, respecting the given timeout.
	//
	// It ensures the container is no longer running or present on the host.
	StopContainer(container Container, timeout time.Duration) error

	// RemoveContainer force-removes a container from the host without stopping it first.
	//
	// Returns an error if the removal fails.
	RemoveContainer(container Container) error

	// StartContainer creates and starts a new container based on the provided container's configuration.
	//
	// Returns the new container's ID or an error if creation or startup fails.
	StartContainer(container Container) (ContainerID, error)

	// IsContainerRunning reports whether the container with the given ID is currently running.
	IsContainerRunning(ctx context.Context, containerID ContainerID) (bool, error)

	// PullImage pulls the latest image for the given container's image reference,
	// using registry credentials when available.
	PullImage(ctx context.Context, container Container) error

	// ContainerLogs returns the most recent log lines of a container.
	//
	// The tail argument follows the Docker API convention ("all" or a line count).
	ContainerLogs(ctx context.Context, containerID ContainerID, tail string) (string, error)

	// ExecuteCommand runs a command inside a container and returns whether to skip updates based on the result.
	//
	// The timeout specifies how long, in minutes, to wait for the command to complete.
	ExecuteCommand(containerID ContainerID, command string, timeout int) (bool, error)

	// GetVersion returns the negotiated Docker API version.
	GetVersion() string
}
