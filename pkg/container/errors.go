package container

import (
	"errors"
)

// Errors for exec operations in client.go.
var (
	// errCreateExecFailed indicates a failure to create an exec instance in a container.
	errCreateExecFailed = errors.New("failed to create exec instance")
	// errStartExecFailed indicates a failure to start an exec instance in a container.
	errStartExecFailed = errors.New("failed to start exec instance")
	// errAttachExecFailed indicates a failure to attach to an exec instance for output capture.
	errAttachExecFailed = errors.New("failed to attach to exec instance")
	// errReadExecOutputFailed indicates a failure to read output from an exec instance.
	errReadExecOutputFailed = errors.New("failed to read exec output")
	// errInspectExecFailed indicates a failure to inspect an exec instance's status.
	errInspectExecFailed = errors.New("failed to inspect exec instance")
	// errCommandFailed indicates a command executed in a container failed with a non-zero exit code.
	errCommandFailed = errors.New("command execution failed")
	// errReadLogsFailed indicates a failure to read a container's log stream.
	errReadLogsFailed = errors.New("failed to read container logs")
)

// Errors for container operations in container_source.go.
var (
	// errListContainersFailed indicates a failure to list containers from the Docker host.
	errListContainersFailed = errors.New("failed to list containers")
	// errInspectContainerFailed indicates a failure to inspect a container's details.
	errInspectContainerFailed = errors.New("failed to inspect container")
	// errStopContainerFailed indicates a failure to stop a container with a signal.
	errStopContainerFailed = errors.New("failed to stop container")
	// errRemoveContainerFailed indicates a failure to remove a container from the host.
	errRemoveContainerFailed = errors.New("failed to remove container")
	// errContainerNotRemoved indicates a container was still present after the removal timeout.
	errContainerNotRemoved = errors.New("container not removed after timeout")
)

// Errors for container start and rename operations in container_target.go.
var (
	// errCreateContainerFailed indicates a failure to create a new container.
	errCreateContainerFailed = errors.New("failed to create container")
	// errStartContainerFailed indicates a failure to start a newly created container.
	errStartContainerFailed = errors.New("failed to start container")
	// errRenameContainerFailed indicates a failure to rename an existing container.
	errRenameContainerFailed = errors.New("failed to rename container")
)

// Errors for container configuration operations in container.go.
var (
	// errNoImageInfo indicates the container lacks image metadata required for recreation.
	errNoImageInfo = errors.New("no image info available")
	// errNoContainerInfo indicates the container lacks metadata required for recreation.
	errNoContainerInfo = errors.New("no container info available")
	// errInvalidConfig indicates the container's configuration is invalid for recreation.
	errInvalidConfig = errors.New("invalid container configuration")
)

// Errors for image operations in image.go.
var (
	// errPullImageFailed indicates a failure to pull an image from the registry.
	errPullImageFailed = errors.New("failed to pull image")
	// errReadPullResponseFailed indicates a failure to read the pull response stream.
	errReadPullResponseFailed = errors.New("failed to read pull response")
)

// Errors for label operations in metadata.go.
var (
	// errLabelNotFound indicates a requested label is not present in the container's metadata.
	errLabelNotFound = errors.New("label not found")
)
