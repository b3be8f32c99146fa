package actions

import "errors"

// Errors for update orchestration.
var (
	// errListContainersFailed flags failures in listing containers.
	errListContainersFailed = errors.New("failed to list containers")
	// errSortDependenciesFailed flags failures in sorting containers by dependencies.
	errSortDependenciesFailed = errors.New("failed to sort containers by dependencies")
	// errPullImageFailed flags failures in pulling a container's target image.
	errPullImageFailed = errors.New("failed to pull image")
	// errStopContainerFailed flags failures in stopping a container.
	errStopContainerFailed = errors.New("failed to stop container")
)
