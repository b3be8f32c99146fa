package container

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	cerrdefs "github.com/containerd/errdefs"
	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerFiltersType "github.com/docker/docker/api/types/filters"

	"github.com/gantry-dev/gantry/pkg/types"
)

// ListContainers retrieves all containers matching the filter. Only running
// containers are considered unless the client is configured to include
// stopped or restarting ones.
func (c client) ListContainers(filter types.Filter) ([]types.Container, error) {
	ctx := context.Background()

	filterArgs := dockerFiltersType.NewArgs()
	filterArgs.Add("status", "running")

	if c.IncludeStopped {
		filterArgs.Add("status", "created")
		filterArgs.Add("status", "exited")
	}

	if c.IncludeRestarting {
		filterArgs.Add("status", "restarting")
	}

	summaries, err := c.api.ContainerList(ctx, dockerContainerType.ListOptions{
		Filters: filterArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errListContainersFailed, err)
	}

	hostContainers := []types.Container{}

	for _, summary := range summaries {
		sourceContainer, err := c.GetContainer(types.ContainerID(summary.ID))
		if err != nil {
			logrus.WithError(err).
				WithField("container_id", summary.ID).
				Debug("Skipping container that could not be inspected")

			continue
		}

		if filter(sourceContainer) {
			hostContainers = append(hostContainers, sourceContainer)
		}
	}

	logrus.WithField("count", len(hostContainers)).Debug("Listed matching containers")

	return hostContainers, nil
}

// GetContainer fetches detailed information about a container by its ID,
// including the metadata of the image it runs. A missing image does not fail
// the lookup: the container is returned without image info.
func (c client) GetContainer(containerID types.ContainerID) (types.Container, error) {
	ctx := context.Background()

	containerInfo, err := c.api.ContainerInspect(ctx, string(containerID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInspectContainerFailed, err)
	}

	// Resolve "container:<id>" network mode to the container's name so the
	// reference survives recreation of the network owner.
	netMode := containerInfo.HostConfig.NetworkMode
	if netMode.IsContainer() {
		parentID := netMode.ConnectedContainer()

		parentInfo, err := c.api.ContainerInspect(ctx, parentID)
		if err != nil {
			logrus.WithError(err).
				WithField("parent_id", parentID).
				Debug("Failed to resolve network container name")
		} else {
			name := strings.TrimPrefix(parentInfo.Name, "/")
			containerInfo.HostConfig.NetworkMode = dockerContainerType.NetworkMode(
				"container:" + name,
			)
		}
	}

	// Inspect by reference rather than by the running image ID: after a
	// pull the reference points at the newest local image, which is what
	// update detection compares against.
	imageRef := containerInfo.Config.Image
	if imageRef == "" {
		imageRef = containerInfo.Image
	}

	imageInfo, err := c.api.ImageInspect(ctx, imageRef)
	if err != nil {
		logrus.WithError(err).
			WithField("image", imageRef).
			Debug("Failed to retrieve image info by reference")

		imageInfo, err = c.api.ImageInspect(ctx, containerInfo.Image)
		if err != nil {
			logrus.WithError(err).
				WithField("image", containerInfo.Image).
				Debug("Failed to retrieve image info")

			return NewContainer(&containerInfo, nil), nil
		}
	}

	return NewContainer(&containerInfo, &imageInfo), nil
}

// StopContainer stops and removes the container, respecting its custom stop
// signal and the given timeout. Containers created with AutoRemove are only
// waited on, not removed explicitly.
func (c client) StopContainer(sourceContainer types.Container, timeout time.Duration) error {
	ctx := context.Background()
	clog := logrus.WithFields(logrus.Fields{
		"container": sourceContainer.Name(),
		"id":        sourceContainer.ID().ShortID(),
	})

	signal := sourceContainer.StopSignal()
	if signal == "" {
		signal = defaultStopSignal
	}

	if sourceContainer.IsRunning() {
		clog.WithField("signal", signal).Info("Stopping container")

		if err := c.api.ContainerKill(ctx, string(sourceContainer.ID()), signal); err != nil {
			return fmt.Errorf("%w: %w", errStopContainerFailed, err)
		}

		if err := c.waitForStopOrTimeout(ctx, sourceContainer, timeout); err != nil {
			clog.WithError(err).Debug("Container did not stop within timeout")
		}
	}

	return c.removeStoppedContainer(ctx, sourceContainer, timeout)
}

// RemoveContainer force-removes a container from the host without stopping
// it first.
func (c client) RemoveContainer(sourceContainer types.Container) error {
	ctx := context.Background()

	err := c.api.ContainerRemove(ctx, string(sourceContainer.ID()), dockerContainerType.RemoveOptions{
		Force:         true,
		RemoveVolumes: c.RemoveVolumes,
	})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("%w: %w", errRemoveContainerFailed, err)
	}

	return nil
}

// removeStoppedContainer removes a stopped container and waits until the
// daemon no longer knows it, so its name is free for the replacement.
func (c client) removeStoppedContainer(
	ctx context.Context,
	sourceContainer types.Container,
	timeout time.Duration,
) error {
	clog := logrus.WithFields(logrus.Fields{
		"container": sourceContainer.Name(),
		"id":        sourceContainer.ID().ShortID(),
	})

	autoRemove := sourceContainer.ContainerInfo() != nil &&
		sourceContainer.ContainerInfo().HostConfig != nil &&
		sourceContainer.ContainerInfo().HostConfig.AutoRemove

	if autoRemove {
		clog.Debug("AutoRemove container, skipping explicit removal")
	} else {
		clog.Debug("Removing container")

		err := c.api.ContainerRemove(ctx, string(sourceContainer.ID()), dockerContainerType.RemoveOptions{
			Force:         true,
			RemoveVolumes: c.RemoveVolumes,
		})
		if err != nil && !cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %w", errRemoveContainerFailed, err)
		}
	}

	return c.waitForRemovalOrTimeout(ctx, sourceContainer.ID(), timeout)
}

// waitForStopOrTimeout polls the container state until it stops running or
// the timeout elapses. A timeout of zero returns immediately.
func (c client) waitForStopOrTimeout(
	ctx context.Context,
	sourceContainer types.Container,
	timeout time.Duration,
) error {
	if timeout <= 0 {
		return nil
	}

	deadline := time.After(timeout)

	for {
		response, err := c.api.ContainerInspect(ctx, string(sourceContainer.ID()))
		if err != nil {
			if cerrdefs.IsNotFound(err) {
				return nil
			}

			return fmt.Errorf("%w: %w", errInspectContainerFailed, err)
		}

		if response.State == nil || !response.State.Running {
			return nil
		}

		select {
		case <-deadline:
			return fmt.Errorf("%w: %s", errStopContainerFailed, sourceContainer.Name())
		case <-time.After(stopPollInterval):
		}
	}
}

// waitForRemovalOrTimeout polls until the container is gone from the daemon
// or the timeout elapses.
func (c client) waitForRemovalOrTimeout(
	ctx context.Context,
	containerID types.ContainerID,
	timeout time.Duration,
) error {
	if timeout <= 0 {
		timeout = stopPollInterval
	}

	deadline := time.After(timeout)

	for {
		_, err := c.api.ContainerInspect(ctx, string(containerID))
		if err != nil {
			if cerrdefs.IsNotFound(err) {
				return nil
			}

			return fmt.Errorf("%w: %w", errInspectContainerFailed, err)
		}

		select {
		case <-deadline:
			return fmt.Errorf("%w: %s", errContainerNotRemoved, containerID.ShortID())
		case <-time.After(stopPollInterval):
		}
	}
}
