package container

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerNetworkType "github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/gantry-dev/gantry/pkg/types"
)

// StartContainer creates and starts a replacement container from the source
// container's captured configuration. The new container is created unnamed,
// renamed to the source name once creation succeeds, and only started when
// the source was running (or ReviveStopped is set). A created container that
// cannot be renamed or started is removed again.
func (c client) StartContainer(sourceContainer types.Container) (types.ContainerID, error) {
	ctx := context.Background()
	clog := logrus.WithFields(logrus.Fields{
		"container": sourceContainer.Name(),
		"image":     sourceContainer.ImageName(),
	})

	config := sourceContainer.GetCreateConfig()
	hostConfig := sourceContainer.GetCreateHostConfig()
	networkConfig := getNetworkConfig(sourceContainer)
	platform := getCreatePlatform(sourceContainer)

	clog.Debug("Creating replacement container")

	createdContainer, err := c.api.ContainerCreate(ctx, config, hostConfig, networkConfig, platform, "")
	if err != nil {
		return "", fmt.Errorf("%w: %w", errCreateContainerFailed, err)
	}

	createdID := types.ContainerID(createdContainer.ID)

	if err := c.api.ContainerRename(ctx, createdContainer.ID, sourceContainer.Name()); err != nil {
		c.cleanupFailedTarget(ctx, createdID, clog)

		return createdID, fmt.Errorf("%w: %w", errRenameContainerFailed, err)
	}

	if !sourceContainer.IsRunning() && !c.ReviveStopped {
		clog.Debug("Source container was stopped, not starting replacement")

		return createdID, nil
	}

	clog.WithField("id", createdID.ShortID()).Info("Starting replacement container")

	if err := c.api.ContainerStart(ctx, createdContainer.ID, dockerContainerType.StartOptions{}); err != nil {
		c.cleanupFailedTarget(ctx, createdID, clog)

		return createdID, fmt.Errorf("%w: %w", errStartContainerFailed, err)
	}

	return createdID, nil
}

// cleanupFailedTarget removes a container left behind by a failed rename or
// start so the source name is not blocked.
func (c client) cleanupFailedTarget(
	ctx context.Context,
	containerID types.ContainerID,
	clog *logrus.Entry,
) {
	err := c.api.ContainerRemove(ctx, string(containerID), dockerContainerType.RemoveOptions{
		Force:         true,
		RemoveVolumes: c.RemoveVolumes,
	})
	if err != nil {
		clog.WithError(err).
			WithField("id", containerID.ShortID()).
			Warn("Failed to clean up replacement container")
	}
}

// getCreatePlatform pins the replacement container to the source image's
// platform, so multi-arch pulls cannot recreate onto a different one. A nil
// platform lets the daemon choose when the source image info is unavailable.
func getCreatePlatform(sourceContainer types.Container) *ocispec.Platform {
	imageInfo := sourceContainer.ImageInfo()
	if imageInfo == nil || imageInfo.Os == "" || imageInfo.Architecture == "" {
		return nil
	}

	return &ocispec.Platform{
		OS:           imageInfo.Os,
		Architecture: imageInfo.Architecture,
		Variant:      imageInfo.Variant,
	}
}

// getNetworkConfig captures the source container's network endpoints for the
// replacement. Aliases derived from the source container ID are dropped so
// the daemon can assign fresh ones.
func getNetworkConfig(sourceContainer types.Container) *dockerNetworkType.NetworkingConfig {
	config := &dockerNetworkType.NetworkingConfig{
		EndpointsConfig: make(map[string]*dockerNetworkType.EndpointSettings),
	}

	info := sourceContainer.ContainerInfo()
	if info == nil || info.NetworkSettings == nil {
		return config
	}

	for networkName, endpoint := range info.NetworkSettings.Networks {
		if endpoint == nil {
			continue
		}

		copiedEndpoint := endpoint.Copy()
		copiedEndpoint.EndpointID = ""
		copiedEndpoint.Aliases = filterAliases(
			copiedEndpoint.Aliases,
			sourceContainer.ID().ShortID(),
		)

		config.EndpointsConfig[networkName] = copiedEndpoint
	}

	return config
}

// filterAliases returns the aliases without the one matching the container's
// short ID, which the daemon adds automatically.
func filterAliases(aliases []string, shortID string) []string {
	filtered := make([]string, 0, len(aliases))

	for _, alias := range aliases {
		if alias == shortID {
			continue
		}

		filtered = append(filtered, alias)
	}

	return filtered
}
