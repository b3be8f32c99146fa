package container

import (
	"fmt"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"

	"github.com/gantry-dev/gantry/internal/util"
	"github.com/gantry-dev/gantry/pkg/registry/helpers"
	"github.com/gantry-dev/gantry/pkg/types"
)

// linkPartsCount is the number of parts expected in a link (name:alias).
const linkPartsCount = 2

// Container represents a Docker container inspected by Gantry, pairing the
// container state with the metadata of the image it was created from.
type Container struct {
	// LinkedToRestarting marks the container as depending on one that is
	// being restarted.
	LinkedToRestarting bool
	// Stale marks the container as running an outdated image.
	Stale bool

	targetImage   string
	containerInfo *dockerContainerType.InspectResponse
	imageInfo     *dockerImageType.InspectResponse
}

// NewContainer creates a Container from inspection results. imageInfo may be
// nil when the image metadata is unavailable (e.g. the image was removed).
func NewContainer(
	containerInfo *dockerContainerType.InspectResponse,
	imageInfo *dockerImageType.InspectResponse,
) *Container {
	return &Container{
		LinkedToRestarting: false,
		Stale:              false,
		containerInfo:      containerInfo,
		imageInfo:          imageInfo,
	}
}

// IsLinkedToRestarting returns whether a dependency of this container is
// being restarted.
func (c Container) IsLinkedToRestarting() bool {
	return c.LinkedToRestarting
}

// SetLinkedToRestarting marks the container as depending on a restarting one.
func (c *Container) SetLinkedToRestarting(value bool) {
	c.LinkedToRestarting = value
}

// IsStale returns whether the container runs an outdated image.
func (c Container) IsStale() bool {
	return c.Stale
}

// SetStale updates the container's stale status.
func (c *Container) SetStale(value bool) {
	c.Stale = value
}

// ToRestart indicates whether the container should be restarted, either
// because it is stale or because a dependency is being restarted.
func (c Container) ToRestart() bool {
	return c.Stale || c.LinkedToRestarting
}

// ContainerInfo returns the container's inspection data.
func (c Container) ContainerInfo() *dockerContainerType.InspectResponse {
	return c.containerInfo
}

// ID returns the container's unique identifier.
func (c Container) ID() types.ContainerID {
	return types.ContainerID(c.containerInfo.ID)
}

// IsRunning checks if the container is currently running.
func (c Container) IsRunning() bool {
	return c.containerInfo.State.Running
}

// IsRestarting checks if the container is currently restarting.
func (c Container) IsRestarting() bool {
	return c.containerInfo.State.Restarting
}

// Name returns the container's name without the leading slash.
func (c Container) Name() string {
	return strings.TrimPrefix(c.containerInfo.Name, "/")
}

// ImageID returns the ID of the image the container was created from, or an
// empty ID when no image metadata is available.
func (c Container) ImageID() types.ImageID {
	if c.imageInfo == nil {
		return ""
	}

	return types.ImageID(c.imageInfo.ID)
}

// ImageName returns the image reference the container was created with. A
// bare repository without tag or digest is qualified with the default tag.
func (c Container) ImageName() string {
	imageName := c.containerInfo.Config.Image

	if !strings.Contains(imageName, "@") {
		lastSegment := imageName
		if idx := strings.LastIndex(imageName, "/"); idx >= 0 {
			lastSegment = imageName[idx+1:]
		}

		if !strings.Contains(lastSegment, ":") {
			imageName += ":" + helpers.DefaultTag
		}
	}

	return imageName
}

// SetTargetImage overrides the image reference the container is recreated
// from and pulled as. Version updates use it to move the container to a
// newer tag than the one it was created with.
func (c *Container) SetTargetImage(ref string) {
	c.targetImage = ref
}

// TargetImage returns the image reference updates should pull and recreate
// onto. It is the original reference unless a target override is set.
func (c Container) TargetImage() string {
	if c.targetImage != "" {
		return c.targetImage
	}

	return c.ImageName()
}

// ImageDigest returns the repository digest of the container's image, or an
// empty string when the image has no recorded repository digest (e.g. images
// built locally).
func (c Container) ImageDigest() string {
	if c.imageInfo == nil || len(c.imageInfo.RepoDigests) == 0 {
		return ""
	}

	_, digest, found := strings.Cut(c.imageInfo.RepoDigests[0], "@")
	if !found {
		return ""
	}

	return digest
}

// IsPinned reports whether the container's image reference is pinned to a
// digest. Pinned containers are immutable and never updated.
func (c Container) IsPinned() bool {
	return strings.Contains(c.containerInfo.Config.Image, "@sha256:")
}

// HasImageInfo indicates whether image metadata is available.
func (c Container) HasImageInfo() bool {
	return c.imageInfo != nil
}

// ImageInfo returns the image's inspection data, nil if unavailable.
func (c Container) ImageInfo() *dockerImageType.InspectResponse {
	return c.imageInfo
}

// GetCreateConfig generates a container configuration for recreation.
//
// It isolates runtime overrides from image defaults so the new container
// inherits fresh defaults from the updated image, and sets the image name.
func (c Container) GetCreateConfig() *dockerContainerType.Config {
	clog := logrus.WithField("container", c.Name())
	config := c.containerInfo.Config
	hostConfig := c.containerInfo.HostConfig

	if c.imageInfo == nil {
		clog.Warn("No image info available, using container config as-is")

		config.Image = c.TargetImage()

		return config
	}

	// Clear values that merely echo the image defaults.
	imageConfig := c.imageInfo.Config
	if config.WorkingDir == imageConfig.WorkingDir {
		config.WorkingDir = ""
	}

	if config.User == imageConfig.User {
		config.User = ""
	}

	// The hostname is assigned by the runtime in these modes.
	if hostConfig.NetworkMode.IsContainer() {
		config.Hostname = ""
	}

	if hostConfig.UTSMode != "" {
		config.Hostname = ""
	}

	if util.SliceEqual(config.Entrypoint, imageConfig.Entrypoint) {
		config.Entrypoint = nil
		if util.SliceEqual(config.Cmd, imageConfig.Cmd) {
			config.Cmd = nil
		}
	}

	if config.Healthcheck != nil && imageConfig.Healthcheck != nil {
		if util.SliceEqual(config.Healthcheck.Test, imageConfig.Healthcheck.Test) {
			config.Healthcheck.Test = nil
		}

		if config.Healthcheck.Retries == imageConfig.Healthcheck.Retries {
			config.Healthcheck.Retries = 0
		}

		if config.Healthcheck.Interval == imageConfig.Healthcheck.Interval {
			config.Healthcheck.Interval = 0
		}

		if config.Healthcheck.Timeout == imageConfig.Healthcheck.Timeout {
			config.Healthcheck.Timeout = 0
		}

		if config.Healthcheck.StartPeriod == imageConfig.Healthcheck.StartPeriod {
			config.Healthcheck.StartPeriod = 0
		}
	}

	config.Env = util.SliceSubtract(config.Env, imageConfig.Env)
	config.Labels = util.StringMapSubtract(config.Labels, imageConfig.Labels)
	config.Volumes = util.StructMapSubtract(config.Volumes, imageConfig.Volumes)

	imagePorts := make(map[string]struct{}, len(imageConfig.ExposedPorts))
	for p := range imageConfig.ExposedPorts {
		imagePorts[string(p)] = struct{}{}
	}

	for k := range config.ExposedPorts {
		if _, ok := imagePorts[string(k)]; ok {
			delete(config.ExposedPorts, k)
		}
	}

	// Ports with host bindings must stay exposed on the new container.
	for p := range hostConfig.PortBindings {
		config.ExposedPorts[p] = struct{}{}
	}

	config.Image = c.TargetImage()
	clog.WithField("image", config.Image).Debug("Generated create config")

	return config
}

// GetCreateHostConfig generates a host configuration for recreation,
// adjusting link formats for Docker API compatibility.
func (c Container) GetCreateHostConfig() *dockerContainerType.HostConfig {
	clog := logrus.WithField("container", c.Name())

	hostConfig := c.containerInfo.HostConfig

	for i, link := range hostConfig.Links {
		if !strings.Contains(link, ":") {
			clog.WithField("link", link).Warn("Invalid link format, expected 'name:alias'")

			continue
		}

		parts := strings.SplitN(link, ":", linkPartsCount)
		name := parts[0]
		alias := strings.TrimPrefix(parts[1], "/")
		hostConfig.Links[i] = fmt.Sprintf("%s:/%s", name, alias)
	}

	// "no" is the daemon default; an explicitly recorded one is dropped
	// rather than carried to the replacement.
	if hostConfig.RestartPolicy.Name == dockerContainerType.RestartPolicyDisabled {
		hostConfig.RestartPolicy = dockerContainerType.RestartPolicy{}
	}

	return hostConfig
}

// VerifyConfiguration validates that the container carries everything
// needed to recreate it.
func (c Container) VerifyConfiguration() error {
	if c.imageInfo == nil {
		return errNoImageInfo
	}

	if c.containerInfo == nil {
		return errNoContainerInfo
	}

	clog := logrus.WithField("container", c.Name())

	if c.containerInfo.Config == nil || c.containerInfo.HostConfig == nil {
		clog.Debug("Invalid container configuration")

		return errInvalidConfig
	}

	// Port bindings require ExposedPorts to be non-nil at create time.
	if len(c.containerInfo.HostConfig.PortBindings) > 0 &&
		c.containerInfo.Config.ExposedPorts == nil {
		c.containerInfo.Config.ExposedPorts = make(map[nat.Port]struct{})

		clog.Debug("Initialized ExposedPorts due to PortBindings")
	}

	return nil
}

// Links returns the names of containers this container depends on. The
// dev.gantry.depends-on label takes precedence; otherwise links and the
// container network mode from the host configuration are used.
func (c Container) Links() []string {
	if value, ok := c.getLabelValue(dependsOnLabel); ok {
		if value == "" {
			return []string{}
		}

		links := []string{}

		for _, link := range strings.Split(value, ",") {
			link = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(link), "/"))
			if link == "" {
				continue
			}

			links = append(links, link)
		}

		return links
	}

	var links []string

	if c.containerInfo != nil && c.containerInfo.HostConfig != nil {
		for _, link := range c.containerInfo.HostConfig.Links {
			name := strings.Split(link, ":")[0]
			links = append(links, strings.TrimPrefix(name, "/"))
		}

		if mode := c.containerInfo.HostConfig.NetworkMode; mode.IsContainer() {
			links = append(links, strings.TrimPrefix(mode.ConnectedContainer(), "/"))
		}
	}

	return links
}
