package container

import (
	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerImageType "github.com/docker/docker/api/types/image"
	dockerNat "github.com/docker/go-connections/nat"
	dockerImageSpec "github.com/moby/docker-image-spec/specs-go/v1"
)

type MockContainerUpdate func(*dockerContainerType.InspectResponse, *dockerImageType.InspectResponse)

func MockContainer(updates ...MockContainerUpdate) *Container {
	containerInfo := dockerContainerType.InspectResponse{
		ContainerJSONBase: &dockerContainerType.ContainerJSONBase{
			ID:         "container_id",
			Image:      "image_id",
			Name:       "/test-gantry",
			HostConfig: &dockerContainerType.HostConfig{},
			State: &dockerContainerType.State{
				Running: true,
			},
		},
		Config: &dockerContainerType.Config{
			Image:  "gantry-dev/gantry:latest",
			Labels: map[string]string{},
		},
	}
	image := dockerImageType.InspectResponse{
		ID:     "image_id",
		Config: &dockerImageSpec.DockerOCIImageConfig{},
	}

	for _, update := range updates {
		update(&containerInfo, &image)
	}

	return NewContainer(&containerInfo, &image)
}

func WithImageName(name string) MockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, i *dockerImageType.InspectResponse) {
		c.Config.Image = name
		i.RepoTags = append(i.RepoTags, name)
	}
}

func WithRepoDigests(digests ...string) MockContainerUpdate {
	return func(_ *dockerContainerType.InspectResponse, i *dockerImageType.InspectResponse) {
		i.RepoDigests = append(i.RepoDigests, digests...)
	}
}

func WithPortBindings(portBindingSources ...string) MockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, _ *dockerImageType.InspectResponse) {
		portBindings := dockerNat.PortMap{}
		for _, pbs := range portBindingSources {
			portBindings[dockerNat.Port(pbs)] = []dockerNat.PortBinding{}
		}

		c.HostConfig.PortBindings = portBindings
	}
}

func WithLinks(links []string) MockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, _ *dockerImageType.InspectResponse) {
		c.HostConfig.Links = links
	}
}

func WithLabels(labels map[string]string) MockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, _ *dockerImageType.InspectResponse) {
		c.Config.Labels = labels
	}
}

func WithContainerState(state dockerContainerType.State) MockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, _ *dockerImageType.InspectResponse) {
		c.State = &state
	}
}

func WithEnvironment(containerEnv, imageEnv []string) MockContainerUpdate {
	return func(c *dockerContainerType.InspectResponse, i *dockerImageType.InspectResponse) {
		c.Config.Env = containerEnv
		i.Config.Env = imageEnv
	}
}
