package container

import (
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerNat "github.com/docker/go-connections/nat"

	"github.com/gantry-dev/gantry/pkg/types"
)

var _ = ginkgo.Describe("the container", func() {
	ginkgo.Describe("Name", func() {
		ginkgo.It("should strip the leading slash", func() {
			c := MockContainer()
			gomega.Expect(c.Name()).To(gomega.Equal("test-gantry"))
		})
	})

	ginkgo.Describe("ImageName", func() {
		ginkgo.When("the image reference has no tag", func() {
			ginkgo.It("should append the default tag", func() {
				c := MockContainer(WithImageName("docker.io/library/nginx"))
				gomega.Expect(c.ImageName()).To(gomega.Equal("docker.io/library/nginx:latest"))
			})
		})

		ginkgo.When("the registry host carries a port", func() {
			ginkgo.It("should not mistake the port for a tag", func() {
				c := MockContainer(WithImageName("registry:5000/app"))
				gomega.Expect(c.ImageName()).To(gomega.Equal("registry:5000/app:latest"))
			})
		})

		ginkgo.When("the image reference has a tag", func() {
			ginkgo.It("should leave the reference untouched", func() {
				c := MockContainer(WithImageName("nginx:1.27.2"))
				gomega.Expect(c.ImageName()).To(gomega.Equal("nginx:1.27.2"))
			})
		})

		ginkgo.When("the image reference is pinned to a digest", func() {
			ginkgo.It("should not append a tag", func() {
				ref := "nginx@sha256:" +
					"1f81f8c0c1dd2de8e9ad0b21a5a1d3c6bcbea7a1b266b009239d7f1a0f6b62ab"
				c := MockContainer(WithImageName(ref))
				gomega.Expect(c.ImageName()).To(gomega.Equal(ref))
			})
		})
	})

	ginkgo.Describe("IsPinned", func() {
		ginkgo.It("should detect digest-pinned references", func() {
			c := MockContainer(WithImageName(
				"nginx@sha256:1f81f8c0c1dd2de8e9ad0b21a5a1d3c6bcbea7a1b266b009239d7f1a0f6b62ab"))
			gomega.Expect(c.IsPinned()).To(gomega.BeTrue())
		})

		ginkgo.It("should report tagged references as unpinned", func() {
			c := MockContainer(WithImageName("nginx:1.27.2"))
			gomega.Expect(c.IsPinned()).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("ImageDigest", func() {
		ginkgo.It("should return the digest part of the first repo digest", func() {
			c := MockContainer(WithRepoDigests(
				"nginx@sha256:1f81f8c0c1dd2de8e9ad0b21a5a1d3c6bcbea7a1b266b009239d7f1a0f6b62ab"))
			gomega.Expect(c.ImageDigest()).To(gomega.Equal(
				"sha256:1f81f8c0c1dd2de8e9ad0b21a5a1d3c6bcbea7a1b266b009239d7f1a0f6b62ab"))
		})

		ginkgo.It("should be empty for locally built images", func() {
			c := MockContainer()
			gomega.Expect(c.ImageDigest()).To(gomega.BeEmpty())
		})

		ginkgo.It("should be empty without image info", func() {
			c := MockContainer()
			c.imageInfo = nil
			gomega.Expect(c.ImageDigest()).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("ToRestart", func() {
		ginkgo.It("should restart stale containers", func() {
			c := MockContainer()
			c.SetStale(true)
			gomega.Expect(c.ToRestart()).To(gomega.BeTrue())
		})

		ginkgo.It("should restart containers linked to restarting ones", func() {
			c := MockContainer()
			c.SetLinkedToRestarting(true)
			gomega.Expect(c.ToRestart()).To(gomega.BeTrue())
		})

		ginkgo.It("should leave fresh containers alone", func() {
			c := MockContainer()
			gomega.Expect(c.ToRestart()).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("GetCreateConfig", func() {
		ginkgo.It("should subtract environment variables inherited from the image", func() {
			c := MockContainer(WithEnvironment(
				[]string{"PATH=/usr/bin", "EXTRA=1"},
				[]string{"PATH=/usr/bin"},
			))

			config := c.GetCreateConfig()
			gomega.Expect([]string(config.Env)).To(gomega.Equal([]string{"EXTRA=1"}))
		})

		ginkgo.It("should keep ports with host bindings exposed", func() {
			c := MockContainer(WithPortBindings("80/tcp"))

			gomega.Expect(c.VerifyConfiguration()).To(gomega.Succeed())

			config := c.GetCreateConfig()
			gomega.Expect(config.ExposedPorts).To(gomega.HaveKey(dockerNat.Port("80/tcp")))
		})

		ginkgo.It("should set the image reference", func() {
			c := MockContainer(WithImageName("nginx:1.27.2"))

			config := c.GetCreateConfig()
			gomega.Expect(config.Image).To(gomega.Equal("nginx:1.27.2"))
		})

		ginkgo.It("should fall back to the container config without image info", func() {
			c := MockContainer(WithImageName("nginx:1.27.2"))
			c.imageInfo = nil

			config := c.GetCreateConfig()
			gomega.Expect(config.Image).To(gomega.Equal("nginx:1.27.2"))
		})
	})

	ginkgo.Describe("GetCreateHostConfig", func() {
		ginkgo.It("should normalize link aliases", func() {
			c := MockContainer(WithLinks([]string{"db:alias", "cache:/cache"}))

			hostConfig := c.GetCreateHostConfig()
			gomega.Expect(hostConfig.Links).To(gomega.Equal([]string{"db:/alias", "cache:/cache"}))
		})

		ginkgo.It("should drop the no restart policy", func() {
			c := MockContainer()
			c.containerInfo.HostConfig.RestartPolicy = dockerContainerType.RestartPolicy{
				Name: dockerContainerType.RestartPolicyDisabled,
			}

			hostConfig := c.GetCreateHostConfig()
			gomega.Expect(hostConfig.RestartPolicy).
				To(gomega.Equal(dockerContainerType.RestartPolicy{}))
		})

		ginkgo.It("should carry other restart policies unchanged", func() {
			c := MockContainer()
			c.containerInfo.HostConfig.RestartPolicy = dockerContainerType.RestartPolicy{
				Name: dockerContainerType.RestartPolicyUnlessStopped,
			}

			hostConfig := c.GetCreateHostConfig()
			gomega.Expect(hostConfig.RestartPolicy.Name).
				To(gomega.Equal(dockerContainerType.RestartPolicyUnlessStopped))
		})
	})

	ginkgo.Describe("VerifyConfiguration", func() {
		ginkgo.It("should reject containers without image info", func() {
			c := MockContainer()
			c.imageInfo = nil
			gomega.Expect(c.VerifyConfiguration()).To(gomega.MatchError(errNoImageInfo))
		})

		ginkgo.It("should reject containers without container info", func() {
			c := MockContainer()
			c.containerInfo = nil
			gomega.Expect(c.VerifyConfiguration()).To(gomega.MatchError(errNoContainerInfo))
		})

		ginkgo.It("should reject containers without config", func() {
			c := MockContainer()
			c.containerInfo.Config = nil
			gomega.Expect(c.VerifyConfiguration()).To(gomega.MatchError(errInvalidConfig))
		})

		ginkgo.It("should initialize exposed ports when bindings exist", func() {
			c := MockContainer(WithPortBindings("80/tcp"))
			c.containerInfo.Config.ExposedPorts = nil

			gomega.Expect(c.VerifyConfiguration()).To(gomega.Succeed())
			gomega.Expect(c.containerInfo.Config.ExposedPorts).NotTo(gomega.BeNil())
		})
	})

	ginkgo.Describe("Links", func() {
		ginkgo.When("the depends-on label is set", func() {
			ginkgo.It("should take precedence over host config links", func() {
				c := MockContainer(
					WithLabels(map[string]string{"dev.gantry.depends-on": "db, cache"}),
					WithLinks([]string{"other:alias"}),
				)

				gomega.Expect(c.Links()).To(gomega.Equal([]string{"db", "cache"}))
			})

			ginkgo.It("should treat an empty label as no dependencies", func() {
				c := MockContainer(
					WithLabels(map[string]string{"dev.gantry.depends-on": ""}),
					WithLinks([]string{"other:alias"}),
				)

				gomega.Expect(c.Links()).To(gomega.BeEmpty())
			})

			ginkgo.It("should strip leading slashes from names", func() {
				c := MockContainer(
					WithLabels(map[string]string{"dev.gantry.depends-on": "/db"}),
				)

				gomega.Expect(c.Links()).To(gomega.Equal([]string{"db"}))
			})
		})

		ginkgo.When("only host config links are set", func() {
			ginkgo.It("should return the link names", func() {
				c := MockContainer(WithLinks([]string{"/db:alias", "cache:cache"}))

				gomega.Expect(c.Links()).To(gomega.Equal([]string{"db", "cache"}))
			})
		})

		ginkgo.When("the container shares another container's network", func() {
			ginkgo.It("should depend on the network owner", func() {
				c := MockContainer()
				c.containerInfo.HostConfig.NetworkMode = dockerContainerType.NetworkMode(
					"container:db")

				gomega.Expect(c.Links()).To(gomega.Equal([]string{"db"}))
			})
		})
	})

	ginkgo.Describe("state accessors", func() {
		ginkgo.It("should report running state", func() {
			c := MockContainer(WithContainerState(dockerContainerType.State{Running: true}))
			gomega.Expect(c.IsRunning()).To(gomega.BeTrue())
			gomega.Expect(c.IsRestarting()).To(gomega.BeFalse())
		})

		ginkgo.It("should report restarting state", func() {
			c := MockContainer(WithContainerState(dockerContainerType.State{Restarting: true}))
			gomega.Expect(c.IsRestarting()).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("ImageID", func() {
		ginkgo.It("should return the image ID", func() {
			c := MockContainer()
			gomega.Expect(c.ImageID()).To(gomega.Equal(types.ImageID("image_id")))
		})

		ginkgo.It("should be empty without image info", func() {
			c := MockContainer()
			c.imageInfo = nil
			gomega.Expect(c.ImageID()).To(gomega.BeEmpty())
		})
	})
})
