package detector

import (
	"context"
	"errors"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/docker/docker/api/types/image"

	"github.com/gantry-dev/gantry/internal/actions/mocks"
	"github.com/gantry-dev/gantry/pkg/types"
)

const (
	digestOld = "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	digestNew = "sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

var _ = ginkgo.Describe("the update detector", func() {
	var registry *mocks.MockRegistryClient

	ginkgo.BeforeEach(func() {
		registry = &mocks.MockRegistryClient{
			Tags:    map[string][]string{},
			Digests: map[string]string{},
		}
	})

	ginkgo.When("the image reference is pinned by digest", func() {
		ginkgo.It("should never report an update", func() {
			c := mocks.CreateMockContainer(
				"c1", "pinned", "ghcr.io/acme/app@"+digestOld, time.Now())

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.HasUpdate).To(gomega.BeFalse())
			gomega.Expect(decision.Reason).To(gomega.Equal("image pinned by digest"))
		})
	})

	ginkgo.When("the tag parses as a version", func() {
		ginkgo.BeforeEach(func() {
			registry.Tags["acme/app"] = []string{
				"1.2.2", "1.2.3", "1.2.4", "1.3.0", "2.0.0", "latest", "edge",
			}
		})

		ginkgo.It("should pick the highest version within the current major", func() {
			c := mocks.CreateMockContainer("c1", "app", "ghcr.io/acme/app:1.2.3", time.Now())

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.HasUpdate).To(gomega.BeTrue())
			gomega.Expect(decision.Kind).To(gomega.Equal(VersionUpdate))
			gomega.Expect(decision.Current).To(gomega.Equal("1.2.3"))
			gomega.Expect(decision.Candidate).To(gomega.Equal("1.3.0"))
		})

		ginkgo.It("should cross major versions when the run allows it", func() {
			c := mocks.CreateMockContainer("c1", "app", "ghcr.io/acme/app:1.2.3", time.Now())

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{AllowMajorUpgrade: true})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.Candidate).To(gomega.Equal("2.0.0"))
		})

		ginkgo.It("should cross major versions when the container label allows it", func() {
			c := mocks.CreateMockContainerWithLabels(
				"c1", "app", "ghcr.io/acme/app:1.2.3", time.Now(),
				map[string]string{"dev.gantry.allow-major": "true"})

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.Candidate).To(gomega.Equal("2.0.0"))
		})

		ginkgo.It("should report no update when already newest", func() {
			registry.Tags["acme/app"] = []string{"1.2.2", "1.2.3", "latest"}
			c := mocks.CreateMockContainer("c1", "app", "ghcr.io/acme/app:1.2.3", time.Now())

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.HasUpdate).To(gomega.BeFalse())
			gomega.Expect(decision.Reason).To(gomega.Equal("no newer version published"))
		})

		ginkgo.It("should explain when only major upgrades remain", func() {
			registry.Tags["acme/app"] = []string{"1.2.3", "2.0.0"}
			c := mocks.CreateMockContainer("c1", "app", "ghcr.io/acme/app:1.2.3", time.Now())

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.HasUpdate).To(gomega.BeFalse())
			gomega.Expect(decision.Reason).To(gomega.Equal(
				"newer versions require a major upgrade"))
		})

		ginkgo.It("should surface tag listing failures", func() {
			registry.TagsErr = errors.New("boom")
			c := mocks.CreateMockContainer("c1", "app", "ghcr.io/acme/app:1.2.3", time.Now())

			_, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.When("the tag is neither a version nor latest", func() {
		ginkgo.It("should never report an update", func() {
			registry.Digests["acme/app:stable"] = digestNew
			c := mocks.CreateMockContainerWithDigest(
				"c1", "app", "ghcr.io/acme/app:stable", time.Now(), digestOld)

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.HasUpdate).To(gomega.BeFalse())
			gomega.Expect(decision.Reason).To(gomega.Equal("tag is not a semantic version"))
			gomega.Expect(registry.DigestCalls).To(gomega.BeEmpty())
		})
	})

	ginkgo.When("the tag is floating", func() {
		ginkgo.It("should report an update when the remote digest moved", func() {
			registry.Digests["acme/app:latest"] = digestNew
			c := mocks.CreateMockContainerWithDigest(
				"c1", "app", "ghcr.io/acme/app:latest", time.Now(), digestOld)

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.HasUpdate).To(gomega.BeTrue())
			gomega.Expect(decision.Kind).To(gomega.Equal(DigestUpdate))
			gomega.Expect(decision.Reason).To(gomega.ContainSubstring("new image digest"))
		})

		ginkgo.It("should name the version the tag moved to when one matches", func() {
			registry.Digests["acme/app:latest"] = digestNew
			registry.Digests["acme/app:1.4.0"] = digestNew
			registry.Digests["acme/app:1.3.0"] = digestOld
			registry.Tags["acme/app"] = []string{"1.3.0", "1.4.0", "latest"}

			c := mocks.CreateMockContainerWithDigest(
				"c1", "app", "ghcr.io/acme/app:latest", time.Now(), digestOld)

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.Reason).To(gomega.Equal(
				"latest now points at version 1.4.0"))
		})

		ginkgo.It("should fall back to the image ID when no repo digest is recorded", func() {
			registry.Digests["acme/app:latest"] = digestNew

			imageInfo := image.InspectResponse{
				ID: digestOld, // Locally built image: no repo digests.
			}
			c := mocks.CreateMockContainerWithImageInfo(
				"c1", "app", "ghcr.io/acme/app:latest", time.Now(), imageInfo)

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.HasUpdate).To(gomega.BeTrue())
			gomega.Expect(decision.Kind).To(gomega.Equal(DigestUpdate))
		})

		ginkgo.It("should report no update when digests match", func() {
			registry.Digests["acme/app:latest"] = digestOld
			c := mocks.CreateMockContainerWithDigest(
				"c1", "app", "ghcr.io/acme/app:latest", time.Now(), digestOld)

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.HasUpdate).To(gomega.BeFalse())
			gomega.Expect(decision.Reason).To(gomega.Equal("image is up to date"))
		})

		ginkgo.It("should flag a pending restart when the image is already pulled", func() {
			registry.Digests["acme/app:latest"] = digestOld

			imageInfo := image.InspectResponse{
				ID:          "sha256:cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc",
				RepoDigests: []string{"ghcr.io/acme/app@" + digestOld},
			}
			c := mocks.CreateMockContainerWithImageInfo(
				"c1", "app", "ghcr.io/acme/app:latest", time.Now(), imageInfo)

			decision, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(decision.HasUpdate).To(gomega.BeTrue())
			gomega.Expect(decision.Kind).To(gomega.Equal(DigestUpdate))
			gomega.Expect(decision.RestartOnly).To(gomega.BeTrue())
			gomega.Expect(decision.Reason).To(gomega.ContainSubstring("already pulled"))
		})

		ginkgo.It("should surface manifest failures", func() {
			registry.DigestErr = errors.New("boom")
			c := mocks.CreateMockContainerWithDigest(
				"c1", "app", "ghcr.io/acme/app:latest", time.Now(), digestOld)

			_, err := NewDetector(registry).Check(
				context.Background(), c, types.UpdateParams{})
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})
})
