package actions

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
	digestCurrent = "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	digestMoved   = "sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

// versionedContainer runs a semver tag so updates flow through the tag
// comparison path, which needs no digest data in the mock registry.
func versionedContainer(id, name, image string) types.Container {
	return mocks.CreateMockContainer(id, name, image, time.Now())
}

var _ = ginkgo.Describe("the update orchestrator", func() {
	var registry *mocks.MockRegistryClient

	ginkgo.BeforeEach(func() {
		registry = &mocks.MockRegistryClient{
			Tags:    map[string][]string{},
			Digests: map[string]string{},
		}
	})

	ginkgo.When("a newer version tag is published", func() {
		ginkgo.It("should pull the new tag and recreate the container", func() {
			c := versionedContainer("c1", "app", "ghcr.io/acme/app:1.2.3")
			client := mocks.CreateMockClient(&mocks.TestData{Containers: []types.Container{c}}, false)
			registry.Tags["acme/app"] = []string{"1.2.3", "1.3.0"}

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Updated()).To(gomega.HaveLen(1))
			gomega.Expect(report.Updated()[0].Reason()).
				To(gomega.Equal("version 1.3.0 available (currently 1.2.3)"))
			gomega.Expect(report.Updated()[0].NewContainerID()).
				To(gomega.Equal(types.ContainerID("started-c1")))
			gomega.Expect(client.Pulled).To(gomega.ContainElement("ghcr.io/acme/app:1.3.0"))
			gomega.Expect(client.Stopped["c1"]).To(gomega.BeTrue())
		})

		ginkgo.It("should leave up-to-date containers untouched", func() {
			c := versionedContainer("c1", "app", "ghcr.io/acme/app:1.3.0")
			client := mocks.CreateMockClient(&mocks.TestData{Containers: []types.Container{c}}, false)
			registry.Tags["acme/app"] = []string{"1.2.3", "1.3.0"}

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Fresh()).To(gomega.HaveLen(1))
			gomega.Expect(report.Updated()).To(gomega.BeEmpty())
			gomega.Expect(client.Stopped).To(gomega.BeEmpty())
		})
	})

	ginkgo.When("a floating tag's digest has moved", func() {
		ginkgo.It("should pull the same reference and recreate the container", func() {
			c := mocks.CreateMockContainerWithDigest(
				"c1", "web", "ghcr.io/acme/web:latest", time.Now(), digestCurrent)
			client := mocks.CreateMockClient(&mocks.TestData{Containers: []types.Container{c}}, false)
			registry.Digests["acme/web:latest"] = digestMoved

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Updated()).To(gomega.HaveLen(1))
			gomega.Expect(report.Restarted()).To(gomega.BeEmpty())
			gomega.Expect(client.Pulled).To(gomega.ConsistOf("ghcr.io/acme/web:latest"))
			gomega.Expect(client.Stopped["c1"]).To(gomega.BeTrue())
		})
	})

	ginkgo.When("a container is monitor-only", func() {
		ginkgo.It("should report it stale without touching it", func() {
			c := mocks.CreateMockContainerWithLabels(
				"c1", "app", "ghcr.io/acme/app:1.2.3", time.Now(),
				map[string]string{"dev.gantry.monitor-only": "true"})
			client := mocks.CreateMockClient(&mocks.TestData{Containers: []types.Container{c}}, false)
			registry.Tags["acme/app"] = []string{"1.3.0"}

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Stale()).To(gomega.HaveLen(1))
			gomega.Expect(report.Stale()[0].IsMonitorOnly()).To(gomega.BeTrue())
			gomega.Expect(client.Stopped).To(gomega.BeEmpty())
			gomega.Expect(client.Pulled).To(gomega.BeEmpty())
		})
	})

	ginkgo.When("running in dry-run mode", func() {
		ginkgo.It("should detect updates without mutating anything", func() {
			c := versionedContainer("c1", "app", "ghcr.io/acme/app:1.2.3")
			client := mocks.CreateMockClient(&mocks.TestData{Containers: []types.Container{c}}, false)
			registry.Tags["acme/app"] = []string{"1.3.0"}

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{DryRun: true})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Stale()).To(gomega.HaveLen(1))
			gomega.Expect(client.Stopped).To(gomega.BeEmpty())
			gomega.Expect(client.Pulled).To(gomega.BeEmpty())
			gomega.Expect(client.Started).To(gomega.BeEmpty())
		})
	})

	ginkgo.When("the stale container is the Gantry instance", func() {
		ginkgo.It("should never recreate it", func() {
			c := mocks.CreateMockContainerWithLabels(
				"c1", "gantry", "gantry-dev/gantry:1.0.0", time.Now(),
				map[string]string{"dev.gantry": "true"})
			client := mocks.CreateMockClient(&mocks.TestData{Containers: []types.Container{c}}, false)
			registry.Tags["gantry-dev/gantry"] = []string{"1.1.0"}

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Stale()).To(gomega.HaveLen(1))
			gomega.Expect(client.Stopped).To(gomega.BeEmpty())
		})
	})

	ginkgo.When("explicit names are given", func() {
		ginkgo.It("should only consider the named containers", func() {
			app := versionedContainer("c1", "app", "ghcr.io/acme/app:1.2.3")
			other := versionedContainer("c2", "other", "ghcr.io/acme/other:1.2.3")
			client := mocks.CreateMockClient(
				&mocks.TestData{Containers: []types.Container{app, other}}, false)
			registry.Tags["acme/app"] = []string{"1.3.0"}
			registry.Tags["acme/other"] = []string{"1.3.0"}

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{Names: []string{"/app"}})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Scanned()).To(gomega.HaveLen(1))
			gomega.Expect(report.Updated()).To(gomega.HaveLen(1))
			gomega.Expect(report.Updated()[0].Name()).To(gomega.Equal("app"))
			gomega.Expect(client.Stopped).NotTo(gomega.HaveKey("c2"))
		})
	})

	ginkgo.When("the registry check fails", func() {
		ginkgo.It("should record the container as skipped and continue", func() {
			failing := versionedContainer("c1", "app", "ghcr.io/acme/app:1.2.3")
			healthy := versionedContainer("c2", "other", "ghcr.io/acme/other:1.2.3")
			client := mocks.CreateMockClient(
				&mocks.TestData{Containers: []types.Container{failing, healthy}}, false)
			registry.Tags["acme/other"] = []string{"1.3.0"}
			registry.TagsErrs = map[string]error{"acme/app": errors.New("registry unreachable")}

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Skipped()).To(gomega.HaveLen(1))
			gomega.Expect(report.Skipped()[0].Error()).
				To(gomega.ContainSubstring("registry unreachable"))
			gomega.Expect(report.Updated()).To(gomega.HaveLen(1))
			gomega.Expect(report.Updated()[0].Name()).To(gomega.Equal("other"))
		})
	})

	ginkgo.When("a dependent container links to a stale one", func() {
		ginkgo.It("should restart the dependent after its dependency", func() {
			db := versionedContainer("c1", "db", "ghcr.io/acme/db:1.0.0")
			app := mocks.CreateMockContainerWithLinks(
				"c2", "app", "ghcr.io/acme/app:latest", time.Now(),
				[]string{"db:db"},
				&image.InspectResponse{
					ID:          "ghcr.io/acme/app:latest",
					RepoDigests: []string{"ghcr.io/acme/app@" + digestCurrent},
				})
			client := mocks.CreateMockClient(
				&mocks.TestData{Containers: []types.Container{db, app}}, false)
			registry.Tags["acme/db"] = []string{"1.1.0"}
			registry.Digests["acme/app:latest"] = digestCurrent

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Updated()).To(gomega.HaveLen(2))
			gomega.Expect(report.Restarted()).To(gomega.HaveLen(1))
			gomega.Expect(report.Restarted()[0].Name()).To(gomega.Equal("app"))
			gomega.Expect(client.Stopped["c1"]).To(gomega.BeTrue())
			gomega.Expect(client.Stopped["c2"]).To(gomega.BeTrue())
			// Only the stale dependency pulls a new image.
			gomega.Expect(client.Pulled).To(gomega.ConsistOf("ghcr.io/acme/db:1.1.0"))
		})
	})

	ginkgo.When("the pre-update hook requests a skip", func() {
		ginkgo.It("should record the container as skipped", func() {
			c := mocks.CreateMockContainerWithLabels(
				"c1", "app", "ghcr.io/acme/app:1.2.3", time.Now(),
				map[string]string{"dev.gantry.hook.pre-update": "/PreUpdateReturn75.sh"})
			client := mocks.CreateMockClient(&mocks.TestData{Containers: []types.Container{c}}, false)
			registry.Tags["acme/app"] = []string{"1.3.0"}

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{LifecycleHooks: true})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Skipped()).To(gomega.HaveLen(1))
			gomega.Expect(client.Stopped).To(gomega.BeEmpty())
		})
	})

	ginkgo.When("pulling the new image fails", func() {
		ginkgo.It("should mark the container as failed and leave it running", func() {
			c := versionedContainer("c1", "app", "ghcr.io/acme/app:1.2.3")
			client := mocks.CreateMockClient(&mocks.TestData{
				Containers:   []types.Container{c},
				PullFailures: map[string]error{"ghcr.io/acme/app:1.3.0": errors.New("pull denied")},
			}, false)
			registry.Tags["acme/app"] = []string{"1.3.0"}

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Failed()).To(gomega.HaveLen(1))
			gomega.Expect(report.Failed()[0].Error()).To(gomega.ContainSubstring("pull denied"))
			gomega.Expect(client.Stopped).To(gomega.BeEmpty())
		})
	})

	ginkgo.When("restarts are suppressed", func() {
		ginkgo.It("should stop the stale container without starting a replacement", func() {
			c := versionedContainer("c1", "app", "ghcr.io/acme/app:1.2.3")
			client := mocks.CreateMockClient(&mocks.TestData{Containers: []types.Container{c}}, false)
			registry.Tags["acme/app"] = []string{"1.3.0"}

			report, err := NewOrchestrator(client, registry).
				CheckAndUpdate(context.Background(), types.UpdateParams{NoRestart: true})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(report.Updated()).To(gomega.HaveLen(1))
			gomega.Expect(client.Stopped["c1"]).To(gomega.BeTrue())
			gomega.Expect(client.Started).To(gomega.BeEmpty())
		})
	})
})

var _ = ginkgo.Describe("the update summary", func() {
	ginkgo.It("should render counts and per-container reasons", func() {
		registry := &mocks.MockRegistryClient{
			Tags:    map[string][]string{"acme/app": {"1.3.0"}},
			Digests: map[string]string{},
		}
		c := versionedContainer("c1", "app", "ghcr.io/acme/app:1.2.3")
		client := mocks.CreateMockClient(&mocks.TestData{Containers: []types.Container{c}}, false)

		report, err := NewOrchestrator(client, registry).
			CheckAndUpdate(context.Background(), types.UpdateParams{})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		summary := UpdateSummary(report)
		gomega.Expect(summary).To(gomega.HavePrefix("1 scanned, 1 updated, 0 failed"))
		gomega.Expect(summary).To(gomega.ContainSubstring("app (Updated): version 1.3.0 available"))
	})
})

var _ = ginkgo.Describe("retagged", func() {
	ginkgo.It("should swap the tag and keep registry ports intact", func() {
		gomega.Expect(retagged("ghcr.io/acme/app:1.2.3", "1.3.0")).
			To(gomega.Equal("ghcr.io/acme/app:1.3.0"))
		gomega.Expect(retagged("registry:5000/acme/app:1.2.3", "1.3.0")).
			To(gomega.Equal("registry:5000/acme/app:1.3.0"))
		gomega.Expect(retagged("acme/app", "1.3.0")).
			To(gomega.Equal("acme/app:1.3.0"))
	})
})
