package actions

import (
	"context"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/gantry-dev/gantry/internal/actions/mocks"
	"github.com/gantry-dev/gantry/pkg/detector"
	"github.com/gantry-dev/gantry/pkg/types"
)

var _ = ginkgo.Describe("update detection without mutation", func() {
	var (
		registry *mocks.MockRegistryClient
		client   *mocks.MockClient
	)

	ginkgo.BeforeEach(func() {
		registry = &mocks.MockRegistryClient{
			Tags: map[string][]string{
				"acme/app":   {"1.2.3", "1.3.0"},
				"acme/other": {"2.0.0"},
			},
			Digests: map[string]string{},
		}
		client = mocks.CreateMockClient(&mocks.TestData{
			Containers: []types.Container{
				mocks.CreateMockContainer("c1", "app", "ghcr.io/acme/app:1.2.3", time.Now()),
				mocks.CreateMockContainer("c2", "other", "ghcr.io/acme/other:2.0.0", time.Now()),
			},
		}, false)
	})

	ginkgo.Describe("DryRun", func() {
		ginkgo.It("should return a verdict per container and touch nothing", func() {
			results, err := NewOrchestrator(client, registry).
				DryRun(context.Background(), types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(results).To(gomega.HaveLen(2))

			byName := map[string]detector.Decision{}
			for _, result := range results {
				byName[result.Container.Name()] = result.Decision
			}

			gomega.Expect(byName["app"].HasUpdate).To(gomega.BeTrue())
			gomega.Expect(byName["app"].Kind).To(gomega.Equal(detector.VersionUpdate))
			gomega.Expect(byName["app"].Candidate).To(gomega.Equal("1.3.0"))
			gomega.Expect(byName["other"].HasUpdate).To(gomega.BeFalse())

			gomega.Expect(client.Stopped).To(gomega.BeEmpty())
			gomega.Expect(client.Pulled).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("ContainersNeedingUpdate", func() {
		ginkgo.It("should return only the stale containers", func() {
			stale, err := NewOrchestrator(client, registry).
				ContainersNeedingUpdate(context.Background(), types.UpdateParams{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(stale).To(gomega.HaveLen(1))
			gomega.Expect(stale[0].Name()).To(gomega.Equal("app"))
		})
	})
})
