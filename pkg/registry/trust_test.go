package registry

import (
	"encoding/base64"
	"encoding/json"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	dockerConfigTypes "github.com/docker/cli/cli/config/types"
)

var _ = ginkgo.Describe("credential handling", func() {
	ginkgo.Describe("EncodedEnvAuth", func() {
		ginkgo.It("should fail when the environment variables are unset", func() {
			ginkgo.GinkgoT().Setenv("REPO_USER", "")
			ginkgo.GinkgoT().Setenv("REPO_PASS", "")

			_, err := EncodedEnvAuth()
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should encode credentials from the environment", func() {
			ginkgo.GinkgoT().Setenv("REPO_USER", "gantry")
			ginkgo.GinkgoT().Setenv("REPO_PASS", "hunter2")

			encoded, err := EncodedEnvAuth()
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			decoded, err := base64.URLEncoding.DecodeString(encoded)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			var authConfig dockerConfigTypes.AuthConfig
			gomega.Expect(json.Unmarshal(decoded, &authConfig)).To(gomega.Succeed())
			gomega.Expect(authConfig.Username).To(gomega.Equal("gantry"))
			gomega.Expect(authConfig.Password).To(gomega.Equal("hunter2"))
		})
	})

	ginkgo.Describe("EncodeAuth", func() {
		ginkgo.It("should produce URL-safe base64 JSON", func() {
			encoded, err := EncodeAuth(dockerConfigTypes.AuthConfig{Username: "u", Password: "p"})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(encoded).NotTo(gomega.ContainSubstring("+"))

			_, err = base64.URLEncoding.DecodeString(encoded)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})
	})
})
