package registry

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/gantry-dev/gantry/pkg/registry/auth"
	"github.com/gantry-dev/gantry/pkg/types"
)

const testDigest = "sha256:d68e1e532088964195ad3a0a71526bc2f11a78de0def85629beb75e2265f0547"

// newTestClient returns a registry client trusting the test server's
// certificate and a location pointing at it.
func newTestClient(server *httptest.Server, repo string) (*Client, types.RegistryLocation) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // test server certificate
	}
	client := &Client{
		httpClient:     &http.Client{Transport: transport},
		tokens:         auth.NewTokenCache(),
		credentialsFor: func(types.RegistryLocation) string { return "" },
	}

	serverURL, _ := url.Parse(server.URL)
	location := types.RegistryLocation{Host: serverURL.Host, RepositoryPath: repo, Tag: "latest"}

	return client, location
}

var _ = ginkgo.Describe("the registry client", func() {
	ginkgo.BeforeEach(func() {
		original := auth.Client
		auth.Client = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // test server certificate
			},
		}
		ginkgo.DeferCleanup(func() { auth.Client = original })
	})

	ginkgo.Describe("ListTags", func() {
		ginkgo.It("should list tags with a bearer token", func() {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/token":
					w.Write([]byte(`{"token":"test-token"}`))
				case "/v2/team/app/tags/list":
					gomega.Expect(r.Header.Get("Authorization")).To(gomega.Equal("Bearer test-token"))
					w.Write([]byte(`{"name":"team/app","tags":["1.0.0","1.1.0","latest"]}`))
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client, location := newTestClient(server, "team/app")

			tags, err := client.ListTags(context.Background(), location)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(tags).To(gomega.Equal([]string{"1.0.0", "1.1.0", "latest"}))
		})

		ginkgo.It("should list tags anonymously when no token endpoint exists", func() {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/v2/team/app/tags/list":
					gomega.Expect(r.Header.Get("Authorization")).To(gomega.BeEmpty())
					w.Write([]byte(`{"name":"team/app","tags":["2.0.0"]}`))
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client, location := newTestClient(server, "team/app")

			tags, err := client.ListTags(context.Background(), location)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(tags).To(gomega.Equal([]string{"2.0.0"}))
		})

		ginkgo.It("should surface non-200 responses as errors", func() {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/token" {
					w.Write([]byte(`{"token":"t"}`))

					return
				}

				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			client, location := newTestClient(server, "team/app")

			_, err := client.ListTags(context.Background(), location)
			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("failed to list tags"))
		})

		ginkgo.It("should retry once with a fresh token after a 401", func() {
			tokenRequests := 0
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/token":
					tokenRequests++

					w.Write([]byte(`{"token":"token-two"}`))
				case "/v2/team/app/tags/list":
					if tokenRequests < 2 {
						w.WriteHeader(http.StatusUnauthorized)

						return
					}

					w.Write([]byte(`{"name":"team/app","tags":["1.0.0"]}`))
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client, location := newTestClient(server, "team/app")

			tags, err := client.ListTags(context.Background(), location)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(tags).To(gomega.Equal([]string{"1.0.0"}))
			gomega.Expect(tokenRequests).To(gomega.Equal(2))
		})
	})

	ginkgo.Describe("FetchManifestDigest", func() {
		ginkgo.It("should prefer the Docker-Content-Digest header from HEAD", func() {
			gets := 0
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/token":
					w.Write([]byte(`{"token":"t"}`))
				case "/v2/team/app/manifests/latest":
					if r.Method == http.MethodGet {
						gets++
					}

					w.Header().Set(ContentDigestHeader, testDigest)
					w.WriteHeader(http.StatusOK)
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client, location := newTestClient(server, "team/app")

			digest, err := client.FetchManifestDigest(context.Background(), location, "latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(digest).To(gomega.Equal(
				"d68e1e532088964195ad3a0a71526bc2f11a78de0def85629beb75e2265f0547"))
			gomega.Expect(gets).To(gomega.Equal(0), "HEAD should satisfy the request")
		})

		ginkgo.It("should fall back to searching the GET body for a digest", func() {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/token":
					w.Write([]byte(`{"token":"t"}`))
				case "/v2/team/app/manifests/1.2.3":
					if r.Method == http.MethodHead {
						w.WriteHeader(http.StatusOK)

						return
					}

					gomega.Expect(r.Header.Get("Accept")).To(gomega.ContainSubstring(
						"application/vnd.oci.image.index.v1+json"))
					w.Write([]byte(`{"schemaVersion":2,"manifests":[{"digest":"` + testDigest + `"}]}`))
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client, location := newTestClient(server, "team/app")

			digest, err := client.FetchManifestDigest(context.Background(), location, "1.2.3")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(digest).To(gomega.Equal(
				"d68e1e532088964195ad3a0a71526bc2f11a78de0def85629beb75e2265f0547"))
		})

		ginkgo.It("should error when no digest can be found anywhere", func() {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/token" {
					w.Write([]byte(`{"token":"t"}`))

					return
				}

				w.Write([]byte(`{"schemaVersion":2}`))
			}))
			defer server.Close()

			client, location := newTestClient(server, "team/app")

			_, err := client.FetchManifestDigest(context.Background(), location, "latest")
			gomega.Expect(err).To(gomega.MatchError(errNoDigest))
		})

		ginkgo.It("should error on missing manifests", func() {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/token" {
					w.Write([]byte(`{"token":"t"}`))

					return
				}

				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			client, location := newTestClient(server, "team/app")

			_, err := client.FetchManifestDigest(context.Background(), location, "gone")
			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("failed to fetch manifest"))
		})
	})
})
