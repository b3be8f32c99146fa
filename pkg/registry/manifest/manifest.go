// Package manifest provides URL construction and digest extraction for the
// registry v2 manifest and tag-list endpoints.
package manifest

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/registry/helpers"
	"github.com/gantry-dev/gantry/pkg/types"
)

// Accept header values for the manifest endpoint. Listing both OCI and
// Docker media types lets the registry answer with whatever it stores
// instead of converting on the fly.
const (
	ContentTypeOCIIndex       = "application/vnd.oci.image.index.v1+json"
	ContentTypeOCIManifest    = "application/vnd.oci.image.manifest.v1+json"
	ContentTypeManifestList   = "application/vnd.docker.distribution.manifest.list.v2+json"
	ContentTypeDockerManifest = "application/vnd.docker.distribution.manifest.v2+json"
)

// AcceptedContentTypes is the Accept header set sent with manifest requests.
var AcceptedContentTypes = []string{
	ContentTypeOCIIndex,
	ContentTypeOCIManifest,
	ContentTypeManifestList,
	ContentTypeDockerManifest,
}

// TagList is the registry's tag-list response body.
type TagList struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// BuildManifestURL constructs the v2 manifest URL for a tag on the resolved
// registry host.
//
// Parameters:
//   - location: Resolved registry location.
//   - tag: Tag or digest to request.
//
// Returns:
//   - string: Manifest URL, e.g. "https://index.docker.io/v2/library/alpine/manifests/latest".
func BuildManifestURL(location types.RegistryLocation, tag string) string {
	manifestURL := url.URL{
		Scheme: "https",
		Host:   location.Host,
		Path:   fmt.Sprintf("/v2/%s/manifests/%s", location.RepositoryPath, tag),
	}

	return manifestURL.String()
}

// BuildTagsURL constructs the v2 tag-list URL for the resolved registry
// location.
func BuildTagsURL(location types.RegistryLocation) string {
	tagsURL := url.URL{
		Scheme: "https",
		Host:   location.Host,
		Path:   fmt.Sprintf("/v2/%s/tags/list", location.RepositoryPath),
	}

	return tagsURL.String()
}

// ExtractDigest recursively searches a manifest body for the first
// well-formed sha256 digest. Registries that omit the Docker-Content-Digest
// header still embed digests in the body: manifest-list entries, the config
// descriptor, and layer descriptors all carry one.
//
// Parameters:
//   - body: Raw manifest response body.
//
// Returns:
//   - string: Normalized digest without the "sha256:" prefix.
//   - bool: False when no digest-shaped string occurs in the body.
func ExtractDigest(body []byte) (string, bool) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		logrus.WithError(err).Debug("Failed to decode manifest body for digest search")

		return "", false
	}

	if found, ok := searchDigest(decoded); ok {
		return helpers.NormalizeDigest(found), true
	}

	return "", false
}

// searchDigest walks decoded JSON depth-first, preferring "digest" keys and
// falling back to any value that validates as a sha256 digest.
func searchDigest(node any) (string, bool) {
	switch value := node.(type) {
	case string:
		if isDigest(value) {
			return value, true
		}
	case map[string]any:
		// A digest key is the descriptor's own digest; take it before
		// descending into nested descriptors.
		if raw, ok := value["digest"]; ok {
			if str, isStr := raw.(string); isStr && isDigest(str) {
				return str, true
			}
		}

		for _, child := range value {
			if found, ok := searchDigest(child); ok {
				return found, true
			}
		}
	case []any:
		for _, child := range value {
			if found, ok := searchDigest(child); ok {
				return found, true
			}
		}
	}

	return "", false
}

// isDigest validates a candidate string as a sha256 digest.
func isDigest(candidate string) bool {
	parsed, err := digest.Parse(candidate)
	if err != nil {
		return false
	}

	return parsed.Algorithm() == digest.SHA256
}
