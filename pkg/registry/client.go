package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/registry/auth"
	"github.com/gantry-dev/gantry/pkg/registry/helpers"
	"github.com/gantry-dev/gantry/pkg/registry/manifest"
	"github.com/gantry-dev/gantry/pkg/types"
)

// ContentDigestHeader is the registry header carrying the manifest digest.
const ContentDigestHeader = "Docker-Content-Digest"

// requestTimeout bounds a single registry round trip.
const requestTimeout = 30 * time.Second

// Errors for registry protocol operations.
var (
	// errTagListFailed indicates the tags/list endpoint returned an error.
	errTagListFailed = errors.New("failed to list tags")
	// errManifestFailed indicates the manifests endpoint returned an error.
	errManifestFailed = errors.New("failed to fetch manifest")
	// errNoDigest indicates neither the header nor the body carried a digest.
	errNoDigest = errors.New("manifest response contained no digest")
)

// Client talks the registry v2 protocol: tag listing and manifest digest
// retrieval, with anonymous bearer tokens cached per repository.
//
// It implements types.RegistryClient.
type Client struct {
	httpClient *http.Client
	tokens     *auth.TokenCache
	// credentialsFor returns encoded basic credentials for a registry
	// location, empty for anonymous access. Overridable in tests.
	credentialsFor func(location types.RegistryLocation) string
}

// NewClient creates a registry client with its own token cache.
func NewClient() *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: requestTimeout},
		tokens:         auth.NewTokenCache(),
		credentialsFor: locationCredentials,
	}
}

// ListTags returns all tags published for the repository via the v2
// tags/list endpoint. Tag order is registry-defined.
//
// Parameters:
//   - ctx: Request context.
//   - location: Resolved registry location.
//
// Returns:
//   - []string: Published tags.
//   - error: Non-nil on protocol or transport failure.
func (c *Client) ListTags(
	ctx context.Context,
	location types.RegistryLocation,
) ([]string, error) {
	clog := logrus.WithFields(logrus.Fields{
		"host":       location.Host,
		"repository": location.RepositoryPath,
	})

	res, err := c.get(ctx, location, manifest.BuildTagsURL(location), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTagListFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		clog.WithField("status", res.Status).Debug("Tag list request rejected")

		return nil, fmt.Errorf("%w: unexpected status %s", errTagListFailed, res.Status)
	}

	var tagList manifest.TagList
	if err := json.NewDecoder(res.Body).Decode(&tagList); err != nil {
		return nil, fmt.Errorf("%w: %w", errTagListFailed, err)
	}

	clog.WithField("tag_count", len(tagList.Tags)).Debug("Listed repository tags")

	return tagList.Tags, nil
}

// FetchManifestDigest returns the normalized manifest digest for a tag.
//
// A HEAD request is tried first since the Docker-Content-Digest header makes
// the body unnecessary. Registries that omit the header on HEAD get a GET,
// whose body is searched for the first well-formed digest.
//
// Parameters:
//   - ctx: Request context.
//   - location: Resolved registry location.
//   - tag: Tag to resolve.
//
// Returns:
//   - string: Digest without the "sha256:" prefix.
//   - error: Non-nil when no digest could be obtained.
func (c *Client) FetchManifestDigest(
	ctx context.Context,
	location types.RegistryLocation,
	tag string,
) (string, error) {
	clog := logrus.WithFields(logrus.Fields{
		"host":       location.Host,
		"repository": location.RepositoryPath,
		"tag":        tag,
	})

	manifestURL := manifest.BuildManifestURL(location, tag)

	// HEAD first: header-only, no body transfer.
	if res, err := c.head(ctx, location, manifestURL); err == nil {
		headerDigest := res.Header.Get(ContentDigestHeader)

		res.Body.Close()

		if res.StatusCode == http.StatusOK && headerDigest != "" {
			clog.WithField("digest", headerDigest).Debug("Got digest from HEAD response header")

			return helpers.NormalizeDigest(headerDigest), nil
		}
	}

	res, err := c.get(ctx, location, manifestURL, manifest.AcceptedContentTypes)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errManifestFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		clog.WithField("status", res.Status).Debug("Manifest request rejected")

		return "", fmt.Errorf("%w: unexpected status %s", errManifestFailed, res.Status)
	}

	if headerDigest := res.Header.Get(ContentDigestHeader); headerDigest != "" {
		clog.WithField("digest", headerDigest).Debug("Got digest from GET response header")

		return helpers.NormalizeDigest(headerDigest), nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errManifestFailed, err)
	}

	if bodyDigest, ok := manifest.ExtractDigest(body); ok {
		clog.WithField("digest", bodyDigest).Debug("Got digest from manifest body")

		return bodyDigest, nil
	}

	return "", errNoDigest
}

// get issues an authenticated GET, refreshing the token once on a 401.
func (c *Client) get(
	ctx context.Context,
	location types.RegistryLocation,
	requestURL string,
	accept []string,
) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, location, requestURL, accept)
}

// head issues an authenticated HEAD, refreshing the token once on a 401.
func (c *Client) head(
	ctx context.Context,
	location types.RegistryLocation,
	requestURL string,
) (*http.Response, error) {
	return c.do(ctx, http.MethodHead, location, requestURL, manifest.AcceptedContentTypes)
}

// do performs a registry request with bearer auth. A 401 response
// invalidates the cached token and the request is retried once with a fresh
// one, covering token expiry between cache check and request.
func (c *Client) do(
	ctx context.Context,
	method string,
	location types.RegistryLocation,
	requestURL string,
	accept []string,
) (*http.Response, error) {
	res, err := c.doOnce(ctx, method, location, requestURL, accept)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusUnauthorized {
		res.Body.Close()
		c.tokens.Invalidate(auth.CacheKey(location))

		logrus.WithFields(logrus.Fields{
			"host":       location.Host,
			"repository": location.RepositoryPath,
		}).Debug("Registry rejected token, retrying with a fresh one")

		return c.doOnce(ctx, method, location, requestURL, accept)
	}

	return res, nil
}

func (c *Client) doOnce(
	ctx context.Context,
	method string,
	location types.RegistryLocation,
	requestURL string,
	accept []string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}

	if len(accept) > 0 {
		req.Header.Set("Accept", strings.Join(accept, ", "))
	}

	req.Header.Set("User-Agent", "Gantry (Docker)")

	token, err := auth.GetTokenWithCache(ctx, c.tokens, location, c.credentialsFor(location))
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"host":       location.Host,
			"repository": location.RepositoryPath,
		}).Debug("Token fetch failed, attempting unauthenticated request")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request failed: %w", err)
	}

	return res, nil
}

// locationCredentials resolves encoded basic credentials for the registry
// hosting the location, via the environment or the Docker CLI config.
func locationCredentials(location types.RegistryLocation) string {
	creds, err := EncodedAuth(location.String())
	if err != nil {
		return ""
	}

	return creds
}
