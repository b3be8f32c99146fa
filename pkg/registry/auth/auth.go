// Package auth provides anonymous bearer token retrieval for container
// registries, with a short-lived per-repository token cache.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/registry/helpers"
	"github.com/gantry-dev/gantry/pkg/types"
)

// Token endpoints for the registries whose auth flow is known. Other hosts
// get the conventional /token path on the registry itself.
const (
	dockerHubAuthRealm = "https://auth.docker.io/token"
	dockerHubService   = "registry.docker.io"
	ghcrHost           = "ghcr.io"
)

// Client is the HTTP client used for making requests to registries.
// It is exposed at the package level to allow customization (e.g., in tests).
var Client = &http.Client{}

// DefaultCache is the process-wide token cache used by GetToken.
var DefaultCache = NewTokenCache()

// Static errors for registry authentication failures.
var (
	errTokenRequestFailed = errors.New("token request failed")
	errEmptyToken         = errors.New("registry returned an empty token")
)

// TokenResponse is the token endpoint's JSON body. GHCR and Docker Hub use
// "token"; some registries answer with "access_token" instead.
type TokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// GetToken returns a pull-scoped bearer token for the repository, reusing a
// cached token when one is still fresh.
//
// The token is fetched anonymously unless registryAuth carries encoded basic
// credentials. Hosts without a working token endpoint yield an empty token
// rather than an error, since open registries accept unauthenticated
// requests.
//
// Parameters:
//   - ctx: Request context.
//   - location: Resolved registry location.
//   - registryAuth: Base64 basic credentials, empty for anonymous access.
//
// Returns:
//   - string: Bearer token, possibly empty.
//   - error: Non-nil when a known token endpoint misbehaves.
func GetToken(
	ctx context.Context,
	location types.RegistryLocation,
	registryAuth string,
) (string, error) {
	return GetTokenWithCache(ctx, DefaultCache, location, registryAuth)
}

// GetTokenWithCache is GetToken with an explicit cache, for callers that
// manage their own token lifetimes.
func GetTokenWithCache(
	ctx context.Context,
	cache *TokenCache,
	location types.RegistryLocation,
	registryAuth string,
) (string, error) {
	clog := logrus.WithFields(logrus.Fields{
		"host":       location.Host,
		"repository": location.RepositoryPath,
	})

	if token, ok := cache.Get(CacheKey(location)); ok {
		clog.Debug("Reusing cached registry token")

		return token, nil
	}

	tokenURL := BuildTokenURL(location)
	clog.WithField("url", tokenURL.String()).Debug("Fetching registry token")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTokenRequestFailed, err)
	}

	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", "Gantry (Docker)")

	if registryAuth != "" {
		clog.Debug("Credentials found, sending basic auth to token endpoint")
		req.Header.Set("Authorization", "Basic "+registryAuth)
	}

	res, err := Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTokenRequestFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if !knownTokenEndpoint(location.Host) {
			// The conventional /token path was a guess; fall back to
			// unauthenticated requests against the registry.
			clog.WithField("status", res.Status).
				Debug("Token endpoint unavailable, continuing without token")

			return "", nil
		}

		return "", fmt.Errorf("%w: unexpected status %s", errTokenRequestFailed, res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTokenRequestFailed, err)
	}

	tokenResponse := &TokenResponse{}
	if err := json.Unmarshal(body, tokenResponse); err != nil {
		return "", fmt.Errorf("%w: %w", errTokenRequestFailed, err)
	}

	token := tokenResponse.Token
	if token == "" {
		token = tokenResponse.AccessToken
	}

	if token == "" {
		return "", errEmptyToken
	}

	cache.Put(CacheKey(location), token)
	clog.Debug("Fetched and cached registry token")

	return token, nil
}

// BuildTokenURL constructs the token endpoint URL for a registry location.
// Docker Hub and GHCR have well-known endpoints; other registries get the
// conventional /token path with the same pull scope.
func BuildTokenURL(location types.RegistryLocation) *url.URL {
	scope := fmt.Sprintf("repository:%s:pull", location.RepositoryPath)

	var tokenURL *url.URL

	query := url.Values{}

	switch location.Host {
	case helpers.DefaultRegistryHost:
		tokenURL, _ = url.Parse(dockerHubAuthRealm)

		query.Set("service", dockerHubService)
	case ghcrHost:
		tokenURL = &url.URL{Scheme: "https", Host: ghcrHost, Path: "/token"}
	default:
		tokenURL = &url.URL{Scheme: "https", Host: location.Host, Path: "/token"}
	}

	query.Set("scope", scope)
	tokenURL.RawQuery = query.Encode()

	return tokenURL
}

// knownTokenEndpoint reports whether the host's token endpoint is well-known
// rather than guessed.
func knownTokenEndpoint(host string) bool {
	return host == helpers.DefaultRegistryHost || host == ghcrHost
}
