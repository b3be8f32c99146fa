// Package helpers provides registry reference resolution for Gantry.
// It maps image references to concrete registry hosts and repository paths,
// applies vanity-host remapping, and normalizes digests for comparison.
package helpers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/distribution/reference"

	"github.com/gantry-dev/gantry/pkg/types"
)

// Domains for Docker Hub, the default registry.
const (
	DefaultRegistryDomain = "docker.io"
	DefaultRegistryHost   = "index.docker.io"
	DefaultRegistryAPI    = "registry-1.docker.io"
	DefaultTag            = "latest"
)

// Vanity registry remapping. lscr.io serves LinuxServer images whose
// manifests actually live on GHCR under the linuxserver org.
const (
	lscrDomain       = "lscr.io"
	lscrBackingHost  = "ghcr.io"
	lscrImagePrefix  = "linuxserver/"
	officialRepoOrg  = "library/"
	digestSeparator  = "@"
	sha256Identifier = "sha256:"
)

// errEmptyImageRef indicates an empty image reference was passed to Resolve.
var errEmptyImageRef = errors.New("image reference is empty")

// Resolve maps an image reference to the registry host and repository path
// the v2 API calls should target.
//
// A leading path segment containing "." or ":", or equal to "localhost", is
// treated as a registry host; otherwise Docker Hub applies and single-segment
// repositories gain the "library/" prefix. lscr.io references are remapped to
// ghcr.io with the "linuxserver/" prefix added unless already present.
//
// Parameters:
//   - imageRef: Image reference, e.g. "nginx:1.25" or "lscr.io/plex@sha256:…".
//
// Returns:
//   - types.RegistryLocation: Resolved host, repository path, tag, and digest.
//   - error: Non-nil for empty or unparsable references.
func Resolve(imageRef string) (types.RegistryLocation, error) {
	if imageRef == "" {
		return types.RegistryLocation{}, errEmptyImageRef
	}

	location := types.RegistryLocation{Tag: DefaultTag}
	remainder := imageRef

	// Split off a pinning digest first so ":" inside it is not taken for a tag.
	if idx := strings.Index(remainder, digestSeparator); idx >= 0 {
		location.Digest = NormalizeDigest(remainder[idx+1:])
		location.Tag = ""
		remainder = remainder[:idx]
	}

	// A ":" after the last "/" separates the tag from the repository.
	if idx := strings.LastIndex(remainder, ":"); idx > strings.LastIndex(remainder, "/") {
		if location.Digest == "" {
			location.Tag = remainder[idx+1:]
		}

		remainder = remainder[:idx]
	}

	if remainder == "" {
		return types.RegistryLocation{}, fmt.Errorf("%w: %q", errEmptyImageRef, imageRef)
	}

	host, repoPath := splitHost(remainder)

	switch host {
	case lscrDomain:
		// Vanity remap; never double-prefix an already qualified path.
		host = lscrBackingHost
		if !strings.HasPrefix(repoPath, lscrImagePrefix) {
			repoPath = lscrImagePrefix + repoPath
		}
	case "", DefaultRegistryDomain, DefaultRegistryHost, DefaultRegistryAPI:
		host = DefaultRegistryHost
		if !strings.Contains(repoPath, "/") {
			repoPath = officialRepoOrg + repoPath
		}
	}

	location.Host = host
	location.RepositoryPath = repoPath

	return location, nil
}

// splitHost separates a registry host from the repository path. The first
// segment is a host only when it contains "." or ":" or is "localhost",
// matching the engine's own reference grammar.
func splitHost(ref string) (string, string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return "", ref
	}

	first := ref[:idx]
	if strings.ContainsAny(first, ".:") || first == "localhost" {
		return first, ref[idx+1:]
	}

	return "", ref
}

// GetRegistryAddress extracts the registry address from an image reference.
// It returns the domain part of the reference, mapping Docker Hub's default
// domain to its canonical host address if applicable. Used for credential
// store lookups, which key on the engine's notion of the registry address.
func GetRegistryAddress(imageRef string) (string, error) {
	normalizedRef, err := reference.ParseNormalizedNamed(imageRef)
	if err != nil {
		return "", fmt.Errorf("failed to parse image reference: %w", err)
	}

	address := reference.Domain(normalizedRef)
	if address == DefaultRegistryDomain {
		address = DefaultRegistryHost
	}

	return address, nil
}

// NormalizeDigest standardizes a digest string for consistent comparison.
// It trims the "sha256:" prefix so header digests, body digests, and repo
// digests compare equal regardless of source.
func NormalizeDigest(digest string) string {
	return strings.TrimPrefix(digest, sha256Identifier)
}
