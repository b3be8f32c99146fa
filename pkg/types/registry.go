package types

import "context"

// RegistryLocation identifies an image repository on a concrete registry host,
// after vanity-host and default-registry resolution.
type RegistryLocation struct {
	Host           string // Registry host, e.g. "index.docker.io" or "ghcr.io".
	RepositoryPath string // Repository path, e.g. "library/nginx".
	Tag            string // Tag portion of the reference, "latest" when unspecified.
	Digest         string // Pinned digest without "sha256:" prefix, empty if untagged by digest.
}

// Pinned reports whether the reference is pinned to a digest and therefore
// never a candidate for tag-based updates.
func (l RegistryLocation) Pinned() bool {
	return l.Digest != ""
}

// String returns the host-qualified repository for logging.
func (l RegistryLocation) String() string {
	return l.Host + "/" + l.RepositoryPath
}

// RegistryClient defines the registry-side operations Gantry needs to decide
// whether an image has an update available.
type RegistryClient interface {
	// ListTags returns all tags published for the repository.
	//
	// Tag order is registry-defined; callers must not rely on it.
	ListTags(ctx context.Context, location RegistryLocation) ([]string, error)

	// FetchManifestDigest returns the normalized manifest digest for a tag,
	// without the "sha256:" prefix.
	FetchManifestDigest(ctx context.Context, location RegistryLocation, tag string) (string, error)
}
