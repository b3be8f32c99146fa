package mocks

import (
	"context"
	"errors"

	"github.com/gantry-dev/gantry/pkg/types"
)

// errManifestNotFound indicates the mock registry has no digest for a tag.
var errManifestNotFound = errors.New("manifest not found")

// MockRegistryClient implements types.RegistryClient from canned data.
type MockRegistryClient struct {
	Tags        map[string][]string // Repository path to published tags.
	Digests     map[string]string   // "repo:tag" to manifest digest.
	TagsErr     error               // Forced ListTags failure.
	TagsErrs    map[string]error    // Per-repository ListTags failures.
	DigestErr   error               // Forced FetchManifestDigest failure.
	DigestCalls []string            // Record of digest lookups, "repo:tag".
}

// ListTags returns the canned tags for the repository.
func (m *MockRegistryClient) ListTags(
	_ context.Context,
	location types.RegistryLocation,
) ([]string, error) {
	if m.TagsErr != nil {
		return nil, m.TagsErr
	}

	if err, ok := m.TagsErrs[location.RepositoryPath]; ok {
		return nil, err
	}

	return m.Tags[location.RepositoryPath], nil
}

// FetchManifestDigest returns the canned digest for the repository and tag.
func (m *MockRegistryClient) FetchManifestDigest(
	_ context.Context,
	location types.RegistryLocation,
	tag string,
) (string, error) {
	if m.DigestErr != nil {
		return "", m.DigestErr
	}

	key := location.RepositoryPath + ":" + tag
	m.DigestCalls = append(m.DigestCalls, key)

	if digest, ok := m.Digests[key]; ok {
		return digest, nil
	}

	return "", errManifestNotFound
}
