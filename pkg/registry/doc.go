// Package registry implements Gantry's registry v2 protocol client.
//
// Client lists repository tags and resolves manifest digests over HTTPS,
// attaching anonymous bearer tokens from pkg/registry/auth and refreshing
// them once when a registry answers 401. Credential handling for private
// repositories lives in trust.go, backed by environment variables and the
// Docker CLI configuration file.
//
// The subpackages divide the protocol surface:
//   - helpers: reference resolution to host + repository path
//   - auth: token endpoints and the TTL token cache
//   - manifest: URL construction and body digest extraction
package registry
