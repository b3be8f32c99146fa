// Package types defines core interfaces and structs for Gantry.
// It provides abstractions for containers, the container engine, the registry
// protocol, session reporting, and notifications.
//
// Key components:
//   - Container: Interface for container lifecycle and metadata operations.
//   - Client: Interface for the container engine.
//   - RegistryClient: Interface for registry tag and digest queries.
//   - RegistryLocation: Resolved registry host plus repository path.
//   - Report: Interface for session results (scanned, updated, etc.).
//   - UpdateParams: Struct for configuring update behavior.
//   - Filter: Function type for container filtering.
//
// The package is the dependency-free hub the other packages share; it pulls
// in only the Docker API types needed to describe container configuration.
package types
