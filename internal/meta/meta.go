// Package meta carries build-time metadata for Gantry.
package meta

// Version is the Gantry version string, set at build time via
// -ldflags "-X github.com/gantry-dev/gantry/internal/meta.Version=v1.0.0".
var Version = "v0.0.0-unknown"
