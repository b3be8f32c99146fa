// Package lifecycle replaces a running container with one created from an
// updated image.
//
// Recreator walks a fixed phase sequence (inspect, stop, remove, create,
// start, verify) and reports how far it got. Lifecycle hook commands from
// dev.gantry.hook.* labels run inside the container before and after the
// replacement.
package lifecycle
