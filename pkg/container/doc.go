// Package container wraps the Docker Engine API for Gantry.
//
// Client is the facade the update logic talks to: it lists and inspects
// containers, stops and removes them, recreates them from captured
// configuration, pulls images, reads logs, and runs lifecycle hook
// commands inside containers. Container carries the inspected container
// and image state together with the dev.gantry.* labels that steer
// update behavior.
package container
