// Package actions orchestrates Gantry's update runs: listing and filtering
// containers, detecting available updates against the registry, recreating
// the containers that need them in dependency order, and producing the
// session report that feeds metrics, notifications, and the HTTP API.
package actions
