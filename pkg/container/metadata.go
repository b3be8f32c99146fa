package container

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/types"
)

// Gantry labels identify containers managed by Gantry and configure how
// they are updated.
const (
	// gantryLabel marks a container as the Gantry instance itself when set to "true".
	gantryLabel = "dev.gantry"
	// signalLabel specifies a custom stop signal for the container (e.g. "SIGTERM").
	signalLabel = "dev.gantry.stop-signal"
	// enableLabel indicates whether Gantry should manage this container (true/false).
	enableLabel = "dev.gantry.enable"
	// monitorOnlyLabel flags the container for monitoring only, without updates (true/false).
	monitorOnlyLabel = "dev.gantry.monitor-only"
	// allowMajorLabel permits updates that cross a major version boundary (true/false).
	allowMajorLabel = "dev.gantry.allow-major"
	// dependsOnLabel lists container names this container depends on, comma-separated.
	dependsOnLabel = "dev.gantry.depends-on"
	// scopeLabel defines a unique monitoring scope for this Gantry instance.
	scopeLabel = "dev.gantry.scope"
)

// Lifecycle hook labels configure commands executed around a container update.
const (
	// preUpdateLabel specifies a command to run inside the container before updating it.
	preUpdateLabel = "dev.gantry.hook.pre-update"
	// postUpdateLabel specifies a command to run inside the new container after updating.
	postUpdateLabel = "dev.gantry.hook.post-update"
	// preUpdateTimeoutLabel sets the timeout (in minutes) for the pre-update command.
	preUpdateTimeoutLabel = "dev.gantry.hook.pre-update-timeout"
	// postUpdateTimeoutLabel sets the timeout (in minutes) for the post-update command.
	postUpdateTimeoutLabel = "dev.gantry.hook.post-update-timeout"
)

// defaultHookTimeoutMinutes bounds lifecycle hook execution when no
// timeout label is set. A label value of 0 allows indefinite execution.
const defaultHookTimeoutMinutes = 1

// GetLifecyclePreUpdateCommand returns the pre-update hook command from the
// container's labels, or an empty string if not set.
func (c Container) GetLifecyclePreUpdateCommand() string {
	return c.getLabelValueOrEmpty(preUpdateLabel)
}

// GetLifecyclePostUpdateCommand returns the post-update hook command from the
// container's labels, or an empty string if not set.
func (c Container) GetLifecyclePostUpdateCommand() string {
	return c.getLabelValueOrEmpty(postUpdateLabel)
}

// PreUpdateTimeout returns the timeout (in minutes) for the pre-update hook.
// It defaults to one minute if the label is unset or invalid.
func (c Container) PreUpdateTimeout() int {
	return c.getTimeoutMinutes(preUpdateTimeoutLabel)
}

// PostUpdateTimeout returns the timeout (in minutes) for the post-update hook.
// It defaults to one minute if the label is unset or invalid.
func (c Container) PostUpdateTimeout() int {
	return c.getTimeoutMinutes(postUpdateTimeoutLabel)
}

func (c Container) getTimeoutMinutes(label string) int {
	val := c.getLabelValueOrEmpty(label)

	minutes, err := strconv.Atoi(val)
	if err != nil || val == "" {
		return defaultHookTimeoutMinutes
	}

	return minutes
}

// Enabled checks if the container is enabled for Gantry management.
// It returns the parsed boolean value of the enable label and true if set,
// or false and false if the label is absent or invalid.
func (c Container) Enabled() (bool, bool) {
	rawBool, ok := c.getLabelValue(enableLabel)
	if !ok {
		return false, false
	}

	parsedBool, err := strconv.ParseBool(rawBool)
	if err != nil {
		return false, false
	}

	return parsedBool, true
}

// IsMonitorOnly determines if the container should only be monitored without
// updates. It combines the global MonitorOnly parameter with the
// monitor-only label, honoring label precedence.
func (c Container) IsMonitorOnly(params types.UpdateParams) bool {
	return c.getContainerOrGlobalBool(params.MonitorOnly, monitorOnlyLabel, params.LabelPrecedence)
}

// AllowsMajorUpgrade determines if the container may be updated across a
// major version boundary. It combines the global AllowMajorUpgrade parameter
// with the allow-major label, honoring label precedence.
func (c Container) AllowsMajorUpgrade(params types.UpdateParams) bool {
	return c.getContainerOrGlobalBool(
		params.AllowMajorUpgrade,
		allowMajorLabel,
		params.LabelPrecedence,
	)
}

// Scope retrieves the monitoring scope for the container.
// It returns the scope label value and true if set, or an empty string and
// false if not.
func (c Container) Scope() (string, bool) {
	rawString, ok := c.getLabelValue(scopeLabel)
	if !ok {
		return "", false
	}

	return rawString, true
}

// IsGantry identifies if this is the Gantry container itself.
// It returns true if the gantry label is present and set to "true".
func (c Container) IsGantry() bool {
	return ContainsGantryLabel(c.containerInfo.Config.Labels)
}

// StopSignal returns the custom stop signal for the container.
// It retrieves the signal label value, returning an empty string if not set.
func (c Container) StopSignal() string {
	return c.getLabelValueOrEmpty(signalLabel)
}

// ContainsGantryLabel checks if a label map identifies a Gantry instance.
func ContainsGantryLabel(labels map[string]string) bool {
	val, ok := labels[gantryLabel]

	return ok && val == "true"
}

// getLabelValueOrEmpty retrieves a label's value from the container's
// metadata, or an empty string if the label is not present.
func (c Container) getLabelValueOrEmpty(label string) string {
	if val, ok := c.containerInfo.Config.Labels[label]; ok {
		return val
	}

	return ""
}

// getLabelValue fetches a label's value and its presence from the
// container's metadata.
func (c Container) getLabelValue(label string) (string, bool) {
	val, ok := c.containerInfo.Config.Labels[label]

	return val, ok
}

// getBoolLabelValue parses a label's value as a boolean, returning
// errLabelNotFound when the label is absent.
func (c Container) getBoolLabelValue(label string) (bool, error) {
	if strVal, ok := c.containerInfo.Config.Labels[label]; ok {
		value, err := strconv.ParseBool(strVal)
		if err != nil {
			return false, fmt.Errorf(
				"failed to parse boolean value for label %s=%q: %w",
				label,
				strVal,
				err,
			)
		}

		return value, nil
	}

	return false, errLabelNotFound
}

// getContainerOrGlobalBool resolves a boolean value from a label or global
// parameter. With label precedence the label wins outright when present;
// otherwise the label is combined with the global value. A missing or
// malformed label falls back to the global value.
func (c Container) getContainerOrGlobalBool(
	globalVal bool,
	label string,
	contPrecedence bool,
) bool {
	contVal, err := c.getBoolLabelValue(label)
	if err != nil {
		if !errors.Is(err, errLabelNotFound) {
			logrus.WithField("error", err).
				WithField("label", label).
				Warn("Failed to parse label value")
		}

		return globalVal
	}

	if contPrecedence {
		return contVal
	}

	return contVal || globalVal
}
