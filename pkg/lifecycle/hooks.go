package lifecycle

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/types"
)

// errPreUpdateFailed indicates a pre-update hook command failed.
var errPreUpdateFailed = errors.New("pre-update command failed")

// ExecutePreUpdateCommand executes the pre-update hook for a container.
//
// It returns true when the hook requested to skip the update (exit code 75)
// and an error when the command failed. Containers without a hook command,
// or which are not running, skip execution.
func ExecutePreUpdateCommand(
	client types.Client,
	sourceContainer types.Container,
) (bool, error) {
	timeout := sourceContainer.PreUpdateTimeout()
	command := sourceContainer.GetLifecyclePreUpdateCommand()
	clog := logrus.WithFields(logrus.Fields{
		"container": sourceContainer.Name(),
		"timeout":   timeout,
	})

	if len(command) == 0 {
		clog.Debug("No pre-update command supplied. Skipping")

		return false, nil
	}

	if !sourceContainer.IsRunning() || sourceContainer.IsRestarting() {
		clog.WithFields(logrus.Fields{
			"is_running":    sourceContainer.IsRunning(),
			"is_restarting": sourceContainer.IsRestarting(),
		}).Debug("Container is not running. Skipping pre-update command")

		return false, nil
	}

	clog.WithField("command", command).Debug("Executing pre-update command")

	skip, err := client.ExecuteCommand(sourceContainer.ID(), command, timeout)
	if err != nil {
		clog.WithError(err).Debug("Pre-update command failed")

		return false, fmt.Errorf(
			"%w for container %s: %w",
			errPreUpdateFailed,
			sourceContainer.Name(),
			err,
		)
	}

	clog.WithField("skip", skip).Debug("Pre-update command executed")

	return skip, nil
}

// ExecutePostUpdateCommand executes the post-update hook inside the
// replacement container. Failures are logged, never propagated: the update
// itself already succeeded.
func ExecutePostUpdateCommand(client types.Client, newContainerID types.ContainerID) {
	clog := logrus.WithField("container_id", newContainerID.ShortID())

	newContainer, err := client.GetContainer(newContainerID)
	if err != nil {
		clog.WithError(err).Debug("Failed to get container for post-update")

		return
	}

	command := newContainer.GetLifecyclePostUpdateCommand()
	if len(command) == 0 {
		clog.Debug("No post-update command supplied. Skipping")

		return
	}

	timeout := newContainer.PostUpdateTimeout()
	clog = logrus.WithFields(logrus.Fields{
		"container": newContainer.Name(),
		"timeout":   timeout,
	})

	clog.WithField("command", command).Debug("Executing post-update command")

	if _, err := client.ExecuteCommand(newContainer.ID(), command, timeout); err != nil {
		clog.WithError(err).Debug("Post-update command failed")
	}
}
