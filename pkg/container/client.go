package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	cerrdefs "github.com/containerd/errdefs"
	dockerContainerType "github.com/docker/docker/api/types/container"
	dockerClient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/gantry-dev/gantry/pkg/types"
)

// Constants for client operations.
const (
	// defaultStopSignal is the default signal for stopping containers.
	defaultStopSignal = "SIGTERM"
	// ExitCodeSkipUpdate is the exit code a pre-update hook returns to skip
	// the container's update.
	ExitCodeSkipUpdate = 75
	// execPollInterval is the interval between exec status checks.
	execPollInterval = 500 * time.Millisecond
	// stopPollInterval is the interval between container state checks while
	// waiting for a stop or removal.
	stopPollInterval = 1 * time.Second
)

// ClientOptions configures the behavior of the Docker client.
type ClientOptions struct {
	// RemoveVolumes removes anonymous volumes together with the container.
	RemoveVolumes bool
	// IncludeStopped includes created and exited containers in listings.
	IncludeStopped bool
	// ReviveStopped starts stopped containers after their update.
	ReviveStopped bool
	// IncludeRestarting includes restarting containers in listings.
	IncludeRestarting bool
}

// client implements types.Client on top of the Docker Engine API.
type client struct {
	api dockerClient.APIClient

	ClientOptions
}

// NewClient returns a Docker API client configured from the environment
// (DOCKER_HOST, DOCKER_TLS_VERIFY, DOCKER_API_VERSION), negotiating the API
// version with the daemon.
func NewClient(opts ClientOptions) types.Client {
	cli, err := dockerClient.NewClientWithOpts(
		dockerClient.FromEnv,
		dockerClient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		logrus.WithError(err).Fatal("Error instantiating Docker client")
	}

	return client{
		api:           cli,
		ClientOptions: opts,
	}
}

// GetVersion returns the negotiated Docker API version.
func (c client) GetVersion() string {
	return c.api.ClientVersion()
}

// IsContainerRunning reports whether the container with the given ID is
// currently running. A removed container counts as not running.
func (c client) IsContainerRunning(
	ctx context.Context,
	containerID types.ContainerID,
) (bool, error) {
	response, err := c.api.ContainerInspect(ctx, string(containerID))
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("%w: %w", errInspectContainerFailed, err)
	}

	return response.State != nil && response.State.Running, nil
}

// ContainerLogs returns the most recent log lines of a container, stdout and
// stderr combined. The tail argument follows the Docker API convention
// ("all" or a line count).
func (c client) ContainerLogs(
	ctx context.Context,
	containerID types.ContainerID,
	tail string,
) (string, error) {
	reader, err := c.api.ContainerLogs(ctx, string(containerID), dockerContainerType.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", errReadLogsFailed, err)
	}
	defer reader.Close()

	var buf bytes.Buffer

	// Multiplexed streams carry stdcopy framing, TTY streams are raw.
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		buf.Reset()

		if _, err := io.Copy(&buf, reader); err != nil {
			return "", fmt.Errorf("%w: %w", errReadLogsFailed, err)
		}
	}

	return buf.String(), nil
}

// ExecuteCommand runs a command inside a container via the exec API and
// waits for it to finish, bounded by the timeout in minutes (0 waits
// indefinitely). It returns true when the command exits with
// ExitCodeSkipUpdate, signalling that the container's update should be
// skipped.
func (c client) ExecuteCommand(
	containerID types.ContainerID,
	command string,
	timeout int,
) (bool, error) {
	ctx := context.Background()
	clog := logrus.WithFields(logrus.Fields{
		"container_id": containerID.ShortID(),
		"command":      command,
	})

	execConfig := dockerContainerType.ExecOptions{
		Cmd: []string{"sh", "-c", command},
		Env: []string{"GANTRY_CONTAINER=" + string(containerID)},
		Tty: true,
	}

	exec, err := c.api.ContainerExecCreate(ctx, string(containerID), execConfig)
	if err != nil {
		return false, fmt.Errorf("%w: %w", errCreateExecFailed, err)
	}

	response, err := c.api.ContainerExecAttach(ctx, exec.ID, dockerContainerType.ExecAttachOptions{
		Tty: true,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", errAttachExecFailed, err)
	}
	defer response.Close()

	if err := c.api.ContainerExecStart(ctx, exec.ID, dockerContainerType.ExecStartOptions{
		Tty: true,
	}); err != nil {
		return false, fmt.Errorf("%w: %w", errStartExecFailed, err)
	}

	output, err := io.ReadAll(response.Reader)
	if err != nil {
		return false, fmt.Errorf("%w: %w", errReadExecOutputFailed, err)
	}

	exitCode, err := c.waitForExecOrTimeout(ctx, exec.ID, timeout)
	if err != nil {
		return false, err
	}

	if trimmed := strings.TrimSpace(string(output)); trimmed != "" {
		clog.WithField("output", trimmed).Debug("Command output captured")
	}

	switch exitCode {
	case 0:
		return false, nil
	case ExitCodeSkipUpdate:
		clog.Debug("Command requested update skip")

		return true, nil
	default:
		return false, fmt.Errorf("%w: exit code %d", errCommandFailed, exitCode)
	}
}

// waitForExecOrTimeout polls an exec instance until it finishes, returning
// its exit code. A timeout of 0 minutes waits indefinitely.
func (c client) waitForExecOrTimeout(
	ctx context.Context,
	execID string,
	timeoutMinutes int,
) (int, error) {
	if timeoutMinutes > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMinutes)*time.Minute)
		defer cancel()
	}

	for {
		inspect, err := c.api.ContainerExecInspect(ctx, execID)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", errInspectExecFailed, err)
		}

		if !inspect.Running {
			return inspect.ExitCode, nil
		}

		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %w", errInspectExecFailed, ctx.Err())
		case <-time.After(execPollInterval):
		}
	}
}
