package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/types"
)

// Defaults for recreation options.
const (
	// DefaultStopTimeout bounds how long a container may take to stop.
	DefaultStopTimeout = 30 * time.Second
	// defaultVerifyRetries is how often the replacement is polled for
	// running state before verification gives up.
	defaultVerifyRetries = 5
	// defaultVerifyInterval is the pause between verification polls.
	defaultVerifyInterval = 1 * time.Second
)

// Errors for recreation operations.
var (
	// ErrUpdateSkipped indicates a pre-update hook requested to skip the update.
	ErrUpdateSkipped = errors.New("update skipped by pre-update hook")
	// errCaptureConfigFailed indicates the container's configuration could not be captured.
	errCaptureConfigFailed = errors.New("failed to capture container configuration")
	// errStopFailed indicates the old container could not be stopped and removed.
	errStopFailed = errors.New("failed to stop container")
	// errStartFailed indicates the replacement container could not be created or started.
	errStartFailed = errors.New("failed to start replacement container")
)

// RecreateOptions configures a single recreation.
type RecreateOptions struct {
	// StopTimeout bounds the stop and removal of the old container.
	// Zero uses DefaultStopTimeout.
	StopTimeout time.Duration
	// VerifyRetries is the number of running-state polls after start.
	// Zero uses the default.
	VerifyRetries int
	// VerifyInterval is the pause between polls. Zero uses the default.
	VerifyInterval time.Duration
	// LifecycleHooks enables the pre- and post-update hook commands.
	LifecycleHooks bool
}

func (o RecreateOptions) withDefaults() RecreateOptions {
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}

	if o.VerifyRetries <= 0 {
		o.VerifyRetries = defaultVerifyRetries
	}

	if o.VerifyInterval <= 0 {
		o.VerifyInterval = defaultVerifyInterval
	}

	return o
}

// Result reports the outcome of a recreation.
type Result struct {
	// Phase is the last phase reached.
	Phase Phase
	// ContainerID identifies the replacement container, empty if none was
	// created.
	ContainerID types.ContainerID
}

// Recreator replaces containers with fresh ones created from their
// captured configuration.
type Recreator struct {
	client types.Client
}

// NewRecreator creates a Recreator using the given Docker client facade.
func NewRecreator(client types.Client) *Recreator {
	return &Recreator{client: client}
}

// Recreate replaces the container with one created from its captured
// configuration and the updated image.
//
// The configuration is captured before anything is destroyed. A failing
// pre-update hook aborts the recreation with the old container untouched.
// Verification failure after start is logged and reflected in the result's
// phase but does not roll anything back: the old container is already gone
// and a slow start is the common cause.
func (r *Recreator) Recreate(
	ctx context.Context,
	sourceContainer types.Container,
	opts RecreateOptions,
) (Result, error) {
	opts = opts.withDefaults()
	clog := logrus.WithFields(logrus.Fields{
		"container": sourceContainer.Name(),
		"image":     sourceContainer.ImageName(),
	})

	result := Result{Phase: PhaseRunning}

	if err := sourceContainer.VerifyConfiguration(); err != nil {
		result.Phase = PhaseFailed

		return result, fmt.Errorf("%w: %w", errCaptureConfigFailed, err)
	}

	result.Phase = PhaseInspected
	clog.WithField("phase", result.Phase).Debug("Captured container configuration")

	if opts.LifecycleHooks {
		skip, err := ExecutePreUpdateCommand(r.client, sourceContainer)
		if err != nil {
			result.Phase = PhaseFailed

			return result, err
		}

		if skip {
			return result, ErrUpdateSkipped
		}
	}

	wasRunning := sourceContainer.IsRunning()

	if err := r.client.StopContainer(sourceContainer, opts.StopTimeout); err != nil {
		result.Phase = PhaseFailed

		return result, fmt.Errorf("%w: %w", errStopFailed, err)
	}

	result.Phase = PhaseStopped
	clog.WithField("phase", result.Phase).Debug("Stopped container")

	// StopContainer only returns once the daemon no longer knows the
	// container, so the name is free for the replacement.
	result.Phase = PhaseRemoved

	newContainerID, err := r.client.StartContainer(sourceContainer)
	if err != nil {
		result.Phase = PhaseFailed
		result.ContainerID = newContainerID

		return result, fmt.Errorf("%w: %w", errStartFailed, err)
	}

	result.ContainerID = newContainerID
	result.Phase = PhaseCreated
	clog.WithFields(logrus.Fields{
		"phase": result.Phase,
		"id":    newContainerID.ShortID(),
	}).Debug("Created replacement container")

	if !wasRunning {
		return result, nil
	}

	result.Phase = PhaseStarted
	clog.WithField("phase", result.Phase).Info("Started replacement container")

	if r.verifyRunning(ctx, newContainerID, opts) {
		result.Phase = PhaseVerified
	} else {
		clog.WithField("id", newContainerID.ShortID()).
			Error("Replacement container did not report running, leaving it in place")
	}

	if opts.LifecycleHooks {
		ExecutePostUpdateCommand(r.client, newContainerID)
	}

	return result, nil
}

// verifyRunning polls the replacement container until it reports running or
// the retries are exhausted.
func (r *Recreator) verifyRunning(
	ctx context.Context,
	containerID types.ContainerID,
	opts RecreateOptions,
) bool {
	for attempt := 0; attempt < opts.VerifyRetries; attempt++ {
		running, err := r.client.IsContainerRunning(ctx, containerID)
		if err != nil {
			logrus.WithError(err).
				WithField("id", containerID.ShortID()).
				Debug("Failed to check replacement container state")
		} else if running {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(opts.VerifyInterval):
		}
	}

	return false
}
