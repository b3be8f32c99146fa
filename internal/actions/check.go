package actions

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/detector"
	"github.com/gantry-dev/gantry/pkg/filters"
	"github.com/gantry-dev/gantry/pkg/session"
	"github.com/gantry-dev/gantry/pkg/types"
)

// CheckResult pairs a container with the detector's verdict for it.
type CheckResult struct {
	Container types.Container
	Decision  detector.Decision
}

// DryRun performs update detection for all matching containers without
// mutating anything, returning the per-container verdicts.
func (o *Orchestrator) DryRun(
	ctx context.Context,
	params types.UpdateParams,
) ([]CheckResult, error) {
	params.DryRun = true

	containers, _, decisions, err := o.scan(ctx, params)
	if err != nil {
		return nil, err
	}

	results := make([]CheckResult, 0, len(containers))

	for _, c := range containers {
		if decision, ok := decisions[c.ID()]; ok {
			results = append(results, CheckResult{Container: c, Decision: decision})
		}
	}

	return results, nil
}

// ContainersNeedingUpdate performs update detection and returns only the
// containers with an update available.
func (o *Orchestrator) ContainersNeedingUpdate(
	ctx context.Context,
	params types.UpdateParams,
) ([]types.Container, error) {
	containers, _, _, err := o.scan(ctx, params)
	if err != nil {
		return nil, err
	}

	var stale []types.Container

	for _, c := range containers {
		if c.IsStale() {
			stale = append(stale, c)
		}
	}

	return stale, nil
}

// scan lists the matching containers and runs update detection on each one.
// Detection failures are recorded as skipped and the scan continues.
func (o *Orchestrator) scan(
	ctx context.Context,
	params types.UpdateParams,
) ([]types.Container, session.Progress, map[types.ContainerID]detector.Decision, error) {
	progress := session.Progress{}
	decisions := map[types.ContainerID]detector.Decision{}

	containers, err := o.client.ListContainers(effectiveFilter(params))
	if err != nil {
		logrus.WithError(err).Debug("Failed to list containers")

		return nil, nil, nil, fmt.Errorf("%w: %w", errListContainersFailed, err)
	}

	logrus.WithField("count", len(containers)).Debug("Retrieved containers for update check")

	staleCount := 0
	checkFailed := 0

	for _, sourceContainer := range containers {
		clog := logrus.WithFields(logrus.Fields{
			"container": sourceContainer.Name(),
			"image":     sourceContainer.ImageName(),
		})

		decision, err := o.detector.Check(ctx, sourceContainer, params)
		if err != nil {
			clog.WithError(err).Debug("Cannot check container for updates, skipping")

			checkFailed++

			progress.AddSkipped(sourceContainer, err, params)

			continue
		}

		decisions[sourceContainer.ID()] = decision

		// Containers with a pending update are reported against an unknown
		// latest image ID until the new image is pulled.
		newImage := sourceContainer.ImageID()
		if decision.HasUpdate {
			newImage = ""
		}

		progress.AddScanned(sourceContainer, newImage, decision.Reason, params)
		sourceContainer.SetStale(decision.HasUpdate)

		if decision.HasUpdate {
			staleCount++

			clog.WithField("reason", decision.Reason).Info("Found container with update available")
		} else {
			clog.WithField("reason", decision.Reason).Debug("Container is up to date")
		}
	}

	logrus.WithFields(logrus.Fields{
		"total":  len(containers),
		"stale":  staleCount,
		"failed": checkFailed,
	}).Info("Completed container update check")

	return containers, progress, decisions, nil
}

// effectiveFilter combines the run's base filter with the explicit name
// targets, defaulting to all containers.
func effectiveFilter(params types.UpdateParams) types.Filter {
	filter := params.Filter
	if filter == nil {
		filter = filters.NoFilter
	}

	return filters.FilterByNames(params.Names, filter)
}
