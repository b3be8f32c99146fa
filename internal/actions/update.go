package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/detector"
	"github.com/gantry-dev/gantry/pkg/lifecycle"
	"github.com/gantry-dev/gantry/pkg/session"
	"github.com/gantry-dev/gantry/pkg/sorter"
	"github.com/gantry-dev/gantry/pkg/types"
)

// Orchestrator runs update sessions against a Docker engine and a registry.
type Orchestrator struct {
	client    types.Client
	detector  *detector.Detector
	recreator *lifecycle.Recreator
}

// NewOrchestrator creates an Orchestrator for the given engine client and
// registry client.
func NewOrchestrator(client types.Client, registryClient types.RegistryClient) *Orchestrator {
	return &Orchestrator{
		client:    client,
		detector:  detector.NewDetector(registryClient),
		recreator: lifecycle.NewRecreator(client),
	}
}

// CheckAndUpdate examines the matching containers for available updates and
// recreates the ones that need them, in dependency order.
//
// Monitor-only containers and the Gantry instance itself are reported stale
// but never touched. A failure on one container is recorded in the report
// and the batch continues.
func (o *Orchestrator) CheckAndUpdate(
	ctx context.Context,
	params types.UpdateParams,
) (types.Report, error) {
	logrus.Debug("Starting container update run")

	containers, progress, decisions, err := o.scan(ctx, params)
	if err != nil {
		return nil, err
	}

	containers, err = sorter.SortByDependencies(containers)
	if err != nil {
		logrus.WithError(err).Debug("Failed to sort containers by dependencies")

		return nil, fmt.Errorf("%w: %w", errSortDependenciesFailed, err)
	}

	UpdateImplicitRestart(containers)

	failed := map[types.ContainerID]error{}

	for _, sourceContainer := range containers {
		if !sourceContainer.ToRestart() {
			continue
		}

		clog := logrus.WithFields(logrus.Fields{
			"container": sourceContainer.Name(),
			"image":     sourceContainer.ImageName(),
		})

		if sourceContainer.IsGantry() {
			clog.Info("Gantry cannot update its own container, skipping")

			continue
		}

		if sourceContainer.IsMonitorOnly(params) {
			clog.Debug("Container is monitor-only, reporting without updating")

			continue
		}

		if params.DryRun {
			clog.Info("Dry run: container would be updated")

			continue
		}

		if err := o.updateContainer(ctx, sourceContainer, decisions[sourceContainer.ID()], params, progress); err != nil {
			failed[sourceContainer.ID()] = err
		}
	}

	progress.UpdateFailed(failed)

	return progress.Report(), nil
}

// updateContainer pulls the target image when needed and recreates a single
// container, recording the outcome in the progress map.
func (o *Orchestrator) updateContainer(
	ctx context.Context,
	sourceContainer types.Container,
	decision detector.Decision,
	params types.UpdateParams,
	progress session.Progress,
) error {
	clog := logrus.WithFields(logrus.Fields{
		"container": sourceContainer.Name(),
		"image":     sourceContainer.ImageName(),
	})

	// Version updates recreate onto the newer tag, not the original one.
	if decision.Kind == detector.VersionUpdate && decision.Candidate != "" {
		sourceContainer.SetTargetImage(
			retagged(sourceContainer.ImageName(), decision.Candidate),
		)
		clog = clog.WithField("target", sourceContainer.TargetImage())
	}

	// Linked containers restart onto their existing image; restart-only
	// updates already have the image pulled.
	if sourceContainer.IsStale() && !decision.RestartOnly {
		if err := o.client.PullImage(ctx, sourceContainer); err != nil {
			clog.WithError(err).Error("Failed to pull image")

			return fmt.Errorf("%w: %w", errPullImageFailed, err)
		}
	}

	if params.NoRestart {
		if err := o.client.StopContainer(sourceContainer, params.Timeout); err != nil {
			clog.WithError(err).Error("Failed to stop container")

			return fmt.Errorf("%w: %w", errStopContainerFailed, err)
		}

		clog.Info("Stopped container, restart suppressed")
		progress.MarkForUpdate(sourceContainer.ID())

		return nil
	}

	result, err := o.recreator.Recreate(ctx, sourceContainer, lifecycle.RecreateOptions{
		StopTimeout:    params.Timeout,
		LifecycleHooks: params.LifecycleHooks,
	})
	if err != nil {
		if errors.Is(err, lifecycle.ErrUpdateSkipped) {
			clog.Info("Update skipped by pre-update hook")
			progress.AddSkipped(sourceContainer, err, params)

			return nil
		}

		return err
	}

	if decision.RestartOnly || !sourceContainer.IsStale() {
		progress.MarkRestarted(sourceContainer.ID())
	} else {
		progress.MarkForUpdate(sourceContainer.ID())
	}

	if update, ok := progress[sourceContainer.ID()]; ok {
		update.SetNewContainerID(result.ContainerID)
	}

	clog.WithField("new_container_id", result.ContainerID.ShortID()).Info("Updated container")

	return nil
}

// retagged replaces the tag of an image reference with the given tag.
func retagged(imageName, tag string) string {
	repo := imageName
	if idx := strings.LastIndex(imageName, ":"); idx > strings.LastIndex(imageName, "/") {
		repo = imageName[:idx]
	}

	return repo + ":" + tag
}

// UpdateSummary renders a human-readable summary of an update run, with one
// line per container explaining the verdict.
func UpdateSummary(report types.Report) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "%d scanned, %d updated, %d failed",
		len(report.Scanned()), len(report.Updated()), len(report.Failed()))

	if skipped := len(report.Skipped()); skipped > 0 {
		fmt.Fprintf(&builder, ", %d skipped", skipped)
	}

	for _, containerReport := range report.All() {
		fmt.Fprintf(&builder, "\n- %s (%s): %s",
			containerReport.Name(), containerReport.State(), containerReport.Reason())
	}

	return builder.String()
}

// UpdateImplicitRestart marks containers linked to a restarting container,
// so dependents are recreated together with their dependencies.
func UpdateImplicitRestart(containers []types.Container) {
	for i, c := range containers {
		if c.ToRestart() {
			// Skip if already marked for restart.
			continue
		}

		if link := linkedContainerMarkedForRestart(c.Links(), containers); link != "" {
			logrus.WithFields(logrus.Fields{
				"container":  c.Name(),
				"restarting": link,
			}).Debug("Marked container as linked to restarting")
			// Mutate the original slice entry, not the loop variable copy.
			containers[i].SetLinkedToRestarting(true)
		}
	}
}

// linkedContainerMarkedForRestart finds the first linked container marked
// for restart, returning its name or an empty string.
func linkedContainerMarkedForRestart(links []string, containers []types.Container) string {
	for _, linkName := range links {
		for _, candidate := range containers {
			if candidate.Name() == linkName && candidate.ToRestart() {
				return linkName
			}
		}
	}

	return ""
}
