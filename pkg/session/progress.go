package session

import (
	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/types"
)

// Progress tracks container statuses during a session.
type Progress map[types.ContainerID]*ContainerStatus

// UpdateFromContainer creates a status from container data.
func UpdateFromContainer(
	container types.Container,
	newImage types.ImageID,
	state State,
	reason string,
	params types.UpdateParams,
) *ContainerStatus {
	update := &ContainerStatus{
		containerID:    container.ID(),
		oldImage:       container.ImageID(),
		newImage:       newImage,
		containerName:  container.Name(),
		imageName:      container.ImageName(),
		containerError: nil,
		state:          state,
		reason:         reason,
		monitorOnly:    container.IsMonitorOnly(params),
		newContainerID: "",
	}
	logrus.WithFields(logrus.Fields{
		"container_id": container.ID().ShortID(),
		"name":         container.Name(),
		"state":        update.State(),
	}).Debug("Updated container status from container")

	return update
}

// AddSkipped adds a container as skipped with an error. The error message
// doubles as the status reason.
func (m Progress) AddSkipped(container types.Container, err error, params types.UpdateParams) {
	update := UpdateFromContainer(container, container.ImageID(), SkippedState, "", params)
	update.containerError = err

	if err != nil {
		update.reason = err.Error()
	}

	m.Add(update)
	logrus.WithFields(logrus.Fields{
		"container_id": container.ID().ShortID(),
		"name":         container.Name(),
	}).WithError(err).Debug("Added container as skipped")
}

// AddScanned adds a container as scanned with a new image and the detector's
// verdict on why it does or does not need an update.
func (m Progress) AddScanned(
	container types.Container,
	newImage types.ImageID,
	reason string,
	params types.UpdateParams,
) {
	m.Add(UpdateFromContainer(container, newImage, ScannedState, reason, params))
	logrus.WithFields(logrus.Fields{
		"container_id": container.ID().ShortID(),
		"name":         container.Name(),
		"new_image":    newImage.ShortID(),
	}).Debug("Added container as scanned")
}

// UpdateFailed marks containers as failed with errors.
func (m Progress) UpdateFailed(failures map[types.ContainerID]error) {
	for containerID, err := range failures {
		update, exists := m[containerID]
		if !exists {
			logrus.WithField("container_id", containerID.ShortID()).
				Debug("Container not found in progress map, cannot mark as failed")

			continue
		}

		update.containerError = err
		update.state = FailedState
		logrus.WithFields(logrus.Fields{
			"container_id": containerID.ShortID(),
			"name":         update.Name(),
		}).WithError(err).Warn("Updated container state to failed")
	}
}

// Add inserts a container status into the progress map.
func (m Progress) Add(update *ContainerStatus) {
	m[update.containerID] = update
	logrus.WithFields(logrus.Fields{
		"container_id": update.containerID.ShortID(),
		"name":         update.containerName,
		"state":        update.State(),
	}).Debug("Added container status to progress map")
}

// MarkForUpdate sets a container's state to updated.
func (m Progress) MarkForUpdate(containerID types.ContainerID) {
	update, exists := m[containerID]
	if !exists {
		logrus.WithField("container_id", containerID.ShortID()).
			Debug("Attempted to mark non-existent container for update")

		return
	}

	update.state = UpdatedState
	logrus.WithFields(logrus.Fields{
		"container_id": containerID.ShortID(),
		"name":         update.Name(),
	}).Debug("Marked container for update")
}

// MarkRestarted sets a container's state to restarted. Restarted containers
// were recreated onto an image that was already pulled locally.
func (m Progress) MarkRestarted(containerID types.ContainerID) {
	update, exists := m[containerID]
	if !exists {
		logrus.WithField("container_id", containerID.ShortID()).
			Debug("Attempted to mark non-existent container as restarted")

		return
	}

	update.state = RestartedState
	logrus.WithFields(logrus.Fields{
		"container_id": containerID.ShortID(),
		"name":         update.Name(),
	}).Debug("Marked container as restarted")
}

// Restarted returns all containers marked as restarted.
func (m Progress) Restarted() []types.ContainerReport {
	var restarted []types.ContainerReport

	for _, update := range m {
		if update.state == RestartedState {
			restarted = append(restarted, update)
		}
	}

	logrus.WithField("count", len(restarted)).Debug("Retrieved restarted containers")

	return restarted
}

// Report generates a report from the progress data.
func (m Progress) Report() types.Report {
	logrus.WithField("count", len(m)).Debug("Generating report")

	return NewReport(m)
}
