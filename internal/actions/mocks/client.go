// Package mocks provides mock implementations for testing Gantry components.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gantry-dev/gantry/pkg/types"
)

// MockClient is a mock implementation of the Docker client facade for
// testing. It simulates container operations with configurable behavior
// defined by TestData.
type MockClient struct {
	TestData      *TestData
	removeVolumes bool
	Stopped       map[string]bool // Track stopped containers by ID.
	Started       []types.ContainerID
	Pulled        []string // Image names that were pulled.
}

// TestData holds configuration data for MockClient's test behavior.
type TestData struct {
	NameOfContainerToKeep string            // Name of the container to avoid stopping.
	Containers            []types.Container // List of mock containers.
	PullFailures          map[string]error  // Image name to pull error.
	Logs                  string            // Canned container log output.
}

// CreateMockClient constructs a new MockClient instance for testing.
func CreateMockClient(data *TestData, removeVolumes bool) *MockClient {
	return &MockClient{
		TestData:      data,
		removeVolumes: removeVolumes,
		Stopped:       make(map[string]bool),
	}
}

// ListContainers returns the containers from TestData that pass the filter.
func (client *MockClient) ListContainers(filter types.Filter) ([]types.Container, error) {
	matched := []types.Container{}

	for _, c := range client.TestData.Containers {
		if filter(c) {
			matched = append(matched, c)
		}
	}

	return matched, nil
}

// GetContainer returns the container matching the given ID, or the first
// container when no ID matches.
func (client *MockClient) GetContainer(containerID types.ContainerID) (types.Container, error) {
	for _, c := range client.TestData.Containers {
		if c.ID() == containerID {
			return c, nil
		}
	}

	return client.TestData.Containers[0], nil
}

// StopContainer simulates stopping a container by marking it in the Stopped map.
func (client *MockClient) StopContainer(c types.Container, _ time.Duration) error {
	client.Stopped[string(c.ID())] = true

	return nil
}

// RemoveContainer simulates a forced removal.
func (client *MockClient) RemoveContainer(c types.Container) error {
	client.Stopped[string(c.ID())] = true

	return nil
}

// StartContainer simulates starting a replacement container.
func (client *MockClient) StartContainer(c types.Container) (types.ContainerID, error) {
	newID := types.ContainerID("started-" + string(c.ID()))
	client.Started = append(client.Started, newID)

	return newID, nil
}

// IsContainerRunning reports the inverse of the Stopped map, treating
// replacement containers as running.
func (client *MockClient) IsContainerRunning(
	_ context.Context,
	containerID types.ContainerID,
) (bool, error) {
	return !client.Stopped[string(containerID)], nil
}

// PullImage records the pull and returns a configured failure if one exists.
func (client *MockClient) PullImage(_ context.Context, c types.Container) error {
	imageName := c.TargetImage()
	client.Pulled = append(client.Pulled, imageName)

	if err, ok := client.TestData.PullFailures[imageName]; ok {
		return err
	}

	return nil
}

// ContainerLogs returns the canned log output from TestData.
func (client *MockClient) ContainerLogs(
	_ context.Context,
	_ types.ContainerID,
	_ string,
) (string, error) {
	return client.TestData.Logs, nil
}

// GetVersion returns a mock Docker API client version.
func (client *MockClient) GetVersion() string {
	return "1.50"
}

// errCommandFailed is a static error indicating a command exited with a non-zero code.
var errCommandFailed = errors.New("command exited with non-zero code")

// ExecuteCommand simulates executing a command in a container for testing
// lifecycle hooks. Predefined command names mimic real execution outcomes.
func (client *MockClient) ExecuteCommand(
	_ types.ContainerID,
	command string,
	_ int,
) (bool, error) {
	switch command {
	case "/PreUpdateReturn0.sh":
		return false, nil // Command succeeds (exit 0), no skip.
	case "/PreUpdateReturn1.sh":
		return false, fmt.Errorf("%w: %s", errCommandFailed, "code 1")
	case "/PreUpdateReturn75.sh":
		return true, nil // Command succeeds (exit 75), signals skip.
	default:
		return false, nil
	}
}
