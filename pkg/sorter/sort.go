// Package sorter orders containers for update runs. It implements
// dependency-based topological sorting over container links and creation
// time ordering, always placing Gantry containers last so the updater
// replaces itself after everything it manages.
package sorter

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/types"
)

// ErrCircularReference indicates a circular dependency between containers.
var ErrCircularReference = errors.New("circular reference detected")

// SortByCreated sorts containers in place by creation time. Containers with
// unparsable creation times sort last.
func SortByCreated(containers []types.Container) {
	parsedTimes := make([]time.Time, len(containers))
	farFuture := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, c := range containers {
		createdTime, err := time.Parse(time.RFC3339Nano, c.ContainerInfo().Created)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"container_id": c.ID().ShortID(),
				"name":         c.Name(),
				"created":      c.ContainerInfo().Created,
			}).WithError(err).Debug("Failed to parse created time, sorting container last")

			createdTime = farFuture
		}

		parsedTimes[i] = createdTime
	}

	sort.Sort(byCreated{containers: containers, parsedTimes: parsedTimes})
}

// byCreated implements sort.Interface for creation time sorting.
type byCreated struct {
	containers  []types.Container
	parsedTimes []time.Time
}

func (c byCreated) Len() int { return len(c.containers) }

func (c byCreated) Swap(i, j int) {
	c.containers[i], c.containers[j] = c.containers[j], c.containers[i]
	c.parsedTimes[i], c.parsedTimes[j] = c.parsedTimes[j], c.parsedTimes[i]
}

func (c byCreated) Less(i, j int) bool {
	return c.parsedTimes[i].Before(c.parsedTimes[j])
}

// SortByDependencies sorts containers so that every container appears after
// the containers it links to, with Gantry containers placed last.
func SortByDependencies(containers []types.Container) ([]types.Container, error) {
	logrus.WithField("container_count", len(containers)).Debug("Starting dependency sort")

	var (
		managedContainers []types.Container
		gantryContainers  []types.Container
	)

	for _, container := range containers {
		if container.IsGantry() {
			gantryContainers = append(gantryContainers, container)
		} else {
			managedContainers = append(managedContainers, container)
		}
	}

	sorter := dependencySorter{}

	sortedManaged, err := sorter.sort(managedContainers)
	if err != nil {
		logrus.WithError(err).Debug("Dependency sort failed")

		return nil, err
	}

	sorted := make([]types.Container, 0, len(sortedManaged)+len(gantryContainers))
	sorted = append(sorted, sortedManaged...)
	sorted = append(sorted, gantryContainers...)

	logrus.WithField("sorted_count", len(sorted)).
		Debug("Completed dependency sort with Gantry containers last")

	return sorted, nil
}

// dependencySorter handles topological sorting by dependencies.
type dependencySorter struct {
	unvisited []types.Container // Yet-to-visit containers.
	marked    map[string]bool   // Visited markers for cycle detection.
	sorted    []types.Container // Sorted result.
}

func (ds *dependencySorter) sort(containers []types.Container) ([]types.Container, error) {
	ds.unvisited = make([]types.Container, len(containers))
	copy(ds.unvisited, containers)
	ds.marked = map[string]bool{}

	// Process containers with no links first.
	for i := 0; i < len(ds.unvisited); i++ {
		if len(ds.unvisited[i].Links()) == 0 {
			if err := ds.visit(ds.unvisited[i]); err != nil {
				return nil, err
			}

			i-- // Adjust for removal.
		}
	}

	// Process remaining containers.
	for len(ds.unvisited) > 0 {
		if err := ds.visit(ds.unvisited[0]); err != nil {
			return nil, err
		}
	}

	return ds.sorted, nil
}

// visit adds a container to the sorted list after its links.
func (ds *dependencySorter) visit(c types.Container) error {
	if _, ok := ds.marked[c.Name()]; ok {
		logrus.WithFields(logrus.Fields{
			"container_id": c.ID().ShortID(),
			"name":         c.Name(),
		}).Debug("Detected circular reference")

		return fmt.Errorf("%w: %s", ErrCircularReference, c.Name())
	}

	// Mark as visited, unmark on exit.
	ds.marked[c.Name()] = true
	defer delete(ds.marked, c.Name())

	for _, linkName := range c.Links() {
		if linkedContainer := ds.findUnvisited(linkName); linkedContainer != nil {
			if err := ds.visit(*linkedContainer); err != nil {
				return err
			}
		}
	}

	ds.removeUnvisited(c)
	ds.sorted = append(ds.sorted, c)
	logrus.WithFields(logrus.Fields{
		"container_id": c.ID().ShortID(),
		"name":         c.Name(),
	}).Debug("Added container to sorted list")

	return nil
}

// findUnvisited finds an unvisited container by name.
func (ds *dependencySorter) findUnvisited(name string) *types.Container {
	for _, c := range ds.unvisited {
		if c.Name() == name {
			return &c
		}
	}

	return nil
}

// removeUnvisited removes a container from the unvisited list.
func (ds *dependencySorter) removeUnvisited(c types.Container) {
	idx := -1

	for i := range ds.unvisited {
		if ds.unvisited[i].Name() == c.Name() {
			idx = i

			break
		}
	}

	if idx == -1 {
		return
	}

	ds.unvisited = append(ds.unvisited[:idx], ds.unvisited[idx+1:]...)
}
