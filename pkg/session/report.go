package session

import (
	"sort"

	"github.com/gantry-dev/gantry/pkg/types"
)

// report implements the Report interface for session results.
type report struct {
	scanned   []types.ContainerReport // Scanned containers.
	updated   []types.ContainerReport // Updated containers, restarts included.
	failed    []types.ContainerReport // Failed containers.
	skipped   []types.ContainerReport // Skipped containers.
	stale     []types.ContainerReport // Stale containers.
	fresh     []types.ContainerReport // Fresh containers.
	restarted []types.ContainerReport // Restarted containers.
}

// SortableContainers implements sort.Interface for reports.
type SortableContainers []types.ContainerReport

// Scanned returns scanned containers.
func (r *report) Scanned() []types.ContainerReport {
	return r.scanned
}

// Updated returns updated containers.
func (r *report) Updated() []types.ContainerReport {
	return r.updated
}

// Failed returns failed containers.
func (r *report) Failed() []types.ContainerReport {
	return r.failed
}

// Skipped returns skipped containers.
func (r *report) Skipped() []types.ContainerReport {
	return r.skipped
}

// Stale returns stale containers.
func (r *report) Stale() []types.ContainerReport {
	return r.stale
}

// Fresh returns fresh containers.
func (r *report) Fresh() []types.ContainerReport {
	return r.fresh
}

// Restarted returns containers recreated onto an image that was already
// pulled locally. They also appear in Updated.
func (r *report) Restarted() []types.ContainerReport {
	return r.restarted
}

// All returns deduplicated containers, prioritized by state.
//
// Each container appears only once, with priority given to the more
// significant states (updated > failed > skipped > stale > fresh > scanned).
func (r *report) All() []types.ContainerReport {
	allLen := len(r.scanned) + len(r.updated) + len(r.failed) +
		len(r.skipped) + len(r.stale) + len(r.fresh)
	all := make([]types.ContainerReport, 0, allLen)
	presentIDs := map[types.ContainerID]struct{}{}

	appendUnique := func(reports []types.ContainerReport) {
		for _, report := range reports {
			if _, found := presentIDs[report.ID()]; found {
				continue
			}

			all = append(all, report)
			presentIDs[report.ID()] = struct{}{}
		}
	}

	appendUnique(r.updated)
	appendUnique(r.failed)
	appendUnique(r.skipped)
	appendUnique(r.stale)
	appendUnique(r.fresh)
	appendUnique(r.scanned)

	sort.Sort(SortableContainers(all))

	return all
}

// NewReport creates a categorized, sorted report from progress data.
func NewReport(progress Progress) types.Report {
	report := &report{
		scanned:   make([]types.ContainerReport, 0, len(progress)),
		updated:   make([]types.ContainerReport, 0),
		failed:    make([]types.ContainerReport, 0),
		skipped:   make([]types.ContainerReport, 0),
		stale:     make([]types.ContainerReport, 0),
		fresh:     make([]types.ContainerReport, 0),
		restarted: make([]types.ContainerReport, 0),
	}

	for _, update := range progress {
		categorizeContainer(report, update)
	}

	sortCategories(report)

	return report
}

// categorizeContainer assigns a status to report categories.
func categorizeContainer(report *report, update *ContainerStatus) {
	if update.state == SkippedState {
		report.skipped = append(report.skipped, update)

		return
	}

	// Everything that was not skipped counts as scanned.
	report.scanned = append(report.scanned, update)

	// Restarted containers keep their image ID, so check before the
	// fresh comparison below.
	if update.state == RestartedState {
		report.updated = append(report.updated, update)
		report.restarted = append(report.restarted, update)

		return
	}

	if update.newImage == update.oldImage {
		update.state = FreshState
		report.fresh = append(report.fresh, update)

		return
	}

	switch update.state {
	case UpdatedState:
		report.updated = append(report.updated, update)
	case FailedState:
		report.failed = append(report.failed, update)
	case FreshState:
		report.fresh = append(report.fresh, update)
	case StaleState:
		report.stale = append(report.stale, update)
	default:
		// Scanned with a differing image and never updated means stale.
		update.state = StaleState
		report.stale = append(report.stale, update)
	}
}

// sortCategories sorts all report categories by container ID.
func sortCategories(report *report) {
	sort.Sort(SortableContainers(report.scanned))
	sort.Sort(SortableContainers(report.updated))
	sort.Sort(SortableContainers(report.failed))
	sort.Sort(SortableContainers(report.skipped))
	sort.Sort(SortableContainers(report.stale))
	sort.Sort(SortableContainers(report.fresh))
	sort.Sort(SortableContainers(report.restarted))
}

// Len returns the slice length.
func (s SortableContainers) Len() int {
	return len(s)
}

// Less compares container IDs.
func (s SortableContainers) Less(i, j int) bool {
	return s[i].ID() < s[j].ID()
}

// Swap exchanges two reports.
func (s SortableContainers) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}
