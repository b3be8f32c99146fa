// Package filters provides filtering logic for selecting the containers a
// Gantry run operates on, based on names, labels, scopes, and images.
package filters

import (
	"regexp"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/types"
)

// noScope is the default scope value when none is specified.
const noScope = "none"

// GantryContainersFilter selects only Gantry containers.
func GantryContainersFilter(c types.FilterableContainer) bool {
	clog := logrus.WithField("container", c.Name())
	isGantry := c.IsGantry()
	clog.WithField("is_gantry", isGantry).Debug("Filtering for Gantry container")

	return isGantry
}

// NoFilter allows all containers through.
func NoFilter(_ types.FilterableContainer) bool {
	return true
}

// normalizeName strips the leading slash the Docker API prepends to
// container names, so filters accept both spellings.
func normalizeName(name string) string {
	return strings.TrimPrefix(name, "/")
}

// FilterByNames selects containers matching the specified names. Each name
// may carry a leading slash and may be a regular expression; a pattern
// matches when it covers the whole container name.
func FilterByNames(names []string, baseFilter types.Filter) types.Filter {
	if len(names) == 0 {
		return baseFilter
	}

	return func(c types.FilterableContainer) bool {
		clog := logrus.WithFields(logrus.Fields{
			"container": c.Name(),
			"names":     names,
		})
		containerName := normalizeName(c.Name())

		for _, name := range names {
			if normalizeName(name) == containerName {
				clog.Debug("Matched container by exact name")

				return baseFilter(c)
			}

			re, err := regexp.Compile(name)
			if err != nil {
				clog.WithError(err).Warn("Invalid regex in name filter")

				continue
			}

			if indices := re.FindStringIndex(containerName); indices != nil &&
				indices[0] == 0 && indices[1] == len(containerName) {
				clog.Debug("Matched container by regex")

				return baseFilter(c)
			}
		}

		clog.Debug("Container name did not match any filter")

		return false
	}
}

// FilterByDisableNames excludes containers matching the specified names.
func FilterByDisableNames(disableNames []string, baseFilter types.Filter) types.Filter {
	if len(disableNames) == 0 {
		return baseFilter
	}

	return func(c types.FilterableContainer) bool {
		containerName := normalizeName(c.Name())

		for _, name := range disableNames {
			if normalizeName(name) == containerName {
				logrus.WithFields(logrus.Fields{
					"container":     c.Name(),
					"disable_names": disableNames,
				}).Debug("Container excluded by disable name")

				return false
			}
		}

		return baseFilter(c)
	}
}

// FilterByEnableLabel selects only containers with the enable label set.
func FilterByEnableLabel(baseFilter types.Filter) types.Filter {
	return func(c types.FilterableContainer) bool {
		_, ok := c.Enabled()
		if !ok {
			logrus.WithField("container", c.Name()).
				Debug("Container excluded: enable label not set")

			return false
		}

		return baseFilter(c)
	}
}

// FilterByDisabledLabel excludes containers with the enable label set to false.
func FilterByDisabledLabel(baseFilter types.Filter) types.Filter {
	return func(c types.FilterableContainer) bool {
		enabled, ok := c.Enabled()
		if ok && !enabled {
			logrus.WithField("container", c.Name()).
				Debug("Container excluded: enable label set to false")

			return false
		}

		return baseFilter(c)
	}
}

// FilterByScope selects containers in a specific scope. Containers without
// a scope label belong to the scope "none".
func FilterByScope(scope string, baseFilter types.Filter) types.Filter {
	return func(c types.FilterableContainer) bool {
		containerScope, ok := c.Scope()
		if !ok || containerScope == "" {
			containerScope = noScope
		}

		if containerScope == scope {
			return baseFilter(c)
		}

		logrus.WithFields(logrus.Fields{
			"container":       c.Name(),
			"scope":           scope,
			"container_scope": containerScope,
		}).Debug("Container scope mismatch")

		return false
	}
}

// FilterByImage selects containers running one of the given images,
// compared without tags.
func FilterByImage(images []string, baseFilter types.Filter) types.Filter {
	if images == nil {
		return baseFilter
	}

	return func(c types.FilterableContainer) bool {
		image := strings.Split(c.ImageName(), ":")[0]
		if slices.Contains(images, image) {
			return baseFilter(c)
		}

		logrus.WithFields(logrus.Fields{
			"container": c.Name(),
			"image":     image,
			"images":    images,
		}).Debug("Container image did not match")

		return false
	}
}

// BuildFilter constructs the composite container filter for a run together
// with a human-readable description of it.
func BuildFilter(
	names []string,
	disableNames []string,
	enableLabel bool,
	scope string,
) (types.Filter, string) {
	clog := logrus.WithFields(logrus.Fields{
		"names":         names,
		"disable_names": disableNames,
		"enable_label":  enableLabel,
		"scope":         scope,
	})
	clog.Debug("Building container filter")

	stringBuilder := strings.Builder{}
	filter := NoFilter
	filter = FilterByNames(names, filter)
	filter = FilterByDisableNames(disableNames, filter)

	if len(names) > 0 {
		stringBuilder.WriteString("which name matches \"")

		for i, n := range names {
			stringBuilder.WriteString(n)

			if i < len(names)-1 {
				stringBuilder.WriteString(`" or "`)
			}
		}

		stringBuilder.WriteString(`", `)
	}

	if len(disableNames) > 0 {
		stringBuilder.WriteString("not named one of \"")

		for i, n := range disableNames {
			stringBuilder.WriteString(n)

			if i < len(disableNames)-1 {
				stringBuilder.WriteString(`" or "`)
			}
		}

		stringBuilder.WriteString(`", `)
	}

	if enableLabel {
		// If label preference is set then this overrides scope.
		filter = FilterByEnableLabel(filter)

		stringBuilder.WriteString("using enable label, ")
	}

	switch {
	case scope == noScope:
		filter = FilterByScope(scope, filter)

		stringBuilder.WriteString("without a scope, ")
	case scope != "":
		filter = FilterByScope(scope, filter)

		stringBuilder.WriteString(`in scope "`)
		stringBuilder.WriteString(scope)
		stringBuilder.WriteString(`", `)
	}

	filter = FilterByDisabledLabel(filter)

	filterDesc := "Checking all containers (except explicitly disabled with label)"
	if stringBuilder.Len() > 0 {
		filterDesc = "Only checking containers " + stringBuilder.String()
		filterDesc = filterDesc[:len(filterDesc)-2] // Trim trailing ", ".
	}

	clog.WithField("filter_desc", filterDesc).Debug("Filter built")

	return filter, filterDesc
}
