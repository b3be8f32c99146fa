// Package util provides small slice, map, and formatting helpers shared
// across Gantry's packages.
package util

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// SliceEqual checks if two string slices are identical.
func SliceEqual(slice1, slice2 []string) bool {
	if len(slice1) != len(slice2) {
		return false
	}

	for i := range slice1 {
		if slice1[i] != slice2[i] {
			return false
		}
	}

	return true
}

// SliceSubtract returns the elements of slice that are not in subtractFrom.
func SliceSubtract(slice, subtractFrom []string) []string {
	result := []string{}

	for _, element := range slice {
		if !slices.Contains(subtractFrom, element) {
			result = append(result, element)
		}
	}

	return result
}

// StringMapSubtract returns the entries of map1 that are missing from map2
// or carry a different value there.
func StringMapSubtract(map1, map2 map[string]string) map[string]string {
	result := map[string]string{}

	for key1, value1 := range map1 {
		if value2, ok := map2[key1]; ok {
			if value2 != value1 {
				result[key1] = value1
			}
		} else {
			result[key1] = value1
		}
	}

	return result
}

// StructMapSubtract returns the keys of map1 that are missing from map2.
func StructMapSubtract(map1, map2 map[string]struct{}) map[string]struct{} {
	result := map[string]struct{}{}

	for key1, value1 := range map1 {
		if _, ok := map2[key1]; !ok {
			result[key1] = value1
		}
	}

	return result
}

// timeUnit represents a single unit of time with its value and labels.
type timeUnit struct {
	value    int64
	singular string
	plural   string
}

// FormatDuration converts a duration into a human-readable string like
// "1 hour, 2 minutes, 3 seconds", always including at least "0 seconds".
func FormatDuration(duration time.Duration) string {
	const (
		minutesPerHour   = 60
		secondsPerMinute = 60
	)

	units := []timeUnit{
		{int64(duration.Hours()), "hour", "hours"},
		{int64(math.Mod(duration.Minutes(), minutesPerHour)), "minute", "minutes"},
		{int64(math.Mod(duration.Seconds(), secondsPerMinute)), "second", "seconds"},
	}

	parts := make([]string, 0, len(units))
	for i, unit := range units {
		// Seconds are forced when nothing else made it in, avoiding empty output.
		part := formatTimeUnit(unit.value, unit.singular, unit.plural, i == len(units)-1 && len(parts) == 0)
		if part != "" {
			parts = append(parts, part)
		}
	}

	return strings.Join(parts, ", ")
}

// formatTimeUnit formats a single time unit, skipping zero values unless
// forced.
func formatTimeUnit(value int64, singular, plural string, forceInclude bool) string {
	switch {
	case value == 1:
		return "1 " + singular
	case value > 1 || forceInclude:
		return fmt.Sprintf("%d %s", value, plural)
	default:
		return ""
	}
}
