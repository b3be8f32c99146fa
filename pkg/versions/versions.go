// Package versions implements semantic version handling for image tags.
// It parses version-shaped tags, orders them, and classifies major upgrades,
// so the update detector can pick upgrade candidates from a tag list.
package versions

import (
	"strconv"
	"strings"
)

// componentCount is the maximum number of numeric components in a version core.
const componentCount = 3

// Version represents a parsed semantic version from an image tag.
//
// A missing patch component defaults to zero, so "1.2" and "1.2.0" compare
// equal. Build metadata is carried for formatting but never takes part in
// ordering.
type Version struct {
	Major      int    // Major version component.
	Minor      int    // Minor version component.
	Patch      int    // Patch version component.
	Prerelease string // Prerelease identifier without leading "-", empty for releases.
	Build      string // Build metadata without leading "+", ignored in comparisons.
}

// Parse interprets an image tag as a semantic version.
//
// Accepted forms are 2-3 dot-separated numeric components with an optional
// leading "v", an optional "-prerelease" suffix, and an optional "+build"
// suffix. Anything else, including "latest", "stable", single-component
// tags like "1", and digest strings, is not a version.
//
// Parameters:
//   - tag: Image tag to parse.
//
// Returns:
//   - Version: Parsed version, zero value when ok is false.
//   - bool: True if the tag is version-shaped.
func Parse(tag string) (Version, bool) {
	if tag == "" {
		return Version{}, false
	}

	remainder := strings.TrimPrefix(tag, "v")

	var version Version

	// Build metadata comes after "+" and is kept verbatim.
	if idx := strings.IndexByte(remainder, '+'); idx >= 0 {
		version.Build = remainder[idx+1:]
		remainder = remainder[:idx]

		if version.Build == "" {
			return Version{}, false
		}
	}

	// Prerelease comes after the first "-" of the remaining text.
	if idx := strings.IndexByte(remainder, '-'); idx >= 0 {
		version.Prerelease = remainder[idx+1:]
		remainder = remainder[:idx]

		if version.Prerelease == "" {
			return Version{}, false
		}
	}

	// At least major.minor; a bare number like "1" is an ordinary tag.
	components := strings.Split(remainder, ".")
	if len(components) < 2 || len(components) > componentCount {
		return Version{}, false
	}

	numbers := make([]int, 0, componentCount)

	for _, component := range components {
		number, ok := parseNumeric(component)
		if !ok {
			return Version{}, false
		}

		numbers = append(numbers, number)
	}

	// A missing patch defaults to zero so "1.2" equals "1.2.0".
	for len(numbers) < componentCount {
		numbers = append(numbers, 0)
	}

	version.Major = numbers[0]
	version.Minor = numbers[1]
	version.Patch = numbers[2]

	return version, true
}

// Compare orders two versions.
//
// Numeric components are compared first. A prerelease sorts before the same
// version without one, and two prereleases compare byte-wise. Build metadata
// is ignored.
//
// Returns:
//   - int: Negative if a < b, zero if equal, positive if a > b.
func Compare(a, b Version) int {
	if a.Major != b.Major {
		return a.Major - b.Major
	}

	if a.Minor != b.Minor {
		return a.Minor - b.Minor
	}

	if a.Patch != b.Patch {
		return a.Patch - b.Patch
	}

	switch {
	case a.Prerelease == b.Prerelease:
		return 0
	case a.Prerelease == "":
		return 1 // Release outranks any prerelease of the same core.
	case b.Prerelease == "":
		return -1
	default:
		return strings.Compare(a.Prerelease, b.Prerelease)
	}
}

// IsMajorUpgrade reports whether moving from one version to another crosses
// a major version boundary, in either direction.
func IsMajorUpgrade(from, to Version) bool {
	return to.Major != from.Major
}

// String formats the version canonically as "major.minor.patch" with the
// prerelease and build suffixes when present. No "v" prefix is emitted.
func (v Version) String() string {
	var builder strings.Builder

	builder.WriteString(strconv.Itoa(v.Major))
	builder.WriteByte('.')
	builder.WriteString(strconv.Itoa(v.Minor))
	builder.WriteByte('.')
	builder.WriteString(strconv.Itoa(v.Patch))

	if v.Prerelease != "" {
		builder.WriteByte('-')
		builder.WriteString(v.Prerelease)
	}

	if v.Build != "" {
		builder.WriteByte('+')
		builder.WriteString(v.Build)
	}

	return builder.String()
}

// parseNumeric parses a decimal component, rejecting empty strings and sign
// characters that strconv.Atoi would otherwise accept.
func parseNumeric(component string) (int, bool) {
	if component == "" {
		return 0, false
	}

	for _, r := range component {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	number, err := strconv.Atoi(component)
	if err != nil {
		return 0, false
	}

	return number, true
}
