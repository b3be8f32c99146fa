// Package detector decides whether a container has an update available.
//
// It never talks to the Docker daemon: decisions are made from the
// container's inspected state and the registry's published tags and
// manifest digests. Versioned tags are compared semantically, floating
// tags by manifest digest.
package detector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/registry/helpers"
	"github.com/gantry-dev/gantry/pkg/types"
	"github.com/gantry-dev/gantry/pkg/versions"
)

// Constants for update detection.
const (
	// maxDigestProbes bounds the reverse digest-to-tag lookup used to name
	// the version a floating tag moved to.
	maxDigestProbes = 12
	// shortDigestLength is the number of digest characters used in reasons.
	shortDigestLength = 12
)

// Errors for update detection operations.
var (
	// errResolveReference indicates the container's image reference could not be resolved.
	errResolveReference = errors.New("failed to resolve image reference")
	// errRegistryQuery indicates a registry request failed during detection.
	errRegistryQuery = errors.New("registry query failed")
)

// UpdateKind distinguishes how an update was detected.
type UpdateKind string

// Update kinds reported in decisions.
const (
	// DigestUpdate means the floating tag's manifest digest moved.
	DigestUpdate UpdateKind = "digest"
	// VersionUpdate means a strictly newer version tag was published.
	VersionUpdate UpdateKind = "version"
)

// Decision is the outcome of an update check for a single container.
type Decision struct {
	// HasUpdate reports whether the container should be updated.
	HasUpdate bool
	// Kind is the detection path that produced the decision.
	Kind UpdateKind
	// Current identifies what the container runs now (tag or short digest).
	Current string
	// Candidate identifies the update target (tag or short digest).
	Candidate string
	// RestartOnly means the target image is already pulled and the
	// container only needs to be recreated onto it.
	RestartOnly bool
	// Reason is a human-readable explanation for reports and notifications.
	Reason string
}

// Detector checks containers for available updates against a registry.
type Detector struct {
	registry types.RegistryClient
}

// NewDetector creates a Detector using the given registry client.
func NewDetector(registryClient types.RegistryClient) *Detector {
	return &Detector{registry: registryClient}
}

// Check decides whether the container has an update available.
//
// Digest-pinned references never update. Tags that parse as versions are
// checked against the registry's tag list for a strictly newer version,
// honoring the major-upgrade policy. The latest tag is checked by
// comparing manifest digests; other non-version tags never update.
func (d *Detector) Check(
	ctx context.Context,
	sourceContainer types.Container,
	params types.UpdateParams,
) (Decision, error) {
	clog := logrus.WithFields(logrus.Fields{
		"container": sourceContainer.Name(),
		"image":     sourceContainer.ImageName(),
	})

	if sourceContainer.IsPinned() {
		clog.Debug("Image reference is digest-pinned, never updated")

		return Decision{Reason: "image pinned by digest"}, nil
	}

	location, err := helpers.Resolve(sourceContainer.ImageName())
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", errResolveReference, err)
	}

	if current, ok := versions.Parse(location.Tag); ok {
		return d.checkVersioned(ctx, sourceContainer, params, location, current, clog)
	}

	// Digest comparison is reserved for the floating latest tag; other
	// unparsable tags give no signal to compare against.
	if location.Tag != "latest" {
		clog.WithField("tag", location.Tag).Debug("Tag is not a version, skipping update check")

		return Decision{Current: location.Tag, Reason: "tag is not a semantic version"}, nil
	}

	return d.checkDigest(ctx, sourceContainer, location, clog)
}

// checkVersioned finds the highest published version strictly newer than
// the current tag. Tags that do not parse as versions are ignored, and
// candidates crossing a major version boundary are excluded unless the
// container or run allows major upgrades.
func (d *Detector) checkVersioned(
	ctx context.Context,
	sourceContainer types.Container,
	params types.UpdateParams,
	location types.RegistryLocation,
	current versions.Version,
	clog *logrus.Entry,
) (Decision, error) {
	tags, err := d.registry.ListTags(ctx, location)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", errRegistryQuery, err)
	}

	allowMajor := sourceContainer.AllowsMajorUpgrade(params)

	var (
		best     versions.Version
		bestTag  string
		majorCap bool
		found    bool
	)

	for _, tag := range tags {
		candidate, ok := versions.Parse(tag)
		if !ok {
			continue
		}

		if versions.Compare(candidate, current) <= 0 {
			continue
		}

		if !allowMajor && versions.IsMajorUpgrade(current, candidate) {
			majorCap = true

			continue
		}

		if !found || versions.Compare(candidate, best) > 0 {
			best = candidate
			bestTag = tag
			found = true
		}
	}

	if !found {
		reason := "no newer version published"
		if majorCap {
			reason = "newer versions require a major upgrade"
		}

		clog.WithField("tag", location.Tag).Debug("No version update available")

		return Decision{Current: location.Tag, Reason: reason}, nil
	}

	clog.WithFields(logrus.Fields{
		"current":   location.Tag,
		"candidate": bestTag,
	}).Debug("Version update available")

	return Decision{
		HasUpdate: true,
		Kind:      VersionUpdate,
		Current:   location.Tag,
		Candidate: bestTag,
		Reason:    fmt.Sprintf("version %s available (currently %s)", bestTag, location.Tag),
	}, nil
}

// checkDigest compares the floating tag's remote manifest digest with the
// digest of the local image.
func (d *Detector) checkDigest(
	ctx context.Context,
	sourceContainer types.Container,
	location types.RegistryLocation,
	clog *logrus.Entry,
) (Decision, error) {
	remoteDigest, err := d.registry.FetchManifestDigest(ctx, location, location.Tag)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", errRegistryQuery, err)
	}

	remoteDigest = helpers.NormalizeDigest(remoteDigest)

	// Prefer the recorded repo-digest; an image that never came from a
	// registry (e.g. built locally) only has its raw image ID.
	localDigest := helpers.NormalizeDigest(sourceContainer.ImageDigest())
	if localDigest == "" {
		localDigest = helpers.NormalizeDigest(string(sourceContainer.ImageID()))
	}

	if localDigest == "" || localDigest == remoteDigest {
		// The local image is current; the container may still run an
		// older image if the tag was pulled after it started.
		if needsRestart(sourceContainer) {
			clog.Debug("Image already pulled, container restart pending")

			return Decision{
				HasUpdate:   true,
				Kind:        DigestUpdate,
				Current:     types.ImageID(sourceContainer.ContainerInfo().Image).ShortID(),
				Candidate:   sourceContainer.ImageID().ShortID(),
				RestartOnly: true,
				Reason:      "container restarts onto the already pulled image",
			}, nil
		}

		reason := "image is up to date"
		if localDigest == "" {
			reason = "no local digest to compare"
		}

		return Decision{
			Current:   shortDigest(localDigest),
			Candidate: shortDigest(remoteDigest),
			Reason:    reason,
		}, nil
	}

	clog.WithFields(logrus.Fields{
		"local":  shortDigest(localDigest),
		"remote": shortDigest(remoteDigest),
	}).Debug("Digest update available")

	return Decision{
		HasUpdate: true,
		Kind:      DigestUpdate,
		Current:   shortDigest(localDigest),
		Candidate: shortDigest(remoteDigest),
		Reason:    d.digestUpdateReason(ctx, location, remoteDigest),
	}, nil
}

// needsRestart reports whether the container runs an image older than the
// one its reference currently points at locally.
func needsRestart(sourceContainer types.Container) bool {
	info := sourceContainer.ContainerInfo()
	if info == nil || !sourceContainer.HasImageInfo() {
		return false
	}

	return info.Image != "" && info.Image != string(sourceContainer.ImageID())
}

// digestUpdateReason recovers a version string for a digest update by
// reverse lookup: the parseable tags are probed newest-first until one's
// manifest digest matches the remote digest. The probe count is capped to
// keep detection cheap on repositories with long tag histories.
func (d *Detector) digestUpdateReason(
	ctx context.Context,
	location types.RegistryLocation,
	remoteDigest string,
) string {
	tags, err := d.registry.ListTags(ctx, location)
	if err == nil {
		type versionedTag struct {
			tag     string
			version versions.Version
		}

		candidates := make([]versionedTag, 0, len(tags))

		for _, tag := range tags {
			if version, ok := versions.Parse(tag); ok {
				candidates = append(candidates, versionedTag{tag: tag, version: version})
			}
		}

		sort.Slice(candidates, func(i, j int) bool {
			return versions.Compare(candidates[i].version, candidates[j].version) > 0
		})

		if len(candidates) > maxDigestProbes {
			candidates = candidates[:maxDigestProbes]
		}

		for _, candidate := range candidates {
			digest, err := d.registry.FetchManifestDigest(ctx, location, candidate.tag)
			if err != nil {
				continue
			}

			if helpers.NormalizeDigest(digest) == remoteDigest {
				return fmt.Sprintf("%s now points at version %s", location.Tag, candidate.tag)
			}
		}
	}

	if remoteDigest != "" {
		return "new image digest " + shortDigest(remoteDigest)
	}

	return "new image available"
}

// shortDigest truncates a normalized digest for display.
func shortDigest(digest string) string {
	if len(digest) > shortDigestLength {
		return digest[:shortDigestLength]
	}

	return digest
}
