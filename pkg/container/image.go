package container

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/gantry-dev/gantry/pkg/registry"
	"github.com/gantry-dev/gantry/pkg/types"
)

// PullImage pulls the container's target image reference, using registry
// credentials when available. Digest-pinned references are immutable and
// skipped.
func (c client) PullImage(ctx context.Context, sourceContainer types.Container) error {
	imageName := sourceContainer.TargetImage()
	clog := logrus.WithFields(logrus.Fields{
		"container": sourceContainer.Name(),
		"image":     imageName,
	})

	if sourceContainer.IsPinned() {
		clog.Debug("Image is digest-pinned, skipping pull")

		return nil
	}

	opts, err := registry.GetPullOptions(imageName)
	if err != nil {
		return fmt.Errorf("%w: %w", errPullImageFailed, err)
	}

	clog.Debug("Pulling image")

	response, err := c.api.ImagePull(ctx, imageName, opts)
	if err != nil {
		return fmt.Errorf("%w: %w", errPullImageFailed, err)
	}
	defer response.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, response); err != nil {
		return fmt.Errorf("%w: %w", errReadPullResponseFailed, err)
	}

	return nil
}
