package acquirer

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// SelectImage returns the first listed image running the given operating
// system and version.
func SelectImage(images []Image, operatingSystem, version string) (Image, bool) {
	return lo.Find(images, func(image Image) bool {
		return strings.EqualFold(image.OperatingSystem, operatingSystem) && image.Version == version
	})
}

// ResolveImage lists the images compatible with a shape and selects one. The
// listing is returned even when no image matches, so that it can be shown to
// the operator.
func ResolveImage(ctx context.Context, resolver Resolver, scope, shape, operatingSystem, version string) (Image, []Image, error) {
	images, err := resolver.ListImages(ctx, scope, shape)
	if err != nil {
		return Image{}, nil, fmt.Errorf("failed to list images: %w", err)
	}

	image, ok := SelectImage(images, operatingSystem, version)
	if !ok {
		return Image{}, images, &ConfigurationError{Err: fmt.Errorf(
			"no image for operating system '%s' version '%s' among %d images compatible with '%s'",
			operatingSystem, version, len(images), shape,
		)}
	}

	return image, images, nil
}
