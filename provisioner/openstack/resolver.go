package openstack

import (
	"context"
	"fmt"
	"strings"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/provisioner/internal"
	"github.com/gophercloud/gophercloud/openstack/imageservice/v2/images"
	"github.com/samber/lo"
)

// ResolveSubnet returns the first configured network. An empty result lets
// Nova pick the project's default network.
func (p *Provider) ResolveSubnet(context.Context, string) (string, error) {
	if len(p.config.Networks) == 0 {
		return "", nil
	}
	return p.config.Networks[0].UUID, nil
}

// ListImages lists active images. Glance has no notion of shape
// compatibility, so the shape is ignored.
func (p *Provider) ListImages(ctx context.Context, _ string, _ string) ([]acquirer.Image, error) {
	list, err := internal.RetryResult(ctx, internal.ReadAttempts, func() ([]images.Image, error) {
		pages, err := images.List(p.images, images.ListOpts{}).AllPages()
		if err != nil {
			return nil, translate(err)
		}
		return images.ExtractImages(pages)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	return lo.FilterMap(list, func(image images.Image, _ int) (acquirer.Image, bool) {
		return convertImage(image), image.Status == images.ImageStatusActive
	}), nil
}

func convertImage(image images.Image) acquirer.Image {
	return acquirer.Image{
		ID:              image.ID,
		DisplayName:     image.Name,
		OperatingSystem: property(image.Properties, "os_distro"),
		Version:         property(image.Properties, "os_version"),
		State:           strings.ToUpper(string(image.Status)),
		SizeInMBs:       image.SizeBytes / (1024 * 1024),
		CreatedAt:       image.CreatedAt,
	}
}

func property(properties map[string]interface{}, key string) string {
	value, _ := properties[key].(string)
	return value
}
