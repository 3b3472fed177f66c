package oci

import (
	"context"
	"fmt"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/provisioner/internal"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/core"
	"github.com/samber/lo"
)

// ResolveSubnet returns the first subnet of the scope.
func (p *Provider) ResolveSubnet(ctx context.Context, scope string) (string, error) {
	response, err := internal.RetryResult(ctx, internal.ReadAttempts, func() (core.ListSubnetsResponse, error) {
		response, err := p.network.ListSubnets(ctx, core.ListSubnetsRequest{
			CompartmentId: p.scope(scope),
		})
		return response, translate(err)
	})
	if err != nil {
		return "", fmt.Errorf("failed to list subnets: %w", err)
	}

	if len(response.Items) == 0 {
		return "", &acquirer.ConfigurationError{Err: fmt.Errorf("no subnet found, create a virtual cloud network first")}
	}
	return lo.FromPtr(response.Items[0].Id), nil
}

// ListImages lists every image compatible with the shape, newest first as
// returned by the service.
func (p *Provider) ListImages(ctx context.Context, scope, shape string) ([]acquirer.Image, error) {
	var images []acquirer.Image
	var page *string

	for {
		response, err := internal.RetryResult(ctx, internal.ReadAttempts, func() (core.ListImagesResponse, error) {
			response, err := p.compute.ListImages(ctx, core.ListImagesRequest{
				CompartmentId: p.scope(scope),
				Shape:         common.String(shape),
				Page:          page,
			})
			return response, translate(err)
		})
		if err != nil {
			return nil, err
		}

		images = append(images, lo.Map(response.Items, func(image core.Image, _ int) acquirer.Image {
			return convertImage(image)
		})...)

		if response.OpcNextPage == nil {
			return images, nil
		}
		page = response.OpcNextPage
	}
}

func convertImage(image core.Image) acquirer.Image {
	converted := acquirer.Image{
		ID:              lo.FromPtr(image.Id),
		DisplayName:     lo.FromPtr(image.DisplayName),
		OperatingSystem: lo.FromPtr(image.OperatingSystem),
		Version:         lo.FromPtr(image.OperatingSystemVersion),
		State:           string(image.LifecycleState),
		SizeInMBs:       lo.FromPtr(image.SizeInMBs),
	}
	if image.TimeCreated != nil {
		converted.CreatedAt = image.TimeCreated.Time
	}
	return converted
}
