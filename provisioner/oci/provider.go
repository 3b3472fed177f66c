package oci

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/provisioner/internal"
	"github.com/google/uuid"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/core"
	"github.com/oracle/oci-go-sdk/v65/identity"
	"github.com/samber/lo"
)

type identityAPI interface {
	ListAvailabilityDomains(ctx context.Context, request identity.ListAvailabilityDomainsRequest) (identity.ListAvailabilityDomainsResponse, error)
}

type computeAPI interface {
	ListInstances(ctx context.Context, request core.ListInstancesRequest) (core.ListInstancesResponse, error)
	LaunchInstance(ctx context.Context, request core.LaunchInstanceRequest) (core.LaunchInstanceResponse, error)
	ListImages(ctx context.Context, request core.ListImagesRequest) (core.ListImagesResponse, error)
}

type networkAPI interface {
	ListSubnets(ctx context.Context, request core.ListSubnetsRequest) (core.ListSubnetsResponse, error)
}

// Provider acquires instances from Oracle Cloud Infrastructure. An empty
// scope stands for the tenancy's root compartment.
type Provider struct {
	identity identityAPI
	compute  computeAPI
	network  networkAPI

	tenancy string
	region  string
	log     *slog.Logger
}

var (
	_ acquirer.Provider = (*Provider)(nil)
	_ acquirer.Resolver = (*Provider)(nil)
)

func NewProvider(config Config, logger *slog.Logger) (*Provider, error) {
	config = config.WithDefaults()

	configProvider, err := common.ConfigurationProviderFromFileWithProfile(config.ConfigFile, config.Profile, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read OCI configuration '%s': %w", config.ConfigFile, err)
	}

	tenancy, err := configProvider.TenancyOCID()
	if err != nil {
		return nil, fmt.Errorf("failed to get tenancy: %w", err)
	}

	region, err := configProvider.Region()
	if err != nil {
		return nil, fmt.Errorf("failed to get region: %w", err)
	}

	identityClient, err := identity.NewIdentityClientWithConfigurationProvider(configProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get identity client: %w", err)
	}

	computeClient, err := core.NewComputeClientWithConfigurationProvider(configProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	networkClient, err := core.NewVirtualNetworkClientWithConfigurationProvider(configProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get virtual network client: %w", err)
	}

	return &Provider{
		identity: identityClient,
		compute:  computeClient,
		network:  networkClient,
		tenancy:  tenancy,
		region:   region,
		log:      logger,
	}, nil
}

func (p *Provider) Region() string {
	return p.region
}

func (p *Provider) scope(scope string) *string {
	return common.String(lo.Ternary(scope != "", scope, p.tenancy))
}

func (p *Provider) ListLocations(ctx context.Context, scope string) ([]string, error) {
	response, err := internal.RetryResult(ctx, internal.ReadAttempts, func() (identity.ListAvailabilityDomainsResponse, error) {
		response, err := p.identity.ListAvailabilityDomains(ctx, identity.ListAvailabilityDomainsRequest{
			CompartmentId: p.scope(scope),
		})
		return response, translate(err)
	})
	if err != nil {
		return nil, err
	}

	return lo.FilterMap(response.Items, func(domain identity.AvailabilityDomain, _ int) (string, bool) {
		name := lo.FromPtr(domain.Name)
		return name, name != ""
	}), nil
}

func (p *Provider) ListInstances(ctx context.Context, scope string) ([]acquirer.Record, error) {
	var records []acquirer.Record
	var page *string

	for {
		response, err := internal.RetryResult(ctx, internal.ReadAttempts, func() (core.ListInstancesResponse, error) {
			response, err := p.compute.ListInstances(ctx, core.ListInstancesRequest{
				CompartmentId: p.scope(scope),
				Page:          page,
			})
			return response, translate(err)
		})
		if err != nil {
			return nil, err
		}

		records = append(records, lo.Map(response.Items, func(instance core.Instance, _ int) acquirer.Record {
			return record(instance)
		})...)

		if response.OpcNextPage == nil {
			return records, nil
		}
		page = response.OpcNextPage
	}
}

// CreateInstance sends a single launch request. The SDK retry policy is
// disabled: pacing belongs to the engine.
func (p *Provider) CreateInstance(ctx context.Context, details acquirer.LaunchDetails) (acquirer.Record, error) {
	retryPolicy := common.NoRetryPolicy()

	response, err := p.compute.LaunchInstance(ctx, core.LaunchInstanceRequest{
		LaunchInstanceDetails: launchDetails(p.scope(details.Scope), details),
		OpcRetryToken:         common.String(uuid.NewString()),
		RequestMetadata:       common.RequestMetadata{RetryPolicy: &retryPolicy},
	})
	if err != nil {
		return acquirer.Record{}, translate(err)
	}

	p.log.Debug("Launch accepted", "instance", lo.FromPtr(response.Instance.Id), "opc-request-id", lo.FromPtr(response.OpcRequestId))
	return record(response.Instance), nil
}

func launchDetails(compartment *string, details acquirer.LaunchDetails) core.LaunchInstanceDetails {
	launch := core.LaunchInstanceDetails{
		AvailabilityDomain: common.String(details.Location),
		CompartmentId:      compartment,
		Shape:              common.String(details.Shape),
		DisplayName:        common.String(details.DisplayName),
		CreateVnicDetails: &core.CreateVnicDetails{
			AssignPublicIp:         common.Bool(details.AssignPublicIP),
			AssignPrivateDnsRecord: common.Bool(true),
			DisplayName:            common.String(details.DisplayName),
			SubnetId:               common.String(details.SubnetID),
		},
		SourceDetails: core.InstanceSourceViaImageDetails{
			ImageId: common.String(details.ImageID),
		},
		AvailabilityConfig: &core.LaunchInstanceAvailabilityConfigDetails{
			RecoveryAction: core.LaunchInstanceAvailabilityConfigDetailsRecoveryActionRestoreInstance,
		},
		InstanceOptions: &core.InstanceOptions{
			AreLegacyImdsEndpointsDisabled: common.Bool(false),
		},
	}

	if details.Ocpus > 0 || details.MemoryGB > 0 {
		launch.ShapeConfig = &core.LaunchInstanceShapeConfigDetails{
			Ocpus:       common.Float32(details.Ocpus),
			MemoryInGBs: common.Float32(details.MemoryGB),
		}
	}

	if details.BootVolumeGB > 0 {
		launch.SourceDetails = core.InstanceSourceViaImageDetails{
			ImageId:             common.String(details.ImageID),
			BootVolumeSizeInGBs: common.Int64(details.BootVolumeGB),
		}
	}

	if details.PublicKey != "" {
		launch.Metadata = map[string]string{"ssh_authorized_keys": details.PublicKey}
	}

	return launch
}

func record(instance core.Instance) acquirer.Record {
	return acquirer.Record{
		ID:          lo.FromPtr(instance.Id),
		DisplayName: lo.FromPtr(instance.DisplayName),
		Location:    lo.FromPtr(instance.AvailabilityDomain),
		Shape:       lo.FromPtr(instance.Shape),
		State:       acquirer.State(instance.LifecycleState),
	}
}
