package openstack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/namegen"
	"github.com/gammadia/freetier/provisioner/internal"
	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/availabilityzones"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/bootfromvolume"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/keypairs"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/samber/lo"
)

// Provider acquires servers from an OpenStack compute service. Scope is
// ignored: the project is the one of the credentials.
type Provider struct {
	config Config
	client *gophercloud.ServiceClient
	images *gophercloud.ServiceClient
	region string
	log    *slog.Logger

	// Flavor IDs by name, loaded on first use
	flavors       map[string]string
	flavorsLoaded bool
	// Shape requested for a flavor ID, when it differs from the flavor name
	requested map[string]string
	keyPair   string
}

var (
	_ acquirer.Provider = (*Provider)(nil)
	_ acquirer.Resolver = (*Provider)(nil)
)

// NewProvider authenticates with the standard OS_* environment variables.
func NewProvider(config Config, logger *slog.Logger) (*Provider, error) {
	if err := Validate(config); err != nil {
		return nil, err
	}
	if config.BuildTimeout == 0 {
		config.BuildTimeout = DefaultBuildTimeout
	}

	opts, err := openstack.AuthOptionsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth options from env: %w", err)
	}

	provider, err := openstack.AuthenticatedClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	region := os.Getenv("OS_REGION_NAME")
	client, err := openstack.NewComputeV2(provider, gophercloud.EndpointOpts{Region: region})
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	images, err := openstack.NewImageServiceV2(provider, gophercloud.EndpointOpts{Region: region})
	if err != nil {
		return nil, fmt.Errorf("failed to get image client: %w", err)
	}

	return &Provider{
		config:  config,
		client:  client,
		images:  images,
		region:  region,
		log:       logger,
		flavors:   map[string]string{},
		requested: map[string]string{},
	}, nil
}

func (p *Provider) Region() string {
	return p.region
}

func (p *Provider) ListLocations(ctx context.Context, _ string) ([]string, error) {
	zones, err := internal.RetryResult(ctx, internal.ReadAttempts, func() ([]availabilityzones.AvailabilityZone, error) {
		pages, err := availabilityzones.List(p.client).AllPages()
		if err != nil {
			return nil, translate(err)
		}
		return availabilityzones.ExtractAvailabilityZones(pages)
	})
	if err != nil {
		return nil, err
	}

	return lo.FilterMap(zones, func(zone availabilityzones.AvailabilityZone, _ int) (string, bool) {
		return zone.ZoneName, zone.ZoneState.Available
	}), nil
}

type serverWithZone struct {
	servers.Server
	availabilityzones.ServerAvailabilityZoneExt
}

// UnmarshalJSON decodes both parts, servers.Server would otherwise shadow the zone.
func (s *serverWithZone) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &s.Server); err != nil {
		return err
	}
	return json.Unmarshal(b, &s.ServerAvailabilityZoneExt)
}

func (p *Provider) ListInstances(ctx context.Context, _ string) ([]acquirer.Record, error) {
	// Listed servers only carry their flavor ID
	if err := p.loadFlavors(ctx); err != nil {
		return nil, err
	}

	list, err := internal.RetryResult(ctx, internal.ReadAttempts, func() ([]serverWithZone, error) {
		pages, err := servers.List(p.client, servers.ListOpts{}).AllPages()
		if err != nil {
			return nil, translate(err)
		}
		var list []serverWithZone
		return list, servers.ExtractServersInto(pages, &list)
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(list, func(server serverWithZone, _ int) acquirer.Record {
		return p.record(&server.Server, server.AvailabilityZone)
	}), nil
}

// CreateInstance launches a server and waits for it to leave BUILD. Nova
// accepts requests it cannot place and only reports the failure through the
// server status, so capacity errors surface here rather than on creation.
func (p *Provider) CreateInstance(ctx context.Context, details acquirer.LaunchDetails) (acquirer.Record, error) {
	keyPair, err := p.ensureKeyPair(details.PublicKey)
	if err != nil {
		return acquirer.Record{}, err
	}

	flavorID, err := p.flavorID(ctx, details.Shape)
	if err != nil {
		return acquirer.Record{}, err
	}

	var opts servers.CreateOptsBuilder = servers.CreateOpts{
		Name:             details.DisplayName,
		ImageRef:         lo.Ternary(details.BootVolumeGB > 0, "", details.ImageID),
		FlavorRef:        flavorID,
		Networks:         p.networks(details.SubnetID),
		SecurityGroups:   p.config.SecurityGroups,
		AvailabilityZone: details.Location,
		Metadata: map[string]string{
			"freetier-requested-at": time.Now().Format(time.RFC3339),
		},
	}
	if details.BootVolumeGB > 0 {
		opts = bootfromvolume.CreateOptsExt{
			CreateOptsBuilder: opts,
			BlockDevice: []bootfromvolume.BlockDevice{{
				UUID:                details.ImageID,
				SourceType:          bootfromvolume.SourceImage,
				DestinationType:     bootfromvolume.DestinationVolume,
				VolumeSize:          int(details.BootVolumeGB),
				DeleteOnTermination: true,
				BootIndex:           0,
			}},
		}
	}
	if keyPair != "" {
		opts = keypairs.CreateOptsExt{CreateOptsBuilder: opts, KeyName: keyPair}
	}

	server, err := servers.Create(p.client, opts).Extract()
	if err != nil {
		return acquirer.Record{}, translate(err)
	}

	p.log.Debug("Server accepted, waiting for build", "server", server.ID, "zone", details.Location, "wait", p.config.BuildTimeout)
	return p.waitForBuild(ctx, server.ID, details)
}

func (p *Provider) networks(subnetID string) []servers.Network {
	if len(p.config.Networks) == 0 && subnetID != "" {
		return []servers.Network{{UUID: subnetID}}
	}
	return p.config.Networks
}

func (p *Provider) loadFlavors(ctx context.Context) error {
	if p.flavorsLoaded {
		return nil
	}

	loaded := map[string]string{}
	err := internal.Retry(ctx, internal.ReadAttempts, func() error {
		pages, err := flavors.ListDetail(p.client, nil).AllPages()
		if err != nil {
			return translate(err)
		}
		list, err := flavors.ExtractFlavors(pages)
		if err != nil {
			return err
		}
		for _, flavor := range list {
			loaded[flavor.Name] = flavor.ID
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list flavors: %w", err)
	}

	p.flavors = loaded
	p.flavorsLoaded = true
	p.log.Debug("Loaded flavors", "count", len(loaded))
	return nil
}

func (p *Provider) flavorID(ctx context.Context, shape string) (string, error) {
	if err := p.loadFlavors(ctx); err != nil {
		return "", err
	}
	if id, ok := p.flavors[shape]; ok {
		return id, nil
	}

	// Shapes may also be given as flavor IDs
	if _, err := flavors.Get(p.client, shape).Extract(); err != nil {
		err = translate(err)
		var providerErr *acquirer.ProviderError
		if errors.As(err, &providerErr) && providerErr.Status == http.StatusNotFound {
			return "", &acquirer.ConfigurationError{Err: fmt.Errorf("unknown flavor '%s'", shape)}
		}
		return "", err
	}

	p.requested[shape] = shape
	return shape, nil
}

// ensureKeyPair makes sure the operator's public key is registered.
func (p *Provider) ensureKeyPair(publicKey string) (string, error) {
	if p.keyPair != "" || publicKey == "" {
		return p.keyPair, nil
	}

	name := p.config.KeyPair
	if name == "" {
		name = namegen.Prefixed("freetier").String()
	}

	if existing, err := keypairs.Get(p.client, name, nil).Extract(); err == nil {
		if existing.PublicKey != publicKey {
			p.log.Warn("Key pair exists with a different public key, using it anyway", "keypair", name)
		}
	} else if _, err := keypairs.Create(p.client, keypairs.CreateOpts{Name: name, PublicKey: publicKey}).Extract(); err != nil {
		return "", fmt.Errorf("failed to create keypair '%s': %w", name, translate(err))
	}

	p.keyPair = name
	return name, nil
}
