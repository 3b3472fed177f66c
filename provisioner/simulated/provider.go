package simulated

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/namegen"
	"github.com/samber/lo"
)

// Provider is an in-memory provider answering like OCI does when capacity is
// scarce. It is used for dry runs.
type Provider struct {
	config Config
	log    *slog.Logger

	mu        sync.Mutex
	instances []acquirer.Record
	creates   int
	failures  int
}

var (
	_ acquirer.Provider = (*Provider)(nil)
	_ acquirer.Resolver = (*Provider)(nil)
)

func NewProvider(config Config) (*Provider, error) {
	if err := Validate(config); err != nil {
		return nil, err
	}
	if len(config.Locations) == 0 {
		config.Locations = DefaultLocations
	}
	if config.Region == "" {
		config.Region = DefaultRegion
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Provider{
		config:    config,
		log:       config.Logger.With("component", "simulated"),
		instances: append([]acquirer.Record(nil), config.Existing...),
	}, nil
}

func (p *Provider) wait(ctx context.Context) error {
	if p.config.Latency == 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.config.Latency):
		return nil
	}
}

func (p *Provider) ListLocations(ctx context.Context, _ string) ([]string, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return append([]string(nil), p.config.Locations...), nil
}

// ListInstances reports instances created by this provider as running from
// the first listing after their creation.
func (p *Provider) ListInstances(ctx context.Context, _ string) ([]acquirer.Record, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	listed := append([]acquirer.Record(nil), p.instances...)
	for i := range p.instances {
		if p.instances[i].State == acquirer.StateProvisioning {
			p.instances[i].State = acquirer.StateRunning
		}
	}
	return listed, nil
}

func (p *Provider) CreateInstance(ctx context.Context, details acquirer.LaunchDetails) (acquirer.Record, error) {
	if err := p.wait(ctx); err != nil {
		return acquirer.Record{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.creates += 1

	if !lo.Contains(p.config.Locations, details.Location) {
		return acquirer.Record{}, &acquirer.ProviderError{
			Status:  400,
			Code:    "InvalidParameter",
			Message: fmt.Sprintf("Invalid availabilityDomain '%s'", details.Location),
		}
	}

	if p.outOfCapacity(details.Location) {
		p.failures += 1
		p.log.Debug("Simulating capacity failure", "location", details.Location, "failures", p.failures)
		return acquirer.Record{}, &acquirer.ProviderError{
			Status:  500,
			Code:    "InternalError",
			Message: "Out of host capacity.",
		}
	}

	record := acquirer.Record{
		ID:          fmt.Sprintf("ocid1.instance.sim.%s", namegen.Get()),
		DisplayName: details.DisplayName,
		Location:    details.Location,
		Shape:       details.Shape,
		State:       acquirer.StateProvisioning,
	}
	p.instances = append(p.instances, record)
	p.log.Debug("Simulating accepted launch", "location", details.Location, "instance", record.ID)

	return record, nil
}

func (p *Provider) outOfCapacity(location string) bool {
	if p.config.CapacityFailures < 0 || p.failures < p.config.CapacityFailures {
		return true
	}
	return p.config.AcceptIn != "" && !strings.HasSuffix(location, p.config.AcceptIn)
}

// Creates returns the number of create requests received.
func (p *Provider) Creates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates
}

func (p *Provider) Region() string {
	return p.config.Region
}

func (p *Provider) ResolveSubnet(ctx context.Context, _ string) (string, error) {
	return "ocid1.subnet.sim", p.wait(ctx)
}

var images = []acquirer.Image{
	{ID: "ocid1.image.sim.ubuntu-24.04", DisplayName: "Canonical-Ubuntu-24.04-2024.10.09-0", OperatingSystem: "Canonical Ubuntu", Version: "24.04", State: "AVAILABLE", SizeInMBs: 47694},
	{ID: "ocid1.image.sim.ubuntu-22.04", DisplayName: "Canonical-Ubuntu-22.04-2024.10.04-0", OperatingSystem: "Canonical Ubuntu", Version: "22.04", State: "AVAILABLE", SizeInMBs: 47694},
	{ID: "ocid1.image.sim.oracle-9", DisplayName: "Oracle-Linux-9.4-2024.09.30-0", OperatingSystem: "Oracle Linux", Version: "9", State: "AVAILABLE", SizeInMBs: 47694},
}

func (p *Provider) ListImages(ctx context.Context, _ string, _ string) ([]acquirer.Image, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return append([]acquirer.Image(nil), images...), nil
}
