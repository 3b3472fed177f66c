package acquirer

import (
	"context"
	"fmt"
	"time"
)

// Provider is the compute API the engine drives.
type Provider interface {
	// ListLocations returns every location of the scope, in provider order.
	ListLocations(ctx context.Context, scope string) ([]string, error)
	// ListInstances returns every instance of the scope, in provider order.
	ListInstances(ctx context.Context, scope string) ([]Record, error)
	// CreateInstance submits a launch request. A nil error means the provider
	// accepted the request, not that the instance is running.
	CreateInstance(ctx context.Context, details LaunchDetails) (Record, error)
}

// Resolver is implemented by providers able to fill in request fields the
// operator left empty.
type Resolver interface {
	Region() string
	ResolveSubnet(ctx context.Context, scope string) (string, error)
	ListImages(ctx context.Context, scope, shape string) ([]Image, error)
}

// Image is a bootable image as listed by a Resolver.
type Image struct {
	ID              string    `json:"id" yaml:"id"`
	DisplayName     string    `json:"display-name" yaml:"display_name"`
	OperatingSystem string    `json:"operating-system" yaml:"operating_system"`
	Version         string    `json:"operating-system-version" yaml:"operating_system_version"`
	State           string    `json:"lifecycle-state" yaml:"lifecycle_state"`
	SizeInMBs       int64     `json:"size-in-mbs" yaml:"size_in_mbs"`
	CreatedAt       time.Time `json:"time-created" yaml:"time_created"`
}

// ProviderError is the structured failure every Provider returns. Status is
// the HTTP status (zero when unknown), Code the service error code.
type ProviderError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("status: %d, code: %s, message: %s", e.Status, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
