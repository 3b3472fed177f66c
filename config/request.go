package config

import (
	"github.com/gammadia/freetier/acquirer"
	"github.com/samber/lo"
)

// Request builds the engine request. Scope, subnet and image may have been
// resolved from the provider and override the configured values.
func (c Config) Request(compliance Compliance, resolved Resolved, publicKey string) acquirer.Request {
	return acquirer.Request{
		Shape:          c.Shape,
		DisplayName:    c.DisplayName,
		Scope:          lo.Ternary(resolved.Scope != "", resolved.Scope, c.Scope),
		SubnetID:       lo.Ternary(resolved.SubnetID != "", resolved.SubnetID, c.SubnetID),
		ImageID:        lo.Ternary(resolved.ImageID != "", resolved.ImageID, c.ImageID),
		BootVolumeGB:   compliance.BootVolumeGB,
		Ocpus:          compliance.Shape.Ocpus,
		MemoryGB:       compliance.Shape.MemoryGB,
		AssignPublicIP: c.AssignPublicIP,
		PublicKey:      publicKey,
		Locations:      c.Locations,
		Cardinality:    compliance.Shape.Cardinality,
		SecondInstance: c.SecondInstance && compliance.Shape.Cardinality == acquirer.Dual,
	}
}

// Resolved holds the values discovered from the provider before a run.
type Resolved struct {
	Scope    string
	SubnetID string
	ImageID  string
}

func (c Config) RetryPolicy() acquirer.RetryPolicy {
	return acquirer.RetryPolicy{
		WaitInterval: c.WaitInterval,
		MaxRuntime:   c.MaxRuntime,
		ConfirmTries: c.ConfirmTries,
	}
}
