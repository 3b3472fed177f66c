package config

import (
	"fmt"
	"strings"

	"github.com/gammadia/freetier/acquirer"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

// ShapeRule is an allowed shape and the sizing it is launched with.
type ShapeRule struct {
	Shape       string
	Cardinality acquirer.Cardinality
	// Flex shape sizing, zero for fixed shapes
	Ocpus    float32
	MemoryGB float32
}

// Policy is the set of limits a configuration must stay within to avoid
// charges.
type Policy struct {
	Name string
	// Empty means any shape, launched as a singleton
	Shapes []ShapeRule
	// Empty means any region
	Regions []string
	// Recommended only
	OperatingSystems []string

	// Boot volumes are raised to MinBootVolumeGB, refused above
	// SafeBootVolumeGB, and never allowed above MaxStorageGB.
	MinBootVolumeGB  int64
	SafeBootVolumeGB int64
	MaxStorageGB     int64
}

const (
	ArmShape   = "VM.Standard.A1.Flex"
	MicroShape = "VM.Standard.E2.1.Micro"
)

var AlwaysFree = Policy{
	Name: "always-free",
	Shapes: []ShapeRule{
		{Shape: ArmShape, Cardinality: acquirer.Singleton, Ocpus: 4, MemoryGB: 24},
		{Shape: MicroShape, Cardinality: acquirer.Dual, Ocpus: 1, MemoryGB: 1},
	},
	Regions:          []string{"us-ashburn-1", "us-phoenix-1", "ca-toronto-1"},
	OperatingSystems: []string{"Canonical Ubuntu"},
	MinBootVolumeGB:  50,
	SafeBootVolumeGB: 100,
	MaxStorageGB:     200,
}

// Operator builds a policy from an operator supplied list of shapes, for
// providers without a known free tier.
func Operator(shapes []string) Policy {
	return Policy{
		Name: "operator",
		Shapes: lo.Map(shapes, func(shape string, _ int) ShapeRule {
			return ShapeRule{Shape: shape, Cardinality: acquirer.Singleton}
		}),
	}
}

// Compliance is the result of a successful policy check.
type Compliance struct {
	Shape        ShapeRule
	BootVolumeGB int64
	Warnings     []string
}

// Check verifies a configuration against the policy. Every violation is
// reported; warnings never fail the check.
func (p Policy) Check(config Config, region string) (Compliance, error) {
	var errs error
	compliance := Compliance{}

	if len(p.Shapes) == 0 {
		compliance.Shape = ShapeRule{Shape: config.Shape, Cardinality: acquirer.Singleton}
	} else if rule, ok := lo.Find(p.Shapes, func(rule ShapeRule) bool { return rule.Shape == config.Shape }); ok {
		compliance.Shape = rule
	} else {
		errs = multierr.Append(errs, fmt.Errorf(
			"shape '%s' is not allowed by the %s policy, use one of [%s]",
			config.Shape, p.Name, joinShapes(p.Shapes),
		))
	}

	if len(p.Regions) > 0 && region != "" && !lo.Contains(p.Regions, region) {
		errs = multierr.Append(errs, fmt.Errorf(
			"region '%s' is not allowed by the %s policy, use one of %v",
			region, p.Name, p.Regions,
		))
	}

	compliance.BootVolumeGB = config.BootVolumeGB
	if p.MinBootVolumeGB > 0 && config.BootVolumeGB < p.MinBootVolumeGB {
		compliance.BootVolumeGB = p.MinBootVolumeGB
		compliance.Warnings = append(compliance.Warnings, fmt.Sprintf(
			"boot volume of %dGB is below the minimum, using %dGB", config.BootVolumeGB, p.MinBootVolumeGB,
		))
	}
	switch size := compliance.BootVolumeGB; {
	case p.MaxStorageGB > 0 && size > p.MaxStorageGB:
		errs = multierr.Append(errs, fmt.Errorf("boot volume of %dGB exceeds the %dGB storage limit", size, p.MaxStorageGB))
	case p.SafeBootVolumeGB > 0 && size > p.SafeBootVolumeGB:
		errs = multierr.Append(errs, fmt.Errorf("boot volume of %dGB exceeds the safe limit of %dGB", size, p.SafeBootVolumeGB))
	case p.SafeBootVolumeGB > 0 && size == p.SafeBootVolumeGB:
		compliance.Warnings = append(compliance.Warnings, fmt.Sprintf(
			"boot volume is set to the maximum of %dGB, no storage is left for other volumes", size,
		))
	}

	if config.OperatingSystem != "" && len(p.OperatingSystems) > 0 && !lo.Contains(p.OperatingSystems, config.OperatingSystem) {
		compliance.Warnings = append(compliance.Warnings, fmt.Sprintf(
			"operating system '%s' may not be free, recommended: %v", config.OperatingSystem, p.OperatingSystems,
		))
	}

	if config.SecondInstance && compliance.Shape.Cardinality == acquirer.Singleton {
		compliance.Warnings = append(compliance.Warnings, fmt.Sprintf(
			"second-instance is ignored for shape '%s'", config.Shape,
		))
	}

	if errs != nil {
		return Compliance{}, errs
	}
	return compliance, nil
}

func joinShapes(rules []ShapeRule) string {
	return strings.Join(lo.Map(rules, func(rule ShapeRule, _ int) string { return rule.Shape }), ", ")
}
