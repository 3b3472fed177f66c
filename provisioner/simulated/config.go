package simulated

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gammadia/freetier/acquirer"
)

type Config struct {
	// Logger to use
	Logger *slog.Logger
	// Locations reported by the provider, in order
	Locations []string
	// Region reported to the compliance policy
	Region string
	// Number of create requests failing for lack of capacity before one
	// succeeds, negative means never
	CapacityFailures int
	// Location suffix that eventually accepts, empty means any
	AcceptIn string
	// Instances present before the run
	Existing []acquirer.Record
	// Delay applied to every call
	Latency time.Duration
}

const DefaultRegion = "us-phoenix-1"

var DefaultLocations = []string{"SIM:PHX-AD-1", "SIM:PHX-AD-2", "SIM:PHX-AD-3"}

func Validate(config Config) error {
	if config.Latency < 0 {
		return fmt.Errorf("latency must not be negative")
	}
	return nil
}
