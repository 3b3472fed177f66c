package acquirer

import (
	"time"

	"github.com/samber/lo"
)

// Cardinality tells how many instances of a shape a scope may hold for free.
type Cardinality int

const (
	Singleton Cardinality = iota + 1
	Dual
)

func (c Cardinality) String() string {
	switch c {
	case Singleton:
		return "singleton"
	case Dual:
		return "dual"
	default:
		return "unknown"
	}
}

// Request is the immutable description of the instance to acquire.
type Request struct {
	Shape          string      `json:"shape"`
	DisplayName    string      `json:"display-name"`
	Scope          string      `json:"scope"`
	SubnetID       string      `json:"subnet-id"`
	ImageID        string      `json:"image-id"`
	BootVolumeGB   int64       `json:"boot-volume-gb"`
	Ocpus          float32     `json:"ocpus"`
	MemoryGB       float32     `json:"memory-gb"`
	AssignPublicIP bool        `json:"assign-public-ip"`
	PublicKey      string      `json:"-"`
	Locations      []string    `json:"locations"`
	Cardinality    Cardinality `json:"cardinality"`
	SecondInstance bool        `json:"second-instance"`
}

// LaunchDetails is a Request pinned to one location.
type LaunchDetails struct {
	Request
	Location string
}

func (r Request) In(location string) LaunchDetails {
	return LaunchDetails{Request: r, Location: location}
}

// State is the provider lifecycle state of an instance. Providers may report
// states not listed here.
type State string

const (
	StateProvisioning State = "PROVISIONING"
	StateRunning      State = "RUNNING"
	StateStarting     State = "STARTING"
	StateStopping     State = "STOPPING"
	StateStopped      State = "STOPPED"
	StateTerminating  State = "TERMINATING"
	StateTerminated   State = "TERMINATED"
)

// DefaultStates are the lifecycle states that count as an existing instance.
var DefaultStates = []State{StateProvisioning, StateRunning}

// Record is a read-only snapshot of a remote instance.
type Record struct {
	ID          string `json:"id" yaml:"Instance ID"`
	DisplayName string `json:"display-name" yaml:"Display Name"`
	Location    string `json:"location" yaml:"Availability Domain"`
	Shape       string `json:"shape" yaml:"Shape"`
	State       State  `json:"state" yaml:"State"`
}

func (r Record) In(states []State) bool {
	return lo.Contains(states, r.State)
}

// RetryPolicy controls pacing of the attempt loop.
type RetryPolicy struct {
	// Pause between two attempts
	WaitInterval time.Duration `json:"wait-interval"`
	// Maximum total runtime, zero means unbounded
	MaxRuntime time.Duration `json:"max-runtime"`
	// Inventory listings after an accepted create or a limit conflict
	ConfirmTries int `json:"confirm-tries"`
}

const DefaultConfirmTries = 3

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.ConfirmTries <= 0 {
		p.ConfirmTries = DefaultConfirmTries
	}
	return p
}
