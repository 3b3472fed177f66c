package openstack

import (
	"fmt"
	"time"

	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/samber/lo"
)

type Config struct {
	Networks       []servers.Network
	SecurityGroups []string
	// Key pair holding the operator's public key, created when missing
	KeyPair string
	// How long a creation may stay in BUILD before it is left to the
	// inventory to confirm
	BuildTimeout time.Duration
}

const DefaultBuildTimeout = 2 * time.Minute

func Validate(config Config) error {
	if config.BuildTimeout < 0 {
		return fmt.Errorf("build timeout must not be negative")
	}
	return nil
}

// Networks turns network UUIDs into server networks.
func Networks(uuids []string) []servers.Network {
	return lo.Map(uuids, func(uuid string, _ int) servers.Network {
		return servers.Network{UUID: uuid}
	})
}
