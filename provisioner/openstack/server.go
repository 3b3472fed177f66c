package openstack

import (
	"context"
	"fmt"
	"strings"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
)

var states = map[string]acquirer.State{
	"BUILD":             acquirer.StateProvisioning,
	"REBUILD":           acquirer.StateProvisioning,
	"ACTIVE":            acquirer.StateRunning,
	"REBOOT":            acquirer.StateStarting,
	"HARD_REBOOT":       acquirer.StateStarting,
	"SHUTOFF":           acquirer.StateStopped,
	"SUSPENDED":         acquirer.StateStopped,
	"PAUSED":            acquirer.StateStopped,
	"SHELVED":           acquirer.StateStopped,
	"SHELVED_OFFLOADED": acquirer.StateStopped,
	"DELETED":           acquirer.StateTerminated,
	"SOFT_DELETED":      acquirer.StateTerminated,
}

func state(status string) acquirer.State {
	if state, ok := states[strings.ToUpper(status)]; ok {
		return state
	}
	return acquirer.State(strings.ToUpper(status))
}

func (p *Provider) record(server *servers.Server, zone string) acquirer.Record {
	return acquirer.Record{
		ID:          server.ID,
		DisplayName: server.Name,
		Location:    zone,
		Shape:       p.shape(server.Flavor),
		State:       state(server.Status),
	}
}

// shape reports the flavor under the name it was requested with when known.
func (p *Provider) shape(flavor map[string]interface{}) string {
	if name, ok := flavor["original_name"].(string); ok {
		return name
	}

	id, _ := flavor["id"].(string)
	if shape, ok := p.requested[id]; ok {
		return shape
	}
	for name, flavorID := range p.flavors {
		if flavorID == id {
			return name
		}
	}
	return id
}

// waitForBuild polls a new server until it is ACTIVE, fails, or the build
// timeout elapses. A server still building at the timeout is reported as
// accepted: the engine confirms it through the inventory.
func (p *Provider) waitForBuild(ctx context.Context, id string, details acquirer.LaunchDetails) (acquirer.Record, error) {
	var last *servers.Server

	err := gophercloud.WaitFor(int(p.config.BuildTimeout.Seconds()), func() (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		server, err := servers.Get(p.client, id).Extract()
		if err != nil {
			return false, translate(err)
		}
		last = server

		switch strings.ToUpper(server.Status) {
		case "ACTIVE":
			return true, nil
		case "ERROR":
			return false, buildFault(server.Fault.Message)
		default:
			return false, nil
		}
	})

	record := acquirer.Record{ID: id, DisplayName: details.DisplayName, Location: details.Location, Shape: details.Shape, State: acquirer.StateProvisioning}
	if last != nil {
		record = p.record(last, details.Location)
	}

	switch {
	case err == nil:
		return record, nil

	case last != nil && strings.EqualFold(last.Status, "ERROR"):
		p.log.Debug("Server failed to build, deleting it", "server", id, "fault", last.Fault.Message)
		if deleteErr := servers.Delete(p.client, id).ExtractErr(); deleteErr != nil {
			p.log.Warn("Failed to delete failed server", "server", id, "error", deleteErr)
		}
		return acquirer.Record{}, err

	case ctx.Err() != nil:
		return acquirer.Record{}, fmt.Errorf("interrupted while waiting for server '%s': %w", id, ctx.Err())

	case strings.Contains(err.Error(), "timeout"):
		p.log.Info("Server still building, leaving it to the inventory", "server", id, "status", record.State)
		return record, nil

	default:
		return acquirer.Record{}, err
	}
}
