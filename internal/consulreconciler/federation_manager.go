package consulreconciler

import (
	"context"
	"fmt"

	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/trigger"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// FederationManager WAN-joins the local Consul server to remote pools'
// servers (spec.md §4.5.4).
type FederationManager struct {
	client    *psapi.Client
	shortcuts *psapi.Shortcuts
	driver    *trigger.Driver
	names     GroupNames
}

// Reconcile joins the local server to each remote pool named in federate
// whose `<name>-consul-server` group has exactly one UP member. Zero or
// multiple remote servers for a given pool skips that pool for this tick
// (spec.md §4.5.4): this is surfaced as a warning, not silently dropped,
// since an operator relying on federation needs to notice a remote pool
// stuck at zero or split-brained servers.
func (m *FederationManager) Reconcile(ctx context.Context, localServer psapi.Node, federate []string) error {
	if len(federate) == 0 {
		return nil
	}

	for _, remotePool := range federate {
		remoteGroup := fmt.Sprintf("%s-consul-server", remotePool)
		members, err := m.client.Groups.Members(ctx, remoteGroup, nil)
		if err != nil {
			logging.Warn("FederationManager", "listing %s members: %v", remoteGroup, err)
			continue
		}

		upServers := upCount(members)
		if upServers != 1 {
			logging.Warn("FederationManager", "remote pool %s has %d UP servers, expected exactly 1; skipping WAN join this tick", remotePool, upServers)
			continue
		}

		remoteAddr, err := m.shortcuts.GetAddressFor(ctx, *firstUp(members))
		if err != nil {
			logging.Warn("FederationManager", "resolving remote server address for %s: %v", remotePool, err)
			continue
		}

		if _, err := m.driver.SubmitRecipe(ctx, trigger.RecipeArgs{
			Recipe:     RecipeConsulServerJoinWAN,
			Params:     map[string]string{"WAN_ADDRESS": remoteAddr},
			TargetNode: localServer.CloudID,
		}); err != nil {
			logging.Warn("FederationManager", "consul-server-join-wan recipe failed for remote pool %s: %v", remotePool, err)
		}
	}

	return nil
}
