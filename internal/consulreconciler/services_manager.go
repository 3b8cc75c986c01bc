package consulreconciler

import (
	"context"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// ServicesManager keeps the Consul service catalog in sync with the
// declared `services` of every group whose members are UP in the pool
// (spec.md §4.5.3). Entries it owns carry ServiceTag; everything else in
// the catalog is left alone.
type ServicesManager struct {
	client    *psapi.Client
	shortcuts *psapi.Shortcuts
	names     GroupNames
}

// catalogEntry is one (name, address, port) tuple in either the desired
// or observed set.
type catalogEntry struct {
	Name    string
	Address string
	Port    int
}

func (e catalogEntry) key() string { return fmt.Sprintf("%s|%s|%d", e.Name, e.Address, e.Port) }

// Reconcile diffs the desired and observed catalog sets and registers or
// deregisters entries against the owning node's agent to converge them.
func (m *ServicesManager) Reconcile(ctx context.Context, serverNode psapi.Node) error {
	serverAddr, err := m.shortcuts.GetAddressFor(ctx, serverNode)
	if err != nil {
		return fmt.Errorf("resolving server address: %w", err)
	}

	desired, err := m.desiredSet(ctx)
	if err != nil {
		return fmt.Errorf("computing desired catalog set: %w", err)
	}

	observed, err := m.observedSet(serverAddr)
	if err != nil {
		return fmt.Errorf("fetching observed catalog set: %w", err)
	}

	desiredByKey := make(map[string]catalogEntry, len(desired))
	for _, e := range desired {
		desiredByKey[e.key()] = e
	}
	observedByKey := make(map[string]catalogEntry, len(observed))
	for _, e := range observed {
		observedByKey[e.key()] = e
	}

	for key, e := range desiredByKey {
		if _, ok := observedByKey[key]; !ok {
			if err := m.register(e); err != nil {
				logging.Warn("ServicesManager", "registering %s at %s: %v", e.Name, e.Address, err)
			}
		}
	}
	for key, e := range observedByKey {
		if _, ok := desiredByKey[key]; !ok {
			if err := m.deregister(e); err != nil {
				logging.Warn("ServicesManager", "deregistering %s at %s: %v", e.Name, e.Address, err)
			}
		}
	}

	return nil
}

// desiredSet emits (group_name, node_ip, 0) for every UP, pool-hosted
// group member, plus (group_name-service_name, node_ip, service.port) for
// each of the group's declared services (spec.md §4.5.3, "Desired set").
func (m *ServicesManager) desiredSet(ctx context.Context) ([]catalogEntry, error) {
	groups, err := m.client.Groups.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	poolNodes, err := m.client.Groups.Members(ctx, m.names.NodesGroup, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s members: %w", m.names.NodesGroup, err)
	}
	inPool := make(map[string]bool, len(poolNodes))
	for _, n := range poolNodes {
		inPool[n.CloudID] = true
	}

	var desired []catalogEntry
	for _, group := range groups {
		members, err := m.client.Groups.Members(ctx, group.Identifier, nil)
		if err != nil {
			logging.Warn("ServicesManager", "listing %s members: %v", group.Identifier, err)
			continue
		}
		for _, member := range members {
			if member.Status != psapi.NodeStatusUp {
				continue
			}
			host, err := m.shortcuts.GetNodeFor(ctx, member, poolNodes)
			if err != nil || !inPool[host.CloudID] {
				continue
			}
			addr, err := m.shortcuts.GetAddressFor(ctx, *host)
			if err != nil {
				continue
			}

			desired = append(desired, catalogEntry{Name: group.Identifier, Address: addr, Port: 0})
			for _, svc := range group.Services {
				desired = append(desired, catalogEntry{
					Name:    fmt.Sprintf("%s-%s", group.Identifier, svc.Name),
					Address: addr,
					Port:    svc.Port,
				})
			}
		}
	}
	return desired, nil
}

// observedSet fetches every ps-consul-tagged service from the catalog
// served by the node at serverAddr (spec.md §4.5.3, "Observed set").
func (m *ServicesManager) observedSet(serverAddr string) ([]catalogEntry, error) {
	client, err := consulapi.NewClient(consulAPIConfig(serverAddr))
	if err != nil {
		return nil, fmt.Errorf("building consul client for %s: %w", serverAddr, err)
	}

	services, _, err := client.Catalog().Services(nil)
	if err != nil {
		return nil, fmt.Errorf("listing catalog services: %w", err)
	}

	var observed []catalogEntry
	for name := range services {
		entries, _, err := client.Catalog().Service(name, "", nil)
		if err != nil {
			logging.Warn("ServicesManager", "fetching catalog service %s: %v", name, err)
			continue
		}
		for _, entry := range entries {
			if !hasTag(entry.ServiceTags, ServiceTag) {
				continue
			}
			observed = append(observed, catalogEntry{Name: name, Address: entry.Address, Port: entry.ServicePort})
		}
	}
	return observed, nil
}

func (m *ServicesManager) register(e catalogEntry) error {
	client, err := consulapi.NewClient(consulAPIConfig(e.Address))
	if err != nil {
		return err
	}
	return client.Agent().ServiceRegister(&consulapi.AgentServiceRegistration{
		Name: e.Name,
		Port: e.Port,
		Tags: []string{ServiceTag},
	})
}

func (m *ServicesManager) deregister(e catalogEntry) error {
	client, err := consulapi.NewClient(consulAPIConfig(e.Address))
	if err != nil {
		return err
	}
	return client.Agent().ServiceDeregister(e.Name)
}

func consulAPIConfig(address string) *consulapi.Config {
	cfg := consulapi.DefaultConfig()
	cfg.Address = fmt.Sprintf("%s:8500", address)
	return cfg
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
