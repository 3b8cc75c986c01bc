package lbreconciler

import (
	"context"
	"fmt"

	"github.com/composureai/perfectstorm/internal/haproxy"
	"github.com/composureai/perfectstorm/internal/metrics"
	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// GroupBackendManager reconciles one HAProxy instance's `nodes` backend
// with the endpoints that back its exposed service (spec.md §4.6.2).
type GroupBackendManager struct {
	client        *psapi.Client
	group         string
	nodesPoolName string

	shortcuts *psapi.Shortcuts
}

// Reconcile computes desired endpoints (UP, pool-hosted members of the
// component group) and observed endpoints (the load-balancer's active
// HAProxy slots), then removes stale members before adding missing ones
// (spec.md §4.6.2, "Remove first (to free slots), then add").
func (m *GroupBackendManager) Reconcile(ctx context.Context, lbNode psapi.Node, componentGroup psapi.Group) error {
	if m.shortcuts == nil {
		m.shortcuts = psapi.NewShortcuts(m.client)
	}

	lbAddr, err := m.shortcuts.GetAddressFor(ctx, lbNode)
	if err != nil {
		return fmt.Errorf("resolving load-balancer address: %w", err)
	}

	desired, err := m.desiredEndpoints(ctx, componentGroup)
	if err != nil {
		return fmt.Errorf("computing desired endpoints for %s: %w", m.group, err)
	}

	hap := haproxy.New(fmt.Sprintf("%s:%d", lbAddr, RuntimeSocketPort))
	hap.Reset()

	observed, err := hap.GetMembers()
	if err != nil {
		return fmt.Errorf("fetching observed endpoints from %s: %w", lbAddr, err)
	}

	desiredSet := make(map[string]bool, len(desired))
	for _, addr := range desired {
		desiredSet[addr] = true
	}
	observedSet := make(map[string]bool, len(observed))
	for _, addr := range observed {
		observedSet[addr] = true
	}

	for _, addr := range observed {
		if !desiredSet[addr] {
			if err := hap.RemoveMember(addr); err != nil {
				logging.Warn("GroupBackendManager", "removing %s from %s backend: %v", addr, m.group, err)
			}
		}
	}
	for _, addr := range desired {
		if !observedSet[addr] {
			if err := hap.AddMember(addr); err != nil {
				logging.Warn("GroupBackendManager", "adding %s to %s backend: %v", addr, m.group, err)
			}
		}
	}

	if members, err := hap.GetMembers(); err == nil {
		metrics.HAProxySlotsActive.WithLabelValues(m.group).Set(float64(len(members)))
	}
	if free, err := hap.FreeCount(); err == nil {
		metrics.HAProxySlotsFree.WithLabelValues(m.group).Set(float64(free))
	}

	return nil
}

// desiredEndpoints lists the addresses of UP members of componentGroup
// whose host node is in the nodes pool (spec.md §4.6.2, "Desired
// endpoints").
func (m *GroupBackendManager) desiredEndpoints(ctx context.Context, componentGroup psapi.Group) ([]string, error) {
	poolNodes, err := m.client.Groups.Members(ctx, m.nodesPoolName, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s members: %w", m.nodesPoolName, err)
	}
	inPool := make(map[string]bool, len(poolNodes))
	for _, n := range poolNodes {
		inPool[n.CloudID] = true
	}

	members, err := m.client.Groups.Members(ctx, componentGroup.Identifier, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s members: %w", componentGroup.Identifier, err)
	}

	var desired []string
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
			logging.Warn("GroupBackendManager", "resolving address for %s: %v", member.CloudID, err)
			continue
		}
		desired = append(desired, addr)
	}
	return desired, nil
}
