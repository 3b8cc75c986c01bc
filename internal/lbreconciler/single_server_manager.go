package lbreconciler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/trigger"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// SingleServerManager ensures exactly one HAProxy container is UP for a
// single exposed service (spec.md §4.6.1).
type SingleServerManager struct {
	client        *psapi.Client
	driver        *trigger.Driver
	group         string
	nodesPoolName string
	servicePort   int
}

// Reconcile returns the node hosting the UP load-balancer, starting one
// first if the backing group is empty. A nil node with a nil error means
// a recipe was just submitted and the group is expected to be populated
// by the next tick; callers should skip backend work until then.
func (m *SingleServerManager) Reconcile(ctx context.Context) (*psapi.Node, error) {
	if _, err := m.client.Groups.Get(ctx, m.group); err != nil {
		if !psapi.IsNotFound(err) {
			return nil, fmt.Errorf("fetching group %s: %w", m.group, err)
		}
		if _, err := m.client.Groups.Create(ctx, psapi.Group{Identifier: m.group, Query: psapi.Empty{}}); err != nil && !psapi.IsConflict(err) {
			return nil, fmt.Errorf("creating group %s: %w", m.group, err)
		}
	}

	members, err := m.client.Groups.Members(ctx, m.group, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s members: %w", m.group, err)
	}

	for _, member := range members {
		if member.Status == psapi.NodeStatusUp {
			return &member, nil
		}
	}

	poolNodes, err := m.client.Groups.Members(ctx, m.nodesPoolName, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s members: %w", m.nodesPoolName, err)
	}
	candidate := pickUp(poolNodes)
	if candidate == nil {
		return nil, fmt.Errorf("no UP node available in pool %s to host load-balancer for %s", m.nodesPoolName, m.group)
	}

	if _, err := m.driver.SubmitRecipe(ctx, trigger.RecipeArgs{
		Recipe:     RecipeLoadBalancer,
		Params:     map[string]string{"PORT": strconv.Itoa(m.servicePort)},
		AddTo:      m.group,
		TargetNode: candidate.CloudID,
	}); err != nil {
		logging.Warn("SingleServerManager", "load-balancer recipe failed for %s on %s: %v", m.group, candidate.CloudID, err)
		return nil, fmt.Errorf("starting load-balancer for %s: %w", m.group, err)
	}

	return nil, nil
}

func pickUp(nodes []psapi.Node) *psapi.Node {
	for _, n := range nodes {
		if n.Status == psapi.NodeStatusUp {
			return &n
		}
	}
	return nil
}
