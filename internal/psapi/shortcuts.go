package psapi

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Shortcuts is the convenience facade described in spec.md §4.1:
// shortcuts.get_node_for(resource) and shortcuts.get_address_for(node).
//
// Reconcilers call these once per candidate member per tick; a single
// tick commonly asks for the same node's address more than once (e.g. the
// Consul ServicesManager resolves every group member, and a node can
// belong to several groups). singleflight collapses concurrent duplicate
// lookups onto a single in-flight call, mirroring the pattern the teacher
// uses in internal/oauth/client.go for its own request coalescing.
type Shortcuts struct {
	client *Client
	group  singleflight.Group
}

// NewShortcuts creates a Shortcuts facade bound to client.
func NewShortcuts(client *Client) *Shortcuts {
	return &Shortcuts{client: client}
}

// GetNodeFor resolves a container/member to its hosting node by matching
// the member's engine container ID against nodes' engine._id (spec.md
// §4.1). It fails with a ResolutionError when no node or more than one
// node matches.
func (s *Shortcuts) GetNodeFor(ctx context.Context, member Node, pool []Node) (*Node, error) {
	if member.Engine.ID == "" {
		// The member is itself a node (not a container running on one).
		return &member, nil
	}

	var matches []Node
	for _, n := range pool {
		if n.Engine.ID == member.Engine.ID || n.CloudID == member.CloudID {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return nil, &ResolutionError{Resource: member.CloudID, Reason: "no hosting node found"}
	case 1:
		return &matches[0], nil
	default:
		return nil, &ResolutionError{Resource: member.CloudID, Reason: "ambiguous hosting node"}
	}
}

// GetAddressFor returns the node's routable IP (spec.md §4.1). Concurrent
// lookups for the same node are coalesced via singleflight.
func (s *Shortcuts) GetAddressFor(ctx context.Context, node Node) (string, error) {
	key := node.CloudID
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		if node.Address == "" {
			return "", &ResolutionError{Resource: node.CloudID, Reason: "node has no routable address"}
		}
		return node.Address, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// MustAddress is a convenience wrapper that formats a ResolutionError with
// the calling context (used in logs, never to swallow the error).
func MustAddress(ctx context.Context, s *Shortcuts, node Node) (string, error) {
	addr, err := s.GetAddressFor(ctx, node)
	if err != nil {
		return "", fmt.Errorf("resolving address for node %s: %w", node.CloudID, err)
	}
	return addr, nil
}
