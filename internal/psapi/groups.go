package psapi

import (
	"context"
	"fmt"
)

// GroupsResource is the typed access surface for the `groups` collection
// (spec.md §4.1, §6).
type GroupsResource struct {
	client *Client
}

// All lists every group.
func (g *GroupsResource) All(ctx context.Context) ([]Group, error) {
	var out []Group
	if err := g.client.do(ctx, "GET", "/v1/groups", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a single group by identifier.
func (g *GroupsResource) Get(ctx context.Context, identifier string) (*Group, error) {
	var out Group
	path := fmt.Sprintf("/v1/groups/%s", identifier)
	if err := g.client.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create creates a new group.
func (g *GroupsResource) Create(ctx context.Context, group Group) (*Group, error) {
	var out Group
	if err := g.client.do(ctx, "POST", "/v1/groups", group, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces an existing group's body.
func (g *GroupsResource) Update(ctx context.Context, identifier string, group Group) (*Group, error) {
	var out Group
	path := fmt.Sprintf("/v1/groups/%s", identifier)
	if err := g.client.do(ctx, "PUT", path, group, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrCreate upserts a group by identifier: it attempts Create, and on
// a 409 Conflict re-reads the existing group and Updates it instead
// (spec.md §7, "Conflict ... retried by re-reading").
func (g *GroupsResource) UpdateOrCreate(ctx context.Context, group Group) (*Group, error) {
	created, err := g.Create(ctx, group)
	if err == nil {
		return created, nil
	}
	if !IsConflict(err) {
		return nil, err
	}
	return g.Update(ctx, group.Identifier, group)
}

// Destroy deletes a group by identifier.
func (g *GroupsResource) Destroy(ctx context.Context, identifier string) error {
	path := fmt.Sprintf("/v1/groups/%s", identifier)
	return g.client.do(ctx, "DELETE", path, nil, nil)
}

// Members lists the group's current membership, composing the group's own
// query with the caller's filter (spec.md §3, Group).
func (g *GroupsResource) Members(ctx context.Context, identifier string, filter Query) ([]Node, error) {
	var out []Node
	path := fmt.Sprintf("/v1/groups/%s/members/%s", identifier, queryString(filter))
	if err := g.client.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddMembers includes the given node IDs in the group (spec.md §6, POST
// {include:[...]}).
func (g *GroupsResource) AddMembers(ctx context.Context, identifier string, nodeIDs []string) error {
	path := fmt.Sprintf("/v1/groups/%s/members/", identifier)
	return g.client.do(ctx, "POST", path, map[string]interface{}{"include": nodeIDs}, nil)
}

// RemoveMembers excludes the given node IDs from the group (spec.md §6,
// POST {exclude:[...]}).
func (g *GroupsResource) RemoveMembers(ctx context.Context, identifier string, nodeIDs []string) error {
	path := fmt.Sprintf("/v1/groups/%s/members/", identifier)
	return g.client.do(ctx, "POST", path, map[string]interface{}{"exclude": nodeIDs}, nil)
}
