package psapi

import (
	"context"
	"fmt"
)

// AppsResource is the typed access surface for the `apps` collection.
type AppsResource struct {
	client *Client
}

// All lists every application.
func (a *AppsResource) All(ctx context.Context) ([]Application, error) {
	var out []Application
	if err := a.client.do(ctx, "GET", "/v1/apps", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a single application by name.
func (a *AppsResource) Get(ctx context.Context, name string) (*Application, error) {
	var out Application
	path := fmt.Sprintf("/v1/apps/%s", name)
	if err := a.client.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create creates a new application.
func (a *AppsResource) Create(ctx context.Context, app Application) (*Application, error) {
	var out Application
	if err := a.client.do(ctx, "POST", "/v1/apps", app, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces an existing application's body.
func (a *AppsResource) Update(ctx context.Context, name string, app Application) (*Application, error) {
	var out Application
	path := fmt.Sprintf("/v1/apps/%s", name)
	if err := a.client.do(ctx, "PUT", path, app, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Destroy deletes an application by name.
func (a *AppsResource) Destroy(ctx context.Context, name string) error {
	path := fmt.Sprintf("/v1/apps/%s", name)
	return a.client.do(ctx, "DELETE", path, nil, nil)
}
