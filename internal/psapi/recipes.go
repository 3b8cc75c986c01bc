package psapi

import (
	"context"
	"fmt"
)

// RecipesResource is the typed access surface for the `recipes` collection.
type RecipesResource struct {
	client *Client
}

// All lists every recipe.
func (r *RecipesResource) All(ctx context.Context) ([]Recipe, error) {
	var out []Recipe
	if err := r.client.do(ctx, "GET", "/v1/recipes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a single recipe by name.
func (r *RecipesResource) Get(ctx context.Context, name string) (*Recipe, error) {
	var out Recipe
	path := fmt.Sprintf("/v1/recipes/%s", name)
	if err := r.client.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create creates a new recipe.
func (r *RecipesResource) Create(ctx context.Context, recipe Recipe) (*Recipe, error) {
	var out Recipe
	if err := r.client.do(ctx, "POST", "/v1/recipes", recipe, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces an existing recipe's body.
func (r *RecipesResource) Update(ctx context.Context, name string, recipe Recipe) (*Recipe, error) {
	var out Recipe
	path := fmt.Sprintf("/v1/recipes/%s", name)
	if err := r.client.do(ctx, "PUT", path, recipe, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrCreate upserts a recipe by name, following the same
// create-then-retry-on-conflict pattern as GroupsResource.UpdateOrCreate
// (spec.md §4.5: the three canonical Consul recipes are upserted on every
// executor setup, so this must be idempotent across restarts).
func (r *RecipesResource) UpdateOrCreate(ctx context.Context, recipe Recipe) (*Recipe, error) {
	created, err := r.Create(ctx, recipe)
	if err == nil {
		return created, nil
	}
	if !IsConflict(err) {
		return nil, err
	}
	return r.Update(ctx, recipe.Name, recipe)
}

// Destroy deletes a recipe by name.
func (r *RecipesResource) Destroy(ctx context.Context, name string) error {
	path := fmt.Sprintf("/v1/recipes/%s", name)
	return r.client.do(ctx, "DELETE", path, nil, nil)
}
