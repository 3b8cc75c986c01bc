package psapi

import (
	"context"
	"fmt"
)

// TriggersResource is the typed access surface for the `triggers`
// collection (spec.md §4.1, §4.2).
type TriggersResource struct {
	client *Client
}

// All lists every trigger.
func (t *TriggersResource) All(ctx context.Context) ([]Trigger, error) {
	var out []Trigger
	if err := t.client.do(ctx, "GET", "/v1/triggers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a single trigger by UUID.
func (t *TriggersResource) Get(ctx context.Context, uuid string) (*Trigger, error) {
	var out Trigger
	path := fmt.Sprintf("/v1/triggers/%s", uuid)
	if err := t.client.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create submits a new trigger with the given name and arguments. The
// server assigns the UUID and initial pending status.
func (t *TriggersResource) Create(ctx context.Context, name string, arguments map[string]interface{}) (*Trigger, error) {
	var out Trigger
	body := Trigger{Name: name, Arguments: arguments, Status: TriggerPending}
	if err := t.client.do(ctx, "POST", "/v1/triggers", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Destroy deletes a trigger by UUID. Callers (the Trigger Driver) treat
// deletion as best-effort cleanup: spec.md §4.2 says deletion errors are
// logged, never fatal.
func (t *TriggersResource) Destroy(ctx context.Context, uuid string) error {
	path := fmt.Sprintf("/v1/triggers/%s", uuid)
	return t.client.do(ctx, "DELETE", path, nil, nil)
}
