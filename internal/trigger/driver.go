// Package trigger implements the Trigger Driver (spec.md §4.2): submit a
// trigger, poll until it reaches a terminal status, and surface its
// result or error.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/composureai/perfectstorm/internal/metrics"
	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/pkg/logging"
)

const defaultPollInterval = time.Second

// FailedError is raised by Wait when a trigger reaches the `error`
// status, carrying the reason from its result map (spec.md §4.2).
type FailedError struct {
	TriggerName string
	TriggerUUID string
	Reason      string
}

func (e *FailedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("trigger %s (%s) failed: %s", e.TriggerName, e.TriggerUUID, e.Reason)
	}
	return fmt.Sprintf("trigger %s (%s) failed", e.TriggerName, e.TriggerUUID)
}

// Driver submits triggers and waits for their terminal status.
type Driver struct {
	triggers     *psapi.TriggersResource
	pollInterval time.Duration
}

// New creates a Driver against the given triggers resource. pollInterval
// defaults to 1 second, per spec.md §4.2.
func New(triggers *psapi.TriggersResource, pollInterval time.Duration) *Driver {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Driver{triggers: triggers, pollInterval: pollInterval}
}

// Submit creates a trigger and returns its handle without waiting.
func (d *Driver) Submit(ctx context.Context, name string, arguments map[string]interface{}) (*psapi.Trigger, error) {
	return d.triggers.Create(ctx, name, arguments)
}

// Wait polls trig until it reaches a terminal status, returning the final
// object. It raises a *FailedError on TriggerError. Per spec.md §4.2,
// Wait has no hard timeout of its own; callers impose one via ctx.
func (d *Driver) Wait(ctx context.Context, trig *psapi.Trigger) (*psapi.Trigger, error) {
	start := time.Now()
	current := trig
	for {
		if current.IsTerminal() {
			break
		}

		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-time.After(d.pollInterval):
		}

		refreshed, err := d.triggers.Get(ctx, trig.UUID)
		if err != nil {
			return current, err
		}
		current = refreshed
	}

	recipeName, _ := current.Arguments["recipe"].(string)
	if recipeName == "" {
		recipeName = current.Name
	}

	if current.Status == psapi.TriggerError {
		metrics.ObserveTrigger(recipeName, start, true)
		return current, &FailedError{
			TriggerName: current.Name,
			TriggerUUID: current.UUID,
			Reason:      current.ResultReason(),
		}
	}
	metrics.ObserveTrigger(recipeName, start, false)

	// Best-effort cleanup: deletion errors are logged, never fatal.
	if err := d.triggers.Destroy(ctx, current.UUID); err != nil {
		logging.Warn("TriggerDriver", "failed to delete completed trigger %s: %v", current.UUID, err)
	}

	return current, nil
}

// SubmitAndWait is the common case: submit then immediately wait.
func (d *Driver) SubmitAndWait(ctx context.Context, name string, arguments map[string]interface{}) (*psapi.Trigger, error) {
	trig, err := d.Submit(ctx, name, arguments)
	if err != nil {
		return nil, fmt.Errorf("submitting trigger %s: %w", name, err)
	}
	return d.Wait(ctx, trig)
}

// RecipeArgs describes a `recipe`-handler trigger's arguments, built from
// the targeting hints and params a recipe trigger carries (spec.md §3,
// Recipe; §4.8, Trigger Handler Host contract).
type RecipeArgs struct {
	Recipe      string
	Params      map[string]string
	AddTo       string
	TargetNode  string
	TargetAnyOf string
	TargetAllIn string
}

// SubmitRecipe submits a `recipe` trigger and waits for it to reach a
// terminal status, per the reconciler sub-manager recipes in spec.md §4.5
// and §4.6 (e.g. "submit the consul-server recipe trigger with params
// {...}, addTo = server_group").
func (d *Driver) SubmitRecipe(ctx context.Context, args RecipeArgs) (*psapi.Trigger, error) {
	arguments := map[string]interface{}{"recipe": args.Recipe}
	if len(args.Params) > 0 {
		arguments["params"] = args.Params
	}
	if args.AddTo != "" {
		arguments["addTo"] = args.AddTo
	}
	if args.TargetNode != "" {
		arguments["targetNode"] = args.TargetNode
	}
	if args.TargetAnyOf != "" {
		arguments["targetAnyOf"] = args.TargetAnyOf
	}
	if args.TargetAllIn != "" {
		arguments["targetAllIn"] = args.TargetAllIn
	}
	return d.SubmitAndWait(ctx, "recipe", arguments)
}
