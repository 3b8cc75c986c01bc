package executor

import (
	"context"
	"errors"
	"time"

	"github.com/composureai/perfectstorm/internal/metrics"
	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// Diff describes the (added, updated, deleted) changes a Monitor observed
// since its last emission (spec.md §4.4).
type Diff struct {
	Added   []psapi.Application
	Updated []psapi.Application
	Deleted []psapi.Application
}

// Empty reports whether the diff carries no changes at all.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Deleted) == 0
}

// Monitor asks a resource collection for its change diff since the last
// call. ApplicationsMonitor is the canonical implementation.
type Monitor interface {
	Diff(ctx context.Context) (Diff, error)
}

// DiffReconciler is a Reconciler that consumes a Diff instead of doing a
// full sweep, giving it change-driven rather than full-sweep work
// (spec.md §4.4).
type DiffReconciler interface {
	ReconcileDiff(ctx context.Context, diff Diff) error
}

// ApplicationsMonitor tracks the `applications` resource collection,
// diffing each poll against the identifiers and content it saw last time.
// It is the canonical Monitor named in spec.md §4.4.
type ApplicationsMonitor struct {
	apps *psapi.AppsResource

	seen map[string]psapi.Application
}

// NewApplicationsMonitor creates an ApplicationsMonitor over the given
// apps resource.
func NewApplicationsMonitor(apps *psapi.AppsResource) *ApplicationsMonitor {
	return &ApplicationsMonitor{apps: apps, seen: make(map[string]psapi.Application)}
}

// Diff fetches the current application set and compares it against what
// was observed on the previous call. An application counts as updated
// when its components, links, or expose set change, not merely its
// presence.
func (m *ApplicationsMonitor) Diff(ctx context.Context) (Diff, error) {
	current, err := m.apps.All(ctx)
	if err != nil {
		return Diff{}, err
	}

	currentByName := make(map[string]psapi.Application, len(current))
	for _, app := range current {
		currentByName[app.Name] = app
	}

	var diff Diff
	for name, app := range currentByName {
		prev, existed := m.seen[name]
		switch {
		case !existed:
			diff.Added = append(diff.Added, app)
		case !applicationsEqual(prev, app):
			diff.Updated = append(diff.Updated, app)
		}
	}
	for name, prev := range m.seen {
		if _, stillPresent := currentByName[name]; !stillPresent {
			diff.Deleted = append(diff.Deleted, prev)
		}
	}

	m.seen = currentByName
	return diff, nil
}

func applicationsEqual(a, b psapi.Application) bool {
	if len(a.Components) != len(b.Components) || len(a.Links) != len(b.Links) || len(a.Expose) != len(b.Expose) {
		return false
	}
	for i := range a.Components {
		if a.Components[i] != b.Components[i] {
			return false
		}
	}
	for i := range a.Links {
		if a.Links[i] != b.Links[i] {
			return false
		}
	}
	for i := range a.Expose {
		if a.Expose[i] != b.Expose[i] {
			return false
		}
	}
	return true
}

// MonitorExecutor is the Monitor Executor variant of the Polling Executor
// (spec.md §4.4): its poll() step asks a Monitor for a diff instead of
// comparing membership snapshots, and its reconcile step receives that
// diff directly, so reconcilers get change-driven rather than full-sweep
// work.
type MonitorExecutor struct {
	Monitor      Monitor
	Reconciler   DiffReconciler
	Setup        SetupFunc
	PollInterval time.Duration
	Subsystem    string
}

// NewMonitorExecutor builds a MonitorExecutor over the given Monitor and
// DiffReconciler. pollInterval defaults to DefaultPollInterval if zero or
// negative.
func NewMonitorExecutor(monitor Monitor, reconciler DiffReconciler, setup SetupFunc, pollInterval time.Duration) *MonitorExecutor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &MonitorExecutor{
		Monitor:      monitor,
		Reconciler:   reconciler,
		Setup:        setup,
		PollInterval: pollInterval,
		Subsystem:    "MonitorExecutor",
	}
}

// Run mirrors PollingExecutor.Run's lifecycle, but drives reconciliation
// from a Diff rather than a membership comparison: setup once, then loop
// forever, reconciling only when the monitor reports a non-empty diff.
func (e *MonitorExecutor) Run(ctx context.Context) error {
	if e.Setup != nil {
		if err := e.Setup(ctx); err != nil {
			return &FatalError{Cause: err}
		}
	}

	for {
		diff, err := e.Monitor.Diff(ctx)
		if err != nil {
			logging.Warn(e.Subsystem, "monitor diff failed, will retry next tick: %v", err)
		} else if !diff.Empty() {
			start := time.Now()
			err := e.Reconciler.ReconcileDiff(ctx, diff)
			metrics.ObserveReconcile(e.Subsystem, start, err)
			if err != nil {
				var fatal *FatalError
				if errors.As(err, &fatal) {
					return fatal
				}
				logging.Warn(e.Subsystem, "reconcile failed, will retry next tick: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(e.PollInterval):
		}
	}
}
