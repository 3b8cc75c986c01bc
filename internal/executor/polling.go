package executor

import (
	"context"
	"errors"
	"time"

	"github.com/composureai/perfectstorm/internal/metrics"
	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// MembershipSource fetches the current membership of a watched group,
// used by PollingExecutor.poll to detect change (spec.md §4.3).
type MembershipSource interface {
	Members(ctx context.Context, identifier string, filter psapi.Query) ([]psapi.Node, error)
}

// SetupFunc resolves groups, upserts recipes, and instantiates
// sub-managers before the loop starts (spec.md §4.3, "setup()").
type SetupFunc func(ctx context.Context) error

// PollingExecutor is the generic convergence loop: setup() once, then
// poll-for-change -> run-reconcile forever (spec.md §4.3).
type PollingExecutor struct {
	Source         MembershipSource
	WatchedGroups  []string
	PollInterval   time.Duration
	Setup          SetupFunc
	Reconciler     Reconciler
	Subsystem      string

	snapshot MembershipSnapshot
	firstRun bool
}

// New creates a PollingExecutor. WatchedGroups names the groups whose
// membership changes should trigger a reconcile; PollInterval defaults to
// DefaultPollInterval if zero or negative.
func New(source MembershipSource, watchedGroups []string, reconciler Reconciler, setup SetupFunc, pollInterval time.Duration) *PollingExecutor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &PollingExecutor{
		Source:        source,
		WatchedGroups: watchedGroups,
		PollInterval:  pollInterval,
		Setup:         setup,
		Reconciler:    reconciler,
		Subsystem:     "PollingExecutor",
		firstRun:      true,
	}
}

// Run executes the lifecycle: setup, then loop forever until ctx is
// cancelled. Cancellation stops the loop after the in-flight reconcile
// finishes (spec.md §5, "Cancellation & timeouts"); in-flight triggers
// are not cancelled.
func (e *PollingExecutor) Run(ctx context.Context) error {
	if e.Setup != nil {
		if err := e.Setup(ctx); err != nil {
			return &FatalError{Cause: err}
		}
	}

	for {
		changed, err := e.poll(ctx)
		if err != nil {
			logging.Warn(e.Subsystem, "poll failed, will retry next tick: %v", err)
		} else if changed || e.firstRun {
			e.firstRun = false
			start := time.Now()
			err := e.Reconciler.Reconcile(ctx)
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

// poll implements the "poll() contract" from spec.md §4.3: the snapshot
// is updated before deciding, so a single change triggers exactly one
// reconcile, and it returns true iff any watched group's membership set
// changed (cardinality differs or any member id differs) since the
// previous call.
func (e *PollingExecutor) poll(ctx context.Context) (bool, error) {
	next := make(MembershipSnapshot, len(e.WatchedGroups))
	for _, group := range e.WatchedGroups {
		members, err := e.Source.Members(ctx, group, nil)
		if err != nil {
			return false, err
		}
		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.CloudID)
		}
		next[group] = ids
	}

	prev := e.snapshot
	e.snapshot = next

	if prev == nil {
		return true, nil
	}
	return !prev.Equal(next), nil
}
