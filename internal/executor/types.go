// Package executor implements the generic convergence loop described in
// spec.md §4.3 (Polling Executor) and §4.4 (Monitor Executor): parse
// arguments, set up, then loop forever between change detection and
// reconciliation.
package executor

import (
	"context"
	"time"
)

// DefaultPollInterval is the inter-tick sleep spec.md §4.3 defaults to.
const DefaultPollInterval = time.Second

// Reconciler performs one full reconcile tick. Implementations compose
// sub-managers (spec.md §9: "composition replaces inheritance") and run
// them in the documented order. A returned *FatalError stops the executor
// loop; any other returned error is logged and the reconcile is retried
// on a later tick.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// FatalError wraps a Reconciler error that indicates desired state the
// executor cannot interpret (spec.md §7, "Validation"). The polling loop
// treats this as unrecoverable and exits the process; everything else is
// logged and retried next tick.
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string { return e.Cause.Error() }
func (e *FatalError) Unwrap() error { return e.Cause }

// MembershipSnapshot maps a group identifier to the set of member
// cloud_ids observed for it on the last poll. Two snapshots are equal iff
// every group has the same cardinality and member set (spec.md §4.3,
// "poll() contract").
type MembershipSnapshot map[string][]string

// Equal reports whether two snapshots describe the same membership,
// independent of member ordering.
func (s MembershipSnapshot) Equal(other MembershipSnapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for group, members := range s {
		otherMembers, ok := other[group]
		if !ok || len(members) != len(otherMembers) {
			return false
		}
		otherSet := make(map[string]struct{}, len(otherMembers))
		for _, m := range otherMembers {
			otherSet[m] = struct{}{}
		}
		for _, m := range members {
			if _, found := otherSet[m]; !found {
				return false
			}
		}
	}
	return true
}
