package core

import (
	"time"

	"github.com/edvin/billing/internal/model"
)

// NextAccessEnd computes the access period end after paying for a plan of
// duration d. A still-running period is extended from its current end;
// otherwise the new period starts now. The result is never earlier than
// current.
func NextAccessEnd(current *time.Time, now time.Time, d time.Duration) time.Time {
	if current != nil && current.After(now) {
		return current.Add(d)
	}
	return now.Add(d)
}

// HasActiveAccess reports whether the organization may use paid features at
// now: the access period is running, or there is no access period and the
// trial is running.
func HasActiveAccess(org *model.Organization, now time.Time) bool {
	if org == nil {
		return false
	}
	if org.AccessEndsAt != nil {
		return org.AccessEndsAt.After(now)
	}
	return org.TrialEndsAt != nil && org.TrialEndsAt.After(now)
}
