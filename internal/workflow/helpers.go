package workflow

import (
	"math"
	"time"

	"github.com/edvin/billing/internal/activity"
	"github.com/edvin/billing/internal/model"
)

func billingNotice(kind string, org activity.SweepOrganization, now time.Time) model.BillingNotice {
	return model.BillingNotice{
		Kind:             kind,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		To:               org.BillingEmail,
		Plan:             org.Plan,
		AccessEndsAt:     org.Deadline,
		DaysLeft:         daysLeft(org.Deadline, now),
	}
}

// daysLeft rounds up to whole days and never goes negative.
func daysLeft(deadline, now time.Time) int {
	d := int(math.Ceil(deadline.Sub(now).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}
