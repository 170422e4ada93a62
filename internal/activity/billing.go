package activity

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/edvin/billing/internal/metrics"
	"github.com/edvin/billing/internal/model"
)

// OrganizationStore is the organization access the expiration sweep needs.
// *core.OrganizationService satisfies this interface.
type OrganizationStore interface {
	ListExpiring(ctx context.Context, now time.Time, window time.Duration) ([]model.Organization, error)
	ListLapsed(ctx context.Context, now time.Time) ([]model.Organization, error)
	Block(ctx context.Context, id string, now time.Time) (bool, error)
}

// NoticeSender delivers billing notices. *notify.Notifier satisfies this
// interface.
type NoticeSender interface {
	Notify(ctx context.Context, notice model.BillingNotice) error
}

// Billing contains the expiration sweep activities.
type Billing struct {
	orgs     OrganizationStore
	notifier NoticeSender
	metrics  metrics.BillingRecorder
}

// NewBilling creates a new Billing activity struct.
func NewBilling(orgs OrganizationStore, notifier NoticeSender, rec metrics.BillingRecorder) *Billing {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &Billing{orgs: orgs, notifier: notifier, metrics: rec}
}

// SweepOrganization is the slice of an organization the sweep passes between
// activities.
type SweepOrganization struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	BillingEmail  string    `json:"billing_email,omitempty"`
	Plan          string    `json:"plan,omitempty"`
	BillingStatus string    `json:"billing_status"`
	Deadline      time.Time `json:"deadline"`
}

// Blocked reports whether the organization is already blocked.
func (o SweepOrganization) Blocked() bool {
	return o.BillingStatus == model.BillingBlocked
}

func toSweepOrganizations(orgs []model.Organization) []SweepOrganization {
	out := make([]SweepOrganization, 0, len(orgs))
	for _, o := range orgs {
		s := SweepOrganization{ID: o.ID, Name: o.Name, BillingStatus: o.BillingStatus}
		if o.BillingEmail != nil {
			s.BillingEmail = *o.BillingEmail
		}
		if o.Plan != nil {
			s.Plan = *o.Plan
		}
		if d := o.AccessDeadline(); d != nil {
			s.Deadline = *d
		}
		out = append(out, s)
	}
	return out
}

// ListExpiringParams holds the parameters for ListExpiringOrganizations.
type ListExpiringParams struct {
	Now         time.Time `json:"now"`
	WarningDays int       `json:"warning_days"`
}

// ListExpiringOrganizations returns organizations whose access ends within
// the warning window.
func (a *Billing) ListExpiringOrganizations(ctx context.Context, params ListExpiringParams) ([]SweepOrganization, error) {
	if params.WarningDays <= 0 {
		return nil, nil
	}
	orgs, err := a.orgs.ListExpiring(ctx, params.Now, time.Duration(params.WarningDays)*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("list expiring organizations: %w", err)
	}
	return toSweepOrganizations(orgs), nil
}

// ListLapsedOrganizations returns organizations whose access deadline is
// before now, including already-blocked ones.
func (a *Billing) ListLapsedOrganizations(ctx context.Context, now time.Time) ([]SweepOrganization, error) {
	orgs, err := a.orgs.ListLapsed(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list lapsed organizations: %w", err)
	}
	return toSweepOrganizations(orgs), nil
}

// BlockOrganizationParams holds the parameters for BlockOrganization.
type BlockOrganizationParams struct {
	OrganizationID string    `json:"organization_id"`
	Now            time.Time `json:"now"`
}

// BlockOrganization blocks a lapsed organization. It returns false when
// nothing was written.
func (a *Billing) BlockOrganization(ctx context.Context, params BlockOrganizationParams) (bool, error) {
	blocked, err := a.orgs.Block(ctx, params.OrganizationID, params.Now)
	if err != nil {
		return false, err
	}
	if blocked {
		a.metrics.SweepAction("blocked")
	} else {
		a.metrics.SweepAction("block_skipped")
	}
	return blocked, nil
}

// SendBillingNotice emails an expiring or expired notice.
func (a *Billing) SendBillingNotice(ctx context.Context, notice model.BillingNotice) error {
	switch notice.Kind {
	case model.NoticeExpiring, model.NoticeExpired:
	default:
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown notice kind %q", notice.Kind), "INVALID_NOTICE", nil)
	}

	if err := a.notifier.Notify(ctx, notice); err != nil {
		a.metrics.SweepAction("notice_failed")
		return err
	}
	a.metrics.SweepAction("notice_" + notice.Kind)
	return nil
}
