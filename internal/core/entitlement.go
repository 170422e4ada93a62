package core

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/plan"
)

// OrganizationReader loads organizations.
type OrganizationReader interface {
	Get(ctx context.Context, id string) (*model.Organization, error)
}

// UsageReader loads usage counters.
type UsageReader interface {
	Get(ctx context.Context, orgID string) (*model.Usage, error)
}

// EntitlementService answers whether an organization may act. It only reads.
type EntitlementService struct {
	orgs    OrganizationReader
	usage   UsageReader
	catalog *plan.Catalog
	now     func() time.Time
}

func NewEntitlementService(orgs OrganizationReader, usage UsageReader, catalog *plan.Catalog) *EntitlementService {
	return &EntitlementService{orgs: orgs, usage: usage, catalog: catalog, now: time.Now}
}

// Check returns a *LapsedError (matching ErrAccessLapsed) when the
// organization has no active access.
func (s *EntitlementService) Check(ctx context.Context, orgID string) error {
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return err
	}
	if !HasActiveAccess(org, s.now()) {
		return &LapsedError{OrganizationID: orgID, Deadline: org.AccessDeadline()}
	}
	return nil
}

// CheckLimit returns a *LimitError (matching ErrLimitExceeded) when adding
// delta units of r would exceed the plan's entitlement.
func (s *EntitlementService) CheckLimit(ctx context.Context, orgID string, r Resource, delta int64) error {
	status, err := s.Status(ctx, orgID)
	if err != nil {
		return err
	}
	used := r.Used(status.Usage)
	limit := r.Limit(status.Limits)
	if used+delta > limit {
		return &LimitError{Resource: r, Limit: limit, Used: used, Delta: delta}
	}
	return nil
}

// BillingStatus is an organization's billing state with its limits and usage.
type BillingStatus struct {
	Organization    *model.Organization
	HasActiveAccess bool
	Limits          plan.Plan
	Usage           *model.Usage
}

// Status loads the organization and its usage concurrently.
func (s *EntitlementService) Status(ctx context.Context, orgID string) (*BillingStatus, error) {
	var (
		org   *model.Organization
		usage *model.Usage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		org, err = s.orgs.Get(gctx, orgID)
		return err
	})
	g.Go(func() error {
		var err error
		usage, err = s.usage.Get(gctx, orgID)
		if err != nil {
			return fmt.Errorf("load usage: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &BillingStatus{
		Organization:    org,
		HasActiveAccess: HasActiveAccess(org, s.now()),
		Limits:          s.catalog.LimitsFor(org.Plan),
		Usage:           usage,
	}, nil
}
