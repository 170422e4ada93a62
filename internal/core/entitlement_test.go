package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/plan"
)

type stubOrgs map[string]*model.Organization

func (s stubOrgs) Get(_ context.Context, id string) (*model.Organization, error) {
	o, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	return o, nil
}

type stubUsage struct {
	usage *model.Usage
	err   error
}

func (s stubUsage) Get(_ context.Context, orgID string) (*model.Usage, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.usage == nil {
		return &model.Usage{OrganizationID: orgID}, nil
	}
	return s.usage, nil
}

func entitlementAt(now time.Time, orgs stubOrgs, usage stubUsage) *EntitlementService {
	svc := NewEntitlementService(orgs, usage, plan.DefaultCatalog())
	svc.now = func() time.Time { return now }
	return svc
}

func TestEntitlementService_Check(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	orgs := stubOrgs{
		"trial":   {ID: "trial", TrialEndsAt: ptrTime(now.Add(3 * day))},
		"expired": {ID: "expired", TrialEndsAt: ptrTime(now.Add(-day))},
		"paid":    {ID: "paid", Plan: strPtr(plan.Starter), AccessEndsAt: ptrTime(now.Add(day)), TrialEndsAt: ptrTime(now.Add(-30 * day))},
		"lapsed":  {ID: "lapsed", Plan: strPtr(plan.Starter), AccessEndsAt: ptrTime(now.Add(-time.Minute))},
		"never":   {ID: "never"},
	}
	svc := entitlementAt(now, orgs, stubUsage{})
	ctx := context.Background()

	assert.NoError(t, svc.Check(ctx, "trial"))
	assert.NoError(t, svc.Check(ctx, "paid"))

	err := svc.Check(ctx, "expired")
	require.ErrorIs(t, err, ErrAccessLapsed)
	var lapsed *LapsedError
	require.True(t, errors.As(err, &lapsed))
	assert.True(t, lapsed.Deadline.Equal(now.Add(-day)))
	assert.Contains(t, err.Error(), "2026-03-31")

	err = svc.Check(ctx, "lapsed")
	assert.ErrorIs(t, err, ErrAccessLapsed)

	err = svc.Check(ctx, "never")
	require.ErrorAs(t, err, &lapsed)
	assert.Nil(t, lapsed.Deadline)
	assert.Contains(t, err.Error(), "choose a plan")

	assert.ErrorIs(t, svc.Check(ctx, "missing"), ErrNotFound)
}

func TestEntitlementService_CheckLimit(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	orgs := stubOrgs{"org-1": {ID: "org-1", Plan: strPtr(plan.Starter), AccessEndsAt: ptrTime(now.Add(day))}}
	svc := entitlementAt(now, orgs, stubUsage{usage: &model.Usage{OrganizationID: "org-1", ProjectsUsed: 4}})
	ctx := context.Background()

	assert.NoError(t, svc.CheckLimit(ctx, "org-1", ResourceProjects, 1))

	err := svc.CheckLimit(ctx, "org-1", ResourceProjects, 2)
	require.ErrorIs(t, err, ErrLimitExceeded)
	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, &LimitError{Resource: ResourceProjects, Limit: 5, Used: 4, Delta: 2}, limitErr)
}

func TestEntitlementService_Status(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	orgs := stubOrgs{"org-1": {ID: "org-1", TrialEndsAt: ptrTime(now.Add(3 * day))}}
	svc := entitlementAt(now, orgs, stubUsage{usage: &model.Usage{OrganizationID: "org-1", SeatsUsed: 1}})

	status, err := svc.Status(context.Background(), "org-1")
	require.NoError(t, err)
	assert.True(t, status.HasActiveAccess)
	assert.Equal(t, plan.Free, status.Limits.Name)
	assert.Equal(t, int64(1), status.Usage.SeatsUsed)
	assert.Equal(t, "org-1", status.Organization.ID)
}

func TestEntitlementService_Status_UsageError(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	orgs := stubOrgs{"org-1": {ID: "org-1"}}
	svc := entitlementAt(now, orgs, stubUsage{err: errors.New("connection refused")})

	_, err := svc.Status(context.Background(), "org-1")
	assert.ErrorContains(t, err, "load usage: connection refused")
}
