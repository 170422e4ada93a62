package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/platform"
)

const orgColumns = `id, name, billing_email, plan, billing_status, subscription_status,
	access_ends_at, trial_ends_at, infinitypay_customer_id, stripe_customer_id,
	stripe_account_id, created_at, updated_at`

func scanOrganization(row pgx.Row) (*model.Organization, error) {
	var o model.Organization
	err := row.Scan(&o.ID, &o.Name, &o.BillingEmail, &o.Plan, &o.BillingStatus, &o.SubscriptionStatus,
		&o.AccessEndsAt, &o.TrialEndsAt, &o.InfinityPayCustomerID, &o.StripeCustomerID,
		&o.StripeAccountID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func getOrganization(ctx context.Context, db DB, id string) (*model.Organization, error) {
	o, err := scanOrganization(db.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get organization %s: %w", id, err)
	}
	return o, nil
}

// OrganizationService reads organizations and performs the lifecycle writes
// that happen outside payment application: signup and expiry.
type OrganizationService struct {
	db        DB
	trialDays int
}

func NewOrganizationService(db DB, trialDays int) *OrganizationService {
	return &OrganizationService{db: db, trialDays: trialDays}
}

// Get retrieves an organization by its ID.
func (s *OrganizationService) Get(ctx context.Context, id string) (*model.Organization, error) {
	return getOrganization(ctx, s.db, id)
}

// CreateWithTrial inserts a new organization in trial state together with its
// zeroed usage counters.
func (s *OrganizationService) CreateWithTrial(ctx context.Context, name string, billingEmail *string, now time.Time) (*model.Organization, error) {
	trialEnds := now.Add(time.Duration(s.trialDays) * 24 * time.Hour)
	o := &model.Organization{
		ID:                 platform.NewID(),
		Name:               name,
		BillingEmail:       billingEmail,
		BillingStatus:      model.BillingTrialActive,
		SubscriptionStatus: model.SubscriptionTrialing,
		TrialEndsAt:        &trialEnds,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	_, err := s.db.Exec(ctx,
		`WITH org AS (
			INSERT INTO organizations (id, name, billing_email, billing_status, subscription_status, trial_ends_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			RETURNING id
		)
		INSERT INTO usage_counters (organization_id, seats_used, updated_at)
		SELECT id, 1, $7 FROM org`,
		o.ID, o.Name, o.BillingEmail, o.BillingStatus, o.SubscriptionStatus, o.TrialEndsAt, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert organization: %w", err)
	}
	return o, nil
}

// ListExpiring returns organizations whose access or trial ends within
// (now, now+window] and that are not blocked or cancelled.
func (s *OrganizationService) ListExpiring(ctx context.Context, now time.Time, window time.Duration) ([]model.Organization, error) {
	return s.list(ctx,
		`SELECT `+orgColumns+` FROM organizations
		 WHERE COALESCE(access_ends_at, trial_ends_at) > $1
		   AND COALESCE(access_ends_at, trial_ends_at) <= $2
		   AND billing_status NOT IN ('blocked', 'cancelled')
		 ORDER BY COALESCE(access_ends_at, trial_ends_at), id`,
		now, now.Add(window))
}

// ListLapsed returns organizations whose access deadline has passed,
// including ones already blocked. Cancelled organizations are excluded.
func (s *OrganizationService) ListLapsed(ctx context.Context, now time.Time) ([]model.Organization, error) {
	return s.list(ctx,
		`SELECT `+orgColumns+` FROM organizations
		 WHERE COALESCE(access_ends_at, trial_ends_at) < $1
		   AND billing_status <> 'cancelled'
		 ORDER BY COALESCE(access_ends_at, trial_ends_at), id`,
		now)
}

func (s *OrganizationService) list(ctx context.Context, query string, args ...any) ([]model.Organization, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}
	return orgs, nil
}

// Block moves a lapsed organization to blocked/past_due. It returns false
// without writing when the organization is already blocked or its deadline
// has moved past now, e.g. because a renewal committed first.
func (s *OrganizationService) Block(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE organizations
		 SET billing_status = $2, subscription_status = $3, updated_at = $4
		 WHERE id = $1
		   AND billing_status <> $2
		   AND COALESCE(access_ends_at, trial_ends_at) < $4`,
		id, model.BillingBlocked, model.SubscriptionPastDue, now,
	)
	if err != nil {
		return false, fmt.Errorf("block organization %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
