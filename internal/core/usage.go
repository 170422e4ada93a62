package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/plan"
)

// Resource is a metered entitlement.
type Resource string

const (
	ResourceSeats     Resource = "seats"
	ResourceProjects  Resource = "projects"
	ResourceStorage   Resource = "storage"
	ResourceAICredits Resource = "ai_credits"
)

func (r Resource) column() (string, error) {
	switch r {
	case ResourceSeats:
		return "seats_used", nil
	case ResourceProjects:
		return "projects_used", nil
	case ResourceStorage:
		return "storage_bytes", nil
	case ResourceAICredits:
		return "ai_credits_used", nil
	}
	return "", fmt.Errorf("unknown resource %q", r)
}

// Limit returns the plan's entitlement for r.
func (r Resource) Limit(p plan.Plan) int64 {
	switch r {
	case ResourceSeats:
		return p.Seats
	case ResourceProjects:
		return p.Projects
	case ResourceStorage:
		return p.StorageBytes
	case ResourceAICredits:
		return p.AICredits
	}
	return 0
}

// Used returns the counter for r.
func (r Resource) Used(u *model.Usage) int64 {
	switch r {
	case ResourceSeats:
		return u.SeatsUsed
	case ResourceProjects:
		return u.ProjectsUsed
	case ResourceStorage:
		return u.StorageBytes
	case ResourceAICredits:
		return u.AICreditsUsed
	}
	return 0
}

const usageColumns = `organization_id, seats_used, projects_used, storage_bytes, ai_credits_used, updated_at`

func scanUsage(row pgx.Row) (*model.Usage, error) {
	var u model.Usage
	if err := row.Scan(&u.OrganizationID, &u.SeatsUsed, &u.ProjectsUsed, &u.StorageBytes, &u.AICreditsUsed, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// UsageService maintains the per-organization usage counters. Increments
// lock the counter row so concurrent requests cannot both pass a stale
// limit check.
type UsageService struct {
	db      TxDB
	catalog *plan.Catalog
}

func NewUsageService(db TxDB, catalog *plan.Catalog) *UsageService {
	return &UsageService{db: db, catalog: catalog}
}

// Get returns the counters for an organization. Organizations without a
// counter row report zero usage.
func (s *UsageService) Get(ctx context.Context, orgID string) (*model.Usage, error) {
	u, err := scanUsage(s.db.QueryRow(ctx,
		`SELECT `+usageColumns+` FROM usage_counters WHERE organization_id = $1`, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.Usage{OrganizationID: orgID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get usage for organization %s: %w", orgID, err)
	}
	return u, nil
}

// ReserveSeat takes one seat, failing with ErrLimitExceeded when the plan's
// seats are all in use.
func (s *UsageService) ReserveSeat(ctx context.Context, orgID string) (*model.Usage, error) {
	return s.Adjust(ctx, orgID, ResourceSeats, 1)
}

// ReleaseSeat frees one seat. The counter never drops below zero.
func (s *UsageService) ReleaseSeat(ctx context.Context, orgID string) (*model.Usage, error) {
	return s.Adjust(ctx, orgID, ResourceSeats, -1)
}

// AddStorage records bytes added (positive) or freed (negative).
func (s *UsageService) AddStorage(ctx context.Context, orgID string, bytes int64) (*model.Usage, error) {
	return s.Adjust(ctx, orgID, ResourceStorage, bytes)
}

// ConsumeAICredits records n credits spent in the current access period.
func (s *UsageService) ConsumeAICredits(ctx context.Context, orgID string, n int64) (*model.Usage, error) {
	if n <= 0 {
		return nil, fmt.Errorf("consume %d AI credits: amount must be positive", n)
	}
	return s.Adjust(ctx, orgID, ResourceAICredits, n)
}

// Adjust changes the counter for r by delta inside a transaction holding the
// counter row lock. Increments are checked against the organization's plan;
// decrements clamp at zero.
func (s *UsageService) Adjust(ctx context.Context, orgID string, r Resource, delta int64) (*model.Usage, error) {
	column, err := r.column()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin usage tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var planName *string
	err = tx.QueryRow(ctx, `SELECT plan FROM organizations WHERE id = $1`, orgID).Scan(&planName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", orgID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan for organization %s: %w", orgID, err)
	}

	// Create the counter row on first use so FOR UPDATE has something to lock.
	if _, err := tx.Exec(ctx,
		`INSERT INTO usage_counters (organization_id) VALUES ($1) ON CONFLICT (organization_id) DO NOTHING`,
		orgID); err != nil {
		return nil, fmt.Errorf("ensure usage row for organization %s: %w", orgID, err)
	}

	usage, err := scanUsage(tx.QueryRow(ctx,
		`SELECT `+usageColumns+` FROM usage_counters WHERE organization_id = $1 FOR UPDATE`, orgID))
	if err != nil {
		return nil, fmt.Errorf("lock usage for organization %s: %w", orgID, err)
	}

	used := r.Used(usage)
	next := used + delta
	if delta > 0 {
		limit := r.Limit(s.catalog.LimitsFor(planName))
		if next > limit {
			return nil, &LimitError{Resource: r, Limit: limit, Used: used, Delta: delta}
		}
	}
	if next < 0 {
		next = 0
	}

	usage, err = scanUsage(tx.QueryRow(ctx,
		fmt.Sprintf(`UPDATE usage_counters SET %s = $2, updated_at = now() WHERE organization_id = $1 RETURNING `+usageColumns, column),
		orgID, next))
	if err != nil {
		return nil, fmt.Errorf("update %s for organization %s: %w", r, orgID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit usage tx: %w", err)
	}
	return usage, nil
}
