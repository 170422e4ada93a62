package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/platform"
)

// Ledger is the storage used by the payment processor.
type Ledger interface {
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	EventExists(ctx context.Context, provider, externalID string) (bool, error)
	// ApplyPayment locks the organization row, lets apply mutate it, then
	// writes the organization and inserts event in the same transaction.
	// A ledger unique violation returns ErrDuplicateEvent and nothing is written.
	ApplyPayment(ctx context.Context, orgID string, event *model.BillingEvent, apply func(*model.Organization) error) (*model.Organization, error)
}

// LedgerService is the Postgres-backed Ledger.
type LedgerService struct {
	db TxDB
}

func NewLedgerService(db TxDB) *LedgerService {
	return &LedgerService{db: db}
}

func (s *LedgerService) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	return getOrganization(ctx, s.db, id)
}

// EventExists is the fast-path duplicate check. The unique constraints on
// billing_events stay authoritative.
func (s *LedgerService) EventExists(ctx context.Context, provider, externalID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM billing_events WHERE provider = $1 AND external_id = $2)`,
		provider, externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check billing event %s/%s: %w", provider, externalID, err)
	}
	return exists, nil
}

func (s *LedgerService) ApplyPayment(ctx context.Context, orgID string, event *model.BillingEvent, apply func(*model.Organization) error) (*model.Organization, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := scanOrganization(tx.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = $1 FOR UPDATE`, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", orgID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock organization %s: %w", orgID, err)
	}

	if err := apply(org); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE organizations
		 SET plan = $2, billing_status = $3, subscription_status = $4, access_ends_at = $5, updated_at = now()
		 WHERE id = $1`,
		org.ID, org.Plan, org.BillingStatus, org.SubscriptionStatus, org.AccessEndsAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update organization %s: %w", orgID, err)
	}

	// A new access period starts a fresh AI credit allowance.
	_, err = tx.Exec(ctx,
		`UPDATE usage_counters SET ai_credits_used = 0, updated_at = now() WHERE organization_id = $1`,
		org.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("reset usage for organization %s: %w", orgID, err)
	}

	if event.ID == "" {
		event.ID = platform.NewID()
	}
	event.OrganizationID = org.ID
	err = tx.QueryRow(ctx,
		`INSERT INTO billing_events (id, organization_id, provider, external_id, plan, amount, currency, access_ends_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		event.ID, event.OrganizationID, event.Provider, event.ExternalID, event.Plan,
		event.Amount, event.Currency, event.AccessEndsAt,
	).Scan(&event.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicateEvent
		}
		return nil, fmt.Errorf("insert billing event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payment tx: %w", err)
	}
	return org, nil
}

// ListEvents returns an organization's ledger rows, newest first. cursor is
// the ID of the last event of the previous page.
func (s *LedgerService) ListEvents(ctx context.Context, orgID string, limit int, cursor string) ([]model.BillingEvent, bool, error) {
	query := `SELECT id, organization_id, provider, external_id, plan, amount, currency, access_ends_at, created_at
		FROM billing_events WHERE organization_id = $1`
	args := []any{orgID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND (created_at, id) < (SELECT created_at, id FROM billing_events WHERE id = $%d)`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY created_at DESC, id DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list billing events for organization %s: %w", orgID, err)
	}
	defer rows.Close()

	var events []model.BillingEvent
	for rows.Next() {
		var e model.BillingEvent
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Provider, &e.ExternalID, &e.Plan,
			&e.Amount, &e.Currency, &e.AccessEndsAt, &e.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan billing event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate billing events: %w", err)
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	return events, hasMore, nil
}
