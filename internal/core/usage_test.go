package core

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/plan"
)

func TestUsageService_Get(t *testing.T) {
	db := &mockDB{}
	svc := NewUsageService(db, plan.DefaultCatalog())
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"org-1"}).
		Return(&mockRow{scanFunc: scanUsageRow(model.Usage{OrganizationID: "org-1", SeatsUsed: 2, ProjectsUsed: 4})})

	u, err := svc.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.SeatsUsed)
	assert.Equal(t, int64(4), u.ProjectsUsed)
}

func TestUsageService_Get_MissingRowIsZero(t *testing.T) {
	db := &mockDB{}
	ctx := context.Background()
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"org-1"}).Return(errRow(pgx.ErrNoRows))

	u, err := NewUsageService(db, plan.DefaultCatalog()).Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, &model.Usage{OrganizationID: "org-1"}, u)
}

// usageFixture wires an Adjust transaction for an organization on planName
// whose current counters are current. The UPDATE echoes back the new value.
func usageFixture(planName *string, current model.Usage, column string) (*mockDB, *mockTx) {
	db := &mockDB{}
	tx := &mockTx{}
	db.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("QueryRow", mock.Anything, sqlContains("SELECT plan FROM organizations"), []any{current.OrganizationID}).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(**string) = planName
			return nil
		}})
	tx.On("Exec", mock.Anything, sqlContains("INSERT INTO usage_counters"), []any{current.OrganizationID}).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)
	tx.On("QueryRow", mock.Anything, sqlContains("FOR UPDATE"), []any{current.OrganizationID}).
		Return(&mockRow{scanFunc: scanUsageRow(current)})
	tx.On("QueryRow", mock.Anything, sqlContains("SET "+column+" = $2"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			return nil
		}}).Maybe()
	tx.On("Commit", mock.Anything).Return(nil).Maybe()
	return db, tx
}

func TestUsageService_ReserveSeat(t *testing.T) {
	db, tx := usageFixture(strPtr(plan.Starter), model.Usage{OrganizationID: "org-1", SeatsUsed: 2}, "seats_used")

	_, err := NewUsageService(db, plan.DefaultCatalog()).ReserveSeat(context.Background(), "org-1")
	require.NoError(t, err)

	tx.AssertCalled(t, "QueryRow", mock.Anything, sqlContains("SET seats_used = $2"), []any{"org-1", int64(3)})
	assert.True(t, tx.committed)
}

func TestUsageService_ReserveSeat_LimitReached(t *testing.T) {
	// Starter allows three seats.
	db, tx := usageFixture(strPtr(plan.Starter), model.Usage{OrganizationID: "org-1", SeatsUsed: 3}, "seats_used")

	_, err := NewUsageService(db, plan.DefaultCatalog()).ReserveSeat(context.Background(), "org-1")
	require.ErrorIs(t, err, ErrLimitExceeded)

	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, ResourceSeats, limitErr.Resource)
	assert.Equal(t, int64(3), limitErr.Limit)
	assert.Equal(t, int64(3), limitErr.Used)
	assert.True(t, tx.rolledBack)
	tx.AssertNotCalled(t, "QueryRow", mock.Anything, sqlContains("SET seats_used"), mock.Anything)
}

func TestUsageService_TrialUsesFreeLimits(t *testing.T) {
	// A trial organization has no plan and gets the free plan's single seat.
	db, _ := usageFixture(nil, model.Usage{OrganizationID: "org-1", SeatsUsed: 1}, "seats_used")

	_, err := NewUsageService(db, plan.DefaultCatalog()).ReserveSeat(context.Background(), "org-1")
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestUsageService_ReleaseSeatClampsAtZero(t *testing.T) {
	db, tx := usageFixture(strPtr(plan.Starter), model.Usage{OrganizationID: "org-1"}, "seats_used")

	_, err := NewUsageService(db, plan.DefaultCatalog()).ReleaseSeat(context.Background(), "org-1")
	require.NoError(t, err)
	tx.AssertCalled(t, "QueryRow", mock.Anything, sqlContains("SET seats_used = $2"), []any{"org-1", int64(0)})
}

func TestUsageService_AddStorage(t *testing.T) {
	gib := int64(1) << 30
	db, tx := usageFixture(strPtr(plan.Starter), model.Usage{OrganizationID: "org-1", StorageBytes: 9 * gib}, "storage_bytes")
	svc := NewUsageService(db, plan.DefaultCatalog())

	_, err := svc.AddStorage(context.Background(), "org-1", gib)
	require.NoError(t, err)
	tx.AssertCalled(t, "QueryRow", mock.Anything, sqlContains("SET storage_bytes = $2"), []any{"org-1", 10 * gib})

	_, err = svc.AddStorage(context.Background(), "org-1", 2*gib)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestUsageService_ConsumeAICredits(t *testing.T) {
	db, tx := usageFixture(strPtr(plan.Professional), model.Usage{OrganizationID: "org-1", AICreditsUsed: 450}, "ai_credits_used")
	svc := NewUsageService(db, plan.DefaultCatalog())

	_, err := svc.ConsumeAICredits(context.Background(), "org-1", 50)
	require.NoError(t, err)
	tx.AssertCalled(t, "QueryRow", mock.Anything, sqlContains("SET ai_credits_used = $2"), []any{"org-1", int64(500)})

	_, err = svc.ConsumeAICredits(context.Background(), "org-1", 0)
	assert.ErrorContains(t, err, "amount must be positive")
}

func TestUsageService_Adjust_UnknownOrganization(t *testing.T) {
	db := &mockDB{}
	tx := &mockTx{}
	db.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("QueryRow", mock.Anything, sqlContains("SELECT plan"), []any{"missing"}).Return(errRow(pgx.ErrNoRows))

	_, err := NewUsageService(db, plan.DefaultCatalog()).Adjust(context.Background(), "missing", ResourceProjects, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, tx.rolledBack)
}

func TestUsageService_Adjust_UnknownResource(t *testing.T) {
	db := &mockDB{}

	_, err := NewUsageService(db, plan.DefaultCatalog()).Adjust(context.Background(), "org-1", Resource("gpus"), 1)
	assert.ErrorContains(t, err, `unknown resource "gpus"`)
	db.AssertNotCalled(t, "Begin", mock.Anything)
}
