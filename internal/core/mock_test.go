package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/provider"
)

// ---------- Mock DB ----------

// mockDB implements the TxDB interface for testing.
type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

func (m *mockDB) Begin(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

// ---------- Mock Tx ----------

// mockTx implements pgx.Tx. Statements are mocked like mockDB; Commit and
// Rollback are recorded.
type mockTx struct {
	mockDB
	committed  bool
	rolledBack bool
}

func (m *mockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	if args.Error(0) == nil {
		m.committed = true
	}
	return args.Error(0)
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if !m.committed {
		m.rolledBack = true
	}
	return nil
}

func (m *mockTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *mockTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (m *mockTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (m *mockTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *mockTx) Conn() *pgx.Conn { return nil }

// ---------- Mock Row ----------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

func errRow(err error) *mockRow {
	return &mockRow{scanFunc: func(...any) error { return err }}
}

// ---------- Mock Rows ----------

// mockRows implements pgx.Rows for testing.
// It iterates through a list of scan functions, one per row.
type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
	err       error
}

func newMockRows(scanFuncs ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFuncs: scanFuncs}
}

func (m *mockRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *mockRows) Scan(dest ...any) error {
	if m.callIndex < len(m.scanFuncs) {
		fn := m.scanFuncs[m.callIndex]
		m.callIndex++
		return fn(dest...)
	}
	return nil
}

func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

// ---------- Scan helpers ----------

// scanOrg fills the destinations of an orgColumns scan from o.
func scanOrg(o model.Organization) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = o.ID
		*dest[1].(*string) = o.Name
		*dest[2].(**string) = o.BillingEmail
		*dest[3].(**string) = o.Plan
		*dest[4].(*string) = o.BillingStatus
		*dest[5].(*string) = o.SubscriptionStatus
		*dest[6].(**time.Time) = o.AccessEndsAt
		*dest[7].(**time.Time) = o.TrialEndsAt
		*dest[8].(**string) = o.InfinityPayCustomerID
		*dest[9].(**string) = o.StripeCustomerID
		*dest[10].(**string) = o.StripeAccountID
		*dest[11].(*time.Time) = o.CreatedAt
		*dest[12].(*time.Time) = o.UpdatedAt
		return nil
	}
}

// scanUsageRow fills the destinations of a usageColumns scan from u.
func scanUsageRow(u model.Usage) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = u.OrganizationID
		*dest[1].(*int64) = u.SeatsUsed
		*dest[2].(*int64) = u.ProjectsUsed
		*dest[3].(*int64) = u.StorageBytes
		*dest[4].(*int64) = u.AICreditsUsed
		*dest[5].(*time.Time) = u.UpdatedAt
		return nil
	}
}

func strPtr(s string) *string { return &s }

// ---------- Mock Provider ----------

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) CreateCheckout(ctx context.Context, req provider.CheckoutRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) VerifyPayment(ctx context.Context, req provider.VerifyRequest) (provider.Verification, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(provider.Verification), args.Error(1)
}
