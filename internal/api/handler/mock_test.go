package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/billing/internal/core"
	"github.com/edvin/billing/internal/model"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, n core.PaymentNotification) core.Result {
	return m.Called(ctx, n).Get(0).(core.Result)
}

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) Create(ctx context.Context, orgID string, params core.CheckoutParams) (string, error) {
	args := m.Called(ctx, orgID, params)
	return args.String(0), args.Error(1)
}

type mockStatus struct {
	mock.Mock
}

func (m *mockStatus) Status(ctx context.Context, orgID string) (*core.BillingStatus, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.BillingStatus), args.Error(1)
}

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) ListEvents(ctx context.Context, orgID string, limit int, cursor string) ([]model.BillingEvent, bool, error) {
	args := m.Called(ctx, orgID, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]model.BillingEvent), args.Bool(1), args.Error(2)
}

type mockUsage struct {
	mock.Mock
}

func (m *mockUsage) result(args mock.Arguments) (*model.Usage, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Usage), args.Error(1)
}

func (m *mockUsage) Get(ctx context.Context, orgID string) (*model.Usage, error) {
	return m.result(m.Called(ctx, orgID))
}

func (m *mockUsage) ReserveSeat(ctx context.Context, orgID string) (*model.Usage, error) {
	return m.result(m.Called(ctx, orgID))
}

func (m *mockUsage) ReleaseSeat(ctx context.Context, orgID string) (*model.Usage, error) {
	return m.result(m.Called(ctx, orgID))
}

func (m *mockUsage) AddStorage(ctx context.Context, orgID string, bytes int64) (*model.Usage, error) {
	return m.result(m.Called(ctx, orgID, bytes))
}

func (m *mockUsage) ConsumeAICredits(ctx context.Context, orgID string, n int64) (*model.Usage, error) {
	return m.result(m.Called(ctx, orgID, n))
}
