package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingEvent is an append-only ledger row recording one applied payment.
// ExternalID is the provider's transaction id and the idempotency key.
type BillingEvent struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	Provider       string          `json:"provider" db:"provider"`
	ExternalID     string          `json:"external_id" db:"external_id"`
	Plan           string          `json:"plan" db:"plan"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Currency       string          `json:"currency" db:"currency"`
	AccessEndsAt   time.Time       `json:"access_ends_at" db:"access_ends_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
