package model

import "time"

// Organization is a tenant account. The billing fields are written only by the
// payment processor and the expiration sweep.
type Organization struct {
	ID                    string     `json:"id" db:"id"`
	Name                  string     `json:"name" db:"name"`
	BillingEmail          *string    `json:"billing_email,omitempty" db:"billing_email"`
	Plan                  *string    `json:"plan,omitempty" db:"plan"`
	BillingStatus         string     `json:"billing_status" db:"billing_status"`
	SubscriptionStatus    string     `json:"subscription_status" db:"subscription_status"`
	AccessEndsAt          *time.Time `json:"access_ends_at,omitempty" db:"access_ends_at"`
	TrialEndsAt           *time.Time `json:"trial_ends_at,omitempty" db:"trial_ends_at"`
	InfinityPayCustomerID *string    `json:"infinitypay_customer_id,omitempty" db:"infinitypay_customer_id"`
	StripeCustomerID      *string    `json:"stripe_customer_id,omitempty" db:"stripe_customer_id"`
	StripeAccountID       *string    `json:"stripe_account_id,omitempty" db:"stripe_account_id"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

// AccessDeadline returns the instant paid or trial access lapses: the access
// period end when set, otherwise the trial end. Nil means no access at all.
func (o *Organization) AccessDeadline() *time.Time {
	if o.AccessEndsAt != nil {
		return o.AccessEndsAt
	}
	return o.TrialEndsAt
}
