package model

import "time"

// Billing notice kinds sent by the expiration sweep.
const (
	NoticeExpiring = "expiring"
	NoticeExpired  = "expired"
)

// BillingNotice is a notification about an organization's access period.
type BillingNotice struct {
	Kind             string    `json:"kind"`
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	To               string    `json:"to"`
	Plan             string    `json:"plan,omitempty"`
	AccessEndsAt     time.Time `json:"access_ends_at"`
	DaysLeft         int       `json:"days_left"`
}
