package model

import "time"

// Usage holds the per-organization resource counters.
type Usage struct {
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	SeatsUsed      int64     `json:"seats_used" db:"seats_used"`
	ProjectsUsed   int64     `json:"projects_used" db:"projects_used"`
	StorageBytes   int64     `json:"storage_bytes" db:"storage_bytes"`
	AICreditsUsed  int64     `json:"ai_credits_used" db:"ai_credits_used"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
