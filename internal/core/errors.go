package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateEvent  = errors.New("billing event already recorded")
	ErrAccessLapsed    = errors.New("access period has ended")
	ErrLimitExceeded   = errors.New("plan limit exceeded")
	ErrUnknownPlan     = errors.New("unknown or non-purchasable plan")
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrInvalidRedirect = errors.New("redirect url is not on the frontend origin")
	ErrForbidden       = errors.New("forbidden")
)

// LapsedError carries the details shown to a user whose access has lapsed.
type LapsedError struct {
	OrganizationID string
	Deadline       *time.Time
}

func (e *LapsedError) Error() string {
	if e.Deadline == nil {
		return "your organization has no active plan: choose a plan to continue"
	}
	return fmt.Sprintf("your plan expired on %s: renew to continue making changes", e.Deadline.UTC().Format("2006-01-02"))
}

func (e *LapsedError) Unwrap() error { return ErrAccessLapsed }

// LimitError reports which entitlement a change would exceed.
type LimitError struct {
	Resource Resource
	Limit    int64
	Used     int64
	Delta    int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit reached: %d of %d used, %d requested: upgrade your plan for more", e.Resource, e.Used, e.Limit, e.Delta)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }
