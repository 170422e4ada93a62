package model

// Billing status constants.
const (
	BillingTrialActive = "trial_active"
	BillingActive      = "active"
	BillingBlocked     = "blocked"
	BillingCancelled   = "cancelled"
)

// Subscription status constants.
const (
	SubscriptionTrialing  = "trialing"
	SubscriptionActive    = "active"
	SubscriptionPastDue   = "past_due"
	SubscriptionCancelled = "cancelled"
)

// Payment provider names.
const (
	ProviderInfinityPay = "infinitypay"
	ProviderStripe      = "stripe"
)
