package core

import (
	"github.com/rs/zerolog"

	"github.com/edvin/billing/internal/metrics"
	"github.com/edvin/billing/internal/plan"
)

type Services struct {
	Organization *OrganizationService
	Ledger       *LedgerService
	Usage        *UsageService
	Entitlement  *EntitlementService
	Checkout     *CheckoutService
	Processor    *PaymentProcessor
}

// ServicesConfig holds the settings the services need beyond the database.
type ServicesConfig struct {
	TrialDays      int
	FrontendOrigin string
}

func NewServices(db TxDB, providers Providers, catalog *plan.Catalog, rec metrics.BillingRecorder, logger zerolog.Logger, cfg ServicesConfig) *Services {
	orgs := NewOrganizationService(db, cfg.TrialDays)
	ledger := NewLedgerService(db)
	usage := NewUsageService(db, catalog)

	return &Services{
		Organization: orgs,
		Ledger:       ledger,
		Usage:        usage,
		Entitlement:  NewEntitlementService(orgs, usage, catalog),
		Checkout:     NewCheckoutService(orgs, providers, catalog, cfg.FrontendOrigin),
		Processor:    NewPaymentProcessor(ledger, providers, catalog, rec, logger),
	}
}
