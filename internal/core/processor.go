package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/edvin/billing/internal/metrics"
	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/plan"
	"github.com/edvin/billing/internal/provider"
)

// Outcome is the final state of one payment-application attempt.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeRejected means the notification was not trusted or not paid.
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed means an internal error prevented processing.
	OutcomeFailed Outcome = "failed"
)

// Reason codes attached to non-applied results.
const (
	ReasonInvalidOrderNSU   = "invalid_order_nsu"
	ReasonOrgNotFound       = "organization_not_found"
	ReasonUnknownProvider   = "unknown_provider"
	ReasonMissingFields     = "missing_verification_fields"
	ReasonVerificationError = "verification_error"
	ReasonNotPaid           = "not_paid"
	ReasonAlreadyApplied    = "already_applied"
	ReasonUnknownPlan       = "unknown_plan"
	ReasonUnderpaid         = "underpaid"
	ReasonCurrencyMismatch  = "currency_mismatch"
	ReasonStorageError      = "storage_error"
)

type Result struct {
	Outcome        Outcome
	Reason         string
	OrganizationID string
	Plan           string
	AccessEndsAt   *time.Time
}

// Providers looks up a payment provider by name. *provider.Set satisfies it.
type Providers interface {
	Get(name string) (provider.Provider, bool)
}

// PaymentProcessor applies verified payments to organizations. Every abort
// path leaves the organization and the ledger untouched.
type PaymentProcessor struct {
	ledger    Ledger
	providers Providers
	catalog   *plan.Catalog
	metrics   metrics.BillingRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

func NewPaymentProcessor(ledger Ledger, providers Providers, catalog *plan.Catalog, rec metrics.BillingRecorder, logger zerolog.Logger) *PaymentProcessor {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &PaymentProcessor{
		ledger:    ledger,
		providers: providers,
		catalog:   catalog,
		metrics:   rec,
		logger:    logger.With().Str("component", "payment-processor").Logger(),
		now:       time.Now,
	}
}

// Process runs one notification through verification and, when it checks
// out, applies it. It never returns an error: the outcome and reason are in
// the Result.
func (p *PaymentProcessor) Process(ctx context.Context, n PaymentNotification) (res Result) {
	logger := p.logger.With().
		Str("provider", n.Provider()).
		Str("order_nsu", n.CorrelationID()).
		Str("external_id", n.ExternalID()).
		Logger()

	defer func() {
		p.metrics.PaymentProcessed(n.Provider(), string(res.Outcome), res.Reason)
		var ev *zerolog.Event
		switch res.Outcome {
		case OutcomeApplied:
			ev = logger.Info().Time("access_ends_at", *res.AccessEndsAt)
		case OutcomeDuplicate:
			ev = logger.Debug()
		case OutcomeFailed:
			ev = logger.Error()
		default:
			ev = logger.Warn()
		}
		ev.Str("outcome", string(res.Outcome)).Str("reason", res.Reason).Str("plan", res.Plan).Msg("payment notification processed")
	}()

	orgID, _, err := provider.ParseOrderNSU(n.CorrelationID())
	if err != nil {
		return Result{Outcome: OutcomeRejected, Reason: ReasonInvalidOrderNSU}
	}
	res.OrganizationID = orgID

	if _, err := p.ledger.GetOrganization(ctx, orgID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return p.abort(orgID, OutcomeRejected, ReasonOrgNotFound)
		}
		logger.Error().Err(err).Msg("load organization")
		return p.abort(orgID, OutcomeFailed, ReasonStorageError)
	}

	verification, reason := p.verify(ctx, n, logger)
	if reason != "" {
		return p.abort(orgID, OutcomeRejected, reason)
	}

	exists, err := p.ledger.EventExists(ctx, n.Provider(), n.ExternalID())
	if err != nil {
		logger.Error().Err(err).Msg("check billing event")
		return p.abort(orgID, OutcomeFailed, ReasonStorageError)
	}
	if exists {
		return p.abort(orgID, OutcomeDuplicate, ReasonAlreadyApplied)
	}

	purchased, reason := p.resolvePlan(n, verification)
	if reason != "" {
		return p.abort(orgID, OutcomeRejected, reason)
	}

	event := &model.BillingEvent{
		Provider:   n.Provider(),
		ExternalID: n.ExternalID(),
		Plan:       purchased.Name,
		Amount:     paidAmount(verification, n, purchased),
		Currency:   purchased.Currency,
	}
	if verification.Currency != "" {
		event.Currency = verification.Currency
	}

	now := p.now()
	org, err := p.ledger.ApplyPayment(ctx, orgID, event, func(org *model.Organization) error {
		end := NextAccessEnd(org.AccessEndsAt, now, purchased.Duration)
		name := purchased.Name
		org.Plan = &name
		org.BillingStatus = model.BillingActive
		org.SubscriptionStatus = model.SubscriptionActive
		org.AccessEndsAt = &end
		event.AccessEndsAt = end
		return nil
	})
	switch {
	case errors.Is(err, ErrDuplicateEvent):
		return p.abort(orgID, OutcomeDuplicate, ReasonAlreadyApplied)
	case errors.Is(err, ErrNotFound):
		return p.abort(orgID, OutcomeRejected, ReasonOrgNotFound)
	case err != nil:
		logger.Error().Err(err).Msg("apply payment")
		return p.abort(orgID, OutcomeFailed, ReasonStorageError)
	}

	return Result{
		Outcome:        OutcomeApplied,
		OrganizationID: org.ID,
		Plan:           purchased.Name,
		AccessEndsAt:   org.AccessEndsAt,
	}
}

func (p *PaymentProcessor) abort(orgID string, outcome Outcome, reason string) Result {
	return Result{Outcome: outcome, Reason: reason, OrganizationID: orgID}
}

// verify re-queries the provider. A non-empty reason means the payment must
// not be applied.
func (p *PaymentProcessor) verify(ctx context.Context, n PaymentNotification, logger zerolog.Logger) (provider.Verification, string) {
	prov, ok := p.providers.Get(n.Provider())
	if !ok {
		return provider.Verification{}, ReasonUnknownProvider
	}

	req := n.verifyRequest()
	if !req.Complete() {
		return provider.Verification{}, ReasonMissingFields
	}

	v, err := prov.VerifyPayment(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Msg("payment verification failed")
		return provider.Verification{}, ReasonVerificationError
	}
	if !v.Paid {
		return v, ReasonNotPaid
	}
	return v, ""
}

// resolvePlan prefers a plan named in metadata and falls back to matching the
// paid amount against plan prices. Unknown names and amounts never resolve.
func (p *PaymentProcessor) resolvePlan(n PaymentNotification, v provider.Verification) (plan.Plan, string) {
	hint := n.PlanHint()
	if hint == "" {
		if s, ok := v.Raw["plan"].(string); ok {
			hint = s
		}
	}

	if hint != "" {
		named, ok := p.catalog.Lookup(hint)
		if !ok || !named.Purchasable {
			return plan.Plan{}, ReasonUnknownPlan
		}
		if !sameCurrency(v, named) {
			return plan.Plan{}, ReasonCurrencyMismatch
		}
		if v.Amount.IsPositive() && v.Amount.LessThan(named.Price) {
			return plan.Plan{}, ReasonUnderpaid
		}
		return named, ""
	}

	amount := v.Amount
	if !amount.IsPositive() {
		amount = n.ClaimedAmount()
	}
	matched, ok := p.catalog.ResolveAmount(amount)
	if !ok {
		return plan.Plan{}, ReasonUnknownPlan
	}
	if !sameCurrency(v, matched) {
		return plan.Plan{}, ReasonCurrencyMismatch
	}
	return matched, ""
}

// sameCurrency reports whether the verified payment was made in the plan's
// currency. Providers that report no currency are taken at the plan's.
func sameCurrency(v provider.Verification, p plan.Plan) bool {
	return v.Currency == "" || strings.EqualFold(v.Currency, p.Currency)
}

func paidAmount(v provider.Verification, n PaymentNotification, p plan.Plan) decimal.Decimal {
	if v.Amount.IsPositive() {
		return v.Amount
	}
	if claimed := n.ClaimedAmount(); claimed.IsPositive() {
		return claimed
	}
	return p.Price
}

// Applied reports whether the payment is now reflected on the organization,
// by this call or an earlier one.
func (r Result) Applied() bool {
	return r.Outcome == OutcomeApplied || r.Outcome == OutcomeDuplicate
}

func (r Result) String() string {
	if r.Reason == "" {
		return string(r.Outcome)
	}
	return fmt.Sprintf("%s (%s)", r.Outcome, r.Reason)
}
