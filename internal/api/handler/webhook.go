package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/edvin/billing/internal/api/request"
	"github.com/edvin/billing/internal/api/response"
	"github.com/edvin/billing/internal/core"
	"github.com/edvin/billing/internal/metrics"
	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/provider"
)

const maxWebhookBytes = 64 << 10

// PaymentProcessor applies payment notifications. *core.PaymentProcessor
// satisfies this interface.
type PaymentProcessor interface {
	Process(ctx context.Context, n core.PaymentNotification) core.Result
}

// StripeWebhookParser verifies and decodes Connect webhooks.
// *provider.StripeConnect satisfies this interface.
type StripeWebhookParser interface {
	ParseWebhook(payload []byte, signature string) (provider.StripeWebhookEvent, error)
	AccountID() string
}

// Webhook receives provider notifications. Every response is 200 with
// {"received":true}: outcomes are visible in logs, metrics and the ledger.
type Webhook struct {
	processor PaymentProcessor
	stripe    StripeWebhookParser
	metrics   metrics.BillingRecorder
}

// NewWebhook creates a webhook handler. stripe may be nil when Connect is
// not configured.
func NewWebhook(processor PaymentProcessor, stripe StripeWebhookParser, rec metrics.BillingRecorder) *Webhook {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &Webhook{processor: processor, stripe: stripe, metrics: rec}
}

func acknowledge(w http.ResponseWriter) {
	response.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// InfinityPay handles POST /webhooks/infinitypay.
func (h *Webhook) InfinityPay(w http.ResponseWriter, r *http.Request) {
	defer acknowledge(w)
	logger := zerolog.Ctx(r.Context())
	h.metrics.WebhookReceived(model.ProviderInfinityPay, "payment")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		logger.Warn().Err(err).Msg("read infinitypay webhook")
		return
	}
	payload, err := request.ParseInfinityPayWebhook(body)
	if err != nil {
		logger.Warn().Err(err).Msg("decode infinitypay webhook")
		return
	}

	h.processor.Process(r.Context(), core.CheckoutLinkEvent{
		OrderNSU:       payload.OrderNSU,
		TransactionNSU: payload.TransactionNSU,
		InvoiceSlug:    payload.InvoiceSlug,
		Amount:         payload.AmountDecimal(),
		PaidAmount:     payload.PaidAmountDecimal(),
		Plan:           payload.PlanName(),
		CaptureMethod:  payload.CaptureMethod,
	})
}

// Stripe handles POST /webhooks/stripe.
func (h *Webhook) Stripe(w http.ResponseWriter, r *http.Request) {
	defer acknowledge(w)
	logger := zerolog.Ctx(r.Context())

	if h.stripe == nil {
		logger.Warn().Msg("stripe webhook received but stripe is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		logger.Warn().Err(err).Msg("read stripe webhook")
		return
	}

	event, err := h.stripe.ParseWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.metrics.WebhookReceived(model.ProviderStripe, "invalid")
		logger.Warn().Err(err).Msg("rejected stripe webhook")
		return
	}
	h.metrics.WebhookReceived(model.ProviderStripe, event.Type)

	if !event.Handled() {
		logger.Debug().Str("event_id", event.ID).Str("type", event.Type).Msg("ignoring stripe event")
		return
	}
	if account := h.stripe.AccountID(); account != "" && event.AccountID != account {
		logger.Warn().Str("event_id", event.ID).Str("account", event.AccountID).Msg("stripe event for another account")
		return
	}

	h.processor.Process(r.Context(), connectEvent(event))
}

func connectEvent(event provider.StripeWebhookEvent) core.ConnectEvent {
	s := event.Session
	ce := core.ConnectEvent{
		EventID:           event.ID,
		AccountID:         event.AccountID,
		SessionID:         s.ID,
		ClientReferenceID: s.ClientReferenceID,
		AmountTotal:       decimal.New(s.AmountTotal, -2),
		Currency:          string(s.Currency),
		Plan:              s.Metadata["plan"],
	}
	if s.PaymentIntent != nil {
		ce.PaymentIntentID = s.PaymentIntent.ID
	}
	return ce
}
