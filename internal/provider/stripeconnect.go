package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/edvin/billing/internal/metrics"
	"github.com/edvin/billing/internal/model"
)

// ErrInvalidSignature is returned when a webhook payload fails signature checks.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// StripeConnectConfig configures the marketplace provider.
type StripeConnectConfig struct {
	SecretKey     string
	WebhookSecret string
	// AccountID is the connected account that receives the payments.
	AccountID string
	// FeePercent is the platform application fee, 0 to 100.
	FeePercent decimal.Decimal
	// APIURL overrides the Stripe API base URL. Empty means the SDK default.
	APIURL  string
	Timeout time.Duration
}

// StripeConnect creates Checkout Sessions on a connected account. For
// VerifyPayment, TransactionID is the PaymentIntent id, OrderID the
// client_reference_id (our order_nsu) and InvoiceSlug the Checkout Session id.
type StripeConnect struct {
	cfg      StripeConnectConfig
	sessions *checkoutsession.Client
	metrics  metrics.BillingRecorder
}

func NewStripeConnect(cfg StripeConnectConfig, rec metrics.BillingRecorder) *StripeConnect {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	return &StripeConnect{
		cfg: cfg,
		sessions: &checkoutsession.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		metrics: rec,
	}
}

func (s *StripeConnect) Name() string { return model.ProviderStripe }

func (s *StripeConnect) CreateCheckout(ctx context.Context, req CheckoutRequest) (url string, err error) {
	if req.OrderNSU == "" || len(req.Items) == 0 {
		return "", fmt.Errorf("%w: checkout needs an order_nsu and at least one item", ErrBadGateway)
	}

	start := time.Now()
	defer func() { s.metrics.ProviderCall(s.Name(), "create_checkout", time.Since(start), err) }()

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "brl"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderNSU),
		SuccessURL:        stripe.String(withSessionPlaceholder(req.RedirectURL)),
		CancelURL:         stripe.String(req.RedirectURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_nsu": req.OrderNSU},
		},
	}
	params.Context = ctx
	params.SetStripeAccount(s.cfg.AccountID)

	for _, it := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(it.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(decimalToCents(it.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Description),
				},
			},
		})
	}

	if fee := s.applicationFee(req.Total()); fee > 0 {
		params.PaymentIntentData.ApplicationFeeAmount = stripe.Int64(fee)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
		params.PaymentIntentData.Metadata[k] = v
	}
	if req.Customer != nil && req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create stripe checkout session: %v", ErrBadGateway, err)
	}
	if sess.URL == "" {
		return "", fmt.Errorf("%w: stripe checkout session %s has no url", ErrBadGateway, sess.ID)
	}
	return sess.URL, nil
}

// applicationFee returns the platform fee in cents for the given total.
func (s *StripeConnect) applicationFee(total decimal.Decimal) int64 {
	if !s.cfg.FeePercent.IsPositive() {
		return 0
	}
	return decimalToCents(total.Mul(s.cfg.FeePercent).Div(decimal.NewFromInt(100)))
}

func (s *StripeConnect) VerifyPayment(ctx context.Context, req VerifyRequest) (v Verification, err error) {
	if !req.Complete() {
		return Verification{Paid: false}, nil
	}

	start := time.Now()
	defer func() { s.metrics.ProviderCall(s.Name(), "verify_payment", time.Since(start), err) }()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.SetStripeAccount(s.cfg.AccountID)

	sess, err := s.sessions.Get(req.InvoiceSlug, params)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: retrieve stripe checkout session: %v", ErrBadGateway, err)
	}

	return verificationFromSession(sess, req), nil
}

func verificationFromSession(sess *stripe.CheckoutSession, req VerifyRequest) Verification {
	paymentIntentID := ""
	if sess.PaymentIntent != nil {
		paymentIntentID = sess.PaymentIntent.ID
	}

	raw := map[string]any{
		"session_id":          sess.ID,
		"payment_status":      string(sess.PaymentStatus),
		"client_reference_id": sess.ClientReferenceID,
		"payment_intent":      paymentIntentID,
		"amount_total":        sess.AmountTotal,
		"currency":            string(sess.Currency),
	}
	if plan := sess.Metadata["plan"]; plan != "" {
		raw["plan"] = plan
	}

	paid := sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid &&
		sess.ClientReferenceID == req.OrderID &&
		paymentIntentID == req.TransactionID

	return Verification{
		Paid:     paid,
		Amount:   centsToDecimal(sess.AmountTotal),
		Currency: strings.ToUpper(string(sess.Currency)),
		Raw:      raw,
	}
}

// StripeWebhookEvent is a verified checkout event from the connected account.
type StripeWebhookEvent struct {
	ID        string
	Type      string
	AccountID string
	// Session is nil for event types other than checkout sessions.
	Session *stripe.CheckoutSession
}

// Handled reports whether the event confirms a checkout payment.
func (e StripeWebhookEvent) Handled() bool {
	if e.Session == nil {
		return false
	}
	switch e.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return true
	}
	return false
}

// ParseWebhook validates the Stripe-Signature header and decodes the event.
func (s *StripeConnect) ParseWebhook(payload []byte, signature string) (StripeWebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return StripeWebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := StripeWebhookEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		AccountID: event.Account,
	}
	if !strings.HasPrefix(out.Type, "checkout.session.") || event.Data == nil {
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return out, fmt.Errorf("decode checkout session: %w", err)
	}
	out.Session = &sess
	return out, nil
}

// AccountID returns the connected account payments are routed to.
func (s *StripeConnect) AccountID() string { return s.cfg.AccountID }

func withSessionPlaceholder(redirect string) string {
	sep := "?"
	if strings.Contains(redirect, "?") {
		sep = "&"
	}
	return redirect + sep + "session_id={CHECKOUT_SESSION_ID}"
}
