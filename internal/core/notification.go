package core

import (
	"github.com/shopspring/decimal"

	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/provider"
)

// PaymentNotification is a payment confirmation from one of the providers,
// received by webhook or triggered by the client. The set of variants is
// closed: CheckoutLinkEvent and ConnectEvent.
type PaymentNotification interface {
	Provider() string
	// CorrelationID is the order_nsu embedding the organization id.
	CorrelationID() string
	// ExternalID is the provider transaction id used as the ledger key.
	ExternalID() string
	// PlanHint is the plan name carried in metadata, if any.
	PlanHint() string
	// ClaimedAmount is the amount stated by the payload. It is only used to
	// resolve a plan when the provider does not report one.
	ClaimedAmount() decimal.Decimal
	verifyRequest() provider.VerifyRequest
}

// CheckoutLinkEvent is a notification from the checkout-link provider.
type CheckoutLinkEvent struct {
	OrderNSU       string
	TransactionNSU string
	InvoiceSlug    string
	Amount         decimal.Decimal
	PaidAmount     decimal.Decimal
	Plan           string
	CaptureMethod  string
}

func (e CheckoutLinkEvent) Provider() string      { return model.ProviderInfinityPay }
func (e CheckoutLinkEvent) CorrelationID() string { return e.OrderNSU }
func (e CheckoutLinkEvent) ExternalID() string    { return e.TransactionNSU }
func (e CheckoutLinkEvent) PlanHint() string      { return e.Plan }

func (e CheckoutLinkEvent) ClaimedAmount() decimal.Decimal {
	if e.PaidAmount.IsPositive() {
		return e.PaidAmount
	}
	return e.Amount
}

func (e CheckoutLinkEvent) verifyRequest() provider.VerifyRequest {
	return provider.VerifyRequest{
		TransactionID: e.TransactionNSU,
		OrderID:       e.OrderNSU,
		InvoiceSlug:   e.InvoiceSlug,
	}
}

// ConnectEvent is a notification from the Connect marketplace provider.
type ConnectEvent struct {
	EventID           string
	AccountID         string
	SessionID         string
	PaymentIntentID   string
	ClientReferenceID string
	AmountTotal       decimal.Decimal
	Currency          string
	Plan              string
}

func (e ConnectEvent) Provider() string               { return model.ProviderStripe }
func (e ConnectEvent) CorrelationID() string          { return e.ClientReferenceID }
func (e ConnectEvent) ExternalID() string             { return e.PaymentIntentID }
func (e ConnectEvent) PlanHint() string               { return e.Plan }
func (e ConnectEvent) ClaimedAmount() decimal.Decimal { return e.AmountTotal }

func (e ConnectEvent) verifyRequest() provider.VerifyRequest {
	return provider.VerifyRequest{
		TransactionID: e.PaymentIntentID,
		OrderID:       e.ClientReferenceID,
		InvoiceSlug:   e.SessionID,
	}
}

// VerificationRequest builds the notification the client-triggered verify
// endpoint processes. The identifiers map the same way the webhooks do.
func VerificationRequest(providerName, transactionID, orderNSU, slug string) (PaymentNotification, bool) {
	switch providerName {
	case model.ProviderInfinityPay, "":
		return CheckoutLinkEvent{OrderNSU: orderNSU, TransactionNSU: transactionID, InvoiceSlug: slug}, true
	case model.ProviderStripe:
		return ConnectEvent{ClientReferenceID: orderNSU, PaymentIntentID: transactionID, SessionID: slug}, true
	}
	return nil, false
}
