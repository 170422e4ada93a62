package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/billing/internal/api/request"
	"github.com/edvin/billing/internal/api/response"
	"github.com/edvin/billing/internal/core"
	"github.com/edvin/billing/internal/model"
	"github.com/edvin/billing/internal/plan"
	"github.com/edvin/billing/internal/provider"
)

// CheckoutCreator creates provider checkouts. *core.CheckoutService
// satisfies this interface.
type CheckoutCreator interface {
	Create(ctx context.Context, orgID string, params core.CheckoutParams) (string, error)
}

// StatusReader loads billing status. *core.EntitlementService satisfies
// this interface.
type StatusReader interface {
	Status(ctx context.Context, orgID string) (*core.BillingStatus, error)
}

// EventLister pages through the ledger. *core.LedgerService satisfies this
// interface.
type EventLister interface {
	ListEvents(ctx context.Context, orgID string, limit int, cursor string) ([]model.BillingEvent, bool, error)
}

type Billing struct {
	processor PaymentProcessor
	checkout  CheckoutCreator
	status    StatusReader
	events    EventLister
}

func NewBilling(processor PaymentProcessor, checkout CheckoutCreator, status StatusReader, events EventLister) *Billing {
	return &Billing{processor: processor, checkout: checkout, status: status, events: events}
}

type verifyResponse struct {
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	Plan         string     `json:"plan,omitempty"`
	AccessEndsAt *time.Time `json:"access_ends_at,omitempty"`
}

// Verify handles POST /billing/verify. A payment that is not confirmed yet
// is reported as pending, not as an error.
func (h *Billing) Verify(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrg(w, r)
	if !ok {
		return
	}

	var req request.VerifyPayment
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, _, err := provider.ParseOrderNSU(req.OrderNSU)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if target != orgID {
		response.WriteError(w, http.StatusForbidden, "order belongs to another organization")
		return
	}

	n, ok := core.VerificationRequest(req.Provider, req.TransactionNSU, req.OrderNSU, req.Slug)
	if !ok {
		response.WriteServiceError(w, core.ErrUnknownProvider)
		return
	}

	res := h.processor.Process(r.Context(), n)
	switch {
	case res.Outcome == core.OutcomeFailed:
		response.WriteError(w, http.StatusInternalServerError, "could not verify payment, try again")
	case res.Applied():
		response.WriteJSON(w, http.StatusOK, verifyResponse{Status: "confirmed", Plan: res.Plan, AccessEndsAt: res.AccessEndsAt})
	default:
		response.WriteJSON(w, http.StatusOK, verifyResponse{Status: "pending", Reason: res.Reason})
	}
}

// Checkout handles POST /billing/checkout.
func (h *Billing) Checkout(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrg(w, r)
	if !ok {
		return
	}

	var req request.CreateCheckout
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	url, err := h.checkout.Create(r.Context(), orgID, core.CheckoutParams{
		Plan:        req.Plan,
		Provider:    req.Provider,
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("organization", orgID).Msg("create checkout")
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

type statusResponse struct {
	OrganizationID     string      `json:"organization_id"`
	Plan               *string     `json:"plan"`
	BillingStatus      string      `json:"billing_status"`
	SubscriptionStatus string      `json:"subscription_status"`
	AccessEndsAt       *time.Time  `json:"access_ends_at"`
	TrialEndsAt        *time.Time  `json:"trial_ends_at"`
	HasActiveAccess    bool        `json:"has_active_access"`
	Limits             plan.Plan   `json:"limits"`
	Usage              model.Usage `json:"usage"`
}

// Status handles GET /billing/status.
func (h *Billing) Status(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrg(w, r)
	if !ok {
		return
	}

	st, err := h.status.Status(r.Context(), orgID)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	org := st.Organization
	response.WriteJSON(w, http.StatusOK, statusResponse{
		OrganizationID:     org.ID,
		Plan:               org.Plan,
		BillingStatus:      org.BillingStatus,
		SubscriptionStatus: org.SubscriptionStatus,
		AccessEndsAt:       org.AccessEndsAt,
		TrialEndsAt:        org.TrialEndsAt,
		HasActiveAccess:    st.HasActiveAccess,
		Limits:             st.Limits,
		Usage:              *st.Usage,
	})
}

// Events handles GET /billing/events.
func (h *Billing) Events(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrg(w, r)
	if !ok {
		return
	}

	pg := request.ParsePagination(r)
	events, hasMore, err := h.events.ListEvents(r.Context(), orgID, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(events) > 0 {
		nextCursor = events[len(events)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, events, nextCursor, hasMore)
}
