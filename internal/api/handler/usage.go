package handler

import (
	"context"
	"net/http"

	"github.com/edvin/billing/internal/api/request"
	"github.com/edvin/billing/internal/api/response"
	"github.com/edvin/billing/internal/model"
)

// UsageCounter maintains usage counters. *core.UsageService satisfies this
// interface.
type UsageCounter interface {
	Get(ctx context.Context, orgID string) (*model.Usage, error)
	ReserveSeat(ctx context.Context, orgID string) (*model.Usage, error)
	ReleaseSeat(ctx context.Context, orgID string) (*model.Usage, error)
	AddStorage(ctx context.Context, orgID string, bytes int64) (*model.Usage, error)
	ConsumeAICredits(ctx context.Context, orgID string, n int64) (*model.Usage, error)
}

type Usage struct {
	usage UsageCounter
}

func NewUsage(usage UsageCounter) *Usage {
	return &Usage{usage: usage}
}

func (h *Usage) write(w http.ResponseWriter, u *model.Usage, err error) {
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, u)
}

// Get handles GET /usage.
func (h *Usage) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrg(w, r)
	if !ok {
		return
	}
	u, err := h.usage.Get(r.Context(), orgID)
	h.write(w, u, err)
}

// ReserveSeat handles POST /usage/seats.
func (h *Usage) ReserveSeat(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrg(w, r)
	if !ok {
		return
	}
	u, err := h.usage.ReserveSeat(r.Context(), orgID)
	h.write(w, u, err)
}

// ReleaseSeat handles DELETE /usage/seats.
func (h *Usage) ReleaseSeat(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrg(w, r)
	if !ok {
		return
	}
	u, err := h.usage.ReleaseSeat(r.Context(), orgID)
	h.write(w, u, err)
}

// AddStorage handles POST /usage/storage.
func (h *Usage) AddStorage(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrg(w, r)
	if !ok {
		return
	}
	var req request.AddStorage
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.usage.AddStorage(r.Context(), orgID, req.Bytes)
	h.write(w, u, err)
}

// ConsumeAICredits handles POST /usage/ai-credits.
func (h *Usage) ConsumeAICredits(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrg(w, r)
	if !ok {
		return
	}
	var req request.ConsumeAICredits
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.usage.ConsumeAICredits(r.Context(), orgID, req.Credits)
	h.write(w, u, err)
}
