package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edvin/billing/internal/core"
	"github.com/edvin/billing/internal/provider"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteAction writes an error that tells the client what to do next, e.g.
// "renew" for a lapsed plan.
func WriteAction(w http.ResponseWriter, status int, message, action string) {
	WriteJSON(w, status, map[string]string{"error": message, "action": action})
}

// WriteServiceError maps service errors to HTTP responses. Unrecognized
// errors become a generic 500 so internals never leak to the client.
func WriteServiceError(w http.ResponseWriter, err error) {
	var lapsed *core.LapsedError
	var limit *core.LimitError

	switch {
	case errors.As(err, &lapsed):
		WriteAction(w, http.StatusPaymentRequired, lapsed.Error(), "renew")
	case errors.Is(err, core.ErrAccessLapsed):
		WriteAction(w, http.StatusPaymentRequired, err.Error(), "renew")
	case errors.As(err, &limit):
		WriteAction(w, http.StatusConflict, limit.Error(), "upgrade")
	case errors.Is(err, core.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrDuplicateEvent):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrUnknownPlan),
		errors.Is(err, core.ErrUnknownProvider),
		errors.Is(err, core.ErrInvalidRedirect):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrForbidden):
		WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, provider.ErrBadGateway):
		WriteError(w, http.StatusBadGateway, "payment provider unavailable, try again later")
	default:
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// PaginatedResponse wraps a list with pagination metadata.
type PaginatedResponse struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// WritePaginated writes a paginated JSON response.
func WritePaginated(w http.ResponseWriter, status int, items any, nextCursor string, hasMore bool) {
	WriteJSON(w, status, PaginatedResponse{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	})
}
