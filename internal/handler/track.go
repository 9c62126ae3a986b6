package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/zayra/storefront/internal/domain/order"
	"github.com/zayra/storefront/internal/domain/user"
)

// trackRequest is the public tracking lookup: no session required, the
// order id plus the owner's email act as the shared secret.
type trackRequest struct {
	OrderID string `json:"orderId"`
	Email   string `json:"email"`
}

// TrackOrder handles POST /api/track. A lookup is also the simulator's
// trigger: shipment progress is advanced lazily on read, so the caller
// always sees the state the elapsed time implies.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.OrderID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "orderId and email are required")
		return
	}

	o, err := h.orders.ByID(r.Context(), req.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
		} else {
			internalError(w, r, err)
		}
		return
	}

	owner, err := h.users.ByID(r.Context(), o.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
		} else {
			internalError(w, r, err)
		}
		return
	}
	if !strings.EqualFold(owner.Email, req.Email) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.simulator.Advance(r.Context(), o)

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
