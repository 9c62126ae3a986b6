package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/zayra/storefront/internal/domain/order"
)

// adminStatusRequest forces an order to a fulfilment status.
type adminStatusRequest struct {
	Status string `json:"status"`
}

// AdminSetStatus handles PATCH /api/admin/orders/{orderID}/status.
// Setting "cancelled" routes through Cancel and is terminal.
func (h *Handler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	var req adminStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	status := order.Status(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	orderID := chi.URLParam(r, "orderID")
	o, err := h.orders.ByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
		} else {
			internalError(w, r, err)
		}
		return
	}

	if status == order.StatusCancelled {
		err = h.machine.Cancel(r.Context(), o)
	} else {
		err = h.machine.AdminSetStatus(r.Context(), o, status)
	}
	if err != nil {
		h.mapTransitionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
