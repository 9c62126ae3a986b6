package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/zayra/storefront/internal/domain/cart"
	"github.com/zayra/storefront/internal/domain/catalog"
	"github.com/zayra/storefront/internal/domain/order"
)

// createOrderRequest places an order from the caller's current cart.
type createOrderRequest struct {
	PaymentMethod   string        `json:"paymentMethod"`
	ShippingAddress order.Address `json:"shippingAddress"`
}

// paymentRequest is the gateway callback body.
type paymentRequest struct {
	Status string `json:"status"`
}

// CreateOrder handles POST /api/orders. The cart contents, prices and
// coupon are all resolved server-side; the body only picks the payment
// method and destination.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	method := order.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		writeError(w, http.StatusBadRequest, "unknown payment method")
		return
	}
	if req.ShippingAddress.Line1 == "" || req.ShippingAddress.City == "" ||
		req.ShippingAddress.State == "" || req.ShippingAddress.PostalCode == "" {
		writeError(w, http.StatusBadRequest, "incomplete shipping address")
		return
	}

	o, err := h.assembler.Assemble(r.Context(), userID, method, req.ShippingAddress)
	if err != nil {
		h.mapAssemblyError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// ListOrders handles GET /api/orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	os, err := h.orders.ByUser(r.Context(), userID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(os))
	for i := range os {
		resp[i] = toOrderResponse(&os[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder handles GET /api/orders/{orderID}. Orders belonging to other
// users are indistinguishable from missing ones.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	o, err := h.ownedOrder(w, r, userID)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ConfirmPayment handles POST /api/orders/{orderID}/payment with a body
// of {"status": "paid"} or {"status": "failed"}.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := h.ownedOrder(w, r, userID)
	if err != nil {
		return
	}

	switch req.Status {
	case "paid":
		err = h.machine.MarkPaid(r.Context(), o)
	case "failed":
		err = h.machine.MarkPaymentFailed(r.Context(), o)
	default:
		writeError(w, http.StatusBadRequest, "status must be \"paid\" or \"failed\"")
		return
	}
	if err != nil {
		h.mapTransitionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ownedOrder loads the path order and checks ownership, writing the
// error response itself on failure.
func (h *Handler) ownedOrder(w http.ResponseWriter, r *http.Request, userID string) (*order.Order, error) {
	orderID := chi.URLParam(r, "orderID")

	o, err := h.orders.ByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
		} else {
			internalError(w, r, err)
		}
		return nil, err
	}
	if o.UserID != userID {
		writeError(w, http.StatusNotFound, "order not found")
		return nil, order.ErrNotOwner
	}
	return o, nil
}

func (h *Handler) mapAssemblyError(w http.ResponseWriter, r *http.Request, err error) {
	var pnf *catalog.NotFoundError
	switch {
	case errors.Is(err, cart.ErrEmpty):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.As(err, &pnf):
		writeError(w, http.StatusUnprocessableEntity, pnf.Error())
	default:
		internalError(w, r, err)
	}
}

func (h *Handler) mapTransitionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrCancelled):
		writeError(w, http.StatusConflict, "order is cancelled")
	case errors.Is(err, order.ErrPaymentNotPending):
		writeError(w, http.StatusConflict, "payment is not awaiting confirmation")
	default:
		internalError(w, r, err)
	}
}
