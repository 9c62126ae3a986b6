// Package handler binds the order engine to its HTTP surface. Handlers
// decode requests, delegate to the domain layer, and map typed domain
// errors to status codes. No business rules live here.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/zayra/storefront/internal/domain/order"
	"github.com/zayra/storefront/internal/domain/user"
)

// userIDHeader carries the caller identity, set by the upstream auth
// layer. Requests without it are rejected.
const userIDHeader = "X-User-ID"

// Handler serves the customer and admin order endpoints.
type Handler struct {
	orders    order.Repository
	users     user.Repository
	assembler *order.Assembler
	machine   *order.StateMachine
	simulator *order.Simulator
	security  *Security
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders order.Repository,
	users user.Repository,
	assembler *order.Assembler,
	machine *order.StateMachine,
	simulator *order.Simulator,
	security *Security,
) *Handler {
	return &Handler{
		orders:    orders,
		users:     users,
		assembler: assembler,
		machine:   machine,
		simulator: simulator,
		security:  security,
	}
}

// Routes mounts the API routes on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{orderID}", h.GetOrder)
			r.Post("/{orderID}/payment", h.ConfirmPayment)
		})

		r.Post("/track", h.TrackOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.security.RequireAdminKey)
			r.Patch("/orders/{orderID}/status", h.AdminSetStatus)
		})
	})
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Code: code, Message: message})
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// callerID extracts the authenticated user id, or writes a 401 and
// returns false.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(userIDHeader)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}
	return id, true
}

// internalError logs the cause and hides it from the client.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
