// Package handler exposes the engine over JSON HTTP. It owns request
// decoding, tenant scoping against the session, and the error envelope;
// business rules live in the domain services.
package handler

import (
	"context"
	"net/http"

	"github.com/hanpos/hanpos/internal/auth"
	"github.com/hanpos/hanpos/internal/domain/order"
	"github.com/hanpos/hanpos/internal/domain/payment"
)

// OrderService is the order engine surface the handler needs.
type OrderService interface {
	Create(ctx context.Context, storeID string, req order.CreateRequest) (*order.Order, error)
	Get(ctx context.Context, storeID, id string) (*order.Order, error)
	List(ctx context.Context, storeID string, f order.Filter) ([]order.Order, error)
	Update(ctx context.Context, storeID, id string, expectedVersion int, patch order.Patch) (*order.Order, error)
}

// PaymentService is the payment engine surface the handler needs.
type PaymentService interface {
	Capture(ctx context.Context, storeID, orderID string, req payment.CaptureRequest) (*payment.Payment, error)
	Refund(ctx context.Context, storeID, orderID string, req payment.RefundRequest) (*payment.Refund, error)
	ListByOrder(ctx context.Context, storeID, orderID string) ([]payment.Payment, error)
}

// Handler wires the engine services to HTTP routes.
type Handler struct {
	orders   OrderService
	payments PaymentService
}

// New constructs a Handler.
func New(orders OrderService, payments PaymentService) *Handler {
	return &Handler{orders: orders, payments: payments}
}

// Register attaches all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/stores/{storeID}/orders", h.createOrder)
	mux.HandleFunc("GET /api/stores/{storeID}/orders", h.listOrders)
	mux.HandleFunc("GET /api/stores/{storeID}/orders/{orderID}", h.getOrder)
	mux.HandleFunc("PATCH /api/stores/{storeID}/orders/{orderID}", h.updateOrder)
	mux.HandleFunc("POST /api/stores/{storeID}/orders/{orderID}/payments", h.capturePayment)
	mux.HandleFunc("POST /api/stores/{storeID}/orders/{orderID}/refunds", h.createRefund)
}

// storeScope returns the store the request may act on: the path segment,
// provided it matches the session's tenant. Any mismatch is a 403 so that
// path guessing cannot cross store boundaries.
func storeScope(r *http.Request) (string, bool) {
	storeID := r.PathValue("storeID")
	session, ok := auth.FromContext(r.Context())
	if !ok || storeID == "" || session.StoreID != storeID {
		return "", false
	}
	return storeID, true
}
