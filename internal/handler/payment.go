package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hanpos/hanpos/internal/domain/payment"
)

type capturePaymentRequest struct {
	Method            payment.Method  `json:"method"`
	Amount            decimal.Decimal `json:"amount"`
	InstallmentMonths int             `json:"installmentMonths"`
}

type refundRequest struct {
	PaymentID string          `json:"paymentId"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    *string         `json:"reason"`
}

type paymentResponse struct {
	ID                string          `json:"id"`
	OrderID           string          `json:"orderId"`
	Method            payment.Method  `json:"method"`
	Amount            decimal.Decimal `json:"amount"`
	Status            payment.Status  `json:"status"`
	ApprovedAt        *time.Time      `json:"approvedAt"`
	VANProvider       *string         `json:"vanProvider"`
	VANTxID           *string         `json:"vanTxId"`
	ApprovalCode      *string         `json:"approvalCode"`
	CardBrand         *string         `json:"cardBrand"`
	CardNumberMasked  *string         `json:"cardNumberMasked"`
	InstallmentMonths int             `json:"installmentMonths"`
	CreatedAt         time.Time       `json:"createdAt"`
}

type refundResponse struct {
	ID         string          `json:"id"`
	PaymentID  string          `json:"paymentId"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     *string         `json:"reason"`
	Status     payment.Status  `json:"status"`
	ApprovedAt *time.Time      `json:"approvedAt"`
	VANTxID    *string         `json:"vanTxId"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func toPaymentResponse(p *payment.Payment) paymentResponse {
	return paymentResponse{
		ID:                p.ID,
		OrderID:           p.OrderID,
		Method:            p.Method,
		Amount:            p.Amount,
		Status:            p.Status,
		ApprovedAt:        p.ApprovedAt,
		VANProvider:       p.VANProvider,
		VANTxID:           p.VANTxID,
		ApprovalCode:      p.ApprovalCode,
		CardBrand:         p.CardBrand,
		CardNumberMasked:  p.CardNumberMasked,
		InstallmentMonths: p.InstallmentMonths,
		CreatedAt:         p.CreatedAt,
	}
}

func toRefundResponse(r *payment.Refund) refundResponse {
	return refundResponse{
		ID:         r.ID,
		PaymentID:  r.PaymentID,
		Amount:     r.Amount,
		Reason:     r.Reason,
		Status:     r.Status,
		ApprovedAt: r.ApprovedAt,
		VANTxID:    r.VANTxID,
		CreatedAt:  r.CreatedAt,
	}
}

func (h *Handler) capturePayment(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		writeForbidden(w)
		return
	}
	var req capturePaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.payments.Capture(r.Context(), storeID, r.PathValue("orderID"), payment.CaptureRequest{
		Method:            req.Method,
		Amount:            req.Amount,
		InstallmentMonths: req.InstallmentMonths,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (h *Handler) createRefund(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		writeForbidden(w)
		return
	}
	var req refundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PaymentID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "paymentId is required")
		return
	}
	ref, err := h.payments.Refund(r.Context(), storeID, r.PathValue("orderID"), payment.RefundRequest{
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRefundResponse(ref))
}
