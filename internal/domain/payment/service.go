package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hanpos/hanpos/internal/domain/order"
)

// CaptureRequest holds the input for one capture attempt.
type CaptureRequest struct {
	Method            Method
	Amount            decimal.Decimal
	InstallmentMonths int
}

// RefundRequest holds the input for refunding part or all of a payment.
type RefundRequest struct {
	PaymentID string
	Amount    decimal.Decimal
	Reason    *string
}

// Service is the payment ledger and refund processor. Capture and refund are
// server-authoritative: they never require a version token from the caller,
// but every order update still runs on a locked row inside one transaction
// so they cannot lose updates racing hand edits.
type Service struct {
	runner   Runner
	approver Approver
	cache    order.Cache
	now      func() time.Time
}

// NewService creates a payment Service. cache may be nil.
func NewService(runner Runner, approver Approver, cache order.Cache) *Service {
	if cache == nil {
		cache = order.NopCache()
	}
	return &Service{
		runner:   runner,
		approver: approver,
		cache:    cache,
		now:      time.Now,
	}
}

// Capture records one payment attempt against an open order. The approval
// call, the payment and attempt inserts, and the order balance update form a
// single atomic unit. Declined captures are persisted for the audit trail
// but leave the order untouched.
func (s *Service) Capture(ctx context.Context, storeID, orderID string, req CaptureRequest) (*Payment, error) {
	if !req.Method.Valid() {
		return nil, &InvalidMethodError{Method: req.Method}
	}
	if !req.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if req.InstallmentMonths < 0 {
		return nil, ErrNegativeInstallments
	}

	var captured *Payment
	err := s.runner.RunInTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, storeID, orderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusOpen {
			return ErrOrderNotOpen
		}

		approval, err := s.approver.Authorize(ctx, req.Method, req.Amount)
		if err != nil {
			return errors.Wrap(err, "authorize")
		}

		now := s.now()
		p := &Payment{
			ID:                uuid.New().String(),
			OrderID:           o.ID,
			Method:            req.Method,
			Amount:            req.Amount,
			Status:            approval.Status,
			VANProvider:       approval.VANProvider,
			VANTxID:           approval.VANTxID,
			ApprovalCode:      approval.ApprovalCode,
			CardBrand:         approval.CardBrand,
			CardNumberMasked:  approval.CardNumberMasked,
			InstallmentMonths: req.InstallmentMonths,
			CreatedAt:         now,
		}
		if approval.Status == StatusApproved {
			p.ApprovedAt = &now
		}
		if err := tx.Payments().InsertPayment(ctx, p); err != nil {
			return errors.Wrap(err, "insert payment")
		}

		if err := s.recordAttempt(ctx, tx, p, req, approval, now); err != nil {
			return err
		}

		if approval.Status == StatusApproved {
			o.PaidAmount = o.PaidAmount.Add(req.Amount)
			if o.PaidAmount.GreaterThanOrEqual(o.Total) {
				o.Status = order.StatusPaid
				o.ClosedAt = &now
				if req.Method == MethodCash && o.PaidAmount.GreaterThan(o.Total) {
					o.ChangeAmount = o.PaidAmount.Sub(o.Total)
				}
			}
			o.Version++
			o.UpdatedAt = now
			if err := tx.Orders().Update(ctx, o); err != nil {
				return errors.Wrap(err, "update order balance")
			}
		}

		captured = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, storeID, orderID)
	return captured, nil
}

// recordAttempt appends the capture audit record regardless of outcome.
func (s *Service) recordAttempt(ctx context.Context, tx Tx, p *Payment, req CaptureRequest, approval *Approval, now time.Time) error {
	reqPayload, err := json.Marshal(map[string]any{
		"method":            p.Method,
		"amount":            req.Amount,
		"installmentMonths": req.InstallmentMonths,
	})
	if err != nil {
		return errors.Wrap(err, "marshal attempt request")
	}
	respPayload, err := json.Marshal(approval)
	if err != nil {
		return errors.Wrap(err, "marshal attempt response")
	}
	attempt := &Attempt{
		ID:              uuid.New().String(),
		PaymentID:       p.ID,
		Status:          approval.Status,
		RequestPayload:  reqPayload,
		ResponsePayload: respPayload,
		CreatedAt:       now,
	}
	if err := tx.Payments().InsertAttempt(ctx, attempt); err != nil {
		return errors.Wrap(err, "insert payment attempt")
	}
	return nil
}

// Refund reverses part or all of an approved payment and reopens the order:
// any refund invalidates the fully-paid guarantee, so the order goes back to
// OPEN regardless of remaining balance. The refund is validated against the
// payment's remaining refundable balance (amount minus prior approved
// refunds), so repeated partial refunds cannot over-refund a payment.
func (s *Service) Refund(ctx context.Context, storeID, orderID string, req RefundRequest) (*Refund, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	var refunded *Refund
	err := s.runner.RunInTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, storeID, orderID)
		if err != nil {
			return err
		}

		p, err := tx.Payments().GetPayment(ctx, req.PaymentID, o.ID)
		if err != nil {
			return err
		}
		if p.Status != StatusApproved {
			return ErrNotApproved
		}

		prior, err := tx.Payments().RefundedTotal(ctx, p.ID)
		if err != nil {
			return errors.Wrap(err, "sum prior refunds")
		}
		refundable := p.Amount.Sub(prior)
		if req.Amount.GreaterThan(refundable) {
			return &InvalidAmountError{Requested: req.Amount, Refundable: refundable}
		}

		now := s.now()
		vanTxID := "RF-" + uuid.New().String()
		r := &Refund{
			ID:         uuid.New().String(),
			PaymentID:  p.ID,
			Amount:     req.Amount,
			Reason:     req.Reason,
			Status:     StatusApproved,
			ApprovedAt: &now,
			VANTxID:    &vanTxID,
			CreatedAt:  now,
		}
		if err := tx.Payments().InsertRefund(ctx, r); err != nil {
			return errors.Wrap(err, "insert refund")
		}

		o.PaidAmount = o.PaidAmount.Sub(req.Amount)
		o.Status = order.StatusOpen
		o.ClosedAt = nil
		o.Version++
		o.UpdatedAt = now
		if err := tx.Orders().Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order balance")
		}

		refunded = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, storeID, orderID)
	return refunded, nil
}

// ListByOrder returns the order's payments, newest first, scoped by store.
func (s *Service) ListByOrder(ctx context.Context, storeID, orderID string) ([]Payment, error) {
	var out []Payment
	err := s.runner.RunInTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().Get(ctx, storeID, orderID)
		if err != nil {
			return err
		}
		res, err := tx.Payments().ListByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
