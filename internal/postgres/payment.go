package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hanpos/hanpos/internal/domain/payment"
)

const (
	paymentColumns = `id, order_id, method, amount, status, approved_at, van_provider, van_tx_id,
		approval_code, card_brand, card_number_masked, installment_months, created_at`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, method, amount, status, approved_at,
			van_provider, van_tx_id, approval_code, card_brand, card_number_masked,
			installment_months, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	insertAttemptSQL = `INSERT INTO payment_attempts (id, payment_id, status, request_payload,
			response_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getPaymentSQL = `SELECT ` + paymentColumns + ` FROM payments
		WHERE id = $1 AND order_id = $2`

	listPaymentsByOrderSQL = `SELECT ` + paymentColumns + ` FROM payments
		WHERE order_id = $1 ORDER BY created_at DESC`

	insertRefundSQL = `INSERT INTO refunds (id, payment_id, amount, reason, status, approved_at,
			van_tx_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	refundedTotalSQL = `SELECT COALESCE(SUM(amount), 0) FROM refunds
		WHERE payment_id = $1 AND status = 'APPROVED'`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	q querier
}

// InsertPayment persists one capture attempt's payment record.
func (r *PaymentRepository) InsertPayment(ctx context.Context, p *payment.Payment) error {
	_, err := r.q.Exec(ctx, insertPaymentSQL,
		p.ID, p.OrderID, p.Method, p.Amount, p.Status, p.ApprovedAt,
		p.VANProvider, p.VANTxID, p.ApprovalCode, p.CardBrand, p.CardNumberMasked,
		p.InstallmentMonths, p.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting payment %q", p.ID)
	}
	return nil
}

// InsertAttempt appends one capture audit record.
func (r *PaymentRepository) InsertAttempt(ctx context.Context, a *payment.Attempt) error {
	_, err := r.q.Exec(ctx, insertAttemptSQL,
		a.ID, a.PaymentID, a.Status, a.RequestPayload, a.ResponsePayload, a.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting payment attempt %q", a.ID)
	}
	return nil
}

// GetPayment returns the payment scoped by its order.
func (r *PaymentRepository) GetPayment(ctx context.Context, paymentID, orderID string) (*payment.Payment, error) {
	rows, err := r.q.Query(ctx, getPaymentSQL, paymentID, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "getting payment %q", paymentID)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting payment %q", paymentID)
	}
	return &p, nil
}

// ListByOrder returns the order's payments, newest first.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]payment.Payment, error) {
	rows, err := r.q.Query(ctx, listPaymentsByOrderSQL, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "listing payments")
	}
	return pgx.CollectRows(rows, scanPayment)
}

// InsertRefund persists one refund record.
func (r *PaymentRepository) InsertRefund(ctx context.Context, ref *payment.Refund) error {
	_, err := r.q.Exec(ctx, insertRefundSQL,
		ref.ID, ref.PaymentID, ref.Amount, ref.Reason, ref.Status,
		ref.ApprovedAt, ref.VANTxID, ref.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting refund %q", ref.ID)
	}
	return nil
}

// RefundedTotal sums the payment's prior approved refunds.
func (r *PaymentRepository) RefundedTotal(ctx context.Context, paymentID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, refundedTotalSQL, paymentID).Scan(&total); err != nil {
		return decimal.Zero, errors.Wrap(err, "summing refunds")
	}
	return total, nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &p.ApprovedAt,
		&p.VANProvider, &p.VANTxID, &p.ApprovalCode, &p.CardBrand, &p.CardNumberMasked,
		&p.InstallmentMonths, &p.CreatedAt,
	)
	return p, err
}
