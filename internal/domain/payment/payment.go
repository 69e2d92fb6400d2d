// Package payment implements the payment ledger and refund processor: capture
// attempts against open orders, the append-only attempt audit trail, and
// refunds that reopen orders.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/hanpos/hanpos/internal/domain/order"
)

// Method is how the customer pays. Provider metadata is only populated for
// non-cash methods.
type Method string

const (
	MethodCard     Method = "CARD"
	MethodCash     Method = "CASH"
	MethodTransfer Method = "TRANSFER"
	MethodPoint    Method = "POINT"
	MethodOther    Method = "OTHER"
)

// Valid reports whether m is a known method value.
func (m Method) Valid() bool {
	switch m {
	case MethodCard, MethodCash, MethodTransfer, MethodPoint, MethodOther:
		return true
	}
	return false
}

// Status is the outcome of a capture attempt. Payments are never mutated
// after creation; corrections happen through new payments or refunds.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
)

// Payment records one capture attempt against an order.
type Payment struct {
	ID                string
	OrderID           string
	Method            Method
	Amount            decimal.Decimal
	Status            Status
	ApprovedAt        *time.Time
	VANProvider       *string
	VANTxID           *string
	ApprovalCode      *string
	CardBrand         *string
	CardNumberMasked  *string
	InstallmentMonths int
	CreatedAt         time.Time
}

// Attempt is the append-only audit record of a capture attempt's request and
// response payloads. Written for reconciliation and debugging; never read by
// business logic.
type Attempt struct {
	ID              string
	PaymentID       string
	Status          Status
	RequestPayload  []byte
	ResponsePayload []byte
	CreatedAt       time.Time
}

// Refund records a partial or full reversal of an approved payment.
type Refund struct {
	ID         string
	PaymentID  string
	Amount     decimal.Decimal
	Reason     *string
	Status     Status
	ApprovedAt *time.Time
	VANTxID    *string
	CreatedAt  time.Time
}

// Sentinel errors for payment operations.
var (
	ErrNotFound             = errors.New("payment not found")
	ErrOrderNotOpen         = errors.New("order is not in OPEN status")
	ErrNotApproved          = errors.New("payment is not approved")
	ErrNonPositiveAmount    = errors.New("amount must be greater than 0")
	ErrNegativeInstallments = errors.New("installment months must not be negative")
)

// InvalidMethodError indicates an unknown payment method value.
type InvalidMethodError struct {
	Method Method
}

func (e *InvalidMethodError) Error() string {
	return fmt.Sprintf("unknown payment method %q", string(e.Method))
}

// InvalidAmountError indicates a refund exceeds the payment's remaining
// refundable balance.
type InvalidAmountError struct {
	Requested  decimal.Decimal
	Refundable decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("refund amount %s exceeds refundable balance %s",
		e.Requested.String(), e.Refundable.String())
}

// Approval is the outcome returned by the external payment processor.
type Approval struct {
	Status           Status
	VANProvider      *string
	VANTxID          *string
	ApprovalCode     *string
	CardBrand        *string
	CardNumberMasked *string
}

// Approver is the external payment-authorization collaborator. It is called
// synchronously inside the capture transaction and must be side-effect-free
// from the engine's point of view: real money movement belongs to the
// processor, so an aborted transaction leaves nothing to undo here.
type Approver interface {
	Authorize(ctx context.Context, method Method, amount decimal.Decimal) (*Approval, error)
}

// Tx exposes the repositories a payment operation needs, bound to a single
// transaction. The order repository is included because capture and refund
// rewrite the order's balance and status in the same atomic unit.
type Tx interface {
	Orders() order.Repository
	Payments() Repository
}

// Runner executes fn inside one transaction. A nil return from fn commits;
// any error rolls everything back and is returned unchanged.
type Runner interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Repository defines persistence operations for payments, attempts and
// refunds. Implementations obtained from a transaction handle are bound to
// that transaction.
type Repository interface {
	InsertPayment(ctx context.Context, p *Payment) error
	InsertAttempt(ctx context.Context, a *Attempt) error
	// GetPayment loads a payment scoped by its order, so a payment ID from
	// another order (or another store's order) is indistinguishable from a
	// missing one.
	GetPayment(ctx context.Context, paymentID, orderID string) (*Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
	InsertRefund(ctx context.Context, r *Refund) error
	// RefundedTotal sums the payment's prior APPROVED refunds.
	RefundedTotal(ctx context.Context, paymentID string) (decimal.Decimal, error)
}
