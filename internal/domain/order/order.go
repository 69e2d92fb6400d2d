// Package order implements the order aggregate: line items priced from
// catalog snapshots, per-store daily numbering, and optimistic-concurrency
// mutation.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/hanpos/hanpos/internal/domain/catalog"
)

// Status is the order lifecycle state. CANCELLED and VOID are terminal;
// PAID can revert to OPEN through a refund.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusVoid      Status = "VOID"
)

// Terminal reports whether s closes the order for good.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusVoid
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPaid, StatusCancelled, StatusVoid:
		return true
	}
	return false
}

// Priority orders tickets on kitchen displays.
type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// Valid reports whether p is a known priority value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Channel is the origin of the order.
type Channel string

const (
	ChannelPOS      Channel = "POS"
	ChannelKiosk    Channel = "KIOSK"
	ChannelQR       Channel = "QR"
	ChannelDelivery Channel = "DELIVERY"
)

// Valid reports whether c is a known channel value.
func (c Channel) Valid() bool {
	switch c {
	case ChannelPOS, ChannelKiosk, ChannelQR, ChannelDelivery:
		return true
	}
	return false
}

// Order is a single customer transaction. Version is the optimistic
// concurrency token: it starts at 0 and every mutating update increments it
// by exactly 1.
type Order struct {
	ID           string
	StoreID      string
	OrderNo      string
	Status       Status
	Priority     Priority
	Channel      Channel
	TableID      *string
	CustomerID   *string
	Note         *string
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
	PaidAmount   decimal.Decimal
	ChangeAmount decimal.Decimal
	Version      int
	ClosedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Items []Item
}

// Item is one order line. Exactly one of ItemID/SetID references the catalog
// record the line was priced from. UnitPrice already includes the summed
// option deltas, so TotalPrice = UnitPrice * Qty.
type Item struct {
	ID           string
	OrderID      string
	ItemID       *string
	SetID        *string
	NameSnapshot string
	Qty          int
	UnitPrice    decimal.Decimal
	TotalPrice   decimal.Decimal
	Note         *string

	Options []ItemOption
}

// ItemOption is a modifier snapshot captured from the catalog at creation.
type ItemOption struct {
	ID           string
	OrderItemID  string
	OptionID     *string
	NameSnapshot string
	PriceDelta   decimal.Decimal
}

// Sentinel errors for order operations.
var (
	ErrNotFound    = errors.New("order not found")
	ErrEmptyItems  = errors.New("items required")
	ErrNumberTaken = errors.New("order number already taken")
)

// InvalidLineError indicates a requested order line is malformed: bad
// quantity, or not exactly one of itemId/setId set.
type InvalidLineError struct {
	Index  int
	Reason string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("invalid order line %d: %s", e.Index, e.Reason)
}

// InvalidArgumentError indicates a request field holds a value outside its
// allowed set.
type InvalidArgumentError struct {
	Field string
	Value string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// VersionConflictError indicates an optimistic-concurrency mismatch. Current
// carries the authoritative version so the caller can re-fetch and retry
// without a second round trip.
type VersionConflictError struct {
	Current int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("order has been modified by another user (current version %d)", e.Current)
}

// Filter narrows and orders a store-scoped order listing.
type Filter struct {
	Status   *Status
	Priority *Priority
	SortBy   string // "createdAt" (default) or "priority"
	Desc     bool
	Limit    int // 1..100, default 20
	Offset   int
}

// Tx exposes the repositories an order operation needs, bound to a single
// transaction. Reads through them observe a consistent snapshot sufficient
// for the version checks the service performs.
type Tx interface {
	Catalog() catalog.Reader
	Orders() Repository
}

// Runner executes fn inside one transaction. A nil return from fn commits;
// any error rolls everything back and is returned unchanged.
type Runner interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Repository defines persistence operations for orders. Implementations
// obtained from a transaction handle are bound to that transaction.
type Repository interface {
	// Insert persists the order with all its items and options. It returns
	// ErrNumberTaken when (storeID, orderNo) collides with a concurrent
	// creation.
	Insert(ctx context.Context, o *Order) error
	// SameDayCount counts the store's orders created in [from, to).
	SameDayCount(ctx context.Context, storeID string, from, to time.Time) (int64, error)
	// StoreTimezone returns the store's IANA timezone name, which defines
	// the business day the order numbering sequence resets on.
	StoreTimezone(ctx context.Context, storeID string) (string, error)
	Get(ctx context.Context, storeID, id string) (*Order, error)
	// GetForUpdate loads the order with a row lock so the read-check-write
	// sequences in updates and payment capture are race-free.
	GetForUpdate(ctx context.Context, storeID, id string) (*Order, error)
	List(ctx context.Context, storeID string, f Filter) ([]Order, error)
	// Update writes the order's mutable columns and its version.
	Update(ctx context.Context, o *Order) error
}
