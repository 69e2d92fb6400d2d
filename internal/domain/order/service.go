package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// taxRate is the single fixed tax computation: 10%, rounded half-up to whole
// currency units.
var taxRate = decimal.NewFromFloat(0.1)

// numberRetries bounds the creation retry loop around order-number
// collisions. The count-based sequence can race under concurrent creations;
// the unique constraint aborts one writer and it retries with a fresh count.
const numberRetries = 3

// CreateItem is one requested order line. Exactly one of ItemID/SetID must
// be set.
type CreateItem struct {
	ItemID    *string
	SetID     *string
	Qty       int
	Note      *string
	OptionIDs []string
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	TableID    *string
	CustomerID *string
	Channel    Channel
	Note       *string
	Items      []CreateItem
}

// Patch holds the optimistically-versioned mutable order fields. Nil fields
// are left unchanged.
type Patch struct {
	Status   *Status
	Priority *Priority
	Note     *string
}

// Cache is an optional read-through cache for order aggregates. Mutating
// operations invalidate; implementations must tolerate being a plain
// best-effort layer (a miss or a failed set is never an error).
type Cache interface {
	GetOrder(ctx context.Context, storeID, id string) (*Order, bool)
	SetOrder(ctx context.Context, o *Order)
	Invalidate(ctx context.Context, storeID, id string)
}

type nopCache struct{}

func (nopCache) GetOrder(context.Context, string, string) (*Order, bool) { return nil, false }
func (nopCache) SetOrder(context.Context, *Order)                        {}
func (nopCache) Invalidate(context.Context, string, string)              {}

// NopCache returns a Cache that never hits. Used when no cache is configured.
func NopCache() Cache { return nopCache{} }

// Service encapsulates order creation, retrieval and optimistic mutation.
type Service struct {
	runner Runner
	cache  Cache
	now    func() time.Time
}

// NewService creates an order Service. cache may be nil.
func NewService(runner Runner, cache Cache) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	return &Service{
		runner: runner,
		cache:  cache,
		now:    time.Now,
	}
}

// Create prices the requested lines against the current catalog, computes
// totals, assigns the daily order number and persists the whole aggregate
// atomically. Creation retries a bounded number of times when the
// count-based number collides with a concurrent creation.
func (s *Service) Create(ctx context.Context, storeID string, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, line := range req.Items {
		if line.Qty < 1 {
			return nil, &InvalidLineError{Index: i, Reason: "quantity must be at least 1"}
		}
		if (line.ItemID == nil) == (line.SetID == nil) {
			return nil, &InvalidLineError{Index: i, Reason: "exactly one of itemId or setId is required"}
		}
	}
	channel := req.Channel
	if channel == "" {
		channel = ChannelPOS
	}
	if !channel.Valid() {
		return nil, &InvalidArgumentError{Field: "channel", Value: string(channel)}
	}

	var created *Order
	var err error
	for attempt := 0; attempt < numberRetries; attempt++ {
		created, err = s.createOnce(ctx, storeID, channel, req)
		if !errors.Is(err, ErrNumberTaken) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) createOnce(ctx context.Context, storeID string, channel Channel, req CreateRequest) (*Order, error) {
	var created *Order
	err := s.runner.RunInTx(ctx, func(tx Tx) error {
		now := s.now()
		local, err := storeLocalTime(ctx, tx, storeID, now)
		if err != nil {
			return err
		}
		from, to := DayBounds(local)
		count, err := tx.Orders().SameDayCount(ctx, storeID, from, to)
		if err != nil {
			return errors.Wrap(err, "count same-day orders")
		}

		o := &Order{
			ID:           uuid.New().String(),
			StoreID:      storeID,
			OrderNo:      FormatNumber(local, count+1),
			Status:       StatusOpen,
			Priority:     PriorityNormal,
			Channel:      channel,
			TableID:      req.TableID,
			CustomerID:   req.CustomerID,
			Note:         req.Note,
			PaidAmount:   decimal.Zero,
			ChangeAmount: decimal.Zero,
			Version:      0,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		subtotal := decimal.Zero
		for _, line := range req.Items {
			item, err := s.priceLine(ctx, tx, storeID, o.ID, line)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(item.TotalPrice)
			o.Items = append(o.Items, *item)
		}

		o.Subtotal = subtotal
		o.Tax = subtotal.Mul(taxRate).Round(0)
		o.Total = subtotal.Add(o.Tax)

		if err := tx.Orders().Insert(ctx, o); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// defaultTimezone backs stores whose timezone value is empty.
const defaultTimezone = "Asia/Seoul"

// storeLocalTime converts ref into the store's business-day timezone, so the
// numbering sequence rolls over at the store's local midnight rather than
// the server's.
func storeLocalTime(ctx context.Context, tx Tx, storeID string, ref time.Time) (time.Time, error) {
	tz, err := tx.Orders().StoreTimezone(ctx, storeID)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "store timezone")
	}
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "load timezone %q", tz)
	}
	return ref.In(loc), nil
}

// priceLine resolves one requested line into a snapshotted order item: base
// price from the referenced item or set, plus the sum of option deltas.
func (s *Service) priceLine(ctx context.Context, tx Tx, storeID, orderID string, line CreateItem) (*Item, error) {
	var (
		base decimal.Decimal
		name string
	)
	switch {
	case line.ItemID != nil:
		rec, err := tx.Catalog().GetItem(ctx, storeID, *line.ItemID)
		if err != nil {
			return nil, errors.Wrapf(err, "menu item %s", *line.ItemID)
		}
		base, name = rec.Price, rec.Name
	case line.SetID != nil:
		rec, err := tx.Catalog().GetSet(ctx, storeID, *line.SetID)
		if err != nil {
			return nil, errors.Wrapf(err, "menu set %s", *line.SetID)
		}
		base, name = rec.Price, rec.Name
	}

	item := &Item{
		ID:           uuid.New().String(),
		OrderID:      orderID,
		ItemID:       line.ItemID,
		SetID:        line.SetID,
		NameSnapshot: name,
		Qty:          line.Qty,
		Note:         line.Note,
	}

	delta := decimal.Zero
	for _, optID := range line.OptionIDs {
		opt, err := tx.Catalog().GetOption(ctx, storeID, optID)
		if err != nil {
			return nil, errors.Wrapf(err, "option %s", optID)
		}
		delta = delta.Add(opt.PriceDelta)
		item.Options = append(item.Options, ItemOption{
			ID:           uuid.New().String(),
			OrderItemID:  item.ID,
			OptionID:     &optID,
			NameSnapshot: opt.Name,
			PriceDelta:   opt.PriceDelta,
		})
	}

	item.UnitPrice = base.Add(delta)
	item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
	return item, nil
}

// Get returns the store-scoped order aggregate, consulting the cache first.
func (s *Service) Get(ctx context.Context, storeID, id string) (*Order, error) {
	if o, ok := s.cache.GetOrder(ctx, storeID, id); ok {
		return o, nil
	}

	var found *Order
	err := s.runner.RunInTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().Get(ctx, storeID, id)
		if err != nil {
			return err
		}
		found = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.SetOrder(ctx, found)
	return found, nil
}

// List returns the store's orders matching the filter.
func (s *Service) List(ctx context.Context, storeID string, f Filter) ([]Order, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var out []Order
	err := s.runner.RunInTx(ctx, func(tx Tx) error {
		res, err := tx.Orders().List(ctx, storeID, f)
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

// Update applies the patch if and only if expectedVersion matches the stored
// version, then increments the version by exactly 1. The read, check and
// write all happen inside one transaction on a locked row; a mismatch fails
// with VersionConflictError carrying the authoritative version and mutates
// nothing.
func (s *Service) Update(ctx context.Context, storeID, id string, expectedVersion int, patch Patch) (*Order, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, &InvalidArgumentError{Field: "status", Value: string(*patch.Status)}
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, &InvalidArgumentError{Field: "priority", Value: string(*patch.Priority)}
	}

	var updated *Order
	err := s.runner.RunInTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, storeID, id)
		if err != nil {
			return err
		}
		if o.Version != expectedVersion {
			return &VersionConflictError{Current: o.Version}
		}

		if patch.Status != nil {
			o.Status = *patch.Status
		}
		if patch.Priority != nil {
			o.Priority = *patch.Priority
		}
		if patch.Note != nil {
			o.Note = patch.Note
		}

		now := s.now()
		if o.Status.Terminal() {
			o.ClosedAt = &now
		}
		o.Version++
		o.UpdatedAt = now

		if err := tx.Orders().Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, storeID, id)
	return updated, nil
}
