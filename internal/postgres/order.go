package postgres

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/hanpos/hanpos/internal/domain/order"
)

const (
	orderColumns = `id, store_id, order_no, status, priority, channel, table_id, customer_id,
		note, subtotal, tax, total, paid_amount, change_amount, version, closed_at, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (id, store_id, order_no, status, priority, channel,
			table_id, customer_id, note, subtotal, tax, total, paid_amount, change_amount,
			version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, item_id, set_id, name_snapshot,
			qty, unit_price, total_price, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	insertOrderItemOptionSQL = `INSERT INTO order_item_options (id, order_item_id, option_id,
			name_snapshot, price_delta)
		VALUES ($1, $2, $3, $4, $5)`

	sameDayCountSQL = `SELECT count(*) FROM orders
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3`

	storeTimezoneSQL = `SELECT timezone FROM stores WHERE id = $1`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND store_id = $2`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	getOrderItemsSQL = `SELECT id, order_id, item_id, set_id, name_snapshot, qty, unit_price, total_price, note
		FROM order_items WHERE order_id = ANY($1) ORDER BY created_at, id`

	getItemOptionsSQL = `SELECT id, order_item_id, option_id, name_snapshot, price_delta
		FROM order_item_options WHERE order_item_id = ANY($1) ORDER BY created_at, id`

	updateOrderSQL = `UPDATE orders
		SET status = $3, priority = $4, note = $5, paid_amount = $6, change_amount = $7,
			version = $8, closed_at = $9, updated_at = $10
		WHERE id = $1 AND store_id = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	q querier
}

// Insert persists the order with its items and options. A unique violation
// on (store_id, order_no) surfaces as order.ErrNumberTaken so the service
// can retry with a fresh same-day count.
func (r *OrderRepository) Insert(ctx context.Context, o *order.Order) error {
	_, err := r.q.Exec(ctx, insertOrderSQL,
		o.ID, o.StoreID, o.OrderNo, o.Status, o.Priority, o.Channel,
		o.TableID, o.CustomerID, o.Note, o.Subtotal, o.Tax, o.Total,
		o.PaidAmount, o.ChangeAmount, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_store_order_no_key") {
			return order.ErrNumberTaken
		}
		return errors.Wrapf(err, "inserting order %q", o.ID)
	}

	for i := range o.Items {
		it := &o.Items[i]
		_, err := r.q.Exec(ctx, insertOrderItemSQL,
			it.ID, o.ID, it.ItemID, it.SetID, it.NameSnapshot,
			it.Qty, it.UnitPrice, it.TotalPrice, it.Note,
		)
		if err != nil {
			return errors.Wrapf(err, "inserting order item %q", it.ID)
		}
		for j := range it.Options {
			opt := &it.Options[j]
			_, err := r.q.Exec(ctx, insertOrderItemOptionSQL,
				opt.ID, it.ID, opt.OptionID, opt.NameSnapshot, opt.PriceDelta,
			)
			if err != nil {
				return errors.Wrapf(err, "inserting order item option %q", opt.ID)
			}
		}
	}

	return nil
}

// SameDayCount counts the store's orders created in [from, to).
func (r *OrderRepository) SameDayCount(ctx context.Context, storeID string, from, to time.Time) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sameDayCountSQL, storeID, from, to).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "counting same-day orders")
	}
	return n, nil
}

// StoreTimezone returns the store's configured IANA timezone name.
func (r *OrderRepository) StoreTimezone(ctx context.Context, storeID string) (string, error) {
	var tz string
	if err := r.q.QueryRow(ctx, storeTimezoneSQL, storeID).Scan(&tz); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", order.ErrNotFound
		}
		return "", errors.Wrapf(err, "getting store %q timezone", storeID)
	}
	return tz, nil
}

// Get returns the store-scoped order with its items and options.
func (r *OrderRepository) Get(ctx context.Context, storeID, id string) (*order.Order, error) {
	return r.get(ctx, getOrderSQL, storeID, id)
}

// GetForUpdate returns the order with its row locked for the remainder of
// the transaction.
func (r *OrderRepository) GetForUpdate(ctx context.Context, storeID, id string) (*order.Order, error) {
	return r.get(ctx, getOrderForUpdateSQL, storeID, id)
}

func (r *OrderRepository) get(ctx context.Context, sql, storeID, id string) (*order.Order, error) {
	rows, err := r.q.Query(ctx, sql, id, storeID)
	if err != nil {
		return nil, errors.Wrapf(err, "getting order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", id)
	}

	if err := r.loadItems(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns the store's orders matching the filter, items included.
func (r *OrderRepository) List(ctx context.Context, storeID string, f order.Filter) ([]order.Order, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders WHERE store_id = $1`)
	args := []any{storeID}

	if f.Status != nil {
		args = append(args, *f.Status)
		sb.WriteString(` AND status = $` + strconv.Itoa(len(args)))
	}
	if f.Priority != nil {
		args = append(args, *f.Priority)
		sb.WriteString(` AND priority = $` + strconv.Itoa(len(args)))
	}

	dir := " ASC"
	if f.Desc {
		dir = " DESC"
	}
	switch f.SortBy {
	case "priority":
		// Enum values sort by urgency, not alphabetically.
		sb.WriteString(` ORDER BY CASE priority
			WHEN 'URGENT' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'NORMAL' THEN 2 ELSE 3 END` + dir +
			`, created_at DESC`)
	default:
		sb.WriteString(` ORDER BY created_at` + dir)
	}

	args = append(args, f.Limit)
	sb.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	args = append(args, f.Offset)
	sb.WriteString(` OFFSET $` + strconv.Itoa(len(args)))

	rows, err := r.q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}

	refs := make([]*order.Order, len(out))
	for i := range out {
		refs[i] = &out[i]
	}
	if err := r.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the order's mutable columns.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.q.Exec(ctx, updateOrderSQL,
		o.ID, o.StoreID, o.Status, o.Priority, o.Note,
		o.PaidAmount, o.ChangeAmount, o.Version, o.ClosedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "updating order %q", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// loadItems attaches items and their options to the given orders.
func (r *OrderRepository) loadItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byOrder := make(map[string]*order.Order, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		byOrder[o.ID] = o
		ids[i] = o.ID
	}

	rows, err := r.q.Query(ctx, getOrderItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "loading order items")
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return errors.Wrap(err, "loading order items")
	}
	if len(items) == 0 {
		return nil
	}

	byItem := make(map[string]int, len(items))
	itemIDs := make([]string, len(items))
	for i := range items {
		itemIDs[i] = items[i].ID
	}

	optRows, err := r.q.Query(ctx, getItemOptionsSQL, itemIDs)
	if err != nil {
		return errors.Wrap(err, "loading item options")
	}
	opts, err := pgx.CollectRows(optRows, scanItemOption)
	if err != nil {
		return errors.Wrap(err, "loading item options")
	}

	for i := range items {
		byItem[items[i].ID] = i
	}
	for _, opt := range opts {
		if i, ok := byItem[opt.OrderItemID]; ok {
			items[i].Options = append(items[i].Options, opt)
		}
	}
	for i := range items {
		if o, ok := byOrder[items[i].OrderID]; ok {
			o.Items = append(o.Items, items[i])
		}
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.StoreID, &o.OrderNo, &o.Status, &o.Priority, &o.Channel,
		&o.TableID, &o.CustomerID, &o.Note, &o.Subtotal, &o.Tax, &o.Total,
		&o.PaidAmount, &o.ChangeAmount, &o.Version, &o.ClosedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ItemID, &it.SetID, &it.NameSnapshot,
		&it.Qty, &it.UnitPrice, &it.TotalPrice, &it.Note,
	)
	return it, err
}

func scanItemOption(row pgx.CollectableRow) (order.ItemOption, error) {
	var opt order.ItemOption
	err := row.Scan(&opt.ID, &opt.OrderItemID, &opt.OptionID, &opt.NameSnapshot, &opt.PriceDelta)
	return opt, err
}
