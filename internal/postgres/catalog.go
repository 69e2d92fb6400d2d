package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/hanpos/hanpos/internal/domain/catalog"
)

const (
	getMenuItemSQL = `SELECT id, name, price FROM menu_items
		WHERE id = $1 AND store_id = $2`

	getMenuSetSQL = `SELECT id, name, price FROM menu_sets
		WHERE id = $1 AND store_id = $2`

	getMenuOptionSQL = `SELECT id, name, price_delta FROM menu_options
		WHERE id = $1 AND store_id = $2`
)

var _ catalog.Reader = (*CatalogReader)(nil)

// CatalogReader implements catalog.Reader against the menu tables. It is
// handed out transaction-bound so order creation snapshots a consistent
// catalog state.
type CatalogReader struct {
	q querier
}

// GetItem returns the menu item's current name and price.
func (r *CatalogReader) GetItem(ctx context.Context, storeID, id string) (*catalog.Item, error) {
	return r.getPriced(ctx, getMenuItemSQL, storeID, id)
}

// GetSet returns the menu set's current name and price.
func (r *CatalogReader) GetSet(ctx context.Context, storeID, id string) (*catalog.Item, error) {
	return r.getPriced(ctx, getMenuSetSQL, storeID, id)
}

// GetOption returns the option's current name and price delta.
func (r *CatalogReader) GetOption(ctx context.Context, storeID, id string) (*catalog.Option, error) {
	var o catalog.Option
	err := r.q.QueryRow(ctx, getMenuOptionSQL, id, storeID).Scan(&o.ID, &o.Name, &o.PriceDelta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting option %q", id)
	}
	return &o, nil
}

func (r *CatalogReader) getPriced(ctx context.Context, sql, storeID, id string) (*catalog.Item, error) {
	var it catalog.Item
	err := r.q.QueryRow(ctx, sql, id, storeID).Scan(&it.ID, &it.Name, &it.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting catalog record %q", id)
	}
	return &it, nil
}
