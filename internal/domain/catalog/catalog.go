// Package catalog exposes read-only access to a store's menu. The order
// engine never mutates the catalog; it snapshots names and prices into order
// lines at creation time, so later menu edits never rewrite history.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the referenced catalog record does not exist in the
// store, is from another store, or has been removed.
var ErrNotFound = errors.New("catalog record not found")

// Item is a priced menu record. Single items and sets share the shape.
type Item struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Option is a modifier with a price delta, possibly negative.
type Option struct {
	ID         string
	Name       string
	PriceDelta decimal.Decimal
}

// Reader resolves store-scoped catalog references at order-pricing time.
type Reader interface {
	GetItem(ctx context.Context, storeID, id string) (*Item, error)
	GetSet(ctx context.Context, storeID, id string) (*Item, error)
	GetOption(ctx context.Context, storeID, id string) (*Option, error)
}
