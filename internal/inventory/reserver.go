package inventory

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrInsufficientStock = errors.New("insufficient stock to reserve")

type Item struct {
	VariantID string
	Quantity  int
}

// Reserver places inventory holds for an order's line items. Reserve runs
// inside the caller's transaction so a failed reservation aborts the whole
// draft conversion and never leaves an order without its stock.
type Reserver interface {
	Reserve(ctx context.Context, tx *sqlx.Tx, items []Item, storeID, reason, orderID string) error
}
