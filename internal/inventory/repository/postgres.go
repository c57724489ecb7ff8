package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/amanuela97/golden-hive-settlement/internal/inventory"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
)

type PGReserver struct {
	DB *sqlx.DB
}

func NewPGReserver(db *sqlx.DB) *PGReserver {
	return &PGReserver{DB: db}
}

var _ inventory.Reserver = (*PGReserver)(nil)

func (r *PGReserver) Reserve(ctx context.Context, tx *sqlx.Tx, items []inventory.Item, storeID, reason, orderID string) error {
	now := time.Now()

	for _, item := range items {
		qty := float64(item.Quantity)

		// The availability predicate in the WHERE clause makes the
		// reservation atomic: no row updated means not enough stock.
		var productID string
		var quantity, reserved float64
		err := tx.QueryRowxContext(ctx, `
            UPDATE inventory
            SET reserved_quantity = reserved_quantity + $1, updated_at = $2
            WHERE store_id = $3 AND variant_id = $4 AND quantity - reserved_quantity >= $1
            RETURNING product_id, quantity, reserved_quantity
        `, qty, now, storeID, item.VariantID).Scan(&productID, &quantity, &reserved)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("variant %s: %w", item.VariantID, inventory.ErrInsufficientStock)
			}
			return fmt.Errorf("failed to reserve variant %s: %w", item.VariantID, err)
		}

		variantID := item.VariantID
		refType := "order"
		movement := &model.InventoryMovement{
			ID:             uuid.New().String(),
			StoreID:        storeID,
			ProductID:      productID,
			VariantID:      &variantID,
			MovementType:   "reservation",
			QuantityChange: -qty,
			QuantityBefore: quantity - reserved + qty,
			QuantityAfter:  quantity - reserved,
			ReferenceType:  &refType,
			ReferenceID:    &orderID,
			Notes:          reason,
			CreatedAt:      now,
		}

		_, err = tx.NamedExecContext(ctx, `
            INSERT INTO inventory_movements (
                id, store_id, product_id, variant_id,
                movement_type, quantity_change, quantity_before, quantity_after,
                reference_type, reference_id, notes, created_by, created_at
            )
            VALUES (
                :id, :store_id, :product_id, :variant_id,
                :movement_type, :quantity_change, :quantity_before, :quantity_after,
                :reference_type, :reference_id, :notes, :created_by, :created_at
            )
        `, movement)
		if err != nil {
			return fmt.Errorf("failed to log reservation movement: %w", err)
		}
	}

	return nil
}
