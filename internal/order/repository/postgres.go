package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amanuela97/golden-hive-settlement/internal/model"
	"github.com/amanuela97/golden-hive-settlement/internal/order"
	"github.com/amanuela97/golden-hive-settlement/internal/order/dto"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

var _ order.Repository = (*PGRepository)(nil)

func (r *PGRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	err := r.DB.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *PGRepository) GetOrders(ctx context.Context, ids []string) ([]model.Order, error) {
	if len(ids) == 0 {
		return []model.Order{}, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM orders WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	var orders []model.Order
	err = r.DB.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

func (r *PGRepository) GetDraft(ctx context.Context, id string) (*model.DraftOrder, error) {
	var d model.DraftOrder
	err := r.DB.GetContext(ctx, &d, `SELECT * FROM draft_orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrDraftNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PGRepository) GetDraftItems(ctx context.Context, draftID string) ([]model.DraftOrderItem, error) {
	var items []model.DraftOrderItem
	err := r.DB.SelectContext(ctx, &items,
		`SELECT * FROM draft_order_items WHERE draft_order_id = $1 ORDER BY id`, draftID)
	return items, err
}

func (r *PGRepository) ConvertDraft(ctx context.Context, conv *dto.DraftConversion, inTx order.TxFunc) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()

	// The conditional update is the one-way guard: whichever delivery
	// flips completed first wins, every other one rolls back untouched.
	res, err := tx.ExecContext(ctx, `
        UPDATE draft_orders
        SET completed = true, converted_to_order_id = $1, updated_at = $2
        WHERE id = $3 AND completed = false
    `, conv.Order.ID, now, conv.Draft.ID)
	if err != nil {
		return fmt.Errorf("failed to mark draft completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return order.ErrDraftAlreadyCompleted
	}

	if err := tx.GetContext(ctx, &conv.Order.OrderNumber, `SELECT nextval('order_numbers')`); err != nil {
		return fmt.Errorf("failed to assign order number: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, `
        INSERT INTO orders (
            id, order_number, store_id, currency,
            subtotal_amount, discount_amount, shipping_amount, tax_amount, total_amount,
            status, payment_status, fulfillment_status,
            customer_email, customer_name, shipping_address, billing_address,
            placed_at, created_at, updated_at
        )
        VALUES (
            :id, :order_number, :store_id, :currency,
            :subtotal_amount, :discount_amount, :shipping_amount, :tax_amount, :total_amount,
            :status, :payment_status, :fulfillment_status,
            :customer_email, :customer_name, :shipping_address, :billing_address,
            :placed_at, :created_at, :updated_at
        )
    `, conv.Order)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range conv.Items {
		_, err = tx.NamedExecContext(ctx, `
            INSERT INTO order_items (
                id, order_id, product_id, variant_id, title, quantity, unit_price, total_price
            )
            VALUES (
                :id, :order_id, :product_id, :variant_id, :title, :quantity, :unit_price, :total_price
            )
        `, &conv.Items[i])
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if inTx != nil {
		if err := inTx(ctx, tx); err != nil {
			return err
		}
	}

	for i := range conv.Events {
		if err := appendEventTx(ctx, tx, &conv.Events[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PGRepository) GetPaymentByProvider(ctx context.Context, orderID, providerPaymentID string) (*model.OrderPayment, error) {
	var p model.OrderPayment
	err := r.DB.GetContext(ctx, &p,
		`SELECT * FROM order_payments WHERE order_id = $1 AND provider_payment_id = $2`,
		orderID, providerPaymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No record yet; caller creates one
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGRepository) GetPaymentsByProvider(ctx context.Context, providerPaymentID string) ([]model.OrderPayment, error) {
	var payments []model.OrderPayment
	err := r.DB.SelectContext(ctx, &payments,
		`SELECT * FROM order_payments WHERE provider_payment_id = $1 ORDER BY created_at`,
		providerPaymentID)
	return payments, err
}

func (r *PGRepository) ListPayments(ctx context.Context, orderID string) ([]model.OrderPayment, error) {
	var payments []model.OrderPayment
	err := r.DB.SelectContext(ctx, &payments,
		`SELECT * FROM order_payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	return payments, err
}

func (r *PGRepository) SaveSettlement(ctx context.Context, s *dto.PaymentSettlement, inTx order.TxFunc) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if s.PaymentIsNew {
		_, err = tx.NamedExecContext(ctx, `
            INSERT INTO order_payments (
                id, order_id, amount, currency, provider_payment_id, provider_charge_id,
                platform_fee_amount, processor_fee_amount, net_amount_to_store,
                refunded_amount, status, transfer_status, created_at, updated_at
            )
            VALUES (
                :id, :order_id, :amount, :currency, :provider_payment_id, :provider_charge_id,
                :platform_fee_amount, :processor_fee_amount, :net_amount_to_store,
                :refunded_amount, :status, :transfer_status, :created_at, :updated_at
            )
        `, s.Payment)
	} else {
		_, err = tx.NamedExecContext(ctx, `
            UPDATE order_payments
            SET status = :status,
                transfer_status = :transfer_status,
                refunded_amount = :refunded_amount,
                provider_charge_id = :provider_charge_id,
                updated_at = :updated_at
            WHERE id = :id
        `, s.Payment)
	}
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}

	query := `UPDATE orders SET payment_status = :payment_status, updated_at = :updated_at`
	args := map[string]interface{}{
		"id":             s.OrderID,
		"payment_status": s.OrderPaymentStatus,
		"updated_at":     time.Now(),
	}
	if s.OrderStatus != nil {
		query += `, status = :status`
		args["status"] = *s.OrderStatus
	}
	if s.PaidAt != nil {
		query += `, paid_at = :paid_at`
		args["paid_at"] = *s.PaidAt
	}
	query += ` WHERE id = :id`

	if _, err := tx.NamedExecContext(ctx, query, args); err != nil {
		return fmt.Errorf("failed to update order payment status: %w", err)
	}

	if inTx != nil {
		if err := inTx(ctx, tx); err != nil {
			return err
		}
	}

	for i := range s.Events {
		if err := appendEventTx(ctx, tx, &s.Events[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PGRepository) AppendEvent(ctx context.Context, ev *model.OrderEvent) error {
	_, err := r.DB.NamedExecContext(ctx, eventInsertQuery, ev)
	return err
}

const eventInsertQuery = `
    INSERT INTO order_events (
        id, order_id, type, visibility, message, metadata, created_by, created_at
    )
    VALUES (
        :id, :order_id, :type, :visibility, :message, :metadata, :created_by, :created_at
    )
`

func appendEventTx(ctx context.Context, tx *sqlx.Tx, ev *model.OrderEvent) error {
	if _, err := tx.NamedExecContext(ctx, eventInsertQuery, ev); err != nil {
		return fmt.Errorf("failed to append order event: %w", err)
	}
	return nil
}
