package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/amanuela97/golden-hive-settlement/internal/ledger"
	"github.com/amanuela97/golden-hive-settlement/internal/ledger/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

var _ ledger.Repository = (*PGRepository)(nil)

func (r *PGRepository) GetBalance(ctx context.Context, storeID string) (*model.SellerBalance, error) {
	var bal model.SellerBalance
	err := r.DB.GetContext(ctx, &bal, `SELECT * FROM seller_balances WHERE store_id = $1`, storeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No ledger activity yet; caller treats as zero balance
		}
		return nil, err
	}
	return &bal, nil
}

func (r *PGRepository) AppendTransaction(ctx context.Context, txn *model.BalanceTransaction) (*model.SellerBalance, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	bal, err := r.AppendInTx(ctx, tx, txn)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return bal, nil
}

func (r *PGRepository) AppendInTx(ctx context.Context, tx *sqlx.Tx, txn *model.BalanceTransaction) (*model.SellerBalance, error) {
	// Ensure the balance row exists, then lock it. The row lock is what
	// serializes concurrent settlements for the same store; concurrent
	// appends would otherwise race on balance_after.
	_, err := tx.ExecContext(ctx, `
        INSERT INTO seller_balances (id, store_id, currency, available_balance, pending_balance, updated_at)
        VALUES ($1, $2, $3, 0, 0, $4)
        ON CONFLICT (store_id) DO NOTHING
    `, uuid.New().String(), txn.StoreID, txn.Currency, txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure balance row: %w", err)
	}

	var bal model.SellerBalance
	err = tx.GetContext(ctx, &bal, `SELECT * FROM seller_balances WHERE store_id = $1 FOR UPDATE`, txn.StoreID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock balance row: %w", err)
	}

	txn.BalanceAfter = bal.AvailableBalance + bal.PendingBalance + txn.Amount

	if txn.Status == model.TransactionStatusPending {
		bal.PendingBalance += txn.Amount
	} else {
		bal.AvailableBalance += txn.Amount
	}
	bal.UpdatedAt = txn.CreatedAt

	_, err = tx.NamedExecContext(ctx, `
        INSERT INTO balance_transactions (
            id, store_id, type, amount, currency, balance_after,
            order_id, order_payment_id, status, available_at, description, created_at
        )
        VALUES (
            :id, :store_id, :type, :amount, :currency, :balance_after,
            :order_id, :order_payment_id, :status, :available_at, :description, :created_at
        )
    `, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, `
        UPDATE seller_balances
        SET available_balance = :available_balance,
            pending_balance = :pending_balance,
            updated_at = :updated_at
        WHERE store_id = :store_id
    `, &bal)
	if err != nil {
		return nil, fmt.Errorf("failed to update cached balance: %w", err)
	}

	return &bal, nil
}

func (r *PGRepository) ListTransactions(ctx context.Context, f *dto.TransactionFilters) ([]model.BalanceTransaction, int, error) {
	var items []model.BalanceTransaction
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.StoreID != "" {
		conditions = append(conditions, "store_id = :store_id")
		args["store_id"] = f.StoreID
	}
	if f.Type != "" {
		conditions = append(conditions, "type = :type")
		args["type"] = f.Type
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM balance_transactions" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM balance_transactions" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) ReleaseDueHolds(ctx context.Context, now time.Time) (int64, error) {
	// Flip matured pending entries to available and move their sum from
	// the pending bucket to the available bucket in the same statement.
	res, err := r.DB.ExecContext(ctx, `
        WITH matured AS (
            UPDATE balance_transactions
            SET status = 'available'
            WHERE status = 'pending' AND available_at <= $1
            RETURNING store_id, amount
        ),
        totals AS (
            SELECT store_id, SUM(amount) AS amount FROM matured GROUP BY store_id
        )
        UPDATE seller_balances sb
        SET available_balance = sb.available_balance + totals.amount,
            pending_balance = sb.pending_balance - totals.amount,
            updated_at = $1
        FROM totals
        WHERE sb.store_id = totals.store_id
    `, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
