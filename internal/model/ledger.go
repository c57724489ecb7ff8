package model

import "time"

// TransactionType classifies a ledger entry. order_payment is the only
// credit type; everything else reduces the seller's balance.
type TransactionType string

const (
	TransactionOrderPayment  TransactionType = "order_payment"
	TransactionPlatformFee   TransactionType = "platform_fee"
	TransactionStripeFee     TransactionType = "stripe_fee"
	TransactionRefund        TransactionType = "refund"
	TransactionPayout        TransactionType = "payout"
	TransactionShippingLabel TransactionType = "shipping_label"
	TransactionDispute       TransactionType = "dispute"
	TransactionAdjustment    TransactionType = "adjustment"
)

func (t TransactionType) IsCredit() bool {
	return t == TransactionOrderPayment
}

// SignedAmount applies the type's sign to a positive magnitude.
func (t TransactionType) SignedAmount(amount int64) int64 {
	if t.IsCredit() {
		return amount
	}
	return -amount
}

type TransactionStatus string

const (
	TransactionStatusAvailable TransactionStatus = "available"
	TransactionStatusPending   TransactionStatus = "pending"
)

// BalanceTransaction is one immutable row in a store's ledger. Corrections
// are new offsetting entries, never edits. BalanceAfter snapshots the
// store's running total (available + pending) at write time.
type BalanceTransaction struct {
	ID             string            `db:"id" json:"id"`
	StoreID        string            `db:"store_id" json:"store_id"`
	Type           TransactionType   `db:"type" json:"type"`
	Amount         int64             `db:"amount" json:"amount"`
	Currency       string            `db:"currency" json:"currency"`
	BalanceAfter   int64             `db:"balance_after" json:"balance_after"`
	OrderID        *string           `db:"order_id" json:"order_id"`
	OrderPaymentID *string           `db:"order_payment_id" json:"order_payment_id"`
	Status         TransactionStatus `db:"status" json:"status"`
	AvailableAt    *time.Time        `db:"available_at" json:"available_at"`
	Description    string            `db:"description" json:"description"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}

// SellerBalance caches the balance derived from the ledger. It is only
// written inside the same transaction as a ledger append.
type SellerBalance struct {
	ID               string     `db:"id" json:"id"`
	StoreID          string     `db:"store_id" json:"store_id"`
	Currency         string     `db:"currency" json:"currency"`
	AvailableBalance int64      `db:"available_balance" json:"available_balance"`
	PendingBalance   int64      `db:"pending_balance" json:"pending_balance"`
	LastPayoutAt     *time.Time `db:"last_payout_at" json:"last_payout_at"`
	LastPayoutAmount *int64     `db:"last_payout_amount" json:"last_payout_amount"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
