package dto

import (
	"time"

	"github.com/amanuela97/golden-hive-settlement/internal/model"
)

// RecordTransactionInput describes a ledger append. Amount is a positive
// magnitude; the sign is derived from Type.
type RecordTransactionInput struct {
	StoreID        string
	Type           model.TransactionType
	Amount         int64
	Currency       string
	OrderID        *string
	OrderPaymentID *string
	Description    string
	AvailableAt    *time.Time
}

type TransactionFilters struct {
	StoreID  string
	Type     string
	Page     int
	PageSize int
}

// StoreBalance is the externally-reported balance. AvailableBalance is the
// ledger-derived value capped by the processor's real-time balance; if the
// processor could not be reached it reports zero rather than risking an
// over-payout.
type StoreBalance struct {
	StoreID           string     `json:"store_id"`
	Currency          string     `json:"currency"`
	AvailableBalance  int64      `json:"available_balance"`
	PendingBalance    int64      `json:"pending_balance"`
	LedgerAvailable   int64      `json:"ledger_available"`
	CappedByProcessor bool       `json:"capped_by_processor"`
	LastPayoutAt      *time.Time `json:"last_payout_at"`
	LastPayoutAmount  *int64     `json:"last_payout_amount"`
}
