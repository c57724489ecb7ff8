package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/amanuela97/golden-hive-settlement/internal/ledger/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
)

// NewTransaction builds a signed ledger entry from an append request.
// Entries with a future AvailableAt start out pending and are rolled into
// the available balance by ReleaseDueHolds once matured.
func NewTransaction(input *dto.RecordTransactionInput, now time.Time) *model.BalanceTransaction {
	status := model.TransactionStatusAvailable
	if input.AvailableAt != nil && input.AvailableAt.After(now) {
		status = model.TransactionStatusPending
	}

	return &model.BalanceTransaction{
		ID:             uuid.New().String(),
		StoreID:        input.StoreID,
		Type:           input.Type,
		Amount:         input.Type.SignedAmount(input.Amount),
		Currency:       input.Currency,
		OrderID:        input.OrderID,
		OrderPaymentID: input.OrderPaymentID,
		Status:         status,
		AvailableAt:    input.AvailableAt,
		Description:    input.Description,
		CreatedAt:      now,
	}
}
