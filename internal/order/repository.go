package order

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/amanuela97/golden-hive-settlement/internal/model"
	"github.com/amanuela97/golden-hive-settlement/internal/order/dto"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrDraftNotFound = errors.New("draft order not found")

	// ErrDraftAlreadyCompleted signals a concurrent or replayed
	// conversion. Callers treat it as success and return the existing
	// order, never as a failure.
	ErrDraftAlreadyCompleted = errors.New("draft order already completed")
)

// TxFunc runs extra writes inside a repository-owned transaction, so
// inventory reservations and ledger entries commit atomically with the
// order mutations they belong to.
type TxFunc func(ctx context.Context, tx *sqlx.Tx) error

type Repository interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrders(ctx context.Context, ids []string) ([]model.Order, error)
	GetDraft(ctx context.Context, id string) (*model.DraftOrder, error)
	GetDraftItems(ctx context.Context, draftID string) ([]model.DraftOrderItem, error)

	// ConvertDraft atomically creates the order with its items and
	// events, runs inTx (inventory reservation), and marks the draft
	// completed. Returns ErrDraftAlreadyCompleted without side effects
	// if the draft was converted by an earlier or concurrent delivery.
	ConvertDraft(ctx context.Context, conv *dto.DraftConversion, inTx TxFunc) error

	GetPaymentByProvider(ctx context.Context, orderID, providerPaymentID string) (*model.OrderPayment, error)
	GetPaymentsByProvider(ctx context.Context, providerPaymentID string) ([]model.OrderPayment, error)
	ListPayments(ctx context.Context, orderID string) ([]model.OrderPayment, error)

	// SaveSettlement persists a payment state transition together with
	// the owning order's status updates and timeline events, running
	// inTx (ledger writes) in the same transaction.
	SaveSettlement(ctx context.Context, s *dto.PaymentSettlement, inTx TxFunc) error

	AppendEvent(ctx context.Context, ev *model.OrderEvent) error
}
