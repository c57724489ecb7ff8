package settlement

import (
	"context"
	"errors"

	"github.com/amanuela97/golden-hive-settlement/internal/order"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement/dto"
)

// ErrUnknownPaymentIntent means an event referenced a payment intent with
// no payment records on our side. Redelivery cannot fix it, so it is
// acknowledged and logged instead of retried.
var ErrUnknownPaymentIntent = errors.New("no payment records for payment intent")

type UseCase interface {
	HandleCheckoutCompleted(ctx context.Context, eventID string, session *dto.CheckoutSession) error
	HandleRefundUpdated(ctx context.Context, eventID string, refund *dto.Refund) error
	HandlePaymentCaptured(ctx context.Context, eventID, paymentIntentID string) error
	HandlePaymentVoided(ctx context.Context, eventID, paymentIntentID string) error
}

// ProcessorClient is the outbound surface of the payment processor.
// Refunds are always re-listed in full rather than trusted from event
// payloads, which may be thin.
type ProcessorClient interface {
	GetPaymentIntent(ctx context.Context, id string) (*dto.PaymentIntent, error)
	ListSucceededRefunds(ctx context.Context, paymentIntentID string) ([]dto.Refund, error)
	AvailableBalance(ctx context.Context, currency string) (int64, error)
}

// Notifier dispatches fire-and-forget follow-up work. Implementations log
// failures; callers never treat them as settlement failures.
type Notifier interface {
	OrderConfirmation(ctx context.Context, orderID string, siblingOrderIDs []string) error
	InvoiceRequested(ctx context.Context, orderID string) error
}

// IsFatal reports whether redelivering the event could ever succeed.
// Fatal errors are acknowledged (logged loudly, no retry); everything else
// is returned as a handler failure so the processor redelivers.
func IsFatal(err error) bool {
	return errors.Is(err, order.ErrOrderNotFound) ||
		errors.Is(err, order.ErrDraftNotFound) ||
		errors.Is(err, dto.ErrUnresolvedScope) ||
		errors.Is(err, ErrUnknownPaymentIntent)
}
