package dto

import (
	"time"

	"github.com/amanuela97/golden-hive-settlement/internal/model"
)

// DraftConversion carries the fully prepared rows for a draft-to-order
// conversion. The repository assigns Order.OrderNumber from the sequence.
type DraftConversion struct {
	Draft  *model.DraftOrder
	Order  *model.Order
	Items  []model.OrderItem
	Events []model.OrderEvent
}

// PaymentSettlement is one payment state transition plus the order-side
// updates that must commit with it.
type PaymentSettlement struct {
	Payment      *model.OrderPayment
	PaymentIsNew bool

	OrderID            string
	OrderPaymentStatus model.PaymentStatus
	OrderStatus        *model.OrderStatus
	PaidAt             *time.Time

	Events []model.OrderEvent
}
