package model

// OrderPaymentStatus is the per-payment lifecycle state. Funds are first
// authorized (held), then either captured (completed) or voided. Refunds
// only apply to captured funds.
type OrderPaymentStatus string

const (
	OrderPaymentHeld              OrderPaymentStatus = "held"
	OrderPaymentCompleted         OrderPaymentStatus = "completed"
	OrderPaymentVoid              OrderPaymentStatus = "void"
	OrderPaymentRefunded          OrderPaymentStatus = "refunded"
	OrderPaymentPartiallyRefunded OrderPaymentStatus = "partially_refunded"
)

type TransferStatus string

const (
	TransferStatusHeld     TransferStatus = "held"
	TransferStatusReleased TransferStatus = "released"
)

// OrderPayment records one processor payment intent against one order.
type OrderPayment struct {
	BaseModel
	OrderID            string             `db:"order_id" json:"order_id"`
	Amount             int64              `db:"amount" json:"amount"`
	Currency           string             `db:"currency" json:"currency"`
	ProviderPaymentID  string             `db:"provider_payment_id" json:"provider_payment_id"`
	ProviderChargeID   *string            `db:"provider_charge_id" json:"provider_charge_id"`
	PlatformFeeAmount  int64              `db:"platform_fee_amount" json:"platform_fee_amount"`
	ProcessorFeeAmount int64              `db:"processor_fee_amount" json:"processor_fee_amount"`
	NetAmountToStore   int64              `db:"net_amount_to_store" json:"net_amount_to_store"`
	RefundedAmount     int64              `db:"refunded_amount" json:"refunded_amount"`
	Status             OrderPaymentStatus `db:"status" json:"status"`
	TransferStatus     TransferStatus     `db:"transfer_status" json:"transfer_status"`
}

// paymentTransitions encodes the legal state machine. Voiding is only
// possible before capture; refunds only after. refunded and void are
// terminal, partially_refunded can absorb further refunds.
var paymentTransitions = map[OrderPaymentStatus][]OrderPaymentStatus{
	OrderPaymentHeld:              {OrderPaymentCompleted, OrderPaymentVoid},
	OrderPaymentCompleted:         {OrderPaymentRefunded, OrderPaymentPartiallyRefunded},
	OrderPaymentPartiallyRefunded: {OrderPaymentRefunded, OrderPaymentPartiallyRefunded},
}

func (s OrderPaymentStatus) CanTransitionTo(next OrderPaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AggregatePaymentStatus derives an order's payment status from all of its
// payment records. An order may carry several payments across retries or
// multi-store splits, so the order-level status is never inferred from a
// single payment in isolation.
func AggregatePaymentStatus(payments []OrderPayment) PaymentStatus {
	if len(payments) == 0 {
		return PaymentStatusPending
	}

	allRefunded := true
	anyRefund := false
	anyCompleted := false
	allVoid := true

	for _, p := range payments {
		switch p.Status {
		case OrderPaymentRefunded:
			anyRefund = true
			allVoid = false
		case OrderPaymentPartiallyRefunded:
			anyRefund = true
			allRefunded = false
			allVoid = false
		case OrderPaymentCompleted:
			anyCompleted = true
			allRefunded = false
			allVoid = false
		case OrderPaymentVoid:
			allRefunded = false
		default:
			allRefunded = false
			allVoid = false
		}
	}

	switch {
	case allVoid:
		return PaymentStatusVoid
	case anyRefund && allRefunded:
		return PaymentStatusRefunded
	case anyRefund:
		return PaymentStatusPartiallyRefunded
	case anyCompleted:
		return PaymentStatusPaid
	default:
		return PaymentStatusPending
	}
}
