package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderPaymentStatus
		to      OrderPaymentStatus
		allowed bool
	}{
		{"held can be captured", OrderPaymentHeld, OrderPaymentCompleted, true},
		{"held can be voided", OrderPaymentHeld, OrderPaymentVoid, true},
		{"held cannot be refunded directly", OrderPaymentHeld, OrderPaymentRefunded, false},
		{"held cannot be partially refunded", OrderPaymentHeld, OrderPaymentPartiallyRefunded, false},
		{"completed can be refunded", OrderPaymentCompleted, OrderPaymentRefunded, true},
		{"completed can be partially refunded", OrderPaymentCompleted, OrderPaymentPartiallyRefunded, true},
		{"completed cannot be voided", OrderPaymentCompleted, OrderPaymentVoid, false},
		{"completed cannot go back to held", OrderPaymentCompleted, OrderPaymentHeld, false},
		{"partial refund can continue", OrderPaymentPartiallyRefunded, OrderPaymentPartiallyRefunded, true},
		{"partial refund can finish", OrderPaymentPartiallyRefunded, OrderPaymentRefunded, true},
		{"refunded is terminal", OrderPaymentRefunded, OrderPaymentCompleted, false},
		{"void is terminal", OrderPaymentVoid, OrderPaymentCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAggregatePaymentStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []OrderPaymentStatus
		want     PaymentStatus
	}{
		{"no payments", nil, PaymentStatusPending},
		{"single held", []OrderPaymentStatus{OrderPaymentHeld}, PaymentStatusPending},
		{"single completed", []OrderPaymentStatus{OrderPaymentCompleted}, PaymentStatusPaid},
		{"single void", []OrderPaymentStatus{OrderPaymentVoid}, PaymentStatusVoid},
		{"single refunded", []OrderPaymentStatus{OrderPaymentRefunded}, PaymentStatusRefunded},
		{"partial refund", []OrderPaymentStatus{OrderPaymentPartiallyRefunded}, PaymentStatusPartiallyRefunded},
		{"refund beside intact payment", []OrderPaymentStatus{OrderPaymentRefunded, OrderPaymentCompleted}, PaymentStatusPartiallyRefunded},
		{"all refunded", []OrderPaymentStatus{OrderPaymentRefunded, OrderPaymentRefunded}, PaymentStatusRefunded},
		{"completed beside held", []OrderPaymentStatus{OrderPaymentCompleted, OrderPaymentHeld}, PaymentStatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := make([]OrderPayment, 0, len(tt.statuses))
			for _, s := range tt.statuses {
				payments = append(payments, OrderPayment{Status: s})
			}
			assert.Equal(t, tt.want, AggregatePaymentStatus(payments))
		})
	}
}
