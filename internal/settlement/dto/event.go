package dto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Recognized inbound event types. Anything else is acknowledged and
// ignored so the processor does not retry forever.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventRefundUpdated     = "refund.updated"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentVoided     = "payment.voided"
)

// Envelope is the processor's event wrapper: { id, type, data: { object } }.
type Envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type Metadata map[string]string

type CheckoutSession struct {
	ID              string   `json:"id"`
	PaymentIntentID string   `json:"payment_intent"`
	AmountTotal     int64    `json:"amount_total"`
	Currency        string   `json:"currency"`
	Metadata        Metadata `json:"metadata"`
}

const (
	IntentStatusRequiresCapture = "requires_capture"
	IntentStatusSucceeded       = "succeeded"
)

type PaymentIntent struct {
	ID             string   `json:"id"`
	Amount         int64    `json:"amount"`
	Currency       string   `json:"currency"`
	Status         string   `json:"status"`
	LatestChargeID string   `json:"latest_charge"`
	Metadata       Metadata `json:"metadata"`
}

type Refund struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"payment_intent"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

// StoreShare is one store's slice of a multi-store checkout.
type StoreShare struct {
	ProcessorAccountID string   `json:"stripeAccountId"`
	Amount             int64    `json:"amount"`
	OrderIDs           []string `json:"orderIds"`
}

// PaymentScope is the strongly typed resolution of the checkout metadata.
// It is resolved once at intake; downstream code never re-parses the raw
// metadata blobs.
type PaymentScope struct {
	DraftID   string
	OrderID   string
	OrderIDs  []string
	Breakdown map[string]StoreShare
}

func (s *PaymentScope) MultiStore() bool {
	return len(s.Breakdown) > 0
}

var ErrUnresolvedScope = errors.New("event metadata references no draft, order, or store breakdown")

// ResolveScope reads the payment scope out of event metadata. The
// processor truncates oversized metadata, so fields may live on either the
// checkout session or the payment intent; the session is checked first.
func ResolveScope(session, intent Metadata) (*PaymentScope, error) {
	get := func(key string) string {
		if v, ok := session[key]; ok && v != "" {
			return v
		}
		return intent[key]
	}

	scope := &PaymentScope{
		DraftID: get("draftId"),
		OrderID: get("orderId"),
	}

	if get("multiStore") == "true" {
		raw := get("storeBreakdown")
		if raw == "" {
			return nil, fmt.Errorf("multiStore is set but storeBreakdown is missing: %w", ErrUnresolvedScope)
		}
		if err := json.Unmarshal([]byte(raw), &scope.Breakdown); err != nil {
			return nil, fmt.Errorf("invalid storeBreakdown metadata: %w", err)
		}
	}

	if raw := get("orderIds"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &scope.OrderIDs); err != nil {
			return nil, fmt.Errorf("invalid orderIds metadata: %w", err)
		}
	}

	if scope.DraftID == "" && scope.OrderID == "" && len(scope.OrderIDs) == 0 && len(scope.Breakdown) == 0 {
		return nil, ErrUnresolvedScope
	}

	return scope, nil
}
