package model

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCanceled  OrderStatus = "canceled"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusVoid              PaymentStatus = "void"
	PaymentStatusFailed            PaymentStatus = "failed"
)

type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentStatusPartial     FulfillmentStatus = "partial"
	FulfillmentStatusFulfilled   FulfillmentStatus = "fulfilled"
)

type Order struct {
	BaseModel
	OrderNumber       int64             `db:"order_number" json:"order_number"`
	StoreID           string            `db:"store_id" json:"store_id"`
	Currency          string            `db:"currency" json:"currency"`
	SubtotalAmount    int64             `db:"subtotal_amount" json:"subtotal_amount"`
	DiscountAmount    int64             `db:"discount_amount" json:"discount_amount"`
	ShippingAmount    int64             `db:"shipping_amount" json:"shipping_amount"`
	TaxAmount         int64             `db:"tax_amount" json:"tax_amount"`
	TotalAmount       int64             `db:"total_amount" json:"total_amount"`
	Status            OrderStatus       `db:"status" json:"status"`
	PaymentStatus     PaymentStatus     `db:"payment_status" json:"payment_status"`
	FulfillmentStatus FulfillmentStatus `db:"fulfillment_status" json:"fulfillment_status"`
	CustomerEmail     string            `db:"customer_email" json:"customer_email"`
	CustomerName      string            `db:"customer_name" json:"customer_name"`
	ShippingAddress   json.RawMessage   `db:"shipping_address" json:"shipping_address"`
	BillingAddress    json.RawMessage   `db:"billing_address" json:"billing_address"`
	PlacedAt          *time.Time        `db:"placed_at" json:"placed_at"`
	PaidAt            *time.Time        `db:"paid_at" json:"paid_at"`
	CanceledAt        *time.Time        `db:"canceled_at" json:"canceled_at"`
}

// FulfillmentComplete reports whether the order has shipped far enough to
// count toward overall completion (payment + fulfillment both done).
func (o *Order) FulfillmentComplete() bool {
	return o.FulfillmentStatus == FulfillmentStatusFulfilled ||
		o.FulfillmentStatus == FulfillmentStatusPartial
}

type OrderItem struct {
	ID         string  `db:"id" json:"id"`
	OrderID    string  `db:"order_id" json:"order_id"`
	ProductID  string  `db:"product_id" json:"product_id"`
	VariantID  *string `db:"variant_id" json:"variant_id"`
	Title      string  `db:"title" json:"title"`
	Quantity   int     `db:"quantity" json:"quantity"`
	UnitPrice  int64   `db:"unit_price" json:"unit_price"`
	TotalPrice int64   `db:"total_price" json:"total_price"`
}

// DraftOrder mirrors Order for a cart awaiting payment. A draft converts
// to exactly one order, exactly once; Completed plus ConvertedToOrderID
// make the conversion one-way.
type DraftOrder struct {
	BaseModel
	StoreID            string          `db:"store_id" json:"store_id"`
	Currency           string          `db:"currency" json:"currency"`
	SubtotalAmount     int64           `db:"subtotal_amount" json:"subtotal_amount"`
	DiscountAmount     int64           `db:"discount_amount" json:"discount_amount"`
	ShippingAmount     int64           `db:"shipping_amount" json:"shipping_amount"`
	TaxAmount          int64           `db:"tax_amount" json:"tax_amount"`
	TotalAmount        int64           `db:"total_amount" json:"total_amount"`
	CustomerEmail      string          `db:"customer_email" json:"customer_email"`
	CustomerName       string          `db:"customer_name" json:"customer_name"`
	ShippingAddress    json.RawMessage `db:"shipping_address" json:"shipping_address"`
	BillingAddress     json.RawMessage `db:"billing_address" json:"billing_address"`
	Completed          bool            `db:"completed" json:"completed"`
	ConvertedToOrderID *string         `db:"converted_to_order_id" json:"converted_to_order_id"`
}

type DraftOrderItem struct {
	ID           string  `db:"id" json:"id"`
	DraftOrderID string  `db:"draft_order_id" json:"draft_order_id"`
	ProductID    string  `db:"product_id" json:"product_id"`
	VariantID    *string `db:"variant_id" json:"variant_id"`
	Title        string  `db:"title" json:"title"`
	Quantity     int     `db:"quantity" json:"quantity"`
	UnitPrice    int64   `db:"unit_price" json:"unit_price"`
	TotalPrice   int64   `db:"total_price" json:"total_price"`
}

type EventVisibility string

const (
	EventVisibilityInternal EventVisibility = "internal"
	EventVisibilityCustomer EventVisibility = "customer"
)

// OrderEvent is an append-only timeline entry. CreatedBy is nil for
// system/webhook-originated events.
type OrderEvent struct {
	ID         string          `db:"id" json:"id"`
	OrderID    string          `db:"order_id" json:"order_id"`
	Type       string          `db:"type" json:"type"`
	Visibility EventVisibility `db:"visibility" json:"visibility"`
	Message    string          `db:"message" json:"message"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata"`
	CreatedBy  *string         `db:"created_by" json:"created_by"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
