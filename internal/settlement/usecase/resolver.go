package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/amanuela97/golden-hive-settlement/internal/inventory"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
	"github.com/amanuela97/golden-hive-settlement/internal/order"
	orderdto "github.com/amanuela97/golden-hive-settlement/internal/order/dto"
)

// resolveDraftOrder turns a paid draft into a real order. Conversion is
// one-way: if the draft already completed, the existing order is returned
// so a replayed or concurrent delivery settles against the same order.
func (uc *settlementUseCase) resolveDraftOrder(ctx context.Context, draftID string) (*model.Order, error) {
	draft, err := uc.orders.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}

	if draft.Completed {
		return uc.convertedOrder(ctx, draft)
	}

	items, err := uc.orders.GetDraftItems(ctx, draftID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	placedAt := now
	o := &model.Order{
		BaseModel:         model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		StoreID:           draft.StoreID,
		Currency:          draft.Currency,
		SubtotalAmount:    draft.SubtotalAmount,
		DiscountAmount:    draft.DiscountAmount,
		ShippingAmount:    draft.ShippingAmount,
		TaxAmount:         draft.TaxAmount,
		TotalAmount:       draft.TotalAmount,
		Status:            model.OrderStatusOpen,
		PaymentStatus:     model.PaymentStatusPending,
		FulfillmentStatus: model.FulfillmentStatusUnfulfilled,
		CustomerEmail:     draft.CustomerEmail,
		CustomerName:      draft.CustomerName,
		ShippingAddress:   draft.ShippingAddress,
		BillingAddress:    draft.BillingAddress,
		PlacedAt:          &placedAt,
	}

	orderItems := make([]model.OrderItem, 0, len(items))
	reserveItems := make([]inventory.Item, 0, len(items))
	for _, it := range items {
		orderItems = append(orderItems, model.OrderItem{
			ID:         uuid.New().String(),
			OrderID:    o.ID,
			ProductID:  it.ProductID,
			VariantID:  it.VariantID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		})
		if it.VariantID != nil {
			reserveItems = append(reserveItems, inventory.Item{VariantID: *it.VariantID, Quantity: it.Quantity})
		}
	}

	confirmation := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
	confirmationMeta, _ := json.Marshal(map[string]string{"confirmation_number": confirmation})

	events := []model.OrderEvent{
		systemEvent(o.ID, "order_created", fmt.Sprintf("Order created from draft #%s", draft.ID), now),
		{
			ID:         uuid.New().String(),
			OrderID:    o.ID,
			Type:       "confirmation_number_generated",
			Visibility: model.EventVisibilityCustomer,
			Message:    fmt.Sprintf("Confirmation number %s", confirmation),
			Metadata:   confirmationMeta,
			CreatedAt:  now,
		},
	}

	conv := &orderdto.DraftConversion{Draft: draft, Order: o, Items: orderItems, Events: events}
	reserve := func(ctx context.Context, tx *sqlx.Tx) error {
		if len(reserveItems) == 0 {
			return nil
		}
		return uc.reserver.Reserve(ctx, tx, reserveItems, draft.StoreID, "Order placement", o.ID)
	}

	err = uc.orders.ConvertDraft(ctx, conv, reserve)
	if errors.Is(err, order.ErrDraftAlreadyCompleted) {
		// Lost the race to a concurrent delivery; settle against its order.
		fresh, ferr := uc.orders.GetDraft(ctx, draftID)
		if ferr != nil {
			return nil, ferr
		}
		return uc.convertedOrder(ctx, fresh)
	}
	if err != nil {
		return nil, err
	}

	uc.logger.Info("converted draft to order",
		zap.String("draft_id", draftID),
		zap.String("order_id", o.ID),
		zap.Int64("order_number", o.OrderNumber))
	return o, nil
}

func (uc *settlementUseCase) convertedOrder(ctx context.Context, draft *model.DraftOrder) (*model.Order, error) {
	if draft.ConvertedToOrderID == nil {
		return nil, fmt.Errorf("draft %s is completed without an order reference: %w", draft.ID, order.ErrOrderNotFound)
	}
	return uc.orders.GetOrder(ctx, *draft.ConvertedToOrderID)
}
