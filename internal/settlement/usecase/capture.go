package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amanuela97/golden-hive-settlement/internal/model"
	orderdto "github.com/amanuela97/golden-hive-settlement/internal/order/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement"
)

// HandlePaymentCaptured releases held payments for the intent: the payment
// flips to completed and the ledger entries that were deferred at
// authorization time are written from the stored fee amounts.
func (uc *settlementUseCase) HandlePaymentCaptured(ctx context.Context, eventID, paymentIntentID string) error {
	payments, err := uc.orders.GetPaymentsByProvider(ctx, paymentIntentID)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		return fmt.Errorf("payment intent %s: %w", paymentIntentID, settlement.ErrUnknownPaymentIntent)
	}

	var retErr error
	var settled []string
	for i := range payments {
		p := &payments[i]
		if p.Status == model.OrderPaymentCompleted {
			continue // replayed capture
		}
		if !p.Status.CanTransitionTo(model.OrderPaymentCompleted) {
			uc.logger.Warn("ignoring capture for payment in terminal state",
				zap.String("payment_id", p.ID),
				zap.String("status", string(p.Status)),
				zap.String("event_id", eventID))
			continue
		}

		o, err := uc.orders.GetOrder(ctx, p.OrderID)
		if err != nil {
			retErr = errors.Join(retErr, err)
			continue
		}

		now := time.Now()
		p.Status = model.OrderPaymentCompleted
		p.TransferStatus = model.TransferStatusReleased
		p.UpdatedAt = now

		agg, err := uc.aggregateWith(ctx, p)
		if err != nil {
			retErr = errors.Join(retErr, err)
			continue
		}

		sett := &orderdto.PaymentSettlement{
			Payment:            p,
			OrderID:            o.ID,
			OrderPaymentStatus: agg,
			Events: []model.OrderEvent{systemEvent(o.ID, "payment_captured",
				fmt.Sprintf("Payment of %s captured", formatAmount(p.Amount, p.Currency)), now)},
		}
		if agg == model.PaymentStatusPaid && o.PaidAt == nil {
			paidAt := now
			sett.PaidAt = &paidAt
		}
		if o.FulfillmentComplete() {
			done := model.OrderStatusCompleted
			sett.OrderStatus = &done
		}

		ledgerFn := uc.settlementLedgerFn(o, p, now)
		err = uc.withStoreLock(ctx, o.StoreID, func() error {
			return uc.orders.SaveSettlement(ctx, sett, ledgerFn)
		})
		if err != nil {
			retErr = errors.Join(retErr, err)
			continue
		}
		settled = append(settled, o.ID)
	}

	uc.notifySettled(ctx, settled, false)
	return retErr
}

// HandlePaymentVoided cancels held payments for the intent. The
// authorization was released before capture, so no money moved and no
// ledger entries are written.
func (uc *settlementUseCase) HandlePaymentVoided(ctx context.Context, eventID, paymentIntentID string) error {
	payments, err := uc.orders.GetPaymentsByProvider(ctx, paymentIntentID)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		return fmt.Errorf("payment intent %s: %w", paymentIntentID, settlement.ErrUnknownPaymentIntent)
	}

	var retErr error
	for i := range payments {
		p := &payments[i]
		if p.Status == model.OrderPaymentVoid {
			continue
		}
		if !p.Status.CanTransitionTo(model.OrderPaymentVoid) {
			uc.logger.Warn("ignoring void for payment not in held state",
				zap.String("payment_id", p.ID),
				zap.String("status", string(p.Status)),
				zap.String("event_id", eventID))
			continue
		}

		now := time.Now()
		p.Status = model.OrderPaymentVoid
		p.UpdatedAt = now

		agg, err := uc.aggregateWith(ctx, p)
		if err != nil {
			retErr = errors.Join(retErr, err)
			continue
		}

		sett := &orderdto.PaymentSettlement{
			Payment:            p,
			OrderID:            p.OrderID,
			OrderPaymentStatus: agg,
			Events: []model.OrderEvent{systemEvent(p.OrderID, "payment_voided",
				fmt.Sprintf("Authorization of %s voided", formatAmount(p.Amount, p.Currency)), now)},
		}

		if err := uc.orders.SaveSettlement(ctx, sett, nil); err != nil {
			retErr = errors.Join(retErr, err)
		}
	}
	return retErr
}
