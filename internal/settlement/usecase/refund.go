package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/amanuela97/golden-hive-settlement/internal/fees"
	"github.com/amanuela97/golden-hive-settlement/internal/ledger"
	ledgerdto "github.com/amanuela97/golden-hive-settlement/internal/ledger/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
	"github.com/amanuela97/golden-hive-settlement/internal/order"
	orderdto "github.com/amanuela97/golden-hive-settlement/internal/order/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement/dto"
)

// HandleRefundUpdated reconciles our refund records against the
// processor's. The event payload is only a trigger: the succeeded-refund
// list is re-fetched in full, so duplicate, out-of-order, and replayed
// deliveries all converge on the same stored totals.
func (uc *settlementUseCase) HandleRefundUpdated(ctx context.Context, eventID string, refund *dto.Refund) error {
	if refund.PaymentIntentID == "" {
		return fmt.Errorf("refund %s carries no payment intent: %w", refund.ID, dto.ErrUnresolvedScope)
	}

	refunds, err := uc.processor.ListSucceededRefunds(ctx, refund.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to list refunds for intent %s: %w", refund.PaymentIntentID, err)
	}

	var totalRefunded int64
	for _, r := range refunds {
		totalRefunded += r.Amount
	}

	payments, err := uc.orders.GetPaymentsByProvider(ctx, refund.PaymentIntentID)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		return fmt.Errorf("payment intent %s: %w", refund.PaymentIntentID, settlement.ErrUnknownPaymentIntent)
	}

	// One intent can back several payments (multi-store checkout); the
	// refund total is attributed proportionally to each payment's amount.
	shares := make(map[string]int64, len(payments))
	for i := range payments {
		shares[payments[i].ID] = payments[i].Amount
	}
	perPayment := fees.Allocate(totalRefunded, shares)

	var retErr error
	for i := range payments {
		p := &payments[i]
		target := perPayment[p.ID]

		// Only the delta between what the processor reports and what we
		// already recorded gets a ledger entry. Zero or negative means
		// this delivery carries no new information.
		delta := target - p.RefundedAmount
		if delta <= 0 {
			continue
		}

		next := model.OrderPaymentPartiallyRefunded
		if target >= p.Amount {
			next = model.OrderPaymentRefunded
		}
		if !p.Status.CanTransitionTo(next) {
			uc.logger.Error("refund reported for payment in non-refundable state",
				zap.String("payment_id", p.ID),
				zap.String("status", string(p.Status)),
				zap.String("event_id", eventID),
				zap.Int64("refund_delta", delta))
			continue
		}

		o, err := uc.orders.GetOrder(ctx, p.OrderID)
		if err != nil {
			retErr = errors.Join(retErr, err)
			continue
		}

		now := time.Now()
		p.RefundedAmount = target
		p.Status = next
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
			Events: []model.OrderEvent{systemEvent(o.ID, "refund_processed",
				fmt.Sprintf("Refund of %s processed", formatAmount(delta, p.Currency)), now)},
		}

		ledgerFn := uc.refundLedgerFn(o, p, delta, now)
		err = uc.withStoreLock(ctx, o.StoreID, func() error {
			return uc.orders.SaveSettlement(ctx, sett, ledgerFn)
		})
		if err != nil {
			retErr = errors.Join(retErr, err)
		}
	}
	return retErr
}

func (uc *settlementUseCase) refundLedgerFn(o *model.Order, p *model.OrderPayment, delta int64, now time.Time) order.TxFunc {
	in := &ledgerdto.RecordTransactionInput{
		StoreID:        o.StoreID,
		Type:           model.TransactionRefund,
		Amount:         delta,
		Currency:       p.Currency,
		OrderID:        &o.ID,
		OrderPaymentID: &p.ID,
		Description:    fmt.Sprintf("Refund for order #%d", o.OrderNumber),
	}
	return func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := uc.ledger.AppendInTx(ctx, tx, ledger.NewTransaction(in, now))
		return err
	}
}
