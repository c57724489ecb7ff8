package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/amanuela97/golden-hive-settlement/internal/fees"
	"github.com/amanuela97/golden-hive-settlement/internal/inventory"
	"github.com/amanuela97/golden-hive-settlement/internal/ledger"
	ledgerdto "github.com/amanuela97/golden-hive-settlement/internal/ledger/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
	"github.com/amanuela97/golden-hive-settlement/internal/order"
	orderdto "github.com/amanuela97/golden-hive-settlement/internal/order/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/pkg/logger"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement/dto"
)

type settlementUseCase struct {
	orders    order.Repository
	ledger    ledger.Repository
	locks     ledger.Locker
	reserver  inventory.Reserver
	processor settlement.ProcessorClient
	notifier  settlement.Notifier
	fees      *fees.Calculator
	holdDays  int
	logger    logger.ZapLogger
}

func NewSettlementUseCase(
	orders order.Repository,
	ledgerRepo ledger.Repository,
	locks ledger.Locker,
	reserver inventory.Reserver,
	processor settlement.ProcessorClient,
	notifier settlement.Notifier,
	feeCalc *fees.Calculator,
	holdDays int,
	log logger.ZapLogger,
) settlement.UseCase {
	return &settlementUseCase{
		orders:    orders,
		ledger:    ledgerRepo,
		locks:     locks,
		reserver:  reserver,
		processor: processor,
		notifier:  notifier,
		fees:      feeCalc,
		holdDays:  holdDays,
		logger:    log,
	}
}

func (uc *settlementUseCase) HandleCheckoutCompleted(ctx context.Context, eventID string, session *dto.CheckoutSession) error {
	intent, err := uc.processor.GetPaymentIntent(ctx, session.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to fetch payment intent %s: %w", session.PaymentIntentID, err)
	}

	scope, err := dto.ResolveScope(session.Metadata, intent.Metadata)
	if err != nil {
		return err
	}

	// requires_capture means the funds are only authorized: the payment
	// is recorded as held and no ledger entries are written until the
	// capture event arrives.
	held := intent.Status == dto.IntentStatusRequiresCapture

	if scope.MultiStore() {
		return uc.settleMultiStore(ctx, eventID, intent, scope, held)
	}
	return uc.settleSingleStore(ctx, eventID, session, intent, scope, held)
}

func (uc *settlementUseCase) settleSingleStore(ctx context.Context, eventID string, session *dto.CheckoutSession, intent *dto.PaymentIntent, scope *dto.PaymentScope, held bool) error {
	var targets []*model.Order

	switch {
	case scope.DraftID != "":
		o, err := uc.resolveDraftOrder(ctx, scope.DraftID)
		if err != nil {
			return err
		}
		targets = []*model.Order{o}
	case scope.OrderID != "":
		o, err := uc.orders.GetOrder(ctx, scope.OrderID)
		if err != nil {
			return err
		}
		targets = []*model.Order{o}
	default:
		found, err := uc.orders.GetOrders(ctx, scope.OrderIDs)
		if err != nil {
			return err
		}
		if len(found) != len(scope.OrderIDs) {
			return fmt.Errorf("%d of %d orders missing: %w", len(scope.OrderIDs)-len(found), len(scope.OrderIDs), order.ErrOrderNotFound)
		}
		for i := range found {
			targets = append(targets, &found[i])
		}
	}

	total := session.AmountTotal
	if total == 0 {
		total = intent.Amount
	}
	global := uc.fees.Calculate(total)

	perOrder := map[string]fees.Breakdown{targets[0].ID: global}
	if len(targets) > 1 {
		shares := make(map[string]int64, len(targets))
		for _, o := range targets {
			shares[o.ID] = o.TotalAmount
		}
		perOrder = uc.fees.Split(global, fees.Allocate(total, shares))
	}

	var retErr error
	var settled []string
	for _, o := range targets {
		ok, err := uc.settleOrder(ctx, eventID, o, perOrder[o.ID], intent, held)
		if err != nil {
			retErr = errors.Join(retErr, err)
			continue
		}
		if ok {
			settled = append(settled, o.ID)
		}
	}

	uc.notifySettled(ctx, settled, held)
	return retErr
}

func (uc *settlementUseCase) settleMultiStore(ctx context.Context, eventID string, intent *dto.PaymentIntent, scope *dto.PaymentScope, held bool) error {
	shares := make(map[string]int64, len(scope.Breakdown))
	for storeID, share := range scope.Breakdown {
		shares[storeID] = share.Amount
	}

	// Per-store fees are derived from the single global computation so
	// they sum exactly to what the platform actually charged.
	global := uc.fees.Calculate(intent.Amount)
	perStore := uc.fees.Split(global, shares)

	storeIDs := make([]string, 0, len(scope.Breakdown))
	for storeID := range scope.Breakdown {
		storeIDs = append(storeIDs, storeID)
	}
	sort.Strings(storeIDs)

	var retErr error
	var settled []string
	for _, storeID := range storeIDs {
		ids, err := uc.settleStore(ctx, eventID, scope.Breakdown[storeID], perStore[storeID], intent, held)
		settled = append(settled, ids...)
		if err == nil {
			continue
		}
		// Each store is an independent financial unit; one store failing
		// must not abort the rest. Fatal failures are logged loudly and
		// acknowledged since redelivery cannot fix them.
		if settlement.IsFatal(err) {
			uc.logger.Error("unrecoverable settlement failure for store",
				zap.String("store_id", storeID),
				zap.String("event_id", eventID),
				zap.Error(err))
			continue
		}
		retErr = errors.Join(retErr, fmt.Errorf("store %s: %w", storeID, err))
	}

	uc.notifySettled(ctx, settled, held)
	return retErr
}

func (uc *settlementUseCase) settleStore(ctx context.Context, eventID string, share dto.StoreShare, b fees.Breakdown, intent *dto.PaymentIntent, held bool) ([]string, error) {
	found, err := uc.orders.GetOrders(ctx, share.OrderIDs)
	if err != nil {
		return nil, err
	}
	if len(found) != len(share.OrderIDs) {
		return nil, fmt.Errorf("%d of %d orders missing: %w", len(share.OrderIDs)-len(found), len(share.OrderIDs), order.ErrOrderNotFound)
	}

	perOrder := map[string]fees.Breakdown{found[0].ID: b}
	if len(found) > 1 {
		orderShares := make(map[string]int64, len(found))
		for i := range found {
			orderShares[found[i].ID] = found[i].TotalAmount
		}
		perOrder = uc.fees.Split(b, fees.Allocate(share.Amount, orderShares))
	}

	var settled []string
	for i := range found {
		o := &found[i]
		ok, err := uc.settleOrder(ctx, eventID, o, perOrder[o.ID], intent, held)
		if err != nil {
			return settled, err
		}
		if ok {
			settled = append(settled, o.ID)
		}
	}
	return settled, nil
}

// settleOrder records the payment for one order and, when captured,
// writes the ledger entries. Returns true when a new captured payment was
// recorded (the signal for follow-up dispatch); replays return false with
// no error.
func (uc *settlementUseCase) settleOrder(ctx context.Context, eventID string, o *model.Order, b fees.Breakdown, intent *dto.PaymentIntent, held bool) (bool, error) {
	existing, err := uc.orders.GetPaymentByProvider(ctx, o.ID, intent.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		// Redelivered event: the side effects are already in place.
		uc.logger.Info("payment already recorded for intent, skipping",
			zap.String("order_id", o.ID),
			zap.String("provider_payment_id", intent.ID),
			zap.String("event_id", eventID))
		return false, nil
	}

	now := time.Now()
	status := model.OrderPaymentCompleted
	transfer := model.TransferStatusReleased
	if held {
		status = model.OrderPaymentHeld
		transfer = model.TransferStatusHeld
	}

	var chargeID *string
	if intent.LatestChargeID != "" {
		chargeID = &intent.LatestChargeID
	}

	payment := &model.OrderPayment{
		BaseModel:          model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		OrderID:            o.ID,
		Amount:             b.Total,
		Currency:           intent.Currency,
		ProviderPaymentID:  intent.ID,
		ProviderChargeID:   chargeID,
		PlatformFeeAmount:  b.PlatformFee,
		ProcessorFeeAmount: b.ProcessorFee,
		NetAmountToStore:   b.NetToStore,
		Status:             status,
		TransferStatus:     transfer,
	}

	sett := &orderdto.PaymentSettlement{
		Payment:      payment,
		PaymentIsNew: true,
		OrderID:      o.ID,
	}

	var ledgerFn order.TxFunc
	if held {
		sett.OrderPaymentStatus = model.PaymentStatusPending
		sett.Events = []model.OrderEvent{systemEvent(o.ID, "payment_authorized",
			fmt.Sprintf("Payment of %s authorized, awaiting capture", formatAmount(b.Total, intent.Currency)), now)}
	} else {
		sett.OrderPaymentStatus = model.PaymentStatusPaid
		paidAt := now
		sett.PaidAt = &paidAt
		if o.FulfillmentComplete() {
			done := model.OrderStatusCompleted
			sett.OrderStatus = &done
		}
		sett.Events = []model.OrderEvent{systemEvent(o.ID, "payment_received",
			fmt.Sprintf("Payment of %s received", formatAmount(b.Total, intent.Currency)), now)}
		ledgerFn = uc.settlementLedgerFn(o, payment, now)
	}

	err = uc.withStoreLock(ctx, o.StoreID, func() error {
		return uc.orders.SaveSettlement(ctx, sett, ledgerFn)
	})
	if err != nil {
		return false, err
	}

	return !held, nil
}

// settlementLedgerFn writes the three entries for a captured payment:
// the gross credit and the two fee debits. Runs inside the settlement
// transaction so payment state and ledger can never diverge.
func (uc *settlementUseCase) settlementLedgerFn(o *model.Order, p *model.OrderPayment, now time.Time) order.TxFunc {
	var availableAt *time.Time
	if uc.holdDays > 0 {
		t := now.Add(time.Duration(uc.holdDays) * 24 * time.Hour)
		availableAt = &t
	}

	inputs := []*ledgerdto.RecordTransactionInput{
		{
			StoreID:        o.StoreID,
			Type:           model.TransactionOrderPayment,
			Amount:         p.Amount,
			Currency:       p.Currency,
			OrderID:        &o.ID,
			OrderPaymentID: &p.ID,
			Description:    fmt.Sprintf("Payment for order #%d", o.OrderNumber),
			AvailableAt:    availableAt,
		},
		{
			StoreID:        o.StoreID,
			Type:           model.TransactionPlatformFee,
			Amount:         p.PlatformFeeAmount,
			Currency:       p.Currency,
			OrderID:        &o.ID,
			OrderPaymentID: &p.ID,
			Description:    fmt.Sprintf("Platform fee for order #%d", o.OrderNumber),
		},
		{
			StoreID:        o.StoreID,
			Type:           model.TransactionStripeFee,
			Amount:         p.ProcessorFeeAmount,
			Currency:       p.Currency,
			OrderID:        &o.ID,
			OrderPaymentID: &p.ID,
			Description:    fmt.Sprintf("Processor fee for order #%d", o.OrderNumber),
		},
	}

	return func(ctx context.Context, tx *sqlx.Tx) error {
		for _, in := range inputs {
			if in.Amount <= 0 {
				continue
			}
			txn := ledger.NewTransaction(in, now)
			if _, err := uc.ledger.AppendInTx(ctx, tx, txn); err != nil {
				return err
			}
		}
		return nil
	}
}

func (uc *settlementUseCase) withStoreLock(ctx context.Context, storeID string, fn func() error) error {
	lockKey := ledger.LockKey(storeID)
	lockValue := uuid.New().String()

	acquired := false
	for i := 0; i < 3; i++ {
		ok, err := uc.locks.AcquireLock(ctx, lockKey, lockValue, 10*time.Second)
		if err != nil {
			uc.logger.Error("failed to acquire balance lock", zap.Error(err))
		}
		if ok {
			acquired = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !acquired {
		return fmt.Errorf("balance for store %s is locked", storeID)
	}
	defer uc.locks.ReleaseLock(ctx, lockKey, lockValue)

	return fn()
}

// aggregateWith recomputes the order-level payment status from all of the
// order's payments, with the in-flight update substituted in.
func (uc *settlementUseCase) aggregateWith(ctx context.Context, updated *model.OrderPayment) (model.PaymentStatus, error) {
	payments, err := uc.orders.ListPayments(ctx, updated.OrderID)
	if err != nil {
		return "", err
	}

	found := false
	for i := range payments {
		if payments[i].ID == updated.ID {
			payments[i] = *updated
			found = true
		}
	}
	if !found {
		payments = append(payments, *updated)
	}

	return model.AggregatePaymentStatus(payments), nil
}

// notifySettled dispatches confirmation/invoice follow-ups without
// awaiting them. A slow mailer must never block the settlement and cause
// the processor to time out and redeliver.
func (uc *settlementUseCase) notifySettled(ctx context.Context, orderIDs []string, held bool) {
	if held || len(orderIDs) == 0 {
		return
	}
	go uc.dispatchFollowUps(context.WithoutCancel(ctx), orderIDs)
}

func (uc *settlementUseCase) dispatchFollowUps(ctx context.Context, orderIDs []string) {
	for _, id := range orderIDs {
		siblings := make([]string, 0, len(orderIDs)-1)
		for _, other := range orderIDs {
			if other != id {
				siblings = append(siblings, other)
			}
		}

		if err := uc.notifier.OrderConfirmation(ctx, id, siblings); err != nil {
			uc.logger.Error("failed to dispatch order confirmation",
				zap.String("order_id", id), zap.Error(err))
		}
		if err := uc.notifier.InvoiceRequested(ctx, id); err != nil {
			uc.logger.Error("failed to dispatch invoice request",
				zap.String("order_id", id), zap.Error(err))
		}
	}
}

func systemEvent(orderID, eventType, message string, now time.Time) model.OrderEvent {
	return model.OrderEvent{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		Type:       eventType,
		Visibility: model.EventVisibilityInternal,
		Message:    message,
		CreatedAt:  now,
	}
}

// zeroDecimalCurrencies have no minor unit: the processor amount is
// already the display amount.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true,
	"xpf": true,
}

func formatAmount(minor int64, currency string) string {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return fmt.Sprintf("%d %s", minor, currency)
	}
	return fmt.Sprintf("%.2f %s", float64(minor)/100, currency)
}
