package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amanuela97/golden-hive-settlement/internal/ledger"
	"github.com/amanuela97/golden-hive-settlement/internal/ledger/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
	"github.com/amanuela97/golden-hive-settlement/internal/pkg/logger"
)

var (
	ErrInvalidAmount = errors.New("transaction amount must be positive")
	ErrStoreBusy     = errors.New("store balance is locked, try again later")
)

type ledgerUseCase struct {
	repo      ledger.Repository
	locks     ledger.Locker
	processor ledger.ProcessorBalanceSource
	logger    logger.ZapLogger
}

func NewLedgerUseCase(repo ledger.Repository, locks ledger.Locker, processor ledger.ProcessorBalanceSource, log logger.ZapLogger) ledger.UseCase {
	return &ledgerUseCase{
		repo:      repo,
		locks:     locks,
		processor: processor,
		logger:    log,
	}
}

func (uc *ledgerUseCase) RecordTransaction(ctx context.Context, input *dto.RecordTransactionInput) (*model.BalanceTransaction, error) {
	if input.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	lockKey := ledger.LockKey(input.StoreID)
	lockValue := uuid.New().String()

	acquired := false
	for i := 0; i < 3; i++ {
		ok, err := uc.locks.AcquireLock(ctx, lockKey, lockValue, 5*time.Second)
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
		return nil, ErrStoreBusy
	}
	defer uc.locks.ReleaseLock(ctx, lockKey, lockValue)

	txn := ledger.NewTransaction(input, time.Now())
	if _, err := uc.repo.AppendTransaction(ctx, txn); err != nil {
		return nil, err
	}

	return txn, nil
}

func (uc *ledgerUseCase) GetStoreBalance(ctx context.Context, storeID string) (*dto.StoreBalance, error) {
	bal, err := uc.repo.GetBalance(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return &dto.StoreBalance{StoreID: storeID}, nil
	}

	out := &dto.StoreBalance{
		StoreID:          storeID,
		Currency:         bal.Currency,
		AvailableBalance: bal.AvailableBalance,
		PendingBalance:   bal.PendingBalance,
		LedgerAvailable:  bal.AvailableBalance,
		LastPayoutAt:     bal.LastPayoutAt,
		LastPayoutAmount: bal.LastPayoutAmount,
	}

	// The processor's real-time balance is ground truth; if the ledger
	// has drifted above it, cap. If the processor cannot be reached,
	// report zero available rather than risk an over-payout.
	processorAvailable, err := uc.processor.AvailableBalance(ctx, bal.Currency)
	if err != nil {
		uc.logger.Warn("failed to fetch processor balance, reporting zero available",
			zap.String("store_id", storeID), zap.Error(err))
		out.AvailableBalance = 0
		out.CappedByProcessor = true
		return out, nil
	}
	if processorAvailable < out.AvailableBalance {
		out.AvailableBalance = processorAvailable
		out.CappedByProcessor = true
	}

	return out, nil
}

func (uc *ledgerUseCase) ListTransactions(ctx context.Context, filters *dto.TransactionFilters) ([]model.BalanceTransaction, int, error) {
	return uc.repo.ListTransactions(ctx, filters)
}

func (uc *ledgerUseCase) ReleaseDueHolds(ctx context.Context) error {
	released, err := uc.repo.ReleaseDueHolds(ctx, time.Now())
	if err != nil {
		return err
	}
	if released > 0 {
		uc.logger.Info("released matured balance holds", zap.Int64("stores", released))
	}
	return nil
}
