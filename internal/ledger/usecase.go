package ledger

import (
	"context"
	"time"

	"github.com/amanuela97/golden-hive-settlement/internal/ledger/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
)

type UseCase interface {
	RecordTransaction(ctx context.Context, input *dto.RecordTransactionInput) (*model.BalanceTransaction, error)
	GetStoreBalance(ctx context.Context, storeID string) (*dto.StoreBalance, error)
	ListTransactions(ctx context.Context, filters *dto.TransactionFilters) ([]model.BalanceTransaction, int, error)
	ReleaseDueHolds(ctx context.Context) error
}

// Locker serializes balance mutation per store across concurrent webhook
// deliveries. Satisfied by cache.RedisClient.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

// ProcessorBalanceSource reports the processor's real-time available
// balance, used as a cap on the ledger-derived balance.
type ProcessorBalanceSource interface {
	AvailableBalance(ctx context.Context, currency string) (int64, error)
}

// LockKey is shared with the settlement engine so both serialize on the
// same per-store lock.
func LockKey(storeID string) string {
	return "lock:balance:" + storeID
}
