package ledger

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amanuela97/golden-hive-settlement/internal/ledger/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
)

type Repository interface {
	GetBalance(ctx context.Context, storeID string) (*model.SellerBalance, error)

	// AppendTransaction appends a ledger entry and adjusts the cached
	// balance in one transaction. The entry's Amount must already be
	// signed; BalanceAfter is computed under a row lock on the balance.
	AppendTransaction(ctx context.Context, txn *model.BalanceTransaction) (*model.SellerBalance, error)

	// AppendInTx is AppendTransaction running inside a caller-owned
	// transaction, so ledger writes can commit atomically with the
	// order/payment mutations they belong to.
	AppendInTx(ctx context.Context, tx *sqlx.Tx, txn *model.BalanceTransaction) (*model.SellerBalance, error)

	ListTransactions(ctx context.Context, filters *dto.TransactionFilters) ([]model.BalanceTransaction, int, error)

	// ReleaseDueHolds rolls matured pending entries into the available
	// balance. Returns the number of entries released.
	ReleaseDueHolds(ctx context.Context, now time.Time) (int64, error)
}
