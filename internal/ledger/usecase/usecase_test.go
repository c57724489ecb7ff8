package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanuela97/golden-hive-settlement/internal/ledger/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
	"github.com/amanuela97/golden-hive-settlement/internal/pkg/logger"
)

type fakeRepo struct {
	balance *model.SellerBalance
	entries []*model.BalanceTransaction
}

func (f *fakeRepo) GetBalance(ctx context.Context, storeID string) (*model.SellerBalance, error) {
	return f.balance, nil
}

func (f *fakeRepo) AppendTransaction(ctx context.Context, txn *model.BalanceTransaction) (*model.SellerBalance, error) {
	if f.balance == nil {
		f.balance = &model.SellerBalance{StoreID: txn.StoreID, Currency: txn.Currency}
	}
	txn.BalanceAfter = f.balance.AvailableBalance + f.balance.PendingBalance + txn.Amount
	if txn.Status == model.TransactionStatusPending {
		f.balance.PendingBalance += txn.Amount
	} else {
		f.balance.AvailableBalance += txn.Amount
	}
	f.entries = append(f.entries, txn)
	return f.balance, nil
}

func (f *fakeRepo) AppendInTx(ctx context.Context, tx *sqlx.Tx, txn *model.BalanceTransaction) (*model.SellerBalance, error) {
	return f.AppendTransaction(ctx, txn)
}

func (f *fakeRepo) ListTransactions(ctx context.Context, filters *dto.TransactionFilters) ([]model.BalanceTransaction, int, error) {
	out := make([]model.BalanceTransaction, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (f *fakeRepo) ReleaseDueHolds(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type fakeLocker struct {
	denied bool
}

func (f *fakeLocker) AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return !f.denied, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key, value string) error {
	return nil
}

type fakeProcessor struct {
	available int64
	err       error
}

func (f *fakeProcessor) AvailableBalance(ctx context.Context, currency string) (int64, error) {
	return f.available, f.err
}

func testLogger() logger.ZapLogger {
	return logger.NewZapLogger(&logger.ZapLoggerConfig{Level: "error", Encoding: "console"})
}

func TestRecordTransaction_CreditIncreasesBalance(t *testing.T) {
	repo := &fakeRepo{}
	uc := NewLedgerUseCase(repo, &fakeLocker{}, &fakeProcessor{}, testLogger())

	txn, err := uc.RecordTransaction(context.Background(), &dto.RecordTransactionInput{
		StoreID:  "store-1",
		Type:     model.TransactionOrderPayment,
		Amount:   10000,
		Currency: "usd",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(10000), txn.Amount)
	assert.Equal(t, int64(10000), txn.BalanceAfter)
	assert.Equal(t, model.TransactionStatusAvailable, txn.Status)
	assert.Equal(t, int64(10000), repo.balance.AvailableBalance)
}

func TestRecordTransaction_DebitStoredSigned(t *testing.T) {
	repo := &fakeRepo{}
	uc := NewLedgerUseCase(repo, &fakeLocker{}, &fakeProcessor{}, testLogger())

	_, err := uc.RecordTransaction(context.Background(), &dto.RecordTransactionInput{
		StoreID:  "store-1",
		Type:     model.TransactionOrderPayment,
		Amount:   10000,
		Currency: "usd",
	})
	require.NoError(t, err)

	txn, err := uc.RecordTransaction(context.Background(), &dto.RecordTransactionInput{
		StoreID:  "store-1",
		Type:     model.TransactionPlatformFee,
		Amount:   500,
		Currency: "usd",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(-500), txn.Amount)
	assert.Equal(t, int64(9500), txn.BalanceAfter)
	assert.Equal(t, int64(9500), repo.balance.AvailableBalance)
}

func TestRecordTransaction_FutureAvailableAtGoesPending(t *testing.T) {
	repo := &fakeRepo{}
	uc := NewLedgerUseCase(repo, &fakeLocker{}, &fakeProcessor{}, testLogger())

	availableAt := time.Now().Add(48 * time.Hour)
	txn, err := uc.RecordTransaction(context.Background(), &dto.RecordTransactionInput{
		StoreID:     "store-1",
		Type:        model.TransactionOrderPayment,
		Amount:      10000,
		Currency:    "usd",
		AvailableAt: &availableAt,
	})

	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusPending, txn.Status)
	assert.Equal(t, int64(0), repo.balance.AvailableBalance)
	assert.Equal(t, int64(10000), repo.balance.PendingBalance)
}

func TestRecordTransaction_RejectsNonPositiveAmount(t *testing.T) {
	uc := NewLedgerUseCase(&fakeRepo{}, &fakeLocker{}, &fakeProcessor{}, testLogger())

	_, err := uc.RecordTransaction(context.Background(), &dto.RecordTransactionInput{
		StoreID: "store-1",
		Type:    model.TransactionRefund,
		Amount:  -100,
	})

	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRecordTransaction_LockDenied(t *testing.T) {
	uc := NewLedgerUseCase(&fakeRepo{}, &fakeLocker{denied: true}, &fakeProcessor{}, testLogger())

	_, err := uc.RecordTransaction(context.Background(), &dto.RecordTransactionInput{
		StoreID:  "store-1",
		Type:     model.TransactionOrderPayment,
		Amount:   100,
		Currency: "usd",
	})

	assert.ErrorIs(t, err, ErrStoreBusy)
}

func TestGetStoreBalance_CappedByProcessor(t *testing.T) {
	repo := &fakeRepo{balance: &model.SellerBalance{
		StoreID:          "store-1",
		Currency:         "usd",
		AvailableBalance: 9180,
		PendingBalance:   500,
	}}
	uc := NewLedgerUseCase(repo, &fakeLocker{}, &fakeProcessor{available: 5000}, testLogger())

	bal, err := uc.GetStoreBalance(context.Background(), "store-1")

	require.NoError(t, err)
	assert.Equal(t, int64(5000), bal.AvailableBalance)
	assert.Equal(t, int64(9180), bal.LedgerAvailable)
	assert.Equal(t, int64(500), bal.PendingBalance)
	assert.True(t, bal.CappedByProcessor)
}

func TestGetStoreBalance_ProcessorUnreachableReportsZero(t *testing.T) {
	repo := &fakeRepo{balance: &model.SellerBalance{
		StoreID:          "store-1",
		Currency:         "usd",
		AvailableBalance: 9180,
	}}
	uc := NewLedgerUseCase(repo, &fakeLocker{}, &fakeProcessor{err: errors.New("timeout")}, testLogger())

	bal, err := uc.GetStoreBalance(context.Background(), "store-1")

	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.AvailableBalance)
	assert.Equal(t, int64(9180), bal.LedgerAvailable)
	assert.True(t, bal.CappedByProcessor)
}

func TestGetStoreBalance_NoLedgerActivity(t *testing.T) {
	uc := NewLedgerUseCase(&fakeRepo{}, &fakeLocker{}, &fakeProcessor{available: 100}, testLogger())

	bal, err := uc.GetStoreBalance(context.Background(), "store-9")

	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.AvailableBalance)
	assert.Equal(t, int64(0), bal.PendingBalance)
}
