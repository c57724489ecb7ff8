package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	ledgerdto "github.com/amanuela97/golden-hive-settlement/internal/ledger/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
	"github.com/amanuela97/golden-hive-settlement/internal/order"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement/dto"
)

const testSecret = "whsec_test"

type stubUseCase struct {
	checkoutErr error
	refundErr   error
	captureErr  error
	voidErr     error

	checkoutCalls int
	refundCalls   int
	captureCalls  int
	voidCalls     int
}

func (s *stubUseCase) HandleCheckoutCompleted(ctx context.Context, eventID string, session *dto.CheckoutSession) error {
	s.checkoutCalls++
	return s.checkoutErr
}

func (s *stubUseCase) HandleRefundUpdated(ctx context.Context, eventID string, refund *dto.Refund) error {
	s.refundCalls++
	return s.refundErr
}

func (s *stubUseCase) HandlePaymentCaptured(ctx context.Context, eventID, paymentIntentID string) error {
	s.captureCalls++
	return s.captureErr
}

func (s *stubUseCase) HandlePaymentVoided(ctx context.Context, eventID, paymentIntentID string) error {
	s.voidCalls++
	return s.voidErr
}

type stubLedgerUC struct {
	recorded []*ledgerdto.RecordTransactionInput
}

func (s *stubLedgerUC) RecordTransaction(ctx context.Context, input *ledgerdto.RecordTransactionInput) (*model.BalanceTransaction, error) {
	s.recorded = append(s.recorded, input)
	return &model.BalanceTransaction{
		ID:      "bt_1",
		StoreID: input.StoreID,
		Type:    input.Type,
		Amount:  input.Type.SignedAmount(input.Amount),
	}, nil
}

func (s *stubLedgerUC) GetStoreBalance(ctx context.Context, storeID string) (*ledgerdto.StoreBalance, error) {
	return &ledgerdto.StoreBalance{StoreID: storeID}, nil
}

func (s *stubLedgerUC) ListTransactions(ctx context.Context, filters *ledgerdto.TransactionFilters) ([]model.BalanceTransaction, int, error) {
	return nil, 0, nil
}

func (s *stubLedgerUC) ReleaseDueHolds(ctx context.Context) error { return nil }

type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...zap.Field) {}
func (noopLogger) Info(msg string, fields ...zap.Field)  {}
func (noopLogger) Warn(msg string, fields ...zap.Field)  {}
func (noopLogger) Error(msg string, fields ...zap.Field) {}
func (noopLogger) Fatal(msg string, fields ...zap.Field) {}
func (noopLogger) Sync() error                           { return nil }

func newTestRouter(uc *stubUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewWebhookHandler(uc, nil, testSecret, noopLogger{})
	r.POST("/webhooks/payments", h.HandleWebhook)
	return r
}

func sign(body []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func deliver(t *testing.T, r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Webhook-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	uc := &stubUseCase{}
	r := newTestRouter(uc)

	w := deliver(t, r, []byte(`{"id":"evt_1","type":"checkout.session.completed"}`), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, uc.checkoutCalls, "unverified payload must never reach the use case")
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	uc := &stubUseCase{}
	r := newTestRouter(uc)

	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`)
	sig := sign(body, testSecret, time.Now())
	tampered := bytes.Replace(body, []byte("evt_1"), []byte("evt_2"), 1)

	w := deliver(t, r, tampered, sig)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, uc.checkoutCalls)
}

func TestWebhookRejectsStaleSignature(t *testing.T) {
	uc := &stubUseCase{}
	r := newTestRouter(uc)

	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`)
	sig := sign(body, testSecret, time.Now().Add(-10*time.Minute))

	w := deliver(t, r, body, sig)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRoutesCheckoutCompleted(t *testing.T) {
	uc := &stubUseCase{}
	r := newTestRouter(uc)

	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_intent":"pi_1","amount_total":10000}}}`)
	w := deliver(t, r, body, sign(body, testSecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, uc.checkoutCalls)
}

func TestWebhookRoutesCaptureAndVoid(t *testing.T) {
	uc := &stubUseCase{}
	r := newTestRouter(uc)

	capture := []byte(`{"id":"evt_2","type":"payment.captured","data":{"object":{"id":"pi_1"}}}`)
	w := deliver(t, r, capture, sign(capture, testSecret, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, uc.captureCalls)

	void := []byte(`{"id":"evt_3","type":"payment.voided","data":{"object":{"id":"pi_1"}}}`)
	w = deliver(t, r, void, sign(void, testSecret, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, uc.voidCalls)
}

func TestWebhookAcknowledgesUnknownEventType(t *testing.T) {
	uc := &stubUseCase{}
	r := newTestRouter(uc)

	body := []byte(`{"id":"evt_1","type":"customer.created","data":{"object":{}}}`)
	w := deliver(t, r, body, sign(body, testSecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, uc.checkoutCalls)
	assert.Zero(t, uc.refundCalls)
}

func TestWebhookAcknowledgesFatalFailures(t *testing.T) {
	uc := &stubUseCase{checkoutErr: fmt.Errorf("draft gone: %w", order.ErrDraftNotFound)}
	r := newTestRouter(uc)

	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_intent":"pi_1"}}}`)
	w := deliver(t, r, body, sign(body, testSecret, time.Now()))

	// Redelivery cannot resurrect a deleted draft, so the event is acked.
	assert.Equal(t, http.StatusOK, w.Code)
}

func newAdjustmentRouter(ledgerUC *stubLedgerUC) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewWebhookHandler(&stubUseCase{}, ledgerUC, testSecret, noopLogger{})
	h.RegisterRoutes(r)
	return r
}

func postAdjustment(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/stores/store_1/adjustments", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecordAdjustmentWritesLedgerEntry(t *testing.T) {
	ledgerUC := &stubLedgerUC{}
	r := newAdjustmentRouter(ledgerUC)

	w := postAdjustment(r, `{"type":"shipping_label","amount":595,"currency":"usd","description":"Label for order #1001"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, ledgerUC.recorded, 1)
	in := ledgerUC.recorded[0]
	assert.Equal(t, "store_1", in.StoreID)
	assert.Equal(t, model.TransactionShippingLabel, in.Type)
	assert.Equal(t, int64(595), in.Amount)
	assert.Equal(t, "Label for order #1001", in.Description)
}

func TestRecordAdjustmentRejectsSettlementTypes(t *testing.T) {
	ledgerUC := &stubLedgerUC{}
	r := newAdjustmentRouter(ledgerUC)

	// Payment credits only ever come from webhook settlement.
	w := postAdjustment(r, `{"type":"order_payment","amount":10000,"currency":"usd"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ledgerUC.recorded)
}

func TestRecordAdjustmentRejectsNonPositiveAmount(t *testing.T) {
	ledgerUC := &stubLedgerUC{}
	r := newAdjustmentRouter(ledgerUC)

	w := postAdjustment(r, `{"type":"adjustment","amount":-50,"currency":"usd"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ledgerUC.recorded)
}

func TestWebhookRequestsRedeliveryOnTransientFailure(t *testing.T) {
	uc := &stubUseCase{refundErr: fmt.Errorf("db connection reset")}
	r := newTestRouter(uc)

	body := []byte(`{"id":"evt_1","type":"refund.updated","data":{"object":{"id":"re_1","payment_intent":"pi_1"}}}`)
	w := deliver(t, r, body, sign(body, testSecret, time.Now()))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, uc.refundCalls)
}
