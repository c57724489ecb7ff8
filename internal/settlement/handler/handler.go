package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ledgerpkg "github.com/amanuela97/golden-hive-settlement/internal/ledger"
	ledgerdto "github.com/amanuela97/golden-hive-settlement/internal/ledger/dto"
	"github.com/amanuela97/golden-hive-settlement/internal/model"
	"github.com/amanuela97/golden-hive-settlement/internal/pkg/logger"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement/dto"
)

// signatureTolerance bounds how old a signed timestamp may be before the
// delivery is rejected as a possible replay.
const signatureTolerance = 5 * time.Minute

type WebhookHandler struct {
	uc            settlement.UseCase
	ledgerUC      ledgerpkg.UseCase
	webhookSecret string
	logger        logger.ZapLogger
}

func NewWebhookHandler(uc settlement.UseCase, ledgerUC ledgerpkg.UseCase, webhookSecret string, log logger.ZapLogger) *WebhookHandler {
	return &WebhookHandler{
		uc:            uc,
		ledgerUC:      ledgerUC,
		webhookSecret: webhookSecret,
		logger:        log,
	}
}

func (h *WebhookHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/webhooks/payments", h.HandleWebhook)
	r.GET("/stores/:storeId/balance", h.GetStoreBalance)
	r.GET("/stores/:storeId/transactions", h.ListStoreTransactions)
	r.POST("/stores/:storeId/adjustments", h.RecordAdjustment)
}

// HandleWebhook is the single intake for processor events. The signature
// is verified against the raw body before anything is parsed or touched;
// a delivery that fails verification is rejected outright.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if err := verifySignature(body, c.GetHeader("Webhook-Signature"), h.webhookSecret, time.Now()); err != nil {
		h.logger.Warn("rejected webhook with bad signature", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	var env dto.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.logger.Warn("rejected malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	ctx := c.Request.Context()

	switch env.Type {
	case dto.EventCheckoutCompleted:
		var session dto.CheckoutSession
		if err := json.Unmarshal(env.Data.Object, &session); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed checkout session"})
			return
		}
		err = h.uc.HandleCheckoutCompleted(ctx, env.ID, &session)

	case dto.EventRefundUpdated:
		var refund dto.Refund
		if err := json.Unmarshal(env.Data.Object, &refund); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed refund"})
			return
		}
		err = h.uc.HandleRefundUpdated(ctx, env.ID, &refund)

	case dto.EventPaymentCaptured, dto.EventPaymentVoided:
		var intent dto.PaymentIntent
		if err := json.Unmarshal(env.Data.Object, &intent); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payment intent"})
			return
		}
		if env.Type == dto.EventPaymentCaptured {
			err = h.uc.HandlePaymentCaptured(ctx, env.ID, intent.ID)
		} else {
			err = h.uc.HandlePaymentVoided(ctx, env.ID, intent.ID)
		}

	default:
		// Unrecognized types are acknowledged so the processor stops
		// redelivering them.
		h.logger.Debug("ignoring unhandled event type",
			zap.String("event_id", env.ID), zap.String("event_type", env.Type))
		c.JSON(http.StatusOK, gin.H{"received": true, "ignored": true})
		return
	}

	if err != nil {
		// Fatal errors are acknowledged: redelivering the same event can
		// never fix a missing order or unresolvable metadata, and an
		// endless retry loop would bury real failures.
		if settlement.IsFatal(err) {
			h.logger.Error("acknowledged unprocessable event",
				zap.String("event_id", env.ID),
				zap.String("event_type", env.Type),
				zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"received": true, "unprocessable": true})
			return
		}

		h.logger.Error("event processing failed, requesting redelivery",
			zap.String("event_id", env.ID),
			zap.String("event_type", env.Type),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) GetStoreBalance(c *gin.Context) {
	balance, err := h.ledgerUC.GetStoreBalance(c.Request.Context(), c.Param("storeId"))
	if err != nil {
		h.logger.Error("failed to load store balance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance"})
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (h *WebhookHandler) ListStoreTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	filters := &ledgerdto.TransactionFilters{
		StoreID:  c.Param("storeId"),
		Type:     c.Query("type"),
		Page:     page,
		PageSize: pageSize,
	}

	txns, total, err := h.ledgerUC.ListTransactions(c.Request.Context(), filters)
	if err != nil {
		h.logger.Error("failed to list transactions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

type adjustmentRequest struct {
	Type        string  `json:"type" binding:"required"`
	Amount      int64   `json:"amount" binding:"required"`
	Currency    string  `json:"currency" binding:"required"`
	Description string  `json:"description"`
	OrderID     *string `json:"order_id"`
}

// manualEntryTypes are the ledger entry types operators may post by hand.
// Payment and refund entries only ever come from webhook settlement.
var manualEntryTypes = map[model.TransactionType]bool{
	model.TransactionAdjustment:    true,
	model.TransactionShippingLabel: true,
	model.TransactionDispute:       true,
}

// RecordAdjustment writes a manual ledger entry against a store's balance
// (shipping label purchase, dispute hold, support adjustment).
func (h *WebhookHandler) RecordAdjustment(c *gin.Context) {
	var req adjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	if !manualEntryTypes[model.TransactionType(req.Type)] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported transaction type"})
		return
	}

	txn, err := h.ledgerUC.RecordTransaction(c.Request.Context(), &ledgerdto.RecordTransactionInput{
		StoreID:     c.Param("storeId"),
		Type:        model.TransactionType(req.Type),
		Amount:      req.Amount,
		Currency:    req.Currency,
		OrderID:     req.OrderID,
		Description: req.Description,
	})
	if err != nil {
		h.logger.Error("failed to record manual ledger entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record entry"})
		return
	}

	c.JSON(http.StatusCreated, txn)
}

// verifySignature checks the "t=<unix>,v1=<hex>" header: an HMAC-SHA256
// of "<t>.<body>" keyed with the shared secret, with the timestamp bounded
// by signatureTolerance.
func verifySignature(body []byte, header, secret string, now time.Time) error {
	if header == "" {
		return fmt.Errorf("missing signature header")
	}

	var ts string
	var sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return fmt.Errorf("signature header missing t or v1")
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid signature timestamp: %w", err)
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
