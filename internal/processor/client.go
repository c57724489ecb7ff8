package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amanuela97/golden-hive-settlement/internal/ledger"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement"
	"github.com/amanuela97/golden-hive-settlement/internal/settlement/dto"
)

// Client talks to the payment processor's REST API. Events are never
// trusted on their own; this client is how intents and refund totals get
// re-fetched from the source of truth.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var (
	_ settlement.ProcessorClient    = (*Client)(nil)
	_ ledger.ProcessorBalanceSource = (*Client)(nil)
)

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*dto.PaymentIntent, error) {
	var intent dto.PaymentIntent
	if err := c.get(ctx, "/v1/payment_intents/"+url.PathEscape(id), &intent); err != nil {
		return nil, fmt.Errorf("failed to fetch payment intent %s: %w", id, err)
	}
	return &intent, nil
}

func (c *Client) ListSucceededRefunds(ctx context.Context, paymentIntentID string) ([]dto.Refund, error) {
	q := url.Values{}
	q.Set("payment_intent", paymentIntentID)
	q.Set("status", "succeeded")
	q.Set("limit", "100")

	var page struct {
		Data []dto.Refund `json:"data"`
	}
	if err := c.get(ctx, "/v1/refunds?"+q.Encode(), &page); err != nil {
		return nil, fmt.Errorf("failed to list refunds for %s: %w", paymentIntentID, err)
	}
	return page.Data, nil
}

func (c *Client) AvailableBalance(ctx context.Context, currency string) (int64, error) {
	var balance struct {
		Available []struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"available"`
	}
	if err := c.get(ctx, "/v1/balance", &balance); err != nil {
		return 0, fmt.Errorf("failed to fetch balance: %w", err)
	}

	for _, a := range balance.Available {
		if strings.EqualFold(a.Currency, currency) {
			return a.Amount, nil
		}
	}
	return 0, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("processor returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
