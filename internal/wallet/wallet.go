package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/skillbook/internal/models"
	"github.com/shopspring/decimal"
)

// Client fetches the caller's wallet state. Snapshots are fetched fresh on
// every payment-step entry and must not be reused across bookings.
type Client struct {
	Endpoint string
	Client   *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

type balanceResponse struct {
	Balance     decimal.Decimal `json:"balance"`
	SparkTokens decimal.Decimal `json:"spark_tokens"`
	Currency    string          `json:"currency"`
}

func (c *Client) Balance(ctx context.Context) (models.BalanceSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"/wallet/balance", nil)
	if err != nil {
		return models.BalanceSnapshot{}, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return models.BalanceSnapshot{}, fmt.Errorf("wallet balance: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.BalanceSnapshot{}, fmt.Errorf("wallet balance: unexpected status %d", resp.StatusCode)
	}
	var body balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.BalanceSnapshot{}, fmt.Errorf("wallet balance: decode: %w", err)
	}
	return models.BalanceSnapshot{
		CashAmount:   body.Balance,
		CashCurrency: body.Currency,
		TokenAmount:  body.SparkTokens,
	}, nil
}

// CashBalance fetches just the cash side of the wallet. The two balance types
// are fetched independently (and concurrently) by the booking flow, so each
// accessor fetches fresh rather than sharing a snapshot.
func (c *Client) CashBalance(ctx context.Context) (decimal.Decimal, string, error) {
	snap, err := c.Balance(ctx)
	if err != nil {
		return decimal.Zero, "", err
	}
	return snap.CashAmount, snap.CashCurrency, nil
}

// TokenBalance fetches just the spark-token side of the wallet.
func (c *Client) TokenBalance(ctx context.Context) (decimal.Decimal, error) {
	snap, err := c.Balance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.TokenAmount, nil
}

// GrantTokenAuthorization reserves spark tokens for a booking and returns the
// platform's authorization reference. This is the token-side counterpart of a
// card payment intent.
func (c *Client) GrantTokenAuthorization(ctx context.Context, amount decimal.Decimal) (string, error) {
	payload := fmt.Sprintf(`{"tokens":%s}`, amount.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/wallet/tokens/authorize", strings.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token authorization: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("token authorization: unexpected status %d", resp.StatusCode)
	}
	var body struct {
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("token authorization: decode: %w", err)
	}
	return body.Reference, nil
}

// RevokeTokenAuthorization returns reserved spark tokens to the wallet when
// the booking they were granted for fails.
func (c *Client) RevokeTokenAuthorization(ctx context.Context, reference string) error {
	payload := fmt.Sprintf(`{"reference":%q}`, reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/wallet/tokens/revoke", strings.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("token revoke: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("token revoke: unexpected status %d", resp.StatusCode)
	}
	return nil
}
