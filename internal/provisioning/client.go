// Package provisioning talks to the external payment processor that issues
// single-use receiving addresses.
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"paygate/internal/config"
)

var (
	ErrNoNextAction   = errors.New("provisioning response has no next action")
	ErrNoAddress      = errors.New("provisioning response has no address for network")
	ErrInvalidAddress = errors.New("provisioned address failed validation")
)

type Client struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
	Timeout  time.Duration
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{},
		Timeout:  timeout,
	}
}

type intentRequest struct {
	Amount             int64    `json:"amount"`
	Currency           string   `json:"currency"`
	PaymentMethodTypes []string `json:"payment_method_types"`
	Confirm            bool     `json:"confirm"`
}

type intentResponse struct {
	ID         string `json:"id"`
	NextAction *struct {
		CryptoDepositAddresses map[string]string `json:"crypto_deposit_addresses"`
	} `json:"next_action"`
}

// Provision asks the processor to collect the given amount (in minor currency
// units) and returns the freshly generated receiving address for the target
// network, plus the opaque intent id kept for audit only. The address is
// validated against the option's address family before being returned.
func (c *Client) Provision(ctx context.Context, amountMinor int64, currency string, opt config.PaymentOption) (string, string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(intentRequest{
		Amount:             amountMinor,
		Currency:           currency,
		PaymentMethodTypes: []string{"crypto"},
		Confirm:            true,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", "", fmt.Errorf("provisioning request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", "", fmt.Errorf("provisioning returned status %d: %s", resp.StatusCode, snippet)
	}

	var intent intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return "", "", fmt.Errorf("decode provisioning response: %w", err)
	}
	if intent.NextAction == nil || len(intent.NextAction.CryptoDepositAddresses) == 0 {
		return "", "", ErrNoNextAction
	}

	addr, ok := intent.NextAction.CryptoDepositAddresses[opt.Network]
	if !ok || addr == "" {
		return "", "", fmt.Errorf("%w %q", ErrNoAddress, opt.Network)
	}
	if err := ValidateAddress(addr, opt.Family); err != nil {
		return "", "", err
	}

	return addr, intent.ID, nil
}

func (c *Client) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}
