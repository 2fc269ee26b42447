// Package facilitator is the adapter for the external verify/settle service.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"paygate/internal/events"
	"paygate/internal/models"
)

var (
	ErrVerifyRejected = errors.New("payment verification rejected")
	ErrSettleRejected = errors.New("payment settlement rejected")
)

type Client struct {
	BaseURL string
	Client  *http.Client
	Tokens  TokenSource
	Timeout time.Duration
	Hooks   *events.Hooks
}

func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, hooks *events.Hooks) *Client {
	if hooks == nil {
		hooks = &events.Hooks{}
	}
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{},
		Tokens:  tokens,
		Timeout: timeout,
		Hooks:   hooks,
	}
}

type callRequest struct {
	X402Version         int                       `json:"x402Version"`
	PaymentPayload      json.RawMessage           `json:"paymentPayload"`
	PaymentRequirements models.PaymentRequirement `json:"paymentRequirements"`
}

type supportedResponse struct {
	Kinds []models.SupportedKind `json:"kinds"`
}

// Verify submits the raw proof document and the matching requirement for
// cryptographic verification. Transport failures, auth failures, and business
// rejections all surface as a failure outcome with an opaque reason.
func (c *Client) Verify(ctx context.Context, proofDoc json.RawMessage, req models.PaymentRequirement) (models.VerifyResult, error) {
	ev := events.FromRequirement(req)
	c.Hooks.EmitBeforeVerify(ctx, ev)

	var result models.VerifyResult
	err := c.post(ctx, "/verify", proofDoc, req, &result)
	if err == nil && !result.Valid {
		err = fmt.Errorf("%w: %s", ErrVerifyRejected, orUnspecified(result.Reason))
	}
	if err != nil {
		ev.Err = err
		c.Hooks.EmitVerifyFailed(ctx, ev)
		return models.VerifyResult{Valid: false, Reason: err.Error()}, err
	}

	ev.Payer = result.Payer
	c.Hooks.EmitAfterVerify(ctx, ev)
	return result, nil
}

// Settle asks the facilitator to broadcast the verified authorization.
func (c *Client) Settle(ctx context.Context, proofDoc json.RawMessage, req models.PaymentRequirement) (models.SettleResult, error) {
	ev := events.FromRequirement(req)
	c.Hooks.EmitBeforeSettle(ctx, ev)

	var result models.SettleResult
	err := c.post(ctx, "/settle", proofDoc, req, &result)
	if err == nil && !result.Success {
		err = fmt.Errorf("%w: %s", ErrSettleRejected, orUnspecified(result.Reason))
	}
	if err != nil {
		ev.Err = err
		c.Hooks.EmitSettleFailed(ctx, ev)
		return models.SettleResult{Success: false, Reason: err.Error()}, err
	}

	ev.Payer = result.Payer
	ev.Transaction = result.TxHash
	c.Hooks.EmitAfterSettle(ctx, ev)
	return result, nil
}

// Supported lists the scheme+network pairs the facilitator can handle.
func (c *Client) Supported(ctx context.Context) ([]models.SupportedKind, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/supported", nil)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(httpReq, http.MethodGet, "/supported"); err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("facilitator supported call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facilitator supported returned status %d", resp.StatusCode)
	}

	var supported supportedResponse
	if err := json.NewDecoder(resp.Body).Decode(&supported); err != nil {
		return nil, fmt.Errorf("decode supported response: %w", err)
	}
	return supported.Kinds, nil
}

func (c *Client) post(ctx context.Context, path string, proofDoc json.RawMessage, req models.PaymentRequirement, out any) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	body, err := json.Marshal(callRequest{
		X402Version:         models.X402Version,
		PaymentPayload:      proofDoc,
		PaymentRequirements: req,
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := c.authorize(httpReq, http.MethodPost, path); err != nil {
		return err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return fmt.Errorf("facilitator %s call failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseFailure(resp, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode facilitator %s response: %w", path, err)
	}
	return nil
}

// authorize mints a fresh credential per request, scoped to this exact call.
func (c *Client) authorize(req *http.Request, method, path string) error {
	if c.Tokens == nil {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("parse facilitator url: %w", err)
	}
	token, err := c.Tokens.Token(method, u.Host, path)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return ctx, func() {}
}

func (c *Client) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func parseFailure(resp *http.Response, path string) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	var errBody map[string]any
	if err := json.Unmarshal(bodyBytes, &errBody); err == nil {
		if reason, ok := errBody["invalidReason"].(string); ok && reason != "" {
			return fmt.Errorf("facilitator %s returned status %d: %s", path, resp.StatusCode, reason)
		}
		if reason, ok := errBody["errorReason"].(string); ok && reason != "" {
			return fmt.Errorf("facilitator %s returned status %d: %s", path, resp.StatusCode, reason)
		}
	}
	return fmt.Errorf("facilitator %s returned status %d", path, resp.StatusCode)
}

func orUnspecified(reason string) string {
	if reason == "" {
		return "unspecified"
	}
	return reason
}
