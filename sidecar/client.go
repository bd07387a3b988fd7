// Package sidecar implements the HTTP client for the payment authority
// service. The sidecar owns the wallet secrets and all proof generation;
// this package only speaks its wire contract and maps its error envelope
// onto the client error taxonomy.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Obscuratexyz/obscurate-client/types"
)

// Authority is the surface the request executor depends on. The production
// implementation is Client; tests substitute fakes.
type Authority interface {
	Health(ctx context.Context) (*types.SidecarHealth, error)
	Balance(ctx context.Context, creds types.Credentials) (*types.WalletBalance, error)
	AuthorizePayment(ctx context.Context, creds types.Credentials, ch *types.Challenge) (*types.PaymentAuthorization, error)
}

// Client talks to one payment sidecar. It is stateless apart from its
// transport and safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a sidecar client for the given base URL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// BaseURL returns the sidecar base URL this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks sidecar health and connectivity.
func (c *Client) Health(ctx context.Context) (*types.SidecarHealth, error) {
	var health types.SidecarHealth
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

type balanceRequest struct {
	EncryptedSecret string `json:"encryptedSecret"`
	SecretPassword  string `json:"secretPassword"`
}

// Balance queries the wallet balance. Credentials are passed through to the
// sidecar unmodified and never retained.
func (c *Client) Balance(ctx context.Context, creds types.Credentials) (*types.WalletBalance, error) {
	if !creds.Loaded() {
		return nil, &types.WalletLockedError{}
	}

	req := balanceRequest{
		EncryptedSecret: creds.EncryptedSecret,
		SecretPassword:  creds.SecretPassword,
	}

	var balance types.WalletBalance
	if err := c.do(ctx, http.MethodPost, "/api/balance", req, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

type generateRequest struct {
	EncryptedSecret string           `json:"encryptedSecret"`
	SecretPassword  string           `json:"secretPassword"`
	Challenge       *types.Challenge `json:"challenge"`
}

// AuthorizePayment asks the sidecar to pay the given challenge and returns
// the proof-of-payment. The authorization is produced exactly once; any
// retry policy belongs to the caller.
//
// Before the authorize call, the current balance is checked best-effort
// against the challenge amount. Only a balance insufficiency surfaced by
// that pre-check propagates; every other pre-check failure (including
// transport errors) is intentionally swallowed and deferred to the
// sidecar's own validation inside the generate call. A sidecar outage can
// therefore first show up as a generate-time error rather than a
// balance-time one.
func (c *Client) AuthorizePayment(ctx context.Context, creds types.Credentials, ch *types.Challenge) (*types.PaymentAuthorization, error) {
	if !creds.Loaded() {
		return nil, &types.WalletLockedError{}
	}

	amount, err := ch.Amount()
	if err != nil {
		return nil, fmt.Errorf("invalid challenge amount: %w", err)
	}

	if balance, err := c.Balance(ctx, creds); err == nil {
		if balance.TotalBalance.LessThan(amount) {
			return nil, &types.InsufficientBalanceError{
				Required:  amount,
				Available: balance.TotalBalance,
			}
		}
	}

	req := generateRequest{
		EncryptedSecret: creds.EncryptedSecret,
		SecretPassword:  creds.SecretPassword,
		Challenge:       ch,
	}

	var auth types.PaymentAuthorization
	if err := c.do(ctx, http.MethodPost, "/api/pay/generate", req, &auth); err != nil {
		return nil, mapGatewayError(err, amount)
	}
	return &auth, nil
}

// errorEnvelope is the sidecar's 4xx/5xx response shape.
type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.SidecarUnavailableError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.SidecarUnavailableError{URL: c.baseURL, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeErrorEnvelope(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("invalid sidecar response: %w", err)
		}
	}
	return nil
}

func decodeErrorEnvelope(status int, data []byte) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code == "" {
		return &types.GatewayError{
			Code:    "UNKNOWN",
			Message: fmt.Sprintf("sidecar error: %d", status),
		}
	}
	return &types.GatewayError{
		Code:    envelope.Error.Code,
		Message: envelope.Error.Message,
		Details: envelope.Error.Details,
	}
}

// mapGatewayError lifts recognized gateway error codes from the generate
// call into their typed equivalents.
func mapGatewayError(err error, required decimal.Decimal) error {
	gw, ok := err.(*types.GatewayError)
	if !ok {
		return err
	}

	switch gw.Code {
	case types.CodeInsufficientBalance:
		return &types.InsufficientBalanceError{
			Required:  required,
			Available: detailDecimal(gw.Details, "available"),
		}
	case types.CodeNoteExhausted:
		return &types.NoteExhaustedError{}
	case types.CodeProofGenerationFailed:
		return &types.ProofGenerationError{Phase: detailString(gw.Details, "phase")}
	default:
		return gw
	}
}

func detailString(details map[string]any, key string) string {
	if s, ok := details[key].(string); ok {
		return s
	}
	return ""
}

func detailDecimal(details map[string]any, key string) decimal.Decimal {
	switch v := details[key].(type) {
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	}
	return decimal.Zero
}
