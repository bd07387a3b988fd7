package obscurate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Obscuratexyz/obscurate-client/ledger"
	"github.com/Obscuratexyz/obscurate-client/metrics"
	"github.com/Obscuratexyz/obscurate-client/types"
	"github.com/Obscuratexyz/obscurate-client/utils"
)

// requestOptions is the per-call configuration threaded through one
// logical request. It never escapes the call, so scoped overrides cannot
// leak across concurrent requests.
type requestOptions struct {
	autoPay     bool
	maxSpend    *decimal.Decimal
	maxRetries  int
	header      http.Header
	query       url.Values
	body        []byte
	contentType string
	err         error
}

type RequestOption func(*requestOptions)

// WithAutoPayDisabled returns 402 responses to the caller unmodified
// instead of paying.
func WithAutoPayDisabled() RequestOption {
	return func(o *requestOptions) {
		o.autoPay = false
	}
}

// WithMaxSpend overrides the per-transaction cap for this call only.
// Zero means unlimited.
func WithMaxSpend(d decimal.Decimal) RequestOption {
	return func(o *requestOptions) {
		o.maxSpend = &d
	}
}

// WithRetries overrides the attempt ceiling for this call.
func WithRetries(n int) RequestOption {
	return func(o *requestOptions) {
		o.maxRetries = n
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.header.Set(key, value)
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.query.Add(key, value)
	}
}

// WithBody sets a raw request body.
func WithBody(body []byte, contentType string) RequestOption {
	return func(o *requestOptions) {
		o.body = body
		o.contentType = contentType
	}
}

// WithJSONBody marshals v as the request body.
func WithJSONBody(v any) RequestOption {
	return func(o *requestOptions) {
		data, err := json.Marshal(v)
		if err != nil {
			o.err = err
			return
		}
		o.body = data
		o.contentType = "application/json"
	}
}

// Get issues a GET request with automatic payment handling.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, opts...)
}

// Post issues a POST request with automatic payment handling.
func (c *Client) Post(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, url, opts...)
}

// Put issues a PUT request with automatic payment handling.
func (c *Client) Put(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, http.MethodPut, url, opts...)
}

// Delete issues a DELETE request with automatic payment handling.
func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, http.MethodDelete, url, opts...)
}

// Do runs one logical request through the payment interception loop:
//
//  1. Send the request with the current header set.
//  2. Anything but 402 is returned as-is. With auto-pay off, so is a 402.
//  3. Extract the challenge; a 402 without a parseable challenge is
//     returned unchanged (some 402s have nothing to do with x402).
//  4. Enforce expiry, then the per-transaction cap, then the hourly cap.
//  5. In dry-run mode report the would-be payment and stop.
//  6. With credentials loaded, ask the sidecar to authorize the payment.
//  7. Record the spend, attach the proof under X-PAYMENT, and go again.
//
// The loop is bounded by the attempt ceiling; if every attempt comes back
// 402 the last 402 is returned rather than an error. The payment header is
// only ever added, never removed, within one call.
func (c *Client) Do(ctx context.Context, method, rawURL string, opts ...RequestOption) (*http.Response, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	o := requestOptions{
		autoPay:    true,
		maxRetries: c.config.MaxRetries,
		header:     make(http.Header),
		query:      make(url.Values),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}
	if o.maxRetries < 1 {
		o.maxRetries = 1
	}

	target, err := applyQuery(rawURL, o.query)
	if err != nil {
		return nil, err
	}

	callID := uuid.NewString()
	redacted := utils.RedactURL(target)

	var resp *http.Response
	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		resp, err = c.send(ctx, method, target, &o)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusPaymentRequired {
			return resp, nil
		}

		if !o.autoPay {
			return resp, nil
		}

		body, err := drainBody(resp)
		if err != nil {
			return nil, err
		}

		ch, extractErr := utils.ExtractChallenge(resp.StatusCode, resp.Header, body)
		if ch == nil {
			fields := map[string]any{"call_id": callID, "resource": redacted}
			if extractErr != nil {
				fields["error"] = extractErr.Error()
			}
			c.log.Warn("got 402 but could not extract challenge", fields)
			return resp, nil
		}

		now := time.Now()
		if ch.Expired(now) {
			return nil, &types.ChallengeExpiredError{
				Resource:  target,
				ExpiredAt: ch.ExpiresAt(),
			}
		}

		amount, err := ch.Amount()
		if err != nil {
			// Unreachable for a codec-produced challenge; belt only.
			return nil, err
		}

		if err := c.checkSpendPolicy(amount, &o, now); err != nil {
			return nil, err
		}

		labels := map[string]string{"network": ch.Network}
		c.metrics.IncCounter(metrics.EventPaymentAttempt, labels)
		c.log.Info("payment attempt", map[string]any{
			"call_id":  callID,
			"resource": redacted,
			"amount":   amount.String(),
			"nonce":    utils.TruncateNonce(ch.Nonce),
			"attempt":  attempt,
		})

		if c.config.DryRun {
			c.metrics.IncCounter(metrics.EventPaymentDryRun, labels)
			c.log.Info("dry run: simulated payment", map[string]any{
				"call_id":  callID,
				"resource": redacted,
				"amount":   amount.String(),
			})
			return nil, &types.DryRunError{Amount: amount, Resource: target}
		}

		if err := c.ensureUnlocked(); err != nil {
			return nil, err
		}

		start := time.Now()
		auth, err := c.conn.authority.AuthorizePayment(ctx, c.store.get(), ch)
		c.metrics.ObserveLatency(metrics.OpAuthorize, time.Since(start), labels)
		if err != nil {
			c.metrics.IncCounter(metrics.EventPaymentFailure, labels)
			var insufficient *types.InsufficientBalanceError
			if errors.As(err, &insufficient) {
				c.log.Warn("payment failed", map[string]any{
					"call_id":    callID,
					"resource":   redacted,
					"error_code": types.CodeInsufficientBalance,
				})
			}
			return nil, err
		}

		c.ledger.Record(auth.AmountPaid, time.Now())
		c.metrics.IncCounter(metrics.EventPaymentSuccess, labels)
		c.log.Info("payment successful", map[string]any{
			"call_id":           callID,
			"resource":          redacted,
			"amount":            auth.AmountPaid.String(),
			"remaining_balance": auth.RemainingBalance.String(),
		})

		o.header.Set(types.PaymentHeader, auth.AuthHeader)

		c.log.Debug("retrying with payment header", map[string]any{
			"call_id": callID,
			"method":  method,
			"attempt": attempt,
		})
	}

	// Attempt ceiling reached; hand the caller the last 402.
	return resp, nil
}

// checkSpendPolicy enforces the per-transaction cap before the hourly cap.
// The effective transaction cap is the per-call override when present,
// otherwise the configured default; zero caps are unlimited.
func (c *Client) checkSpendPolicy(amount decimal.Decimal, o *requestOptions, now time.Time) error {
	effectiveMax := c.config.MaxSpendPerTx
	if o.maxSpend != nil {
		effectiveMax = *o.maxSpend
	}

	if effectiveMax.IsPositive() && amount.GreaterThan(effectiveMax) {
		return &types.SpendingLimitError{
			Requested: amount,
			Limit:     effectiveMax,
			Period:    types.PeriodTransaction,
		}
	}

	if c.config.MaxSpendHourly.IsPositive() {
		spent := c.ledger.SpentInWindow(now, ledger.DefaultWindow)
		if spent.Add(amount).GreaterThan(c.config.MaxSpendHourly) {
			return &types.SpendingLimitError{
				Requested: amount,
				Limit:     c.config.MaxSpendHourly.Sub(spent),
				Period:    types.PeriodHourly,
			}
		}
	}

	return nil
}

// send builds and issues one attempt. The body is replayed from the
// buffered bytes so retries carry an identical payload.
func (c *Client) send(ctx context.Context, method, target string, o *requestOptions) (*http.Response, error) {
	var body io.Reader
	if o.body != nil {
		body = bytes.NewReader(o.body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range o.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if o.contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", o.contentType)
	}

	return c.conn.httpClient.Do(req)
}

// drainBody reads and closes the response body, then swaps in a replayable
// copy so the response can still be handed back to the caller untouched.
func drainBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func applyQuery(rawURL string, query url.Values) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
