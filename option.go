package obscurate

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Obscuratexyz/obscurate-client/logger"
	"github.com/Obscuratexyz/obscurate-client/metrics"
	"github.com/Obscuratexyz/obscurate-client/types"
)

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(c *Client) {
		c.config.Timeout = t
	}
}

// WithHTTPClient substitutes the transport used for both external requests
// and sidecar calls. The configured timeout is not applied on top of it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.conn.httpClient = hc
	}
}

func WithDryRun(enabled bool) Option {
	return func(c *Client) {
		c.config.DryRun = enabled
	}
}

// WithCredentials loads wallet credentials at construction time instead of
// via LoadCredentials.
func WithCredentials(encryptedSecret, secretPassword string) Option {
	return func(c *Client) {
		c.store.load(types.Credentials{
			EncryptedSecret: encryptedSecret,
			SecretPassword:  secretPassword,
		})
	}
}

// WithMaxSpendPerTx sets the per-transaction cap. Zero means unlimited.
func WithMaxSpendPerTx(d decimal.Decimal) Option {
	return func(c *Client) {
		c.config.MaxSpendPerTx = d
	}
}

// WithMaxSpendHourly sets the rolling-hour cap. Zero means unlimited.
func WithMaxSpendHourly(d decimal.Decimal) Option {
	return func(c *Client) {
		c.config.MaxSpendHourly = d
	}
}

// WithMaxRetries bounds attempts within one logical request.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.config.MaxRetries = n
	}
}
