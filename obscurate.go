// Package obscurate provides an HTTP client that transparently pays for
// access when a server answers 402 Payment Required, following the x402
// challenge/response convention. Wallet secrets and proof generation live
// in an external payment sidecar; this client orchestrates challenge
// extraction, spend policy, and the pay-and-retry loop.
package obscurate

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/Obscuratexyz/obscurate-client/ledger"
	"github.com/Obscuratexyz/obscurate-client/logger"
	"github.com/Obscuratexyz/obscurate-client/metrics"
	"github.com/Obscuratexyz/obscurate-client/sidecar"
	"github.com/Obscuratexyz/obscurate-client/types"
)

// credentialStore guards the in-memory credential pair. It is shared
// between a client and every PayProtected view derived from it.
type credentialStore struct {
	mu    sync.RWMutex
	creds types.Credentials
}

func (s *credentialStore) load(creds types.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
}

func (s *credentialStore) get() types.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

func (s *credentialStore) loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Loaded()
}

// connState holds the connection-scoped resources. Like the credential
// store it is shared by pointer with every PayProtected view, so a view
// derived before Connect sees the transport once either side connects.
type connState struct {
	mu         sync.Mutex
	httpClient *http.Client
	authority  sidecar.Authority
	connected  atomic.Bool
}

// Client is the auto-paying HTTP client. Construct with New, call Connect
// before use, and Close when done.
//
// A Client is safe for concurrent use. The spend ledger is shared across
// all concurrent calls; per-call overrides never mutate shared state.
type Client struct {
	config Config

	store  *credentialStore
	ledger *ledger.SpendLedger
	conn   *connState

	log     logger.Logger
	metrics metrics.Recorder
}

// New creates a client from the given configuration and options. The
// returned client is not yet connected.
func New(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		config:  cfg,
		store:   &credentialStore{},
		ledger:  ledger.New(),
		conn:    &connState{},
		metrics: metrics.NoopRecorder{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.config.normalize(); err != nil {
		return nil, err
	}

	if c.log == nil {
		c.log = logger.NewZapLogger(c.config.LogLevel)
	}

	return c, nil
}

// NewFromEnv creates a client configured from OBSCURATE_* environment
// variables.
func NewFromEnv(opts ...Option) (*Client, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Connect initializes the transport and verifies sidecar connectivity.
// Calling Connect on an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()

	if c.conn.connected.Load() {
		return nil
	}

	if c.conn.httpClient == nil {
		c.conn.httpClient = &http.Client{Timeout: c.config.Timeout}
	}
	if c.conn.authority == nil {
		c.conn.authority = sidecar.New(c.config.SidecarURL, c.conn.httpClient)
	}

	health, err := c.conn.authority.Health(ctx)
	if err != nil {
		var unavailable *types.SidecarUnavailableError
		if !errors.As(err, &unavailable) {
			err = &types.SidecarUnavailableError{URL: c.config.SidecarURL, Err: err}
		}
		return err
	}

	c.log.Info("connected to payment sidecar", map[string]any{
		"version": health.Version,
		"mode":    health.Mode,
		"status":  health.Status,
	})

	c.conn.connected.Store(true)
	return nil
}

// Close releases transport resources. The client can be reconnected with
// Connect afterwards.
func (c *Client) Close() {
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	if c.conn.httpClient != nil {
		c.conn.httpClient.CloseIdleConnections()
	}
	c.conn.connected.Store(false)
}

// LoadCredentials stores the wallet credential pair. Call before any
// payment if credentials were not supplied at construction.
func (c *Client) LoadCredentials(encryptedSecret, secretPassword string) {
	c.store.load(types.Credentials{
		EncryptedSecret: encryptedSecret,
		SecretPassword:  secretPassword,
	})
}

// IsUnlocked reports whether wallet credentials are loaded.
func (c *Client) IsUnlocked() bool {
	return c.store.loaded()
}

// Health checks sidecar health.
func (c *Client) Health(ctx context.Context) (*types.SidecarHealth, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}
	return c.conn.authority.Health(ctx)
}

// PayProtected returns a view of this client whose per-transaction cap is
// narrowed to maxSpend. The view shares the ledger, credentials, and
// connection state with its parent, so it can be derived before or after
// Connect; the parent's cap is untouched no matter how work under the view
// ends, so the narrowing cannot leak into unrelated concurrent calls.
func (c *Client) PayProtected(maxSpend decimal.Decimal) *Client {
	scoped := *c
	scoped.config.MaxSpendPerTx = maxSpend
	return &scoped
}

func (c *Client) ensureConnected() error {
	if !c.conn.connected.Load() {
		return &types.ConfigurationError{Message: "client not connected: call Connect first"}
	}
	return nil
}

func (c *Client) ensureUnlocked() error {
	if !c.store.loaded() {
		return &types.WalletLockedError{}
	}
	return nil
}

// Version information
const Version = "1.0.0"
