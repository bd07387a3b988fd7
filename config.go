package obscurate

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Obscuratexyz/obscurate-client/types"
	"github.com/Obscuratexyz/obscurate-client/utils"
)

// Environment variables consumed by ConfigFromEnv.
const (
	EnvSidecarURL     = "OBSCURATE_SIDECAR_URL"
	EnvDryRun         = "OBSCURATE_DRY_RUN"
	EnvMaxSpendTx     = "OBSCURATE_MAX_SPEND_TX"
	EnvMaxSpendHourly = "OBSCURATE_MAX_SPEND_HOURLY"
	EnvMaxRetries     = "OBSCURATE_MAX_RETRIES"
	EnvTimeout        = "OBSCURATE_TIMEOUT"
)

const (
	defaultSidecarURL = "http://localhost:3000"
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Second
)

var validate = validator.New()

// Config contains global configuration for the client. Spending caps use
// zero to mean "unlimited". A Config is read-only once the client is
// constructed; per-call overrides are threaded through request options and
// PayProtected scopes rather than mutated here.
type Config struct {
	// SidecarURL is the payment authority base URL.
	SidecarURL string `validate:"required"`

	// DryRun reports would-be payments instead of making them.
	DryRun bool

	// MaxSpendPerTx caps a single payment. Zero disables the cap.
	MaxSpendPerTx decimal.Decimal

	// MaxSpendHourly caps payments over a rolling hour. Zero disables.
	MaxSpendHourly decimal.Decimal

	// MaxRetries bounds request attempts within one logical call.
	MaxRetries int `validate:"min=1"`

	// Timeout applies to every outbound request, external and sidecar.
	Timeout time.Duration `validate:"min=0"`

	// LogLevel for the default zap logger.
	LogLevel string
}

// DefaultConfig returns the built-in defaults without consulting the
// environment.
func DefaultConfig() Config {
	return Config{
		SidecarURL: defaultSidecarURL,
		MaxRetries: defaultMaxRetries,
		Timeout:    defaultTimeout,
		LogLevel:   "info",
	}
}

// ConfigFromEnv builds a Config from OBSCURATE_* environment variables,
// falling back to defaults for anything unset.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv(EnvSidecarURL); v != "" {
		cfg.SidecarURL = v
	}

	switch strings.ToLower(os.Getenv(EnvDryRun)) {
	case "true", "1", "yes":
		cfg.DryRun = true
	}

	if v := os.Getenv(EnvMaxSpendTx); v != "" {
		d, err := utils.ValidateAmount(v)
		if err != nil {
			return cfg, &types.ConfigurationError{
				Message: fmt.Sprintf("invalid %s: %v", EnvMaxSpendTx, err),
			}
		}
		cfg.MaxSpendPerTx = *d
	}

	if v := os.Getenv(EnvMaxSpendHourly); v != "" {
		d, err := utils.ValidateAmount(v)
		if err != nil {
			return cfg, &types.ConfigurationError{
				Message: fmt.Sprintf("invalid %s: %v", EnvMaxSpendHourly, err),
			}
		}
		cfg.MaxSpendHourly = *d
	}

	if v := os.Getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, &types.ConfigurationError{
				Message: fmt.Sprintf("invalid %s: %q", EnvMaxRetries, v),
			}
		}
		cfg.MaxRetries = n
	}

	if v := os.Getenv(EnvTimeout); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs <= 0 {
			return cfg, &types.ConfigurationError{
				Message: fmt.Sprintf("invalid %s: %q", EnvTimeout, v),
			}
		}
		cfg.Timeout = time.Duration(secs * float64(time.Second))
	}

	return cfg, nil
}

// normalize validates the config and canonicalizes the sidecar URL.
func (c *Config) normalize() error {
	url, err := utils.ValidateSidecarURL(c.SidecarURL)
	if err != nil {
		return &types.ConfigurationError{Message: err.Error()}
	}
	c.SidecarURL = url

	if c.MaxSpendPerTx.IsNegative() || c.MaxSpendHourly.IsNegative() {
		return &types.ConfigurationError{Message: "spending caps cannot be negative"}
	}

	if err := validate.Struct(c); err != nil {
		return &types.ConfigurationError{Message: fmt.Sprintf("invalid config: %v", err)}
	}
	return nil
}
