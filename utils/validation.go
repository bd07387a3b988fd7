package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ValidateSidecarURL normalizes and validates a payment sidecar base URL.
func ValidateSidecarURL(url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("sidecar URL cannot be empty")
	}

	url = strings.TrimRight(url, "/")

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("invalid sidecar URL scheme: %s", url)
	}

	return url, nil
}

// RedactURL strips query parameters from a URL before it reaches a log line,
// since query strings routinely carry API keys.
func RedactURL(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i] + "?[REDACTED]"
	}
	return url
}

// TruncateNonce shortens a challenge nonce for logging.
func TruncateNonce(nonce string) string {
	if len(nonce) <= 8 {
		return nonce
	}
	return nonce[:8] + "..."
}
