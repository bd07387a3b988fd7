package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway error codes recognized in the payment authority's error envelope.
const (
	CodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	CodeNoteExhausted         = "NOTE_EXHAUSTED"
	CodeProofGenerationFailed = "PROOF_GENERATION_FAILED"
)

// Spending limit periods.
const (
	PeriodTransaction = "transaction"
	PeriodHourly      = "hourly"
)

// WalletLockedError indicates credentials are not loaded. The caller must
// load credentials before retrying any privileged operation.
type WalletLockedError struct{}

func (e *WalletLockedError) Error() string {
	return "wallet is locked: load credentials before wallet operations"
}

// InsufficientBalanceError indicates the wallet cannot cover a required
// payment. Recoverable by funding the wallet.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %s, have %s",
		e.Required.String(), e.Available.String())
}

// NoteExhaustedError indicates no spendable notes remain; an external
// top-up is required before any further payment.
type NoteExhaustedError struct{}

func (e *NoteExhaustedError) Error() string {
	return "all notes exhausted: deposit required"
}

// ChallengeExpiredError indicates the challenge attached to a 402 is past
// its expiry. Fatal to the current attempt; a fresh challenge must come
// from the origin server.
type ChallengeExpiredError struct {
	Resource  string
	ExpiredAt time.Time
}

func (e *ChallengeExpiredError) Error() string {
	return fmt.Sprintf("payment challenge for %s expired at %s",
		e.Resource, e.ExpiredAt.UTC().Format(time.RFC3339))
}

// SpendingLimitError is a policy rejection, not a fault: a payment would
// exceed a configured cap. Period is PeriodTransaction or PeriodHourly;
// for the hourly period Limit carries the remaining headroom.
type SpendingLimitError struct {
	Requested decimal.Decimal
	Limit     decimal.Decimal
	Period    string
}

func (e *SpendingLimitError) Error() string {
	return fmt.Sprintf("spending limit exceeded: %s requested, %s %s limit",
		e.Requested.String(), e.Limit.String(), e.Period)
}

// DryRunError signals that a payment would have occurred. It is an
// intentional simulation signal for test callers, not a genuine fault.
type DryRunError struct {
	Amount   decimal.Decimal
	Resource string
}

func (e *DryRunError) Error() string {
	return fmt.Sprintf("dry run: would pay %s for %s", e.Amount.String(), e.Resource)
}

// ProofGenerationError indicates the authority failed to build a proof.
// Safe to retry later, not safe to retry immediately with the same
// challenge.
type ProofGenerationError struct {
	Phase string
}

func (e *ProofGenerationError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("proof generation failed during %s", e.Phase)
	}
	return "proof generation failed"
}

// SidecarUnavailableError wraps a transport-level failure to reach the
// payment authority. Exponential-backoff retry is the recommended caller
// response.
type SidecarUnavailableError struct {
	URL string
	Err error
}

func (e *SidecarUnavailableError) Error() string {
	return fmt.Sprintf("payment sidecar unavailable at %s", e.URL)
}

func (e *SidecarUnavailableError) Unwrap() error {
	return e.Err
}

// GatewayError is an unmapped error envelope from the payment authority,
// surfaced with full detail for diagnostics.
type GatewayError struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ConfigurationError indicates client misuse, such as an operation
// attempted before Connect.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}
