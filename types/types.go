package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProtocolVersion is the x402 protocol version this client speaks.
const ProtocolVersion = "1"

// PaymentScheme represents different payment schemes
type PaymentScheme string

const (
	SchemeExact PaymentScheme = "exact"
	SchemeUpto  PaymentScheme = "upto"
)

// PaymentHeader is the header carrying the proof-of-payment on a retried
// request.
const PaymentHeader = "X-PAYMENT"

// Challenge is an x402 payment demand issued alongside a 402 response.
//
// A Challenge is constructed once per 402 by the extraction codec, is
// immutable afterwards, and is never reused across requests. The wire
// encoding is camelCase; snake_case aliases are accepted at the decode
// boundary only (see utils.DecodeChallenge).
type Challenge struct {
	// Version of the x402 payment protocol.
	Version string `json:"version"`

	// Scheme of the payment protocol to use (e.g., "exact", "upto").
	Scheme string `json:"scheme" validate:"required"`

	// Network identifier the payment must be made on.
	Network string `json:"network" validate:"required"`

	// Maximum amount required to pay for the resource, as a decimal string.
	// Kept as a string on the wire because amounts must never round-trip
	// through a binary float.
	MaxAmountRequired string `json:"maxAmountRequired" validate:"required"`

	// URL of the resource to pay for.
	Resource string `json:"resource" validate:"required"`

	// Description of the resource being purchased.
	Description string `json:"description,omitempty"`

	// Facilitator address, if the gateway names one.
	Facilitator string `json:"facilitator,omitempty"`

	// Opaque facilitator-specific data, passed through untouched.
	FacilitatorData string `json:"facilitatorData,omitempty"`

	// Unique challenge nonce.
	Nonce string `json:"nonce" validate:"required"`

	// Unix timestamp after which the challenge is no longer payable.
	Expiry int64 `json:"expiry" validate:"required"`
}

// Amount returns the challenge amount as a decimal.
// The codec validates the field at decode time, so a Challenge obtained
// from utils.DecodeChallenge always has a parseable, non-negative amount.
func (c *Challenge) Amount() (decimal.Decimal, error) {
	return decimal.NewFromString(c.MaxAmountRequired)
}

// ExpiresAt returns the expiry as an absolute point in time.
func (c *Challenge) ExpiresAt() time.Time {
	return time.Unix(c.Expiry, 0)
}

// Expired reports whether the challenge is past its expiry at the given
// instant.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt())
}

// Credentials hold the encrypted wallet secret and its unlock passphrase.
// They live only in memory, are passed through to the payment authority
// unmodified, and must never appear in logs.
type Credentials struct {
	EncryptedSecret string `json:"encryptedSecret"`
	SecretPassword  string `json:"secretPassword"`
}

// Loaded reports whether both halves of the credential pair are present.
func (c Credentials) Loaded() bool {
	return c.EncryptedSecret != "" && c.SecretPassword != ""
}

// PaymentAuthorization is the result of a successful authorization call to
// the payment authority. It is produced exactly once per payment; retrying
// is the executor's responsibility, never the authority client's.
type PaymentAuthorization struct {
	// AuthHeader is the opaque proof-of-payment token attached to the
	// retried request under PaymentHeader.
	AuthHeader string `json:"authHeader"`

	// AmountPaid is the amount actually debited.
	AmountPaid decimal.Decimal `json:"amountPaid"`

	// RemainingBalance after the payment.
	RemainingBalance decimal.Decimal `json:"remainingBalance"`

	// NullifierHash of the spent note, when the authority reports one.
	// Audit logging only.
	NullifierHash string `json:"nullifierHash,omitempty"`

	// ProofID identifies the generated proof, when reported.
	ProofID string `json:"proofId,omitempty"`
}

// WalletBalance describes the funds the payment authority can spend.
type WalletBalance struct {
	TotalBalance decimal.Decimal `json:"totalBalance"`
	NoteCount    int             `json:"noteCount"`
	LargestNote  decimal.Decimal `json:"largestNote"`
	SmallestNote decimal.Decimal `json:"smallestNote"`
	Chain        string          `json:"chain"`
}

// SidecarHealth is the payment authority's health report.
type SidecarHealth struct {
	Status  string           `json:"status"`
	Version string           `json:"version"`
	Uptime  int64            `json:"uptime"`
	Mode    string           `json:"mode"`
	Chains  []map[string]any `json:"chains"`
}
