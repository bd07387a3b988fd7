package utils

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Obscuratexyz/obscurate-client/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Header sources searched for a challenge, in priority order.
const (
	HeaderWWWAuthenticate = "WWW-Authenticate"
	HeaderX402Challenge   = "X402-Challenge"
)

// x402Scheme is the optional auth-scheme prefix on header-carried challenges.
const x402Scheme = "x402 "

// Wrapper keys recognized in body-carried challenges.
const (
	bodyWrapperKey = "x402"
	bodyAcceptsKey = "accepts"
)

// snake_case aliases accepted at the decode boundary. Internal code only
// ever sees the canonical camelCase record.
var challengeAliases = map[string]string{
	"max_amount_required": "maxAmountRequired",
	"facilitator_data":    "facilitatorData",
}

// DecodeChallenge parses a single JSON challenge object into the canonical
// record, accepting either camelCase or snake_case field names.
func DecodeChallenge(data []byte) (*types.Challenge, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("challenge is not a JSON object: %w", err)
	}

	for alias, canonical := range challengeAliases {
		if v, ok := fields[alias]; ok {
			if _, exists := fields[canonical]; !exists {
				fields[canonical] = v
			}
			delete(fields, alias)
		}
	}

	normalized, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	var ch types.Challenge
	if err := json.Unmarshal(normalized, &ch); err != nil {
		return nil, fmt.Errorf("failed to parse challenge: %w", err)
	}

	if ch.Version == "" {
		ch.Version = types.ProtocolVersion
	}

	if err := validate.Struct(&ch); err != nil {
		return nil, fmt.Errorf("challenge validation failed: %w", err)
	}

	amount, err := ch.Amount()
	if err != nil {
		return nil, fmt.Errorf("invalid challenge amount %q: %w", ch.MaxAmountRequired, err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("challenge amount cannot be negative: %s", ch.MaxAmountRequired)
	}

	return &ch, nil
}

// DecodeChallengeHeader parses a challenge from a WWW-Authenticate or
// X402-Challenge header value. The value may carry an "x402 " scheme prefix
// and may be base64-encoded JSON or raw JSON.
func DecodeChallengeHeader(value string) (*types.Challenge, error) {
	value = strings.TrimPrefix(value, x402Scheme)

	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		if ch, err := DecodeChallenge(decoded); err == nil {
			return ch, nil
		}
	}

	ch, err := DecodeChallenge([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("cannot parse x402 challenge header: %w", err)
	}
	return ch, nil
}

// DecodeChallengeBody parses a challenge from a 402 response body.
//
// Three shapes are accepted: a bare challenge object, a non-empty array of
// challenge objects (first wins), and an object wrapping the challenge under
// "x402", itself optionally holding an "accepts" array of payment options
// (first accepted option wins).
func DecodeChallengeBody(body []byte) (*types.Challenge, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("response body is not JSON: %w", err)
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("challenge array is empty")
		}
		raw = list[0]
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("challenge body is not a JSON object: %w", err)
	}

	if inner, ok := wrapper[bodyWrapperKey]; ok {
		raw = inner
		wrapper = nil
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("x402 wrapper is not a JSON object: %w", err)
		}
	}

	if accepts, ok := wrapper[bodyAcceptsKey]; ok {
		var options []json.RawMessage
		if err := json.Unmarshal(accepts, &options); err == nil {
			if len(options) == 0 {
				return nil, fmt.Errorf("accepts list is empty")
			}
			raw = options[0]
		}
	}

	return DecodeChallenge(raw)
}

// ExtractChallenge locates and parses a payment challenge in a 402 response.
//
// Sources are searched in order: WWW-Authenticate header, X402-Challenge
// header, response body; the first successful parse wins. A header that
// fails to parse is treated as absent and falls through to the next source.
// A nil challenge with a nil error means no challenge was present; a non-nil
// error means a body was present but malformed. Callers are expected to
// treat both as "no challenge" and surface the original response unchanged.
func ExtractChallenge(status int, header http.Header, body []byte) (*types.Challenge, error) {
	if status != http.StatusPaymentRequired {
		return nil, nil
	}

	if v := header.Get(HeaderWWWAuthenticate); v != "" {
		if ch, err := DecodeChallengeHeader(v); err == nil {
			return ch, nil
		}
	}

	if v := header.Get(HeaderX402Challenge); v != "" {
		if ch, err := DecodeChallengeHeader(v); err == nil {
			return ch, nil
		}
	}

	if len(body) > 0 {
		ch, err := DecodeChallengeBody(body)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}

	return nil, nil
}
