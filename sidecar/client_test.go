package sidecar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Obscuratexyz/obscurate-client/types"
)

var testCreds = types.Credentials{
	EncryptedSecret: "encrypted-note",
	SecretPassword:  "hunter2",
}

func testChallenge(amount string) *types.Challenge {
	return &types.Challenge{
		Version:           "1",
		Scheme:            "exact",
		Network:           "base-sepolia",
		MaxAmountRequired: amount,
		Resource:          "https://api.example.com/premium",
		Nonce:             "n1",
		Expiry:            time.Now().Add(time.Hour).Unix(),
	}
}

// fakeSidecar scripts the authority endpoints and counts calls.
type fakeSidecar struct {
	balanceStatus  int
	balanceBody    string
	generateStatus int
	generateBody   string

	balanceCalls  int
	generateCalls int
}

func (f *fakeSidecar) serve(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy","version":"0.4.1","uptime":120,"mode":"mock","chains":[{"chain":"base-sepolia","status":"ok"}]}`))
	})

	mux.HandleFunc("/api/balance", func(w http.ResponseWriter, r *http.Request) {
		f.balanceCalls++
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testCreds.EncryptedSecret, req["encryptedSecret"])
		assert.Equal(t, testCreds.SecretPassword, req["secretPassword"])

		w.WriteHeader(f.balanceStatus)
		w.Write([]byte(f.balanceBody))
	})

	mux.HandleFunc("/api/pay/generate", func(w http.ResponseWriter, r *http.Request) {
		f.generateCalls++
		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req, "challenge")

		w.WriteHeader(f.generateStatus)
		w.Write([]byte(f.generateBody))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func okBalance(total string) string {
	return `{"totalBalance":"` + total + `","noteCount":3,"largestNote":"5","smallestNote":"0.1","chain":"base-sepolia"}`
}

const okGenerate = `{"authHeader":"proof-token","amountPaid":"1.0","remainingBalance":"9.0","nullifierHash":"0xabc","proofId":"p-1"}`

func errEnvelope(code, message, details string) string {
	if details == "" {
		details = "{}"
	}
	return `{"error":{"code":"` + code + `","message":"` + message + `","details":` + details + `}}`
}

func TestHealth(t *testing.T) {
	f := &fakeSidecar{}
	srv := f.serve(t)
	c := New(srv.URL, srv.Client())

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "mock", health.Mode)
	assert.Len(t, health.Chains, 1)
}

func TestBalanceRequiresCredentials(t *testing.T) {
	f := &fakeSidecar{balanceStatus: http.StatusOK, balanceBody: okBalance("10")}
	srv := f.serve(t)
	c := New(srv.URL, srv.Client())

	_, err := c.Balance(context.Background(), types.Credentials{})

	var locked *types.WalletLockedError
	assert.ErrorAs(t, err, &locked)
	assert.Zero(t, f.balanceCalls)
}

func TestBalance(t *testing.T) {
	f := &fakeSidecar{balanceStatus: http.StatusOK, balanceBody: okBalance("12.5")}
	srv := f.serve(t)
	c := New(srv.URL, srv.Client())

	balance, err := c.Balance(context.Background(), testCreds)
	require.NoError(t, err)
	assert.True(t, balance.TotalBalance.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, 3, balance.NoteCount)
	assert.Equal(t, "base-sepolia", balance.Chain)
}

func TestAuthorizePayment(t *testing.T) {
	f := &fakeSidecar{
		balanceStatus:  http.StatusOK,
		balanceBody:    okBalance("10"),
		generateStatus: http.StatusOK,
		generateBody:   okGenerate,
	}
	srv := f.serve(t)
	c := New(srv.URL, srv.Client())

	auth, err := c.AuthorizePayment(context.Background(), testCreds, testChallenge("1.0"))
	require.NoError(t, err)

	assert.Equal(t, "proof-token", auth.AuthHeader)
	assert.True(t, auth.AmountPaid.Equal(decimal.RequireFromString("1")))
	assert.True(t, auth.RemainingBalance.Equal(decimal.RequireFromString("9")))
	assert.Equal(t, "p-1", auth.ProofID)
	assert.Equal(t, 1, f.balanceCalls)
	assert.Equal(t, 1, f.generateCalls)
}

func TestAuthorizePreCheckInsufficientBalance(t *testing.T) {
	f := &fakeSidecar{balanceStatus: http.StatusOK, balanceBody: okBalance("0.5")}
	srv := f.serve(t)
	c := New(srv.URL, srv.Client())

	_, err := c.AuthorizePayment(context.Background(), testCreds, testChallenge("1.0"))

	var insufficient *types.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Required.Equal(decimal.RequireFromString("1")))
	assert.True(t, insufficient.Available.Equal(decimal.RequireFromString("0.5")))
	assert.Zero(t, f.generateCalls, "generate must not be called when the pre-check fails the balance")
}

func TestAuthorizePreCheckFailureIsDeferred(t *testing.T) {
	// A broken balance endpoint is swallowed; the generate call decides.
	f := &fakeSidecar{
		balanceStatus:  http.StatusInternalServerError,
		balanceBody:    errEnvelope("INTERNAL", "boom", ""),
		generateStatus: http.StatusOK,
		generateBody:   okGenerate,
	}
	srv := f.serve(t)
	c := New(srv.URL, srv.Client())

	auth, err := c.AuthorizePayment(context.Background(), testCreds, testChallenge("1.0"))
	require.NoError(t, err)
	assert.Equal(t, "proof-token", auth.AuthHeader)
	assert.Equal(t, 1, f.generateCalls)
}

func TestAuthorizeMapsGatewayCodes(t *testing.T) {
	t.Run("insufficient balance", func(t *testing.T) {
		f := &fakeSidecar{
			balanceStatus:  http.StatusOK,
			balanceBody:    okBalance("10"),
			generateStatus: http.StatusBadRequest,
			generateBody:   errEnvelope(types.CodeInsufficientBalance, "not enough", `{"available":"0.2"}`),
		}
		srv := f.serve(t)
		c := New(srv.URL, srv.Client())

		_, err := c.AuthorizePayment(context.Background(), testCreds, testChallenge("1.0"))

		var insufficient *types.InsufficientBalanceError
		require.ErrorAs(t, err, &insufficient)
		assert.True(t, insufficient.Available.Equal(decimal.RequireFromString("0.2")))
	})

	t.Run("note exhausted", func(t *testing.T) {
		f := &fakeSidecar{
			balanceStatus:  http.StatusOK,
			balanceBody:    okBalance("10"),
			generateStatus: http.StatusConflict,
			generateBody:   errEnvelope(types.CodeNoteExhausted, "nothing left", ""),
		}
		srv := f.serve(t)
		c := New(srv.URL, srv.Client())

		_, err := c.AuthorizePayment(context.Background(), testCreds, testChallenge("1.0"))

		var exhausted *types.NoteExhaustedError
		assert.ErrorAs(t, err, &exhausted)
	})

	t.Run("proof generation failed", func(t *testing.T) {
		f := &fakeSidecar{
			balanceStatus:  http.StatusOK,
			balanceBody:    okBalance("10"),
			generateStatus: http.StatusInternalServerError,
			generateBody:   errEnvelope(types.CodeProofGenerationFailed, "circuit error", `{"phase":"witness"}`),
		}
		srv := f.serve(t)
		c := New(srv.URL, srv.Client())

		_, err := c.AuthorizePayment(context.Background(), testCreds, testChallenge("1.0"))

		var proof *types.ProofGenerationError
		require.ErrorAs(t, err, &proof)
		assert.Equal(t, "witness", proof.Phase)
	})

	t.Run("unmapped code surfaces as gateway error", func(t *testing.T) {
		f := &fakeSidecar{
			balanceStatus:  http.StatusOK,
			balanceBody:    okBalance("10"),
			generateStatus: http.StatusBadGateway,
			generateBody:   errEnvelope("FACILITATOR_REJECTED", "no", ""),
		}
		srv := f.serve(t)
		c := New(srv.URL, srv.Client())

		_, err := c.AuthorizePayment(context.Background(), testCreds, testChallenge("1.0"))

		var gw *types.GatewayError
		require.ErrorAs(t, err, &gw)
		assert.Equal(t, "FACILITATOR_REJECTED", gw.Code)
		assert.Equal(t, "no", gw.Message)
	})
}

func TestTransportErrorIsSidecarUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, nil)
	_, err := c.Health(context.Background())

	var unavailable *types.SidecarUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, url, unavailable.URL)
}

func TestMalformedErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, srv.Client())
	_, err := c.Health(context.Background())

	var gw *types.GatewayError
	require.ErrorAs(t, err, &gw)
	assert.Equal(t, "UNKNOWN", gw.Code)
}
