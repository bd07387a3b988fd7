package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAmount(t *testing.T) {
	d, err := ValidateAmount("1.50")
	require.NoError(t, err)
	assert.Equal(t, "1.5", d.String())

	d, err = ValidateAmount("0")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	for _, bad := range []string{"", "abc", "-0.01", "1.2.3"} {
		_, err := ValidateAmount(bad)
		assert.Error(t, err, "amount %q", bad)
	}
}

func TestValidateSidecarURL(t *testing.T) {
	url, err := ValidateSidecarURL("http://localhost:3000/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", url)

	url, err = ValidateSidecarURL("https://sidecar.internal")
	require.NoError(t, err)
	assert.Equal(t, "https://sidecar.internal", url)

	for _, bad := range []string{"", "localhost:3000", "ftp://sidecar"} {
		_, err := ValidateSidecarURL(bad)
		assert.Error(t, err, "url %q", bad)
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com/data?[REDACTED]",
		RedactURL("https://api.example.com/data?api_key=secret"))
	assert.Equal(t, "https://api.example.com/data",
		RedactURL("https://api.example.com/data"))
}

func TestTruncateNonce(t *testing.T) {
	assert.Equal(t, "abcd1234...", TruncateNonce("abcd1234efgh5678"))
	assert.Equal(t, "short", TruncateNonce("short"))
}
