package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadMessageRoundTrip(t *testing.T) {
	original := DownloadMessage{
		AssetID:   "c1f9a7e0-9f4e-4a51-9d2b-1f2a3b4c5d6e",
		Wallet:    "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		Nonce:     "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		ExpiresAt: time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second),
	}

	message := BuildDownloadMessage(original)
	parsed := ParseDownloadMessage(message)

	require.NotNil(t, parsed)
	assert.Equal(t, original.AssetID, parsed.AssetID)
	assert.Equal(t, original.Wallet, parsed.Wallet)
	assert.Equal(t, original.Nonce, parsed.Nonce)
	assert.True(t, original.ExpiresAt.Equal(parsed.ExpiresAt))
}

func TestSignInMessageRoundTrip(t *testing.T) {
	original := SignInMessage{
		Wallet:   "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		Nonce:    "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		IssuedAt: time.Now().UTC().Truncate(time.Second),
	}

	message := BuildSignInMessage(original)
	parsed := ParseSignInMessage(message)

	require.NotNil(t, parsed)
	assert.Equal(t, original.Wallet, parsed.Wallet)
	assert.Equal(t, original.Nonce, parsed.Nonce)
	assert.True(t, original.IssuedAt.Equal(parsed.IssuedAt))
}

func TestParseDownloadMessageRejectsMalformed(t *testing.T) {
	valid := BuildDownloadMessage(DownloadMessage{
		AssetID:   "asset-1",
		Wallet:    "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		Nonce:     "abc123",
		ExpiresAt: time.Now().Add(time.Minute).UTC().Truncate(time.Second),
	})

	cases := map[string]string{
		"empty":           "",
		"preamble only":   "desperse.app wants you to authorize a download with your Solana account.",
		"wrong preamble":  strings.Replace(valid, "desperse.app", "evil.app", 1),
		"missing blank":   strings.Replace(valid, ".\n\nAsset", ".\nAsset", 1),
		"empty value":     strings.Replace(valid, "Asset: asset-1", "Asset: ", 1),
		"wrong label":     strings.Replace(valid, "Nonce: ", "Number: ", 1),
		"reordered lines": strings.Replace(strings.Replace(valid, "Asset: ", "Wallet: ", 1), "Wallet: 9Wz", "Asset: 9Wz", 1),
		"bad timestamp":   strings.Replace(valid, "Expires At: 2", "Expires At: x", 1),
	}

	for name, message := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, ParseDownloadMessage(message))
		})
	}
}

func TestParseSignInMessageRejectsMalformed(t *testing.T) {
	assert.Nil(t, ParseSignInMessage(""))
	assert.Nil(t, ParseSignInMessage("Wallet: x\nNonce: y\nIssued At: z"))

	// A download message must not parse as a sign-in message.
	download := BuildDownloadMessage(DownloadMessage{
		AssetID:   "asset-1",
		Wallet:    "w",
		Nonce:     "n",
		ExpiresAt: time.Now(),
	})
	assert.Nil(t, ParseSignInMessage(download))
}
