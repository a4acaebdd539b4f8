// Package tokenizer implements the session token codec: compact,
// stateless, HMAC-signed bearer tokens. A token is
//
//	dsps1.<base64url(payload JSON)>.<base64url(HMAC-SHA256)>
//
// with no server-side record. Validity is entirely a function of the
// signature and the embedded expiry, so revocation before natural expiry
// is impossible.
package tokenizer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/cdecaire/desperse-public-sub002/core"
)

// TokenPrefix identifies the token scheme and version.
const TokenPrefix = "dsps1."

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Strict decoding rejects non-zero trailing bits, so a flipped bit in
// the final base64 character cannot alias to the same signature bytes.
var b64 = base64.RawURLEncoding.Strict()

type sessionPayload struct {
	UserID string `json:"uid"`
	Wallet string `json:"wal"`
	Exp    int64  `json:"exp"`
}

// HMACTokenizer signs and validates session tokens with a server secret.
type HMACTokenizer struct {
	secret []byte
	ttl    time.Duration
}

// NewHMACTokenizer creates a tokenizer. The secret is mandatory; an
// empty one is a configuration error the process must not start with.
func NewHMACTokenizer(secret string, ttl time.Duration) (*HMACTokenizer, error) {
	if secret == "" {
		return nil, errors.New("session signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &HMACTokenizer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue returns a signed token for the user/wallet pair and its expiry.
func (t *HMACTokenizer) Issue(userID, wallet string) (string, time.Time, error) {
	expiresAt := time.Now().Add(t.ttl)
	payload, err := json.Marshal(sessionPayload{
		UserID: userID,
		Wallet: wallet,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return "", time.Time{}, err
	}

	encoded := b64.EncodeToString(payload)
	return TokenPrefix + encoded + "." + b64.EncodeToString(t.sign(encoded)), expiresAt, nil
}

// Validate checks structure, signature, and expiry. Every failure mode
// collapses to core.ErrSessionInvalid so callers probing tokens learn
// nothing about why one was rejected.
func (t *HMACTokenizer) Validate(token string) (*core.SessionClaims, error) {
	rest, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return nil, core.ErrSessionInvalid
	}
	sep := strings.LastIndex(rest, ".")
	if sep <= 0 || sep == len(rest)-1 {
		return nil, core.ErrSessionInvalid
	}
	encoded, sigPart := rest[:sep], rest[sep+1:]

	sig, err := b64.DecodeString(sigPart)
	if err != nil {
		return nil, core.ErrSessionInvalid
	}
	// hmac.Equal is constant time and handles length mismatches.
	if !hmac.Equal(sig, t.sign(encoded)) {
		return nil, core.ErrSessionInvalid
	}

	raw, err := b64.DecodeString(encoded)
	if err != nil {
		return nil, core.ErrSessionInvalid
	}
	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, core.ErrSessionInvalid
	}
	if payload.UserID == "" || payload.Wallet == "" || payload.Exp == 0 {
		return nil, core.ErrSessionInvalid
	}
	expiresAt := time.Unix(payload.Exp, 0)
	if time.Now().After(expiresAt) {
		return nil, core.ErrSessionInvalid
	}

	return &core.SessionClaims{
		UserID:    payload.UserID,
		Wallet:    payload.Wallet,
		ExpiresAt: expiresAt,
	}, nil
}

func (t *HMACTokenizer) sign(encodedPayload string) []byte {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(encodedPayload))
	return mac.Sum(nil)
}
