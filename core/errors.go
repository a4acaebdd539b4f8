package core

import "errors"

var (
	ErrInvalidAddress     = errors.New("invalid wallet address")
	ErrInvalidAssetID     = errors.New("invalid asset identifier")
	ErrAssetNotFound      = errors.New("asset not found")
	ErrAssetNotGated      = errors.New("asset is not gated")
	ErrMessageMalformed   = errors.New("challenge message is malformed")
	ErrMessageMismatch    = errors.New("challenge message does not match request")
	ErrMessageExpired     = errors.New("challenge message has expired")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrNonceInvalid       = errors.New("nonce not found, already used, or expired")
	ErrNoPendingChallenge = errors.New("no pending challenge for wallet")
	ErrNonceMismatch      = errors.New("nonce does not match pending challenge")
	ErrChallengeExpired   = errors.New("challenge has expired")
	ErrNotOwner           = errors.New("wallet does not own the asset")
	ErrOracleUnavailable  = errors.New("ownership oracle unavailable")
	ErrTokenInvalid       = errors.New("download token not found or expired")
	ErrSessionInvalid     = errors.New("session token is invalid")
	ErrStoreFailed        = errors.New("store operation failed")
)

// Code returns the stable machine-readable code for a protocol error.
// Unrecognized errors map to INTERNAL so internals never leak to callers.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrInvalidAssetID):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrAssetNotFound):
		return "ASSET_NOT_FOUND"
	case errors.Is(err, ErrAssetNotGated):
		return "ASSET_NOT_GATED"
	case errors.Is(err, ErrMessageMalformed):
		return "MESSAGE_MALFORMED"
	case errors.Is(err, ErrMessageMismatch):
		return "MESSAGE_MISMATCH"
	case errors.Is(err, ErrMessageExpired):
		return "MESSAGE_EXPIRED"
	case errors.Is(err, ErrInvalidSignature):
		return "INVALID_SIGNATURE"
	case errors.Is(err, ErrNonceInvalid):
		return "NONCE_INVALID"
	case errors.Is(err, ErrNoPendingChallenge):
		return "NO_PENDING_CHALLENGE"
	case errors.Is(err, ErrNonceMismatch):
		return "NONCE_MISMATCH"
	case errors.Is(err, ErrChallengeExpired):
		return "CHALLENGE_EXPIRED"
	case errors.Is(err, ErrNotOwner):
		return "NOT_OWNER"
	case errors.Is(err, ErrOracleUnavailable):
		return "ORACLE_UNAVAILABLE"
	case errors.Is(err, ErrTokenInvalid):
		return "TOKEN_INVALID"
	case errors.Is(err, ErrSessionInvalid):
		return "SESSION_INVALID"
	default:
		return "INTERNAL"
	}
}
