package ports

import (
	"time"

	"github.com/cdecaire/desperse-public-sub002/core"
)

// Tokenizer builds and validates self-contained session tokens.
type Tokenizer interface {
	// Issue returns a signed token for the user/wallet pair and its expiry.
	Issue(userID, wallet string) (string, time.Time, error)

	// Validate checks a token's structure, signature, and expiry.
	// Every failure collapses to core.ErrSessionInvalid; the codec does
	// not reveal why a token was rejected.
	Validate(token string) (*core.SessionClaims, error)
}
