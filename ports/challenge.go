package ports

import (
	"context"

	"github.com/cdecaire/desperse-public-sub002/core"
)

// ChallengeStore holds ephemeral sign-in challenges keyed by wallet
// address. At most one challenge is live per wallet: Issue overwrites any
// prior unconsumed entry (last challenge wins). Entries expire on their
// own after the store's TTL even if never consumed.
type ChallengeStore interface {
	// Issue creates a challenge for the wallet, superseding any existing one.
	Issue(ctx context.Context, wallet string) (*core.Challenge, error)

	// Peek checks the wallet's pending challenge without consuming it.
	// Returns core.ErrNoPendingChallenge, core.ErrNonceMismatch, or
	// core.ErrChallengeExpired when the challenge cannot be used.
	Peek(ctx context.Context, wallet, nonce string) error

	// Consume deletes the wallet's pending challenge if the nonce matches
	// and it has not expired, with the same failure sentinels as Peek.
	// Lookup and deletion are atomic with respect to concurrent Consume
	// calls, so racing verifications yield exactly one success.
	Consume(ctx context.Context, wallet, nonce string) error

	// Close releases any background resources held by the store.
	Close() error
}
