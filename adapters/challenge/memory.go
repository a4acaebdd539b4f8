// Package challenge implements the ephemeral sign-in challenge store.
// Challenges are keyed by wallet; issuing overwrites any pending entry,
// so each wallet has at most one live challenge.
package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/cdecaire/desperse-public-sub002/core"
)

const (
	// DefaultTTL bounds how long a sign-in challenge stays consumable.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is how often abandoned challenges are purged.
	DefaultSweepInterval = time.Minute
)

// MemoryStore is a mutex-guarded map of pending challenges with a
// periodic sweep of expired entries. Instances are independent, so tests
// never share process-wide state.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]core.Challenge
	ttl        time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

// NewMemoryStore creates a store and starts its sweep goroutine.
func NewMemoryStore(ttl, sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		challenges: make(map[string]core.Challenge),
		ttl:        ttl,
		done:       make(chan struct{}),
	}
	go s.sweep(sweepInterval)
	return s
}

// Issue creates a challenge for the wallet, superseding any existing one.
func (s *MemoryStore) Issue(ctx context.Context, wallet string) (*core.Challenge, error) {
	nonce, err := core.NewNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ch := core.Challenge{
		Wallet:    wallet,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.challenges[wallet] = ch
	s.mu.Unlock()

	return &ch, nil
}

// Peek checks the wallet's pending challenge without consuming it.
func (s *MemoryStore) Peek(ctx context.Context, wallet, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[wallet]
	if !ok {
		return core.ErrNoPendingChallenge
	}
	if ch.Nonce != nonce {
		return core.ErrNonceMismatch
	}
	if time.Now().After(ch.ExpiresAt) {
		return core.ErrChallengeExpired
	}
	return nil
}

// Consume deletes the wallet's pending challenge if the nonce matches and
// the challenge has not expired. Lookup, comparison, and deletion happen
// under one lock so concurrent verification attempts cannot both succeed.
func (s *MemoryStore) Consume(ctx context.Context, wallet, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[wallet]
	if !ok {
		return core.ErrNoPendingChallenge
	}
	if ch.Nonce != nonce {
		return core.ErrNonceMismatch
	}
	// Expired challenges are removed either way: they are dead single-use
	// state whether the sweep or a late verification attempt finds them.
	delete(s.challenges, wallet)
	if time.Now().After(ch.ExpiresAt) {
		return core.ErrChallengeExpired
	}
	return nil
}

// Close stops the sweep goroutine.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for wallet, ch := range s.challenges {
				if now.After(ch.ExpiresAt) {
					delete(s.challenges, wallet)
				}
			}
			s.mu.Unlock()
		}
	}
}

// pending reports the number of live entries. Test hook.
func (s *MemoryStore) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}
