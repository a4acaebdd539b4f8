package challenge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cdecaire/desperse-public-sub002/core"
)

const redisKeyPrefix = "siws:challenge:"

// consumeScript compares the stored nonce and deletes the entry only on a
// match, so compare-and-delete is atomic on the Redis side. It returns
// the stored value on success, "" when no entry exists, and "-" on a
// nonce mismatch (the pending challenge is left in place).
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
	return ''
end
local sep = string.find(v, '|', 1, true)
if string.sub(v, 1, sep - 1) ~= ARGV[1] then
	return '-'
end
redis.call('DEL', KEYS[1])
return v
`)

// RedisStore keeps pending challenges in Redis so multiple instances can
// share them. Expiry is still enforced by timestamp comparison; the key
// TTL only garbage-collects abandoned entries, standing in for the
// memory store's sweep.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed challenge store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Issue creates a challenge for the wallet, superseding any existing one.
func (s *RedisStore) Issue(ctx context.Context, wallet string) (*core.Challenge, error) {
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

	value := fmt.Sprintf("%s|%d|%d", nonce, now.Unix(), ch.ExpiresAt.Unix())
	// Keep the key a little past logical expiry so consumption can still
	// report CHALLENGE_EXPIRED instead of NO_PENDING_CHALLENGE.
	if err := s.client.Set(ctx, redisKeyPrefix+wallet, value, s.ttl+time.Minute).Err(); err != nil {
		return nil, fmt.Errorf("%w: set challenge: %v", core.ErrStoreFailed, err)
	}

	return &ch, nil
}

// Peek checks the wallet's pending challenge without consuming it.
func (s *RedisStore) Peek(ctx context.Context, wallet, nonce string) error {
	value, err := s.client.Get(ctx, redisKeyPrefix+wallet).Result()
	if err == redis.Nil {
		return core.ErrNoPendingChallenge
	}
	if err != nil {
		return fmt.Errorf("%w: peek challenge: %v", core.ErrStoreFailed, err)
	}
	return s.check(value, nonce)
}

// Consume deletes the wallet's pending challenge if the nonce matches and
// the challenge has not expired.
func (s *RedisStore) Consume(ctx context.Context, wallet, nonce string) error {
	res, err := consumeScript.Run(ctx, s.client, []string{redisKeyPrefix + wallet}, nonce).Text()
	if err != nil {
		return fmt.Errorf("%w: consume challenge: %v", core.ErrStoreFailed, err)
	}
	if res == "" {
		return core.ErrNoPendingChallenge
	}
	if res == "-" {
		return core.ErrNonceMismatch
	}
	return s.check(res, nonce)
}

func (s *RedisStore) check(value, nonce string) error {
	parts := strings.Split(value, "|")
	if len(parts) != 3 {
		return core.ErrNoPendingChallenge
	}
	if parts[0] != nonce {
		return core.ErrNonceMismatch
	}
	expiresAt, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return core.ErrNoPendingChallenge
	}
	if time.Now().After(time.Unix(expiresAt, 0)) {
		return core.ErrChallengeExpired
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
