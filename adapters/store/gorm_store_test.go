package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cdecaire/desperse-public-sub002/core"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:store-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// Serialize writes so concurrent consume exercises the conditional
	// update rather than SQLite busy errors.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))
	return NewGormStore(db)
}

func TestNonceIssueAndConsume(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "asset-1", "wallet-1")
	require.NoError(t, err)
	assert.Len(t, issued.Nonce, 64) // 32 bytes hex encoded
	assert.Nil(t, issued.UsedAt)
	assert.WithinDuration(t, time.Now().Add(DefaultNonceTTL), issued.ExpiresAt, 2*time.Second)

	consumed, err := s.Consume(ctx, issued.Nonce, "asset-1", "wallet-1")
	require.NoError(t, err)
	require.NotNil(t, consumed.UsedAt)

	// Second consumption must fail: the nonce is single use.
	_, err = s.Consume(ctx, issued.Nonce, "asset-1", "wallet-1")
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
}

func TestNonceConsumeRequiresAllKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "asset-1", "wallet-1")
	require.NoError(t, err)

	_, err = s.Consume(ctx, issued.Nonce, "asset-2", "wallet-1")
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
	_, err = s.Consume(ctx, issued.Nonce, "asset-1", "wallet-2")
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
	_, err = s.Consume(ctx, "unknown", "asset-1", "wallet-1")
	assert.ErrorIs(t, err, core.ErrNonceInvalid)

	// The failed attempts must not have burned the nonce.
	_, err = s.Consume(ctx, issued.Nonce, "asset-1", "wallet-1")
	assert.NoError(t, err)
}

func TestNonceConsumeConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "asset-1", "wallet-1")
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Consume(ctx, issued.Nonce, "asset-1", "wallet-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, core.ErrNonceInvalid)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestNonceConsumeRejectsExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "asset-1", "wallet-1")
	require.NoError(t, err)

	// Age the row past its expiry.
	past := time.Now().Add(-time.Second)
	require.NoError(t, s.db.Model(&DownloadNonce{}).
		Where("nonce = ?", issued.Nonce).
		Update("expires_at", past).Error)

	_, err = s.Consume(ctx, issued.Nonce, "asset-1", "wallet-1")
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
}

func TestPruneNoncesRemovesOnlyExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	live, err := s.Issue(ctx, "asset-1", "wallet-1")
	require.NoError(t, err)
	stale, err := s.Issue(ctx, "asset-1", "wallet-2")
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&DownloadNonce{}).
		Where("nonce = ?", stale.Nonce).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	require.NoError(t, s.PruneNonces(ctx))

	var count int64
	require.NoError(t, s.db.Model(&DownloadNonce{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	_, err = s.Consume(ctx, live.Nonce, "asset-1", "wallet-1")
	assert.NoError(t, err)
}

func TestDownloadTokenLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	token := &core.DownloadToken{
		Token:     "aa11",
		AssetID:   "asset-1",
		Wallet:    "wallet-1",
		CreatedAt: now,
		ExpiresAt: now.Add(DefaultTokenTTL),
	}
	require.NoError(t, s.CreateToken(ctx, token))

	// Presentation is read-only: the token stays valid for repeat use.
	for i := 0; i < 3; i++ {
		found, err := s.FindToken(ctx, "aa11", "asset-1", "wallet-1")
		require.NoError(t, err)
		assert.Equal(t, "wallet-1", found.Wallet)
	}

	_, err := s.FindToken(ctx, "aa11", "asset-2", "wallet-1")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
	_, err = s.FindToken(ctx, "aa11", "asset-1", "wallet-2")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	require.NoError(t, s.db.Model(&DownloadToken{}).
		Where("token = ?", "aa11").
		Update("expires_at", now.Add(-time.Second)).Error)
	_, err = s.FindToken(ctx, "aa11", "asset-1", "wallet-1")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestAssetLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAsset(ctx, &core.Asset{
		ID:         "asset-1",
		Title:      "Paid Edition 001",
		StorageKey: "media/paid/001.glb",
		Gated:      true,
		CreatedAt:  time.Now(),
	}))

	asset, err := s.FindAsset(ctx, "asset-1")
	require.NoError(t, err)
	assert.True(t, asset.Gated)
	assert.Equal(t, "media/paid/001.glb", asset.StorageKey)

	_, err = s.FindAsset(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
}

func TestUserLookupOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.CreateUser(ctx, &core.User{
		ID:             "user-1",
		DisplayName:    "9WzD-AWWM",
		IdentityMarker: "provider:abc",
		CreatedAt:      now,
	}))
	require.NoError(t, s.LinkWallet(ctx, &core.WalletLink{
		Wallet:    "linked-wallet",
		UserID:    "user-1",
		Primary:   true,
		CreatedAt: now,
	}))
	require.NoError(t, s.CreateUser(ctx, &core.User{
		ID:          "user-2",
		DisplayName: "lega-user",
		Wallet:      "legacy-wallet",
		CreatedAt:   now,
	}))

	viaLink, err := s.FindByWalletLink(ctx, "linked-wallet")
	require.NoError(t, err)
	require.NotNil(t, viaLink)
	assert.Equal(t, "user-1", viaLink.ID)

	viaLegacy, err := s.FindByLegacyWallet(ctx, "legacy-wallet")
	require.NoError(t, err)
	require.NotNil(t, viaLegacy)
	assert.Equal(t, "user-2", viaLegacy.ID)

	none, err := s.FindByWalletLink(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, none)

	// Relinking the same wallet is a no-op, not an error.
	require.NoError(t, s.LinkWallet(ctx, &core.WalletLink{
		Wallet: "linked-wallet", UserID: "user-1", CreatedAt: now,
	}))

	taken, err := s.DisplayNameTaken(ctx, "9WzD-AWWM")
	require.NoError(t, err)
	assert.True(t, taken)
	free, err := s.DisplayNameTaken(ctx, "unused")
	require.NoError(t, err)
	assert.False(t, free)
}

func TestUpdateIdentityMarker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &core.User{
		ID:             "user-1",
		DisplayName:    "slug",
		IdentityMarker: core.LocalMarkerPrefix + "pending",
		CreatedAt:      time.Now(),
	}))
	require.NoError(t, s.UpdateIdentityMarker(ctx, "user-1", "provider:xyz"))

	user, err := s.FindByLegacyWallet(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "provider:xyz", user.IdentityMarker)
}
