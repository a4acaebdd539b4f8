package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cdecaire/desperse-public-sub002/adapters/store"
	"github.com/cdecaire/desperse-public-sub002/core"
)

type fakeOracle struct {
	owner      bool
	creator    bool
	ownerErr   error
	creatorErr error
	calls      int
}

func (o *fakeOracle) VerifyOwnership(ctx context.Context, wallet, assetID string) (bool, error) {
	o.calls++
	return o.owner, o.ownerErr
}

func (o *fakeOracle) IsAssetCreator(ctx context.Context, wallet, assetID string) (bool, error) {
	return o.creator, o.creatorErr
}

type downloadTestEnv struct {
	svc    *DownloadService
	store  *store.GormStore
	oracle *fakeOracle
	wallet string
	priv   ed25519.PrivateKey
}

func newDownloadTestEnv(t *testing.T) *downloadTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:download-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, store.Migrate(db))

	s := store.NewGormStore(db)
	require.NoError(t, s.CreateAsset(context.Background(), &core.Asset{
		ID:         "asset-1",
		Title:      "Collectible 001",
		StorageKey: "media/collectible/001.png",
		Gated:      true,
		CreatedAt:  time.Now(),
	}))
	require.NoError(t, s.CreateAsset(context.Background(), &core.Asset{
		ID:         "asset-open",
		Title:      "Free Preview",
		StorageKey: "media/open/preview.png",
		Gated:      false,
		CreatedAt:  time.Now(),
	}))

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	oracle := &fakeOracle{owner: true}
	return &downloadTestEnv{
		svc:    NewDownloadService(s, s, s, oracle, zerolog.Nop()),
		store:  s,
		oracle: oracle,
		wallet: base58.Encode(pub),
		priv:   priv,
	}
}

func (e *downloadTestEnv) sign(message string) string {
	return base58.Encode(ed25519.Sign(e.priv, []byte(message)))
}

func TestDownloadHappyPath(t *testing.T) {
	env := newDownloadTestEnv(t)
	ctx := context.Background()

	ch, err := env.svc.RequestNonce(ctx, "asset-1", env.wallet)
	require.NoError(t, err)
	assert.NotEmpty(t, ch.Nonce)
	assert.Contains(t, ch.Message, "Asset: asset-1")
	assert.Contains(t, ch.Message, "Wallet: "+env.wallet)

	grant, err := env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, env.sign(ch.Message), ch.Message)
	require.NoError(t, err)
	assert.NotEmpty(t, grant.Token)
	assert.WithinDuration(t, time.Now().Add(DefaultDownloadTokenTTL), grant.ExpiresAt, 2*time.Second)

	// The token redeems repeatedly within its window.
	for i := 0; i < 2; i++ {
		asset, err := env.svc.RedeemToken(ctx, grant.Token, "asset-1", env.wallet)
		require.NoError(t, err)
		assert.Equal(t, "media/collectible/001.png", asset.StorageKey)
	}
}

func TestDownloadBase64SignatureAccepted(t *testing.T) {
	env := newDownloadTestEnv(t)
	ctx := context.Background()

	ch, err := env.svc.RequestNonce(ctx, "asset-1", env.wallet)
	require.NoError(t, err)

	sig := base64.StdEncoding.EncodeToString(ed25519.Sign(env.priv, []byte(ch.Message)))
	_, err = env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, sig, ch.Message)
	assert.NoError(t, err)
}

func TestRequestNonceValidation(t *testing.T) {
	env := newDownloadTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RequestNonce(ctx, "", env.wallet)
	assert.ErrorIs(t, err, core.ErrInvalidAssetID)
	_, err = env.svc.RequestNonce(ctx, strings.Repeat("x", 65), env.wallet)
	assert.ErrorIs(t, err, core.ErrInvalidAssetID)
	_, err = env.svc.RequestNonce(ctx, "asset-1", "short")
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
	_, err = env.svc.RequestNonce(ctx, "missing", env.wallet)
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
	_, err = env.svc.RequestNonce(ctx, "asset-open", env.wallet)
	assert.ErrorIs(t, err, core.ErrAssetNotGated)
}

func TestVerifyRejectsMalformedMessage(t *testing.T) {
	env := newDownloadTestEnv(t)

	_, err := env.svc.VerifyAndIssueToken(context.Background(), "asset-1", env.wallet, "sig", "not a challenge")
	assert.ErrorIs(t, err, core.ErrMessageMalformed)
}

func TestVerifyRejectsMessageMismatch(t *testing.T) {
	env := newDownloadTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.CreateAsset(ctx, &core.Asset{
		ID: "asset-2", Title: "Other", StorageKey: "media/2", Gated: true, CreatedAt: time.Now(),
	}))

	ch, err := env.svc.RequestNonce(ctx, "asset-1", env.wallet)
	require.NoError(t, err)

	// The signature is genuinely valid over the message, but the message
	// names a different asset than the request.
	_, err = env.svc.VerifyAndIssueToken(ctx, "asset-2", env.wallet, env.sign(ch.Message), ch.Message)
	assert.ErrorIs(t, err, core.ErrMessageMismatch)
}

func TestVerifyRejectsExpiredMessage(t *testing.T) {
	env := newDownloadTestEnv(t)

	message := core.BuildDownloadMessage(core.DownloadMessage{
		AssetID:   "asset-1",
		Wallet:    env.wallet,
		Nonce:     "aabb",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	_, err := env.svc.VerifyAndIssueToken(context.Background(), "asset-1", env.wallet, env.sign(message), message)
	assert.ErrorIs(t, err, core.ErrMessageExpired)
}

func TestVerifyRejectsBadSignatureAndKeepsNonce(t *testing.T) {
	env := newDownloadTestEnv(t)
	ctx := context.Background()

	ch, err := env.svc.RequestNonce(ctx, "asset-1", env.wallet)
	require.NoError(t, err)

	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	forged := base58.Encode(ed25519.Sign(otherPriv, []byte(ch.Message)))

	_, err = env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, forged, ch.Message)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	// The nonce survives a failed signature so the wallet can retry.
	_, err = env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, env.sign(ch.Message), ch.Message)
	assert.NoError(t, err)
}

func TestVerifyRejectsReplayedNonce(t *testing.T) {
	env := newDownloadTestEnv(t)
	ctx := context.Background()

	ch, err := env.svc.RequestNonce(ctx, "asset-1", env.wallet)
	require.NoError(t, err)
	sig := env.sign(ch.Message)

	_, err = env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, sig, ch.Message)
	require.NoError(t, err)

	_, err = env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, sig, ch.Message)
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
}

func TestVerifyNotOwnerConsumesNonce(t *testing.T) {
	env := newDownloadTestEnv(t)
	env.oracle.owner = false
	env.oracle.creator = false
	ctx := context.Background()

	ch, err := env.svc.RequestNonce(ctx, "asset-1", env.wallet)
	require.NoError(t, err)
	sig := env.sign(ch.Message)

	_, err = env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, sig, ch.Message)
	assert.ErrorIs(t, err, core.ErrNotOwner)

	// The nonce was burned by the attempt; it is not re-issuable.
	_, err = env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, sig, ch.Message)
	assert.ErrorIs(t, err, core.ErrNonceInvalid)
}

func TestVerifyCreatorGrantsAccess(t *testing.T) {
	env := newDownloadTestEnv(t)
	env.oracle.owner = false
	env.oracle.creator = true
	ctx := context.Background()

	ch, err := env.svc.RequestNonce(ctx, "asset-1", env.wallet)
	require.NoError(t, err)

	_, err = env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, env.sign(ch.Message), ch.Message)
	assert.NoError(t, err)
}

func TestVerifyOracleFailureIsNotDenial(t *testing.T) {
	env := newDownloadTestEnv(t)
	env.oracle.ownerErr = errors.New("rpc timeout")
	ctx := context.Background()

	ch, err := env.svc.RequestNonce(ctx, "asset-1", env.wallet)
	require.NoError(t, err)

	_, err = env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, env.sign(ch.Message), ch.Message)
	assert.ErrorIs(t, err, core.ErrOracleUnavailable)
	assert.NotErrorIs(t, err, core.ErrNotOwner)
}

func TestVerifyUngatedAssetSkipsOracle(t *testing.T) {
	env := newDownloadTestEnv(t)
	ctx := context.Background()

	ch, err := env.svc.RequestNonce(ctx, "asset-1", env.wallet)
	require.NoError(t, err)

	// The asset loses its gate between challenge and verification.
	require.NoError(t, env.store.UpdateAssetGated(ctx, "asset-1", false))

	grant, err := env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, env.sign(ch.Message), ch.Message)
	require.NoError(t, err)
	assert.NotEmpty(t, grant.Token)
	assert.Zero(t, env.oracle.calls)
}

func TestRedeemTokenRejectsUnknownOrForeign(t *testing.T) {
	env := newDownloadTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RedeemToken(ctx, "no-such-token", "asset-1", env.wallet)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	ch, err := env.svc.RequestNonce(ctx, "asset-1", env.wallet)
	require.NoError(t, err)
	grant, err := env.svc.VerifyAndIssueToken(ctx, "asset-1", env.wallet, env.sign(ch.Message), ch.Message)
	require.NoError(t, err)

	// A token never transfers across assets or wallets.
	_, err = env.svc.RedeemToken(ctx, grant.Token, "asset-open", env.wallet)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
	_, err = env.svc.RedeemToken(ctx, grant.Token, "asset-1", strings.Repeat("9", 40))
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}
