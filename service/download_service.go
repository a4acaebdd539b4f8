package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cdecaire/desperse-public-sub002/core"
	"github.com/cdecaire/desperse-public-sub002/internal/solana"
	"github.com/cdecaire/desperse-public-sub002/ports"
)

const (
	// DefaultDownloadTokenTTL is the validity window of an issued
	// download token. Deliberately short: the token authorizes fetching
	// a file, not a session.
	DefaultDownloadTokenTTL = 2 * time.Minute

	// DefaultOracleTimeout caps how long an on-chain ownership query may
	// take before it is treated as unavailable.
	DefaultOracleTimeout = 10 * time.Second

	// Asset identifiers are opaque but bounded.
	maxAssetIDLen = 64
)

// DownloadService orchestrates the gated-download protocol: nonce
// issuance, signature verification, ownership checks, and token issuance.
type DownloadService struct {
	assets ports.AssetStore
	nonces ports.NonceStore
	tokens ports.TokenStore
	oracle ports.OwnershipOracle
	log    zerolog.Logger

	tokenTTL      time.Duration
	oracleTimeout time.Duration
}

// NewDownloadService creates a new download authorization service.
func NewDownloadService(
	assets ports.AssetStore,
	nonces ports.NonceStore,
	tokens ports.TokenStore,
	oracle ports.OwnershipOracle,
	log zerolog.Logger,
) *DownloadService {
	return &DownloadService{
		assets:        assets,
		nonces:        nonces,
		tokens:        tokens,
		oracle:        oracle,
		log:           log,
		tokenTTL:      DefaultDownloadTokenTTL,
		oracleTimeout: DefaultOracleTimeout,
	}
}

// DownloadChallenge is what a wallet receives to sign.
type DownloadChallenge struct {
	Nonce     string
	ExpiresAt time.Time
	Message   string
}

// DownloadGrant is the result of a successful verification.
type DownloadGrant struct {
	Token     string
	ExpiresAt time.Time
}

// RequestNonce issues a download challenge for a gated asset.
func (s *DownloadService) RequestNonce(ctx context.Context, assetID, wallet string) (*DownloadChallenge, error) {
	if err := validateAssetID(assetID); err != nil {
		return nil, err
	}
	if err := validateWallet(wallet); err != nil {
		return nil, err
	}

	asset, err := s.assets.FindAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.Gated {
		// Open content needs no challenge at all.
		return nil, core.ErrAssetNotGated
	}

	nonce, err := s.nonces.Issue(ctx, assetID, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to issue nonce: %w", err)
	}

	message := core.BuildDownloadMessage(core.DownloadMessage{
		AssetID:   assetID,
		Wallet:    wallet,
		Nonce:     nonce.Nonce,
		ExpiresAt: nonce.ExpiresAt,
	})

	return &DownloadChallenge{
		Nonce:     nonce.Nonce,
		ExpiresAt: nonce.ExpiresAt,
		Message:   message,
	}, nil
}

// VerifyAndIssueToken checks a signed challenge and, if the wallet proves
// ownership, issues a short-lived download token. Token creation is the
// single commit point: no rejection path leaves partial side effects,
// and the nonce is consumed only after the signature verifies, so a bad
// signature can be retried against the same challenge.
func (s *DownloadService) VerifyAndIssueToken(ctx context.Context, assetID, wallet, signature, message string) (*DownloadGrant, error) {
	if err := validateAssetID(assetID); err != nil {
		return nil, err
	}
	if err := validateWallet(wallet); err != nil {
		return nil, err
	}

	parsed := core.ParseDownloadMessage(message)
	if parsed == nil {
		return nil, core.ErrMessageMalformed
	}

	// Bind the signature to this exact request. A valid signature over a
	// message naming another asset or wallet must not transfer.
	if parsed.AssetID != assetID || parsed.Wallet != wallet {
		return nil, core.ErrMessageMismatch
	}
	if time.Now().After(parsed.ExpiresAt) {
		return nil, core.ErrMessageExpired
	}

	if !solana.VerifySignature(wallet, message, signature) {
		return nil, core.ErrInvalidSignature
	}

	if _, err := s.nonces.Consume(ctx, parsed.Nonce, assetID, wallet); err != nil {
		return nil, err
	}

	asset, err := s.assets.FindAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Gated {
		authorized, err := s.checkOwnership(ctx, wallet, assetID)
		if err != nil {
			return nil, err
		}
		if !authorized {
			return nil, core.ErrNotOwner
		}
	}
	// An asset un-gated since the challenge was issued skips the
	// ownership check entirely; the token is issued directly.

	value, err := core.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	now := time.Now()
	token := &core.DownloadToken{
		Token:     value,
		AssetID:   assetID,
		Wallet:    wallet,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if err := s.tokens.CreateToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	s.log.Info().
		Str("asset_id", assetID).
		Str("wallet", wallet).
		Time("expires_at", token.ExpiresAt).
		Msg("download token issued")

	return &DownloadGrant{Token: token.Token, ExpiresAt: token.ExpiresAt}, nil
}

// RedeemToken checks a presented download token and returns the asset it
// unlocks. Tokens are not single use; any number of downloads within the
// validity window is allowed.
func (s *DownloadService) RedeemToken(ctx context.Context, token, assetID, wallet string) (*core.Asset, error) {
	if _, err := s.tokens.FindToken(ctx, token, assetID, wallet); err != nil {
		return nil, err
	}
	return s.assets.FindAsset(ctx, assetID)
}

// checkOwnership consults the oracle with a timeout. Transport failures
// surface as ORACLE_UNAVAILABLE: a flaky RPC node must never read as an
// ownership denial.
func (s *DownloadService) checkOwnership(ctx context.Context, wallet, assetID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()

	isOwner, err := s.oracle.VerifyOwnership(ctx, wallet, assetID)
	if err != nil {
		s.log.Warn().Err(err).Str("wallet", wallet).Str("asset_id", assetID).Msg("ownership query failed")
		return false, fmt.Errorf("%w: %v", core.ErrOracleUnavailable, err)
	}
	if isOwner {
		return true, nil
	}

	isCreator, err := s.oracle.IsAssetCreator(ctx, wallet, assetID)
	if err != nil {
		s.log.Warn().Err(err).Str("wallet", wallet).Str("asset_id", assetID).Msg("creator query failed")
		return false, fmt.Errorf("%w: %v", core.ErrOracleUnavailable, err)
	}
	return isCreator, nil
}

func validateAssetID(assetID string) error {
	if assetID == "" || len(assetID) > maxAssetIDLen {
		return core.ErrInvalidAssetID
	}
	return nil
}

// validateWallet is a cheap length sanity filter applied before any
// database or crypto work. Base58-encoded 32-byte keys land in this range.
func validateWallet(wallet string) error {
	if len(wallet) < 32 || len(wallet) > 44 {
		return core.ErrInvalidAddress
	}
	return nil
}
