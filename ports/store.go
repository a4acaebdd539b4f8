package ports

import (
	"context"

	"github.com/cdecaire/desperse-public-sub002/core"
)

// NonceStore persists single-use download challenges.
type NonceStore interface {
	// Issue creates a fresh nonce bound to one (asset, wallet) pair.
	Issue(ctx context.Context, assetID, wallet string) (*core.DownloadNonce, error)

	// Consume atomically marks the matching unused, unexpired nonce as
	// used and returns it. Two concurrent calls for the same nonce must
	// yield exactly one success; the loser gets core.ErrNonceInvalid.
	// Expired, used, and missing nonces are indistinguishable.
	Consume(ctx context.Context, nonce, assetID, wallet string) (*core.DownloadNonce, error)
}

// TokenStore persists opaque download tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, token *core.DownloadToken) error

	// FindToken returns the live token matching all three keys, or
	// core.ErrTokenInvalid. Tokens are read-only after issuance and may
	// be presented multiple times until expiry.
	FindToken(ctx context.Context, token, assetID, wallet string) (*core.DownloadToken, error)
}

// AssetStore reads asset records.
type AssetStore interface {
	// FindAsset returns the asset or core.ErrAssetNotFound.
	FindAsset(ctx context.Context, assetID string) (*core.Asset, error)
}

// UserStore reads and writes user and wallet-link records.
type UserStore interface {
	// FindByWalletLink resolves a user through the wallet-link table.
	// Returns (nil, nil) when no link exists.
	FindByWalletLink(ctx context.Context, wallet string) (*core.User, error)

	// FindByLegacyWallet resolves a user through the legacy direct
	// address field on the user record. Returns (nil, nil) when absent.
	FindByLegacyWallet(ctx context.Context, wallet string) (*core.User, error)

	// DisplayNameTaken reports whether a display slug is already in use.
	DisplayNameTaken(ctx context.Context, name string) (bool, error)

	CreateUser(ctx context.Context, user *core.User) error

	LinkWallet(ctx context.Context, link *core.WalletLink) error

	// UpdateIdentityMarker replaces a user's identity marker, used when a
	// locally synthesized placeholder is upgraded to a provider account.
	UpdateIdentityMarker(ctx context.Context, userID, marker string) error
}
