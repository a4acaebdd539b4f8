package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Asset is a media file that may require proof of on-chain ownership
// before it can be downloaded.
type Asset struct {
	ID         string    // Unique asset identifier
	Title      string    // Display title
	StorageKey string    // Location of the underlying file
	Gated      bool      // Whether downloads require ownership proof
	CreatedAt  time.Time // When the asset was registered
}

// DownloadNonce is a persisted single-use challenge bound to one
// (asset, wallet) pair. UsedAt transitions from nil to non-nil exactly
// once, atomically with token issuance.
type DownloadNonce struct {
	Nonce     string     // Random hex value the wallet must sign
	AssetID   string     // Asset the challenge was issued for
	Wallet    string     // Wallet the challenge was issued to
	CreatedAt time.Time  // When the nonce was issued
	ExpiresAt time.Time  // When the nonce stops being consumable
	UsedAt    *time.Time // When the nonce was consumed, nil if still live
}

// DownloadToken authorizes repeat downloads of one asset by one wallet
// until expiry. It is opaque and server-stored, not self-contained.
type DownloadToken struct {
	Token     string    // Opaque random hex value
	AssetID   string    // Asset the token grants access to
	Wallet    string    // Wallet the token was issued to
	CreatedAt time.Time // When the token was issued
	ExpiresAt time.Time // When the token stops granting access
}

// Challenge is an ephemeral sign-in challenge, keyed by wallet. At most
// one live challenge exists per wallet; a new one supersedes the old.
type Challenge struct {
	Wallet    string    // Wallet address the challenge was issued to
	Nonce     string    // Random value embedded in the sign-in message
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// User is an authenticated account reachable through one or more wallets.
type User struct {
	ID             string    // Internal user identifier
	DisplayName    string    // Derived slug, unique
	Wallet         string    // Legacy direct-address field, may be empty
	IdentityMarker string    // Provider account id, or a local placeholder
	CreatedAt      time.Time // When the user was created
}

// WalletLink registers a wallet address as belonging to a user.
type WalletLink struct {
	Wallet    string    // Wallet address, unique
	UserID    string    // Owning user
	Primary   bool      // Whether this is the user's primary wallet
	CreatedAt time.Time // When the link was registered
}

// SessionClaims is the decoded content of a validated session token.
type SessionClaims struct {
	UserID    string    // Authenticated user
	Wallet    string    // Wallet that proved ownership at login
	ExpiresAt time.Time // Token expiry
}

// ProviderUser is an account record held by the external identity provider.
type ProviderUser struct {
	ID             string // Provider-side account id
	EmbeddedWallet string // Provider-managed companion wallet, may be empty
}

// ImportRequest asks the identity provider to provision an account for a
// wallet that authenticated locally.
type ImportRequest struct {
	LinkedWallet         string
	CreateEmbeddedWallet bool
}

// LocalMarkerPrefix identifies identity markers that were synthesized
// locally because the provider was unavailable at signup.
const LocalMarkerPrefix = "local:"

// IsLocalMarker reports whether an identity marker is a locally
// synthesized placeholder not yet backed by the provider.
func IsLocalMarker(marker string) bool {
	return len(marker) > len(LocalMarkerPrefix) && marker[:len(LocalMarkerPrefix)] == LocalMarkerPrefix
}

// NewNonce returns a hex-encoded random value with 32 bytes of entropy.
func NewNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
