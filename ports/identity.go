package ports

import (
	"context"

	"github.com/cdecaire/desperse-public-sub002/core"
)

// IdentityProvider is the external user-directory oracle. All calls are
// best-effort: failures degrade to locally synthesized identities and
// must never block login.
type IdentityProvider interface {
	// FindUserByWallet returns the provider account linked to a wallet,
	// or (nil, nil) when the provider knows no such wallet.
	FindUserByWallet(ctx context.Context, wallet string) (*core.ProviderUser, error)

	// ImportUser provisions a provider account for a locally
	// authenticated wallet.
	ImportUser(ctx context.Context, req core.ImportRequest) (*core.ProviderUser, error)
}
