package ports

import "context"

// OwnershipOracle answers whether a wallet owns or created an asset
// on-chain. The oracle is slow and may be rate limited; callers apply a
// timeout through ctx and must treat transport failures as
// core.ErrOracleUnavailable, never as an ownership denial.
type OwnershipOracle interface {
	VerifyOwnership(ctx context.Context, wallet, assetID string) (bool, error)
	IsAssetCreator(ctx context.Context, wallet, assetID string) (bool, error)
}
