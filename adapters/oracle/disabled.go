// Package oracle holds ownership-oracle adapters. The on-chain lookup
// itself lives behind ports.OwnershipOracle; this package provides the
// stand-in wired when no oracle backend is configured.
package oracle

import (
	"context"

	"github.com/cdecaire/desperse-public-sub002/core"
	"github.com/cdecaire/desperse-public-sub002/ports"
)

// DisabledOracle is wired when no ownership backend is configured. It
// reports unavailability rather than denial, so gated downloads surface
// a retryable error instead of silently rejecting owners.
type DisabledOracle struct{}

// NewDisabledOracle creates the stand-in oracle.
func NewDisabledOracle() ports.OwnershipOracle {
	return &DisabledOracle{}
}

func (DisabledOracle) VerifyOwnership(ctx context.Context, wallet, assetID string) (bool, error) {
	return false, core.ErrOracleUnavailable
}

func (DisabledOracle) IsAssetCreator(ctx context.Context, wallet, assetID string) (bool, error) {
	return false, core.ErrOracleUnavailable
}
