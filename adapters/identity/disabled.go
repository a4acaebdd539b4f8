// Package identity holds identity-provider adapters. The provider is a
// best-effort collaborator: when it is not configured, login still works
// and users carry locally synthesized identity markers until a later
// reconciliation upgrades them.
package identity

import (
	"context"
	"errors"

	"github.com/cdecaire/desperse-public-sub002/core"
	"github.com/cdecaire/desperse-public-sub002/ports"
)

// ErrDisabled is returned by the disabled provider's import path.
var ErrDisabled = errors.New("identity provider is not configured")

// DisabledProvider is the no-provider stand-in wired when no identity
// provider is configured.
type DisabledProvider struct{}

// NewDisabledProvider creates the stand-in provider.
func NewDisabledProvider() ports.IdentityProvider {
	return &DisabledProvider{}
}

// FindUserByWallet reports that no provider account exists.
func (p *DisabledProvider) FindUserByWallet(ctx context.Context, wallet string) (*core.ProviderUser, error) {
	return nil, nil
}

// ImportUser fails, which callers degrade to a local identity marker.
func (p *DisabledProvider) ImportUser(ctx context.Context, req core.ImportRequest) (*core.ProviderUser, error) {
	return nil, ErrDisabled
}
