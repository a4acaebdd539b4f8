// Package store implements the persistence ports on GORM. It backs the
// download protocol's nonce and token records plus the user directory,
// and expects a database that can express a conditional UPDATE reporting
// affected rows, which is what makes nonce consumption atomic.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cdecaire/desperse-public-sub002/core"
)

const (
	// DefaultNonceTTL bounds how long a download challenge stays signable.
	DefaultNonceTTL = 5 * time.Minute

	// DefaultTokenTTL bounds how long an issued download token stays valid.
	DefaultTokenTTL = 2 * time.Minute
)

// GormStore implements ports.NonceStore, ports.TokenStore,
// ports.AssetStore, and ports.UserStore on a single database handle.
type GormStore struct {
	db       *gorm.DB
	nonceTTL time.Duration
}

// NewGormStore creates a store with the default nonce TTL.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, nonceTTL: DefaultNonceTTL}
}

// Migrate creates or updates the backing tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&DownloadNonce{}, &DownloadToken{}, &Asset{}, &User{}, &WalletLink{})
}

// Issue creates a fresh single-use nonce for the (asset, wallet) pair.
func (s *GormStore) Issue(ctx context.Context, assetID, wallet string) (*core.DownloadNonce, error) {
	nonce, err := core.NewNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := DownloadNonce{
		Nonce:     nonce,
		AssetID:   assetID,
		Wallet:    wallet,
		CreatedAt: now,
		ExpiresAt: now.Add(s.nonceTTL),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("%w: create nonce: %v", core.ErrStoreFailed, err)
	}

	return nonceToCore(&record), nil
}

// Consume marks the matching unused, unexpired nonce as used. The check
// and the write are one conditional UPDATE so that two racing calls
// cannot both succeed off a single nonce.
func (s *GormStore) Consume(ctx context.Context, nonce, assetID, wallet string) (*core.DownloadNonce, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&DownloadNonce{}).
		Where("nonce = ? AND asset_id = ? AND wallet = ? AND used_at IS NULL AND expires_at > ?",
			nonce, assetID, wallet, now).
		Update("used_at", now)
	if res.Error != nil {
		return nil, fmt.Errorf("%w: consume nonce: %v", core.ErrStoreFailed, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, core.ErrNonceInvalid
	}

	var record DownloadNonce
	if err := s.db.WithContext(ctx).Where("nonce = ?", nonce).First(&record).Error; err != nil {
		return nil, fmt.Errorf("%w: reload nonce: %v", core.ErrStoreFailed, err)
	}
	return nonceToCore(&record), nil
}

// PruneNonces deletes nonces whose expiry has passed. Consumption already
// refuses expired rows, so this only bounds table growth.
func (s *GormStore) PruneNonces(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&DownloadNonce{}).Error; err != nil {
		return fmt.Errorf("%w: prune nonces: %v", core.ErrStoreFailed, err)
	}
	return nil
}

// CreateToken persists a download token.
func (s *GormStore) CreateToken(ctx context.Context, token *core.DownloadToken) error {
	record := DownloadToken{
		Token:     token.Token,
		AssetID:   token.AssetID,
		Wallet:    token.Wallet,
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("%w: create token: %v", core.ErrStoreFailed, err)
	}
	return nil
}

// FindToken returns the live token matching all three keys.
func (s *GormStore) FindToken(ctx context.Context, token, assetID, wallet string) (*core.DownloadToken, error) {
	var record DownloadToken
	err := s.db.WithContext(ctx).
		Where("token = ? AND asset_id = ? AND wallet = ?", token, assetID, wallet).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find token: %v", core.ErrStoreFailed, err)
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, core.ErrTokenInvalid
	}
	return &core.DownloadToken{
		Token:     record.Token,
		AssetID:   record.AssetID,
		Wallet:    record.Wallet,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// FindAsset returns the asset record behind an asset identifier.
func (s *GormStore) FindAsset(ctx context.Context, assetID string) (*core.Asset, error) {
	var record Asset
	err := s.db.WithContext(ctx).Where("asset_id = ?", assetID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find asset: %v", core.ErrStoreFailed, err)
	}
	return &core.Asset{
		ID:         record.AssetID,
		Title:      record.Title,
		StorageKey: record.StorageKey,
		Gated:      record.Gated,
		CreatedAt:  record.CreatedAt,
	}, nil
}

// CreateAsset registers an asset. Used by seeding and tests.
func (s *GormStore) CreateAsset(ctx context.Context, asset *core.Asset) error {
	record := Asset{
		AssetID:    asset.ID,
		Title:      asset.Title,
		StorageKey: asset.StorageKey,
		Gated:      asset.Gated,
		CreatedAt:  asset.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("%w: create asset: %v", core.ErrStoreFailed, err)
	}
	return nil
}

// UpdateAssetGated toggles an asset's gating flag.
func (s *GormStore) UpdateAssetGated(ctx context.Context, assetID string, gated bool) error {
	res := s.db.WithContext(ctx).Model(&Asset{}).Where("asset_id = ?", assetID).Update("gated", gated)
	if res.Error != nil {
		return fmt.Errorf("%w: update asset: %v", core.ErrStoreFailed, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrAssetNotFound
	}
	return nil
}

// FindByWalletLink resolves a user through the wallet-link table.
func (s *GormStore) FindByWalletLink(ctx context.Context, wallet string) (*core.User, error) {
	var link WalletLink
	err := s.db.WithContext(ctx).Where("wallet = ?", wallet).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find wallet link: %v", core.ErrStoreFailed, err)
	}
	return s.findUser(ctx, "user_id = ?", link.UserID)
}

// FindByLegacyWallet resolves a user through the legacy address field.
func (s *GormStore) FindByLegacyWallet(ctx context.Context, wallet string) (*core.User, error) {
	var record User
	err := s.db.WithContext(ctx).Where("wallet = ?", wallet).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find user by wallet: %v", core.ErrStoreFailed, err)
	}
	return userToCore(&record), nil
}

// DisplayNameTaken reports whether a display slug is already in use.
func (s *GormStore) DisplayNameTaken(ctx context.Context, name string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&User{}).Where("display_name = ?", name).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: count display name: %v", core.ErrStoreFailed, err)
	}
	return count > 0, nil
}

// CreateUser persists a new user record.
func (s *GormStore) CreateUser(ctx context.Context, user *core.User) error {
	record := User{
		UserID:         user.ID,
		DisplayName:    user.DisplayName,
		Wallet:         user.Wallet,
		IdentityMarker: user.IdentityMarker,
		CreatedAt:      user.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("%w: create user: %v", core.ErrStoreFailed, err)
	}
	return nil
}

// LinkWallet registers a wallet as belonging to a user. Linking an
// already linked wallet is a no-op rather than an error, so provider
// reconciliation can retry safely.
func (s *GormStore) LinkWallet(ctx context.Context, link *core.WalletLink) error {
	record := WalletLink{
		Wallet:    link.Wallet,
		UserID:    link.UserID,
		Primary:   link.Primary,
		CreatedAt: link.CreatedAt,
	}
	err := s.db.WithContext(ctx).Create(&record).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: link wallet: %v", core.ErrStoreFailed, err)
	}
	return nil
}

// UpdateIdentityMarker replaces a user's identity marker.
func (s *GormStore) UpdateIdentityMarker(ctx context.Context, userID, marker string) error {
	res := s.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ?", userID).
		Update("identity_marker", marker)
	if res.Error != nil {
		return fmt.Errorf("%w: update identity marker: %v", core.ErrStoreFailed, res.Error)
	}
	return nil
}

func (s *GormStore) findUser(ctx context.Context, query string, args ...any) (*core.User, error) {
	var record User
	err := s.db.WithContext(ctx).Where(query, args...).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find user: %v", core.ErrStoreFailed, err)
	}
	return userToCore(&record), nil
}

func nonceToCore(record *DownloadNonce) *core.DownloadNonce {
	return &core.DownloadNonce{
		Nonce:     record.Nonce,
		AssetID:   record.AssetID,
		Wallet:    record.Wallet,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
		UsedAt:    record.UsedAt,
	}
}

func userToCore(record *User) *core.User {
	return &core.User{
		ID:             record.UserID,
		DisplayName:    record.DisplayName,
		Wallet:         record.Wallet,
		IdentityMarker: record.IdentityMarker,
		CreatedAt:      record.CreatedAt,
	}
}
