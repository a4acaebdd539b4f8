package store

import "time"

// DownloadNonce is a persisted single-use download challenge.
type DownloadNonce struct {
	ID        uint   `gorm:"primaryKey"`
	Nonce     string `gorm:"uniqueIndex"`
	AssetID   string `gorm:"index"`
	Wallet    string `gorm:"index"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
	UsedAt    *time.Time
}

// DownloadToken grants repeat access to one asset for one wallet until expiry.
type DownloadToken struct {
	ID        uint   `gorm:"primaryKey"`
	Token     string `gorm:"uniqueIndex"`
	AssetID   string `gorm:"index"`
	Wallet    string `gorm:"index"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}

// Asset is a media file, optionally gated behind on-chain ownership.
type Asset struct {
	ID         uint   `gorm:"primaryKey"`
	AssetID    string `gorm:"uniqueIndex"`
	Title      string
	StorageKey string
	Gated      bool
	CreatedAt  time.Time
}

// User is an account reachable through one or more wallets.
type User struct {
	ID             uint   `gorm:"primaryKey"`
	UserID         string `gorm:"uniqueIndex"`
	DisplayName    string `gorm:"uniqueIndex"`
	Wallet         string `gorm:"index"` // legacy direct-address field
	IdentityMarker string
	CreatedAt      time.Time
}

// WalletLink registers a wallet address as belonging to a user.
type WalletLink struct {
	ID        uint   `gorm:"primaryKey"`
	Wallet    string `gorm:"uniqueIndex"`
	UserID    string `gorm:"index"`
	Primary   bool
	CreatedAt time.Time
}
