package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nevc-media/vidstream/catalog/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrAssetNotFound = errors.New("asset not found")
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserRole(ctx context.Context, id string, role models.Role, at time.Time) error
}

// AssetRepository stores asset metadata. Every read and write except
// CreateAsset only sees active assets, so an inactive asset can never be
// modified or resurrected.
type AssetRepository interface {
	// CreateAsset assigns asset.ID.
	CreateAsset(ctx context.Context, asset *models.VideoAsset) error
	GetActiveAsset(ctx context.Context, id int64) (*models.VideoAsset, error)
	// UpdateAssetContent writes the content and last-updated fields of an
	// active asset.
	UpdateAssetContent(ctx context.Context, asset *models.VideoAsset) error
	SoftDeleteAsset(ctx context.Context, id int64, by string, at time.Time) error
	// SearchAssets returns active assets matching c, ordered by id.
	SearchAssets(ctx context.Context, c models.SearchCriteria) ([]*models.VideoAsset, error)
}

// AuditRepository is the append-only impression and view log.
type AuditRepository interface {
	AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error
	// ListAuditEvents returns events of one kind for an asset, oldest first.
	ListAuditEvents(ctx context.Context, assetID int64, kind models.AuditKind) ([]*models.AuditEvent, error)
}

type Repository interface {
	UserRepository
	AssetRepository
	AuditRepository
	Ping(ctx context.Context) error
	Close()
}
