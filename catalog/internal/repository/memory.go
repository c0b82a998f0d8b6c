package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nevc-media/vidstream/catalog/internal/models"
)

// InMemoryRepository is a development and test repository. Records are
// copied on the way in and out.
type InMemoryRepository struct {
	mu          sync.RWMutex
	users       map[string]*models.User
	usersByMail map[string]string
	assets      map[int64]*models.VideoAsset
	nextAssetID int64
	audit       []*models.AuditEvent
}

var _ Repository = (*InMemoryRepository)(nil)

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:       make(map[string]*models.User),
		usersByMail: make(map[string]string),
		assets:      make(map[int64]*models.VideoAsset),
	}
}

func (r *InMemoryRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := models.NormalizeEmail(user.Email)
	if _, exists := r.usersByMail[email]; exists {
		return ErrUserExists
	}
	if _, exists := r.users[user.ID]; exists {
		return ErrUserExists
	}

	u := *user
	u.Email = email
	r.users[u.ID] = &u
	r.usersByMail[email] = u.ID
	return nil
}

func (r *InMemoryRepository) GetUserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (r *InMemoryRepository) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.usersByMail[models.NormalizeEmail(email)]
	if !exists {
		return nil, ErrUserNotFound
	}
	u := *r.users[id]
	return &u, nil
}

func (r *InMemoryRepository) ListUsers(_ context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*models.User, 0, len(r.users))
	for _, user := range r.users {
		u := *user
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *InMemoryRepository) UpdateUserRole(_ context.Context, id string, role models.Role, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return ErrUserNotFound
	}
	user.Role = role
	user.UpdatedAt = at
	return nil
}

func (r *InMemoryRepository) CreateAsset(_ context.Context, asset *models.VideoAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextAssetID++
	asset.ID = r.nextAssetID
	r.assets[asset.ID] = asset.Clone()
	return nil
}

func (r *InMemoryRepository) GetActiveAsset(_ context.Context, id int64) (*models.VideoAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, exists := r.assets[id]
	if !exists || !asset.IsActive() {
		return nil, ErrAssetNotFound
	}
	return asset.Clone(), nil
}

func (r *InMemoryRepository) UpdateAssetContent(_ context.Context, asset *models.VideoAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, exists := r.assets[asset.ID]
	if !exists || !cur.IsActive() {
		return ErrAssetNotFound
	}

	src := asset.Clone()
	next := cur.Clone()
	next.Title = src.Title
	next.Synopsis = src.Synopsis
	next.DirectorName = src.DirectorName
	next.Cast = src.Cast
	next.Genres = src.Genres
	next.YearOfRelease = src.YearOfRelease
	next.RunningTime = src.RunningTime
	next.LastUpdatedAt = src.LastUpdatedAt
	next.LastUpdatedBy = src.LastUpdatedBy
	r.assets[asset.ID] = next
	return nil
}

func (r *InMemoryRepository) SoftDeleteAsset(_ context.Context, id int64, by string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, exists := r.assets[id]
	if !exists || !cur.IsActive() {
		return ErrAssetNotFound
	}

	next := cur.Clone()
	next.State = models.AssetInactive
	next.DeletedAt = &at
	next.DeletedBy = by
	r.assets[id] = next
	return nil
}

func (r *InMemoryRepository) SearchAssets(_ context.Context, c models.SearchCriteria) ([]*models.VideoAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*models.VideoAsset, 0)
	for _, asset := range r.assets {
		if asset.IsActive() && c.Matches(asset) {
			results = append(results, asset.Clone())
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (r *InMemoryRepository) AppendAuditEvent(_ context.Context, event *models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := *event
	r.audit = append(r.audit, &e)
	return nil
}

func (r *InMemoryRepository) ListAuditEvents(_ context.Context, assetID int64, kind models.AuditKind) ([]*models.AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]*models.AuditEvent, 0)
	for _, event := range r.audit {
		if event.AssetID == assetID && event.Kind == kind {
			e := *event
			events = append(events, &e)
		}
	}
	return events, nil
}

func (r *InMemoryRepository) Ping(context.Context) error { return nil }

func (r *InMemoryRepository) Close() {}
