package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/common/database"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()
	return r.pool.Ping(ctx)
}

// =============================================================================
// USERS
// =============================================================================

const userColumns = `id::text, display_name, email, password_hash, role, created_at, updated_at`

func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO users (id, display_name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.DisplayName, models.NormalizeEmail(user.Email), user.PasswordHash,
		string(user.Role), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	if !isUUID(id) {
		return nil, ErrUserNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
	return scanUser(r.pool.QueryRow(ctx, query, models.NormalizeEmail(email)))
}

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]*models.User, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *PostgresRepository) UpdateUserRole(ctx context.Context, id string, role models.Role, at time.Time) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	if !isUUID(id) {
		return ErrUserNotFound
	}

	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`, id, string(role), at)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var role string
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.Role = models.Role(role)
	return &user, nil
}

// =============================================================================
// VIDEO ASSETS
// =============================================================================

const assetColumns = `
	id, title, synopsis, director_name, main_actor, cast_members, genres,
	year_of_release, running_time, blob_key, file_name, file_extension, file_size_bytes,
	published_at, published_by::text, last_updated_at, COALESCE(last_updated_by::text, ''),
	deleted_at, COALESCE(deleted_by::text, ''), state
`

func (r *PostgresRepository) CreateAsset(ctx context.Context, asset *models.VideoAsset) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	cast, err := json.Marshal(nonNilCast(asset.Cast))
	if err != nil {
		return fmt.Errorf("failed to encode cast: %w", err)
	}

	query := `
		INSERT INTO video_assets (
			title, synopsis, director_name, main_actor, cast_members, genres,
			year_of_release, running_time, blob_key, file_name, file_extension, file_size_bytes,
			published_at, published_by, state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`

	err = r.pool.QueryRow(ctx, query,
		asset.Title, asset.Synopsis, asset.DirectorName, asset.MainActor, cast, genreStrings(asset.Genres),
		asset.YearOfRelease, asset.RunningTime, asset.BlobKey, asset.FileName, asset.FileExtension, asset.FileSizeBytes,
		asset.PublishedAt, asset.PublishedBy, string(asset.State),
	).Scan(&asset.ID)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetActiveAsset(ctx context.Context, id int64) (*models.VideoAsset, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `SELECT ` + assetColumns + ` FROM video_assets WHERE id = $1 AND state = 'active'`
	return scanAsset(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) UpdateAssetContent(ctx context.Context, asset *models.VideoAsset) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	cast, err := json.Marshal(nonNilCast(asset.Cast))
	if err != nil {
		return fmt.Errorf("failed to encode cast: %w", err)
	}

	query := `
		UPDATE video_assets
		SET title = $2, synopsis = $3, director_name = $4, cast_members = $5,
		    genres = $6, year_of_release = $7, running_time = $8,
		    last_updated_at = $9, last_updated_by = $10
		WHERE id = $1 AND state = 'active'
	`

	tag, err := r.pool.Exec(ctx, query,
		asset.ID, asset.Title, asset.Synopsis, asset.DirectorName, cast,
		genreStrings(asset.Genres), asset.YearOfRelease, asset.RunningTime,
		asset.LastUpdatedAt, nullIfEmpty(asset.LastUpdatedBy),
	)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func (r *PostgresRepository) SoftDeleteAsset(ctx context.Context, id int64, by string, at time.Time) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		UPDATE video_assets
		SET state = 'inactive', deleted_at = $2, deleted_by = $3
		WHERE id = $1 AND state = 'active'
	`

	tag, err := r.pool.Exec(ctx, query, id, at, by)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func (r *PostgresRepository) SearchAssets(ctx context.Context, c models.SearchCriteria) ([]*models.VideoAsset, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	where, args, err := searchPredicate(c)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + assetColumns + ` FROM video_assets WHERE state = 'active'` + where + ` ORDER BY id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	defer rows.Close()

	assets := make([]*models.VideoAsset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	return assets, nil
}

func searchPredicate(c models.SearchCriteria) (string, []any, error) {
	switch c.Kind {
	case models.SearchAll:
		return "", nil, nil
	case models.SearchTitle:
		return ` AND title ILIKE $1`, []any{likePattern(c.Text)}, nil
	case models.SearchDirector:
		return ` AND director_name ILIKE $1`, []any{likePattern(c.Text)}, nil
	case models.SearchMainActor:
		return ` AND main_actor ILIKE $1`, []any{likePattern(c.Text)}, nil
	case models.SearchGenre:
		return ` AND $1 = ANY(genres)`, []any{string(c.Genre)}, nil
	case models.SearchRunningTime:
		switch c.Comparator {
		case models.CompareGreaterOrEqual:
			return ` AND running_time >= $1`, []any{c.RunningTime}, nil
		case models.CompareLessOrEqual:
			return ` AND running_time <= $1`, []any{c.RunningTime}, nil
		default:
			return ` AND running_time = $1`, []any{c.RunningTime}, nil
		}
	}
	return "", nil, fmt.Errorf("unsupported search kind %q", c.Kind)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
}

func scanAsset(row pgx.Row) (*models.VideoAsset, error) {
	var (
		asset  models.VideoAsset
		cast   []byte
		genres []string
		state  string
	)
	err := row.Scan(
		&asset.ID, &asset.Title, &asset.Synopsis, &asset.DirectorName, &asset.MainActor, &cast, &genres,
		&asset.YearOfRelease, &asset.RunningTime, &asset.BlobKey, &asset.FileName, &asset.FileExtension, &asset.FileSizeBytes,
		&asset.PublishedAt, &asset.PublishedBy, &asset.LastUpdatedAt, &asset.LastUpdatedBy,
		&asset.DeletedAt, &asset.DeletedBy, &state,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}

	if err := json.Unmarshal(cast, &asset.Cast); err != nil {
		return nil, fmt.Errorf("failed to decode cast: %w", err)
	}
	asset.Genres = make([]models.Genre, len(genres))
	for i, g := range genres {
		asset.Genres[i] = models.Genre(g)
	}
	asset.State = models.AssetState(state)
	return &asset, nil
}

func genreStrings(genres []models.Genre) []string {
	out := make([]string, len(genres))
	for i, g := range genres {
		out[i] = string(g)
	}
	return out
}

func nonNilCast(cast []models.Actor) []models.Actor {
	if cast == nil {
		return []models.Actor{}
	}
	return cast
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// =============================================================================
// AUDIT EVENTS
// =============================================================================

func (r *PostgresRepository) AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO audit_events (id, kind, asset_id, user_id, occurred_at, source_ip, user_agent, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID, string(event.Kind), event.AssetID, event.UserID, event.OccurredAt,
		event.SourceIP, event.UserAgent, event.Signature,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListAuditEvents(ctx context.Context, assetID int64, kind models.AuditKind) ([]*models.AuditEvent, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT id::text, kind, asset_id, user_id::text, occurred_at, source_ip, user_agent, signature
		FROM audit_events
		WHERE asset_id = $1 AND kind = $2
		ORDER BY occurred_at, id
	`

	rows, err := r.pool.Query(ctx, query, assetID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)
	for rows.Next() {
		var e models.AuditEvent
		var k string
		if err := rows.Scan(&e.ID, &k, &e.AssetID, &e.UserID, &e.OccurredAt, &e.SourceIP, &e.UserAgent, &e.Signature); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Kind = models.AuditKind(k)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}
