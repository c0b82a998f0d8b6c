package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevc-media/vidstream/catalog/internal/models"
)

// testRepository runs the behaviour every Repository implementation must share.
func testRepository(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("users", func(t *testing.T) { testUsers(t, newRepo(t)) })
	t.Run("asset lifecycle", func(t *testing.T) { testAssetLifecycle(t, newRepo(t)) })
	t.Run("search", func(t *testing.T) { testSearch(t, newRepo(t)) })
	t.Run("audit", func(t *testing.T) { testAudit(t, newRepo(t)) })
	t.Run("concurrent updates", func(t *testing.T) { testConcurrentUpdates(t, newRepo(t)) })
}

func newUser(email string, role models.Role) *models.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		DisplayName:  "User " + email,
		Email:        email,
		PasswordHash: "$2a$04$hash",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newAsset(publisher, title string) *models.VideoAsset {
	return &models.VideoAsset{
		Title:         title,
		Synopsis:      "synopsis",
		DirectorName:  "Christopher Nolan",
		MainActor:     "Christian Bale",
		Cast:          []models.Actor{{FullName: "Heath Ledger"}},
		Genres:        []models.Genre{models.GenreAction, models.GenreCrime},
		YearOfRelease: 2008,
		RunningTime:   152,
		BlobKey:       uuid.NewString() + "/film.mp4",
		FileName:      "film.mp4",
		FileExtension: "video/mp4",
		FileSizeBytes: 1024,
		PublishedAt:   time.Now().UTC().Truncate(time.Microsecond),
		PublishedBy:   publisher,
		State:         models.AssetActive,
	}
}

func testUsers(t *testing.T, repo Repository) {
	ctx := context.Background()

	u := newUser("Ada@Example.com", models.RoleCreator)
	require.NoError(t, repo.CreateUser(ctx, u))

	dup := newUser("ada@example.COM", models.RoleViewer)
	assert.ErrorIs(t, repo.CreateUser(ctx, dup), ErrUserExists)

	got, err := repo.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, models.RoleCreator, got.Role)

	got, err = repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.DisplayName, got.DisplayName)

	_, err = repo.GetUserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.GetUserByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, repo.UpdateUserRole(ctx, u.ID, models.RoleAdmin, time.Now()))
	got, err = repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.ErrorIs(t, repo.UpdateUserRole(ctx, uuid.NewString(), models.RoleAdmin, time.Now()), ErrUserNotFound)

	second := newUser("bob@example.com", models.RoleViewer)
	require.NoError(t, repo.CreateUser(ctx, second))
	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func testAssetLifecycle(t *testing.T, repo Repository) {
	ctx := context.Background()
	u := newUser("creator@example.com", models.RoleCreator)
	require.NoError(t, repo.CreateUser(ctx, u))

	a := newAsset(u.ID, "The Dark Knight")
	require.NoError(t, repo.CreateAsset(ctx, a))
	require.NotZero(t, a.ID)

	b := newAsset(u.ID, "Inception")
	require.NoError(t, repo.CreateAsset(ctx, b))
	assert.Greater(t, b.ID, a.ID)

	got, err := repo.GetActiveAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Dark Knight", got.Title)
	assert.Equal(t, []models.Genre{models.GenreAction, models.GenreCrime}, got.Genres)
	assert.Equal(t, []models.Actor{{FullName: "Heath Ledger"}}, got.Cast)
	assert.Nil(t, got.LastUpdatedAt)

	// Mutating the returned copy must not leak into the store.
	got.Title = "mutated"
	again, err := repo.GetActiveAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Dark Knight", again.Title)

	updatedAt := time.Now().UTC().Truncate(time.Microsecond)
	patch := again.Clone()
	patch.Title = "The Dark Knight Rises"
	patch.Genres = []models.Genre{models.GenreDrama}
	patch.LastUpdatedAt = &updatedAt
	patch.LastUpdatedBy = u.ID
	patch.FileName = "ignored.mp4"
	patch.MainActor = "ignored"
	require.NoError(t, repo.UpdateAssetContent(ctx, patch))

	got, err = repo.GetActiveAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Dark Knight Rises", got.Title)
	assert.Equal(t, []models.Genre{models.GenreDrama}, got.Genres)
	require.NotNil(t, got.LastUpdatedAt)
	assert.True(t, updatedAt.Equal(*got.LastUpdatedAt))
	assert.Equal(t, u.ID, got.LastUpdatedBy)
	assert.Equal(t, "film.mp4", got.FileName, "file fields are not content fields")
	assert.Equal(t, again.MainActor, got.MainActor, "main actor is not updatable")

	require.NoError(t, repo.SoftDeleteAsset(ctx, a.ID, u.ID, time.Now()))
	_, err = repo.GetActiveAsset(ctx, a.ID)
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.ErrorIs(t, repo.SoftDeleteAsset(ctx, a.ID, u.ID, time.Now()), ErrAssetNotFound)
	assert.ErrorIs(t, repo.UpdateAssetContent(ctx, patch), ErrAssetNotFound, "inactive assets cannot be updated")

	_, err = repo.GetActiveAsset(ctx, 999999)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func testSearch(t *testing.T, repo Repository) {
	ctx := context.Background()
	u := newUser("search@example.com", models.RoleCreator)
	require.NoError(t, repo.CreateUser(ctx, u))

	dark := newAsset(u.ID, "The Dark Knight")
	require.NoError(t, repo.CreateAsset(ctx, dark))

	side := newAsset(u.ID, "Dark Side")
	require.NoError(t, repo.CreateAsset(ctx, side))
	require.NoError(t, repo.SoftDeleteAsset(ctx, side.ID, u.ID, time.Now()))

	comedy := newAsset(u.ID, "100% Funny_Film")
	comedy.DirectorName = "Greta Gerwig"
	comedy.MainActor = "Margot Robbie"
	comedy.Genres = []models.Genre{models.GenreComedy}
	comedy.RunningTime = 95
	require.NoError(t, repo.CreateAsset(ctx, comedy))

	ids := func(c models.SearchCriteria) []int64 {
		t.Helper()
		require.NoError(t, c.Validate())
		assets, err := repo.SearchAssets(ctx, c)
		require.NoError(t, err)
		out := make([]int64, 0, len(assets))
		for _, a := range assets {
			out = append(out, a.ID)
		}
		return out
	}

	assert.Equal(t, []int64{dark.ID, comedy.ID}, ids(models.ListAll()))
	assert.Equal(t, []int64{dark.ID}, ids(models.ByTitle("dark")))
	assert.Equal(t, []int64{comedy.ID}, ids(models.ByTitle("0% f")))
	assert.Equal(t, []int64{comedy.ID}, ids(models.ByTitle("%")), "percent is matched literally")
	assert.Empty(t, ids(models.ByTitle("k%n")), "wildcards are literal")
	assert.Empty(t, ids(models.ByTitle("k_kn")))
	assert.Equal(t, []int64{comedy.ID}, ids(models.ByTitle("y_f")))
	assert.Equal(t, []int64{comedy.ID}, ids(models.ByDirector("GERWIG")))
	assert.Equal(t, []int64{dark.ID}, ids(models.ByMainActor("bale")))
	assert.Equal(t, []int64{dark.ID}, ids(models.ByGenre(models.GenreCrime)))
	assert.Empty(t, ids(models.ByGenre(models.GenreHorror)))
	assert.Equal(t, []int64{comedy.ID}, ids(models.ByRunningTime(95, models.CompareEqual)))
	assert.Equal(t, []int64{dark.ID}, ids(models.ByRunningTime(100, models.CompareGreaterOrEqual)))
	assert.Equal(t, []int64{dark.ID, comedy.ID}, ids(models.ByRunningTime(152, models.CompareLessOrEqual)))
}

func testAudit(t *testing.T, repo Repository) {
	ctx := context.Background()
	u := newUser("audit@example.com", models.RoleViewer)
	require.NoError(t, repo.CreateUser(ctx, u))
	a := newAsset(u.ID, "Audited")
	require.NoError(t, repo.CreateAsset(ctx, a))

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, kind := range []models.AuditKind{models.AuditImpression, models.AuditView, models.AuditImpression} {
		require.NoError(t, repo.AppendAuditEvent(ctx, &models.AuditEvent{
			ID:         uuid.NewString(),
			Kind:       kind,
			AssetID:    a.ID,
			UserID:     u.ID,
			OccurredAt: base.Add(time.Duration(i) * time.Second),
			SourceIP:   "203.0.113.9",
			UserAgent:  "vidctl/1.0",
			Signature:  "sig",
		}))
	}

	impressions, err := repo.ListAuditEvents(ctx, a.ID, models.AuditImpression)
	require.NoError(t, err)
	require.Len(t, impressions, 2)
	assert.True(t, impressions[0].OccurredAt.Before(impressions[1].OccurredAt))
	assert.Equal(t, "203.0.113.9", impressions[0].SourceIP)

	views, err := repo.ListAuditEvents(ctx, a.ID, models.AuditView)
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, "sig", views[0].Signature)
}

func testConcurrentUpdates(t *testing.T, repo Repository) {
	ctx := context.Background()
	u := newUser("race@example.com", models.RoleCreator)
	require.NoError(t, repo.CreateUser(ctx, u))
	a := newAsset(u.ID, "Race")
	require.NoError(t, repo.CreateAsset(ctx, a))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			patch := a.Clone()
			patch.Title = "title"
			patch.Synopsis = "synopsis"
			patch.RunningTime = i
			_ = repo.UpdateAssetContent(ctx, patch)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = repo.SoftDeleteAsset(ctx, a.ID, u.ID, time.Now())
	}()
	wg.Wait()

	_, err := repo.GetActiveAsset(ctx, a.ID)
	assert.ErrorIs(t, err, ErrAssetNotFound, "delete is terminal whatever the interleaving")

	assert.ErrorIs(t, repo.UpdateAssetContent(ctx, a.Clone()), ErrAssetNotFound)
}
