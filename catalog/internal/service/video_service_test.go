package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevc-media/vidstream/catalog/internal/audit"
	"github.com/nevc-media/vidstream/catalog/internal/blob"
	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/repository"
	commonaudit "github.com/nevc-media/vidstream/common/audit"
)

// spyRepo counts writes and can be told to fail them.
type spyRepo struct {
	*repository.InMemoryRepository

	mu          sync.Mutex
	creates     int
	updates     int
	createErr   error
	appendErr   error
	searchExtra []*models.VideoAsset
}

func newSpyRepo() *spyRepo {
	return &spyRepo{InMemoryRepository: repository.NewInMemoryRepository()}
}

func (r *spyRepo) CreateAsset(ctx context.Context, a *models.VideoAsset) error {
	r.mu.Lock()
	r.creates++
	err := r.createErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.InMemoryRepository.CreateAsset(ctx, a)
}

func (r *spyRepo) UpdateAssetContent(ctx context.Context, a *models.VideoAsset) error {
	r.mu.Lock()
	r.updates++
	r.mu.Unlock()
	return r.InMemoryRepository.UpdateAssetContent(ctx, a)
}

func (r *spyRepo) AppendAuditEvent(ctx context.Context, e *models.AuditEvent) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	return r.InMemoryRepository.AppendAuditEvent(ctx, e)
}

func (r *spyRepo) SearchAssets(ctx context.Context, c models.SearchCriteria) ([]*models.VideoAsset, error) {
	out, err := r.InMemoryRepository.SearchAssets(ctx, c)
	return append(out, r.searchExtra...), err
}

// brokenBlobs fails the configured step.
type brokenBlobs struct {
	blob.Store
	stageErr  error
	deleteErr error
	deleted   []string
}

func (b *brokenBlobs) Stage(ctx context.Context, r io.Reader) (string, int64, error) {
	if b.stageErr != nil {
		return "", 0, b.stageErr
	}
	return b.Store.Stage(ctx, r)
}

func (b *brokenBlobs) Delete(ctx context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	return b.Store.Delete(ctx, key)
}

var testNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

type fixture struct {
	repo  *spyRepo
	blobs *brokenBlobs
	svc   *VideoService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)
	repo := newSpyRepo()
	blobs := &brokenBlobs{Store: fs}
	sink := audit.NewRecorder(repo, audit.WithClock(func() time.Time { return testNow }))
	svc := NewVideoService(repo, blobs, sink, repo, WithVideoClock(func() time.Time { return testNow }))
	return &fixture{repo: repo, blobs: blobs, svc: svc}
}

var (
	creator = &models.User{ID: "u1", Role: models.RoleCreator}
	viewer  = &models.User{ID: "u2", Role: models.RoleViewer}
)

func upload(content string) *Upload {
	return &Upload{FileName: "movie.mp4", ContentType: "video/mp4", Size: int64(len(content)), Content: strings.NewReader(content)}
}

func draft(title string) models.AssetDraft {
	return models.AssetDraft{Title: title, DirectorName: "D", MainActor: "A", RunningTime: 100}
}

func (f *fixture) publish(t *testing.T, title string) *models.VideoAsset {
	t.Helper()
	a, err := f.svc.Publish(context.Background(), creator, upload("0123456789"), draft(title))
	require.NoError(t, err)
	return a
}

func requireBadRequest(t *testing.T, err error, reason BadRequestReason) *BadRequestError {
	t.Helper()
	bre, ok := AsBadRequest(err)
	require.True(t, ok, "expected bad request, got %v", err)
	assert.Equal(t, reason, bre.Reason)
	return bre
}

func TestPublish_CreatesActiveAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Publish(ctx, creator, upload("0123456789"), models.AssetDraft{
		Title: "T", DirectorName: "D", MainActor: "A", RunningTime: 100,
	})
	require.NoError(t, err)

	assert.NotZero(t, a.ID)
	assert.True(t, a.IsActive())
	assert.Equal(t, "u1", a.PublishedBy)
	assert.Equal(t, testNow, a.PublishedAt)
	assert.EqualValues(t, 10, a.FileSizeBytes)
	assert.Equal(t, "movie.mp4", a.FileName)
	assert.Equal(t, "video/mp4", a.FileExtension)
	assert.True(t, strings.HasSuffix(a.BlobKey, "/movie.mp4"))

	obj, err := f.blobs.Open(ctx, a.BlobKey)
	require.NoError(t, err)
	defer obj.Content.Close()
	data, _ := io.ReadAll(obj.Content)
	assert.Equal(t, "0123456789", string(data))
}

func TestPublish_SameFileNameDoesNotOverwrite(t *testing.T) {
	f := newFixture(t)
	a := f.publish(t, "first")
	b := f.publish(t, "second")
	assert.NotEqual(t, a.BlobKey, b.BlobKey)
}

func TestPublish_EmptyFileNeverSaves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for name, up := range map[string]*Upload{
		"nil upload":   nil,
		"zero size":    {FileName: "a.mp4", Size: 0, Content: strings.NewReader("")},
		"nil content":  {FileName: "a.mp4", Size: 5},
		"unknown size": {FileName: "a.mp4", Size: -1, Content: strings.NewReader("")},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Publish(ctx, creator, up, draft("T"))
			requireBadRequest(t, err, ReasonEmptyFile)
		})
	}
	assert.Zero(t, f.repo.creates)
}

func TestPublish_IDOnCreate(t *testing.T) {
	f := newFixture(t)
	d := draft("T")
	d.ID = 7

	_, err := f.svc.Publish(context.Background(), creator, upload("x"), d)
	requireBadRequest(t, err, ReasonIDOnCreate)
	assert.Zero(t, f.repo.creates)
}

func TestPublish_CollectsEveryViolation(t *testing.T) {
	f := newFixture(t)
	up := upload("x")
	up.FileName = "../"

	_, err := f.svc.Publish(context.Background(), creator, up, models.AssetDraft{
		Title: "  ", YearOfRelease: 1800, RunningTime: -1, Genres: []models.Genre{"POLKA"},
	})
	bre := requireBadRequest(t, err, ReasonValidationFailed)
	assert.Len(t, bre.Violations, 7)
	assert.Zero(t, f.repo.creates)
}

func TestPublish_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Publish(context.Background(), nil, upload("x"), draft("T"))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.svc.Publish(context.Background(), viewer, upload("x"), draft("T"))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPublish_BlobFailureCreatesNoMetadata(t *testing.T) {
	f := newFixture(t)
	f.blobs.stageErr = errors.New("disk full")

	_, err := f.svc.Publish(context.Background(), creator, upload("x"), draft("T"))
	assert.ErrorIs(t, err, ErrInternal)
	assert.Zero(t, f.repo.creates)
}

func TestPublish_MetadataFailureRemovesBlob(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errors.New("db down")

	_, err := f.svc.Publish(context.Background(), creator, upload("x"), draft("T"))
	assert.ErrorIs(t, err, ErrInternal)
	require.Len(t, f.blobs.deleted, 1)

	_, err = f.blobs.Open(context.Background(), f.blobs.deleted[0])
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestUpdate_IDMismatchNeverSaves(t *testing.T) {
	f := newFixture(t)
	d := draft("T")
	d.ID = 6

	_, err := f.svc.Update(context.Background(), creator, 5, d)
	requireBadRequest(t, err, ReasonIDMismatch)
	assert.Zero(t, f.repo.updates)
}

func TestUpdate_OverwritesContentOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.publish(t, "Old")

	editor := &models.User{ID: "u9", Role: models.RoleAdmin}
	patch := models.AssetDraft{
		ID:            a.ID,
		Title:         "New",
		Synopsis:      "S",
		DirectorName:  "D2",
		MainActor:     "A2",
		Cast:          []models.Actor{{FullName: "X"}},
		Genres:        []models.Genre{models.GenreDrama},
		YearOfRelease: 1999,
		RunningTime:   90,
	}
	updated, err := f.svc.Update(ctx, editor, a.ID, patch)
	require.NoError(t, err)

	got, err := f.svc.GetAsset(ctx, creator, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, updated.Title, got.Title)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, 1999, got.YearOfRelease)
	assert.Equal(t, []models.Genre{models.GenreDrama}, got.Genres)
	require.NotNil(t, got.LastUpdatedAt)
	assert.Equal(t, testNow, *got.LastUpdatedAt)
	assert.Equal(t, "u9", got.LastUpdatedBy)

	assert.Equal(t, a.MainActor, got.MainActor, "main actor is fixed at publish time")
	assert.Equal(t, a.MainActor, updated.MainActor)
	assert.Equal(t, a.PublishedBy, got.PublishedBy)
	assert.Equal(t, a.PublishedAt, got.PublishedAt)
	assert.Equal(t, a.BlobKey, got.BlobKey)
	assert.Equal(t, a.FileSizeBytes, got.FileSizeBytes)
	assert.True(t, got.IsActive())
}

func TestUpdate_ZeroPatchIDUsesPathID(t *testing.T) {
	f := newFixture(t)
	a := f.publish(t, "Old")

	_, err := f.svc.Update(context.Background(), creator, a.ID, draft("New"))
	assert.NoError(t, err)
}

func TestUpdate_MissingOrDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, creator, 404, draft("T"))
	assert.ErrorIs(t, err, ErrNotFound)

	a := f.publish(t, "Doomed")
	require.NoError(t, f.svc.Delete(ctx, creator, a.ID))
	_, err = f.svc.Update(ctx, creator, a.ID, draft("Back"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_ValidationBeforeLookup(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Update(context.Background(), creator, 404, models.AssetDraft{})
	bre := requireBadRequest(t, err, ReasonValidationFailed)
	assert.Len(t, bre.Violations, 3)
}

func TestGetAsset_AuditedAccessRecordsImpression(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.publish(t, "Seen")

	_, err := f.svc.GetAsset(ctx, viewer, a.ID, &models.Origin{IP: "10.0.0.1", UserAgent: "curl/8"})
	require.NoError(t, err)
	_, err = f.svc.GetAsset(ctx, viewer, a.ID, nil)
	require.NoError(t, err)

	events, err := f.svc.ListImpressions(ctx, creator, a.ID)
	require.NoError(t, err)
	require.Len(t, events, 1, "unaudited access records nothing")
	assert.Equal(t, "u2", events[0].UserID)
	assert.Equal(t, "10.0.0.1", events[0].SourceIP)
	assert.Equal(t, "curl/8", events[0].UserAgent)
	assert.Equal(t, testNow, events[0].OccurredAt)
}

func TestGetAsset_AuditFailureFailsRead(t *testing.T) {
	f := newFixture(t)
	a := f.publish(t, "Seen")
	f.repo.appendErr = errors.New("audit store down")

	_, err := f.svc.GetAsset(context.Background(), viewer, a.ID, &models.Origin{IP: "1.2.3.4"})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestPlayback_RecordsExactlyOneView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.publish(t, "Play me")

	pb, err := f.svc.Playback(ctx, viewer, a.ID, &models.Origin{IP: "192.0.2.1", UserAgent: "VLC/3.0"})
	require.NoError(t, err)
	defer pb.Content.Close()

	data, err := io.ReadAll(pb.Content)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
	assert.EqualValues(t, 10, pb.Size)
	assert.Equal(t, a.ID, pb.Asset.ID)

	views, err := f.svc.ListViews(ctx, creator, a.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "192.0.2.1", views[0].SourceIP)
	assert.Equal(t, "VLC/3.0", views[0].UserAgent)

	impressions, err := f.svc.ListImpressions(ctx, creator, a.ID)
	require.NoError(t, err)
	assert.Empty(t, impressions, "the playback lookup is not an impression")
}

func TestPlayback_MissingBlobIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.publish(t, "Vanished")
	require.NoError(t, f.blobs.Store.Delete(ctx, a.BlobKey))

	_, err := f.svc.Playback(ctx, viewer, a.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	views, err := f.svc.ListViews(ctx, creator, a.ID)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestPlayback_AuditFailureClosesStream(t *testing.T) {
	f := newFixture(t)
	a := f.publish(t, "Play")
	f.repo.appendErr = errors.New("audit store down")

	_, err := f.svc.Playback(context.Background(), viewer, a.ID, nil)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestDelete_IsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.publish(t, "Gone")

	require.NoError(t, f.svc.Delete(ctx, creator, a.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, creator, a.ID), ErrNotFound)

	_, err := f.svc.GetAsset(ctx, viewer, a.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Playback(ctx, viewer, a.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	results, err := f.svc.Search(ctx, viewer, models.ListAll())
	require.NoError(t, err)
	assert.Empty(t, results)

	obj, err := f.blobs.Open(ctx, a.BlobKey)
	require.NoError(t, err, "media is retained after soft delete")
	obj.Content.Close()

	events, err := f.svc.ListViews(ctx, creator, a.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDelete_RequiresCapability(t *testing.T) {
	f := newFixture(t)
	a := f.publish(t, "Kept")
	assert.ErrorIs(t, f.svc.Delete(context.Background(), viewer, a.ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), nil, a.ID), ErrUnauthenticated)
}

func TestSearch_OnlyActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	knight := f.publish(t, "The Dark Knight")
	side := f.publish(t, "Dark Side")
	require.NoError(t, f.svc.Delete(ctx, creator, side.ID))

	results, err := f.svc.Search(ctx, viewer, models.ByTitle("Dark"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, knight.ID, results[0].ID)
	assert.Equal(t, "The Dark Knight", results[0].Title)
}

func TestSearch_FiltersInactiveFromRepository(t *testing.T) {
	f := newFixture(t)
	f.repo.searchExtra = []*models.VideoAsset{{ID: 99, Title: "Ghost", State: models.AssetInactive}}

	results, err := f.svc.Search(context.Background(), viewer, models.ListAll())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results, "empty result is a value, not nil")
}

func TestSearch_Criteria(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	short := f.publish(t, "Short")
	_, err := f.svc.Update(ctx, creator, short.ID, models.AssetDraft{
		Title: "Short", DirectorName: "Agnes Varda", MainActor: "Corinne Marchand",
		Genres: []models.Genre{models.GenreDrama}, RunningTime: 90,
	})
	require.NoError(t, err)
	long := f.publish(t, "Long")

	ids := func(c models.SearchCriteria) []int64 {
		res, err := f.svc.Search(ctx, viewer, c)
		require.NoError(t, err)
		out := []int64{}
		for _, s := range res {
			out = append(out, s.ID)
		}
		return out
	}

	assert.Equal(t, []int64{short.ID, long.ID}, ids(models.ListAll()))
	assert.Equal(t, []int64{short.ID}, ids(models.ByDirector("varda")))
	assert.Equal(t, []int64{short.ID}, ids(models.ByMainActor("MARCHAND")))
	assert.Equal(t, []int64{short.ID}, ids(models.ByGenre(models.GenreDrama)))
	assert.Equal(t, []int64{long.ID}, ids(models.ByRunningTime(100, "")))
	assert.Equal(t, []int64{long.ID}, ids(models.ByRunningTime(95, models.CompareGreaterOrEqual)))
	assert.Equal(t, []int64{short.ID}, ids(models.ByRunningTime(95, models.CompareLessOrEqual)))

	_, err = f.svc.Search(ctx, viewer, models.ByRunningTime(90, "ABOUT"))
	requireBadRequest(t, err, ReasonValidationFailed)
	_, err = f.svc.Search(ctx, nil, models.ListAll())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestListAudit_RequiresCapability(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListViews(context.Background(), viewer, 1)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListAudit_MarksVerifiedEvents(t *testing.T) {
	ctx := context.Background()
	fs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)
	repo := newSpyRepo()
	recorder := audit.NewRecorder(repo, audit.WithSigner(commonaudit.NewEventSigner("audit-secret")))
	svc := NewVideoService(repo, fs, recorder, repo, WithAuditVerifier(recorder))

	a, err := svc.Publish(ctx, creator, upload("0123456789"), draft("Signed"))
	require.NoError(t, err)
	_, err = svc.GetAsset(ctx, viewer, a.ID, &models.Origin{IP: "10.0.0.1"})
	require.NoError(t, err)
	require.NoError(t, repo.AppendAuditEvent(ctx, &models.AuditEvent{
		ID: "forged", Kind: models.AuditImpression, AssetID: a.ID, UserID: "u9",
		OccurredAt: testNow, Signature: "deadbeef",
	}))

	events, err := svc.ListImpressions(ctx, creator, a.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].Verified)
	assert.False(t, events[1].Verified, "a bad signature is reported, not hidden")

	// Without a verifier nothing claims to be verified.
	f := newFixture(t)
	b := f.publish(t, "Unsigned")
	_, err = f.svc.GetAsset(ctx, viewer, b.ID, &models.Origin{IP: "10.0.0.1"})
	require.NoError(t, err)
	events, err = f.svc.ListImpressions(ctx, creator, b.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Verified)
}

func TestConcurrentUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.publish(t, "Contended")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := draft("Title")
			d.RunningTime = i
			_, err := f.svc.Update(ctx, creator, a.ID, d)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.svc.Delete(ctx, creator, a.ID))
	}()
	wg.Wait()

	_, err := f.svc.GetAsset(ctx, viewer, a.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"movie.mp4":            "movie.mp4",
		"  movie.mp4 ":         "movie.mp4",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\clip.mov`: "clip.mov",
		"":                     "",
		".":                    "",
		"..":                   "",
		"/":                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFileName(in), in)
	}
}

func TestBadRequestError_Message(t *testing.T) {
	err := BadRequest(ReasonValidationFailed, "a", "b")
	assert.Equal(t, "bad request: validation_failed: a; b", err.Error())
	assert.Equal(t, "bad request: empty_file", BadRequest(ReasonEmptyFile).Error())

	wrapped := internalError("op", bytes.ErrTooLarge)
	assert.ErrorIs(t, wrapped, ErrInternal)
	assert.ErrorIs(t, wrapped, bytes.ErrTooLarge)
}
