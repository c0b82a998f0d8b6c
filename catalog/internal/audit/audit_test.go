package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/repository"
	commonaudit "github.com/nevc-media/vidstream/common/audit"
	"github.com/nevc-media/vidstream/common/messaging"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*messaging.Message
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return p.PublishMsg(ctx, &messaging.Message{Subject: subject, Data: data})
}

func (p *recordingPublisher) PublishMsg(_ context.Context, msg *messaging.Message) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type failingAuditRepo struct{ repository.AuditRepository }

func (failingAuditRepo) AppendAuditEvent(context.Context, *models.AuditEvent) error {
	return errors.New("disk full")
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

func TestRecorder_RecordsSignedEvents(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryRepository()
	pub := &recordingPublisher{}
	rec := NewRecorder(repo,
		WithSigner(commonaudit.NewEventSigner("audit-secret")),
		WithPublisher(pub),
		WithClock(func() time.Time { return fixedNow }))

	origin := &models.Origin{IP: "198.51.100.7", UserAgent: "Mozilla/5.0"}
	require.NoError(t, rec.RecordImpression(ctx, 42, "user-1", origin))
	require.NoError(t, rec.RecordView(ctx, 42, "user-1", origin))

	impressions, err := repo.ListAuditEvents(ctx, 42, models.AuditImpression)
	require.NoError(t, err)
	require.Len(t, impressions, 1)
	ev := impressions[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, "198.51.100.7", ev.SourceIP)
	assert.Equal(t, fixedNow.Truncate(time.Microsecond), ev.OccurredAt)
	assert.True(t, rec.Verify(ev))

	tampered := *ev
	tampered.UserID = "user-2"
	assert.False(t, rec.Verify(&tampered))

	views, err := repo.ListAuditEvents(ctx, 42, models.AuditView)
	require.NoError(t, err)
	assert.Len(t, views, 1)

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, messaging.SubjectAuditImpressions, pub.msgs[0].Subject)
	assert.Equal(t, messaging.SubjectAuditViews, pub.msgs[1].Subject)
	assert.Equal(t, ev.ID, pub.msgs[0].Metadata[messaging.HeaderEventID])

	var forwarded models.AuditEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0].Data, &forwarded))
	assert.Equal(t, ev.Signature, forwarded.Signature)
}

func TestRecorder_RepositoryFailureIsReturned(t *testing.T) {
	pub := &recordingPublisher{}
	rec := NewRecorder(failingAuditRepo{}, WithPublisher(pub))

	err := rec.RecordView(context.Background(), 1, "u", nil)
	require.Error(t, err)
	assert.Empty(t, pub.msgs, "nothing is forwarded unless the write is durable")
}

func TestRecorder_PublishFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemoryRepository()
	rec := NewRecorder(repo, WithPublisher(&recordingPublisher{err: errors.New("nats down")}))

	require.NoError(t, rec.RecordImpression(ctx, 7, "u", nil))
	events, err := repo.ListAuditEvents(ctx, 7, models.AuditImpression)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Signature)
	assert.False(t, rec.Verify(events[0]), "unsigned events never verify")
}

func TestRecorder_NilPublisherOptionKeepsDefault(t *testing.T) {
	rec := NewRecorder(repository.NewInMemoryRepository(), WithPublisher(nil))
	assert.NoError(t, rec.RecordView(context.Background(), 1, "u", nil))
}

func TestNotifier(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	n := NewNotifier(pub)

	updated := fixedNow.Add(time.Hour)
	asset := &models.VideoAsset{
		ID:            9,
		Title:         "Heat",
		DirectorName:  "Michael Mann",
		MainActor:     "Al Pacino",
		PublishedAt:   fixedNow,
		PublishedBy:   "creator",
		LastUpdatedAt: &updated,
		LastUpdatedBy: "editor",
		State:         models.AssetActive,
	}

	n.AssetPublished(ctx, asset)
	n.AssetUpdated(ctx, asset)
	n.AssetDeleted(ctx, 9, "admin", fixedNow)

	require.Len(t, pub.msgs, 3)
	subjects := []string{pub.msgs[0].Subject, pub.msgs[1].Subject, pub.msgs[2].Subject}
	assert.Equal(t, []string{
		messaging.SubjectAssetsPublished,
		messaging.SubjectAssetsUpdated,
		messaging.SubjectAssetsDeleted,
	}, subjects)

	var ev AssetEvent
	require.NoError(t, json.Unmarshal(pub.msgs[1].Data, &ev))
	assert.Equal(t, EventUpdated, ev.Type)
	assert.Equal(t, "editor", ev.ActorID)
	assert.True(t, updated.Equal(ev.OccurredAt))
	require.NotNil(t, ev.Asset)
	assert.Equal(t, "Heat", ev.Asset.Title)

	var deleted AssetEvent
	require.NoError(t, json.Unmarshal(pub.msgs[2].Data, &deleted))
	assert.Nil(t, deleted.Asset)
	assert.Equal(t, int64(9), deleted.AssetID)
}

func TestNotifier_NilPublisher(t *testing.T) {
	n := NewNotifier(nil)
	n.AssetDeleted(context.Background(), 1, "u", time.Now())
}
