// Package audit records impressions and views of video assets and forwards
// catalog events to the message bus.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nevc-media/vidstream/catalog/internal/metrics"
	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/repository"
	commonaudit "github.com/nevc-media/vidstream/common/audit"
	"github.com/nevc-media/vidstream/common/logging"
	"github.com/nevc-media/vidstream/common/messaging"
)

// Sink receives audited accesses. A nil error means the event is durable.
type Sink interface {
	RecordImpression(ctx context.Context, assetID int64, userID string, origin *models.Origin) error
	RecordView(ctx context.Context, assetID int64, userID string, origin *models.Origin) error
}

// Recorder appends signed audit events to the repository and then forwards
// them to the bus. Only the repository write can fail a call.
type Recorder struct {
	repo      repository.AuditRepository
	signer    *commonaudit.EventSigner
	publisher messaging.Publisher
	now       func() time.Time
}

type RecorderOption func(*Recorder)

// WithSigner signs every event. Without it events are stored unsigned.
func WithSigner(s *commonaudit.EventSigner) RecorderOption {
	return func(r *Recorder) { r.signer = s }
}

func WithPublisher(p messaging.Publisher) RecorderOption {
	return func(r *Recorder) {
		if p != nil {
			r.publisher = p
		}
	}
}

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(repo repository.AuditRepository, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		repo:      repo,
		publisher: messaging.NopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) RecordImpression(ctx context.Context, assetID int64, userID string, origin *models.Origin) error {
	return r.record(ctx, models.AuditImpression, assetID, userID, origin)
}

func (r *Recorder) RecordView(ctx context.Context, assetID int64, userID string, origin *models.Origin) error {
	return r.record(ctx, models.AuditView, assetID, userID, origin)
}

func (r *Recorder) record(ctx context.Context, kind models.AuditKind, assetID int64, userID string, origin *models.Origin) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate audit event id: %w", err)
	}

	event := &models.AuditEvent{
		ID:         id.String(),
		Kind:       kind,
		AssetID:    assetID,
		UserID:     userID,
		OccurredAt: r.now().UTC().Truncate(time.Microsecond),
	}
	if origin != nil {
		event.SourceIP = origin.IP
		event.UserAgent = origin.UserAgent
	}
	if r.signer != nil {
		event.Signature = r.signer.Sign(event.ID, event.OccurredAt, event.SourceIP, event.SigningPayload())
	}

	if err := r.repo.AppendAuditEvent(ctx, event); err != nil {
		metrics.AuditEvents.WithLabelValues(string(kind), metrics.StatusFailure).Inc()
		return fmt.Errorf("failed to append %s event: %w", kind, err)
	}
	metrics.AuditEvents.WithLabelValues(string(kind), metrics.StatusSuccess).Inc()

	forward(ctx, r.publisher, subjectFor(kind), event.ID, event)
	return nil
}

// Verify checks an event's signature. Events are unverifiable without a signer.
func (r *Recorder) Verify(event *models.AuditEvent) bool {
	if r.signer == nil || event.Signature == "" {
		return false
	}
	return r.signer.Verify(event.ID, event.OccurredAt, event.SourceIP, event.SigningPayload(), event.Signature)
}

func forward(ctx context.Context, p messaging.Publisher, subject, eventID string, payload any) {
	data, err := json.Marshal(payload)
	if err == nil {
		err = p.PublishMsg(ctx, &messaging.Message{
			Subject:  subject,
			Data:     data,
			Metadata: map[string]string{messaging.HeaderEventID: eventID},
		})
	}
	if err != nil {
		metrics.EventsPublished.WithLabelValues(subject, metrics.StatusFailure).Inc()
		slog.WarnContext(ctx, "failed to forward event",
			slog.String("subject", subject),
			logging.EventID(eventID),
			logging.Error(err))
		return
	}
	metrics.EventsPublished.WithLabelValues(subject, metrics.StatusSuccess).Inc()
}

func subjectFor(kind models.AuditKind) string {
	if kind == models.AuditView {
		return messaging.SubjectAuditViews
	}
	return messaging.SubjectAuditImpressions
}
