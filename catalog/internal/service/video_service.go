package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nevc-media/vidstream/catalog/internal/audit"
	"github.com/nevc-media/vidstream/catalog/internal/blob"
	"github.com/nevc-media/vidstream/catalog/internal/metrics"
	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/repository"
	"github.com/nevc-media/vidstream/common/logging"
)

// Upload is the binary half of a publish request.
type Upload struct {
	FileName    string
	ContentType string
	// Size is the declared length; a negative value means unknown and the
	// staged length decides emptiness.
	Size    int64
	Content io.Reader
}

// Playback is an open media stream. The caller must close Content.
type Playback struct {
	Asset   *models.VideoAsset
	Content io.ReadCloser
	Size    int64
	ModTime time.Time
}

// AuditLog is the read side of the audit trail.
type AuditLog interface {
	ListAuditEvents(ctx context.Context, assetID int64, kind models.AuditKind) ([]*models.AuditEvent, error)
}

// AuditVerifier checks the signature of a stored audit event.
type AuditVerifier interface {
	Verify(event *models.AuditEvent) bool
}

type VideoService struct {
	assets   repository.AssetRepository
	blobs    blob.Store
	sink     audit.Sink
	auditLog AuditLog
	verifier AuditVerifier
	notifier *audit.Notifier
	now      func() time.Time
}

type VideoOption func(*VideoService)

func WithNotifier(n *audit.Notifier) VideoOption {
	return func(s *VideoService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithAuditVerifier marks listed audit events whose signature verifies.
// Without it every listed event reports verified=false.
func WithAuditVerifier(v AuditVerifier) VideoOption {
	return func(s *VideoService) { s.verifier = v }
}

func WithVideoClock(now func() time.Time) VideoOption {
	return func(s *VideoService) { s.now = now }
}

func NewVideoService(assets repository.AssetRepository, blobs blob.Store, sink audit.Sink, auditLog AuditLog, opts ...VideoOption) *VideoService {
	s := &VideoService{
		assets:   assets,
		blobs:    blobs,
		sink:     sink,
		auditLog: auditLog,
		notifier: audit.NewNotifier(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VideoService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Publish stores the media and creates an active asset owned by caller.
// Content is staged, promoted to "<generated id>/<file name>" and only then
// referenced by metadata. A failed metadata write removes the promoted blob.
func (s *VideoService) Publish(ctx context.Context, caller *models.User, upload *Upload, draft models.AssetDraft) (*models.VideoAsset, error) {
	if err := authorize(caller, models.CapVideosPublish); err != nil {
		return nil, err
	}
	if upload == nil || upload.Content == nil || upload.Size == 0 {
		return nil, BadRequest(ReasonEmptyFile)
	}
	if draft.ID != 0 {
		return nil, BadRequest(ReasonIDOnCreate)
	}

	d := draft.Normalized()
	violations := d.Validate()
	fileName := sanitizeFileName(upload.FileName)
	if fileName == "" {
		violations = append(violations, "file name is required")
	}
	if len(violations) > 0 {
		return nil, BadRequest(ReasonValidationFailed, violations...)
	}

	stagingKey, size, err := s.blobs.Stage(ctx, upload.Content)
	if err != nil {
		metrics.AssetOperations.WithLabelValues("publish", metrics.StatusFailure).Inc()
		return nil, internalError("stage upload", err)
	}
	if size == 0 {
		s.discard(ctx, stagingKey)
		return nil, BadRequest(ReasonEmptyFile)
	}

	key := blob.Key(uuid.NewString(), fileName)
	if err := s.blobs.Promote(ctx, stagingKey, key); err != nil {
		s.discard(ctx, stagingKey)
		metrics.AssetOperations.WithLabelValues("publish", metrics.StatusFailure).Inc()
		return nil, internalError("promote upload", err)
	}

	asset := &models.VideoAsset{
		BlobKey:       key,
		FileName:      fileName,
		FileExtension: upload.ContentType,
		FileSizeBytes: size,
		PublishedAt:   s.timestamp(),
		PublishedBy:   caller.ID,
		State:         models.AssetActive,
	}
	d.Apply(asset)

	if err := s.assets.CreateAsset(ctx, asset); err != nil {
		s.compensate(ctx, key)
		metrics.AssetOperations.WithLabelValues("publish", metrics.StatusFailure).Inc()
		return nil, internalError("create asset", err)
	}

	metrics.AssetOperations.WithLabelValues("publish", metrics.StatusSuccess).Inc()
	metrics.BlobBytesStored.Add(float64(size))
	slog.InfoContext(ctx, "video published",
		logging.AssetID(asset.ID),
		logging.UserID(caller.ID),
		logging.BlobKey(key),
		slog.Int64("size_bytes", size))
	s.notifier.AssetPublished(ctx, asset)
	return asset, nil
}

func (s *VideoService) discard(ctx context.Context, stagingKey string) {
	if err := s.blobs.Discard(ctx, stagingKey); err != nil {
		slog.WarnContext(ctx, "failed to discard staged upload", logging.BlobKey(stagingKey), logging.Error(err))
	}
}

func (s *VideoService) compensate(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		metrics.CompensationsTotal.WithLabelValues(metrics.StatusFailure).Inc()
		slog.ErrorContext(ctx, "orphaned blob after failed publish", logging.BlobKey(key), logging.Error(err))
		return
	}
	metrics.CompensationsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
}

// Update overwrites the content fields of an active asset. A patch id of
// zero means the path id.
func (s *VideoService) Update(ctx context.Context, caller *models.User, id int64, draft models.AssetDraft) (*models.VideoAsset, error) {
	if err := authorize(caller, models.CapVideosUpdate); err != nil {
		return nil, err
	}
	if draft.ID != 0 && draft.ID != id {
		return nil, BadRequest(ReasonIDMismatch)
	}

	d := draft.Normalized()
	if violations := d.Validate(); len(violations) > 0 {
		return nil, BadRequest(ReasonValidationFailed, violations...)
	}

	current, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	d.ApplyUpdate(next)
	at := s.timestamp()
	next.LastUpdatedAt = &at
	next.LastUpdatedBy = caller.ID

	if err := s.assets.UpdateAssetContent(ctx, next); err != nil {
		metrics.AssetOperations.WithLabelValues("update", metrics.StatusFailure).Inc()
		if errors.Is(err, repository.ErrAssetNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("update asset", err)
	}

	metrics.AssetOperations.WithLabelValues("update", metrics.StatusSuccess).Inc()
	slog.InfoContext(ctx, "video updated", logging.AssetID(id), logging.UserID(caller.ID))
	s.notifier.AssetUpdated(ctx, next)
	return next, nil
}

// GetAsset returns an active asset. A non-nil origin marks an audited
// access and records one impression before returning.
func (s *VideoService) GetAsset(ctx context.Context, caller *models.User, id int64, origin *models.Origin) (*models.VideoAsset, error) {
	if err := authorize(caller, models.CapVideosRead); err != nil {
		return nil, err
	}
	asset, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if origin != nil {
		if err := s.sink.RecordImpression(ctx, asset.ID, caller.ID, origin); err != nil {
			return nil, internalError("record impression", err)
		}
	}
	return asset, nil
}

// Playback opens the asset's media and records one view. A missing blob is
// reported as ErrNotFound, the same as a missing asset.
func (s *VideoService) Playback(ctx context.Context, caller *models.User, id int64, origin *models.Origin) (*Playback, error) {
	if err := authorize(caller, models.CapVideosPlay); err != nil {
		return nil, err
	}
	asset, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	obj, err := s.blobs.Open(ctx, asset.BlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			slog.WarnContext(ctx, "asset media missing", logging.AssetID(id), logging.BlobKey(asset.BlobKey))
			return nil, ErrNotFound
		}
		return nil, internalError("open media", err)
	}

	if err := s.sink.RecordView(ctx, asset.ID, caller.ID, origin); err != nil {
		obj.Content.Close()
		return nil, internalError("record view", err)
	}

	return &Playback{
		Asset:   asset,
		Content: obj.Content,
		Size:    obj.Size,
		ModTime: obj.ModTime,
	}, nil
}

// Delete soft-deletes an active asset. The media is retained.
func (s *VideoService) Delete(ctx context.Context, caller *models.User, id int64) error {
	if err := authorize(caller, models.CapVideosDelete); err != nil {
		return err
	}
	at := s.timestamp()
	if err := s.assets.SoftDeleteAsset(ctx, id, caller.ID, at); err != nil {
		metrics.AssetOperations.WithLabelValues("delete", metrics.StatusFailure).Inc()
		if errors.Is(err, repository.ErrAssetNotFound) {
			return ErrNotFound
		}
		return internalError("delete asset", err)
	}

	metrics.AssetOperations.WithLabelValues("delete", metrics.StatusSuccess).Inc()
	slog.InfoContext(ctx, "video deleted", logging.AssetID(id), logging.UserID(caller.ID))
	s.notifier.AssetDeleted(ctx, id, caller.ID, at)
	return nil
}

// Search returns summaries of active assets matching c, ordered by id. An
// empty result is not an error.
func (s *VideoService) Search(ctx context.Context, caller *models.User, c models.SearchCriteria) ([]models.Summary, error) {
	if err := authorize(caller, models.CapVideosRead); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, BadRequest(ReasonValidationFailed, err.Error())
	}

	assets, err := s.assets.SearchAssets(ctx, c)
	if err != nil {
		return nil, internalError("search assets", err)
	}

	summaries := make([]models.Summary, 0, len(assets))
	for _, a := range assets {
		if a.IsActive() {
			summaries = append(summaries, a.Summary())
		}
	}
	return summaries, nil
}

// ListImpressions returns the impression trail of an asset, including one
// that has since been deleted.
func (s *VideoService) ListImpressions(ctx context.Context, caller *models.User, assetID int64) ([]*models.AuditEvent, error) {
	return s.listAudit(ctx, caller, assetID, models.AuditImpression)
}

func (s *VideoService) ListViews(ctx context.Context, caller *models.User, assetID int64) ([]*models.AuditEvent, error) {
	return s.listAudit(ctx, caller, assetID, models.AuditView)
}

func (s *VideoService) listAudit(ctx context.Context, caller *models.User, assetID int64, kind models.AuditKind) ([]*models.AuditEvent, error) {
	if err := authorize(caller, models.CapAuditRead); err != nil {
		return nil, err
	}
	events, err := s.auditLog.ListAuditEvents(ctx, assetID, kind)
	if err != nil {
		return nil, internalError("list "+string(kind)+" events", err)
	}
	for _, e := range events {
		e.Verified = s.verifier != nil && s.verifier.Verify(e)
	}
	return events, nil
}

func (s *VideoService) lookup(ctx context.Context, id int64) (*models.VideoAsset, error) {
	asset, err := s.assets.GetActiveAsset(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("load asset", err)
	}
	if !asset.IsActive() {
		return nil, ErrNotFound
	}
	return asset, nil
}

// sanitizeFileName keeps only the final path element of a client-supplied
// name, so it can never address another directory.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(filepath.FromSlash(name))
	name = strings.TrimSpace(name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
