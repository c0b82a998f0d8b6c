package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/common/messaging"
)

// AssetEvent is the bus payload for lifecycle changes.
type AssetEvent struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	AssetID    int64           `json:"asset_id"`
	ActorID    string          `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Asset      *models.Summary `json:"asset,omitempty"`
}

const (
	EventPublished = "published"
	EventUpdated   = "updated"
	EventDeleted   = "deleted"
)

// Notifier announces lifecycle changes after they are durable. Failures are
// logged and never reach the caller.
type Notifier struct {
	publisher messaging.Publisher
}

// NewNotifier accepts a nil publisher, which discards events.
func NewNotifier(p messaging.Publisher) *Notifier {
	if p == nil {
		p = messaging.NopPublisher{}
	}
	return &Notifier{publisher: p}
}

func (n *Notifier) AssetPublished(ctx context.Context, asset *models.VideoAsset) {
	s := asset.Summary()
	n.notify(ctx, messaging.SubjectAssetsPublished, EventPublished, asset.ID, asset.PublishedBy, asset.PublishedAt, &s)
}

func (n *Notifier) AssetUpdated(ctx context.Context, asset *models.VideoAsset) {
	at := time.Now().UTC()
	if asset.LastUpdatedAt != nil {
		at = *asset.LastUpdatedAt
	}
	s := asset.Summary()
	n.notify(ctx, messaging.SubjectAssetsUpdated, EventUpdated, asset.ID, asset.LastUpdatedBy, at, &s)
}

func (n *Notifier) AssetDeleted(ctx context.Context, assetID int64, by string, at time.Time) {
	n.notify(ctx, messaging.SubjectAssetsDeleted, EventDeleted, assetID, by, at, nil)
}

func (n *Notifier) notify(ctx context.Context, subject, typ string, assetID int64, actor string, at time.Time, s *models.Summary) {
	event := AssetEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		AssetID:    assetID,
		ActorID:    actor,
		OccurredAt: at.UTC(),
		Asset:      s,
	}
	forward(ctx, n.publisher, subject, event.EventID, event)
}
