package messaging

// Subjects follow {product}.{domain}.{event}.
const (
	SubjectAssetsPublished = "vidstream.assets.published"
	SubjectAssetsUpdated   = "vidstream.assets.updated"
	SubjectAssetsDeleted   = "vidstream.assets.deleted"

	SubjectAuditImpressions = "vidstream.audit.impressions"
	SubjectAuditViews       = "vidstream.audit.views"

	// SubjectAll matches every vidstream subject.
	SubjectAll = "vidstream.>"
)

// HeaderEventID carries the event's identifier so consumers can deduplicate.
const HeaderEventID = "Vidstream-Event-Id"
