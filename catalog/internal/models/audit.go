package models

import (
	"strconv"
	"time"
)

// Origin is the caller's network origin at the boundary.
type Origin struct {
	IP        string
	UserAgent string
}

// AuditKind distinguishes metadata reads from playbacks.
type AuditKind string

const (
	AuditImpression AuditKind = "impression"
	AuditView       AuditKind = "view"
)

// AuditEvent is an append-only impression or view record.
type AuditEvent struct {
	ID         string    `json:"id"`
	Kind       AuditKind `json:"kind"`
	AssetID    int64     `json:"asset_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
	SourceIP   string    `json:"source_ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Signature  string    `json:"signature,omitempty"`
	// Verified is set on read when the signature checks out. Not stored.
	Verified bool `json:"verified"`
}

// SigningPayload is the byte form covered by the event signature, apart
// from the id, time and source IP which the signer takes separately.
func (e *AuditEvent) SigningPayload() []byte {
	b := make([]byte, 0, 64+len(e.UserAgent))
	b = append(b, e.Kind...)
	b = append(b, '|')
	b = strconv.AppendInt(b, e.AssetID, 10)
	b = append(b, '|')
	b = append(b, e.UserID...)
	b = append(b, '|')
	b = append(b, e.UserAgent...)
	return b
}
