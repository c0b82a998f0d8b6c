// Package revocation holds the set of revoked bearer tokens. Entries live
// only as long as the token they revoke could still validate.
package revocation

import (
	"context"
	"time"
)

// RetentionSlack is added to every entry's lifetime to absorb clock skew
// between replicas.
const RetentionSlack = time.Minute

// Store records revoked tokens by an opaque key derived from the token.
type Store interface {
	// Revoke inserts key until expiresAt (plus RetentionSlack). Revoking an
	// existing key is a no-op that may extend its retention.
	Revoke(ctx context.Context, key string, expiresAt time.Time) error

	// IsRevoked reports membership.
	IsRevoked(ctx context.Context, key string) (bool, error)
}
