// Package tokens issues, verifies and revokes the catalog's bearer tokens.
package tokens

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTTL    = 10 * time.Hour
	DefaultIssuer = "vidstream"
)

var (
	ErrNoIdentity = errors.New("identity with a subject is required")
	ErrNoSecret   = errors.New("signing secret is required")
	ErrNoStore    = errors.New("revocation store is required")
)

// Reason explains why a token failed verification.
type Reason string

const (
	ReasonMalformed        Reason = "malformed"
	ReasonBadSignature     Reason = "bad_signature"
	ReasonInvalidClaims    Reason = "invalid_claims"
	ReasonExpired          Reason = "expired"
	ReasonRevoked          Reason = "revoked"
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// RevocationStore is the subset of the credential store the authority needs.
type RevocationStore interface {
	Revoke(ctx context.Context, key string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, key string) (bool, error)
}

// Identity is the principal a token is minted for.
type Identity struct {
	Subject string
	Role    string
}

// Token is a freshly issued credential.
type Token struct {
	Value     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verification is the result of Verify. When Valid is false only Reason is
// meaningful.
type Verification struct {
	Valid     bool
	Subject   string
	Role      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Reason    Reason
}

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authority signs tokens with a process-wide HS256 secret and consults a
// revocation store on every verification.
type Authority struct {
	secret []byte
	ttl    time.Duration
	issuer string
	store  RevocationStore
	now    func() time.Time
}

type Option func(*Authority)

func WithTTL(ttl time.Duration) Option {
	return func(a *Authority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

func WithIssuer(issuer string) Option {
	return func(a *Authority) {
		if issuer != "" {
			a.issuer = issuer
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAuthority(secret string, store RevocationStore, opts ...Option) (*Authority, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if store == nil {
		return nil, ErrNoStore
	}
	a := &Authority{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		issuer: DefaultIssuer,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// TTL is the lifetime of issued tokens.
func (a *Authority) TTL() time.Duration {
	return a.ttl
}

// Issue mints a token for id. It has no effect on the revocation store.
func (a *Authority) Issue(id *Identity) (*Token, error) {
	if id == nil || strings.TrimSpace(id.Subject) == "" {
		return nil, ErrNoIdentity
	}

	now := a.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(a.ttl))
	tokenID := uuid.NewString()

	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    a.issuer,
			ID:        tokenID,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, err
	}

	return &Token{
		Value:     signed,
		ID:        tokenID,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Verify never panics and never returns an error: every failure is an
// invalid Verification. A token is valid iff its signature verifies, its
// claims parse with a subject, it is not revoked and it has not expired.
// Revocation store failures fail closed.
func (a *Authority) Verify(ctx context.Context, tokenString string) Verification {
	now := a.now()

	claims, reason := a.parse(tokenString, now)
	if reason != "" {
		return Verification{Reason: reason}
	}

	revoked, err := a.store.IsRevoked(ctx, Key(tokenString))
	if err != nil {
		return Verification{Reason: ReasonStoreUnavailable}
	}
	if revoked {
		return Verification{Reason: ReasonRevoked}
	}

	return Verification{
		Valid:     true,
		Subject:   claims.Subject,
		Role:      claims.Role,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}

// Revoke records tokenString as revoked until its own expiry and reports
// whether this call revoked it. It is idempotent. Tokens that could never
// validate again (malformed, forged or already expired) and tokens already
// revoked are accepted without touching the store.
func (a *Authority) Revoke(ctx context.Context, tokenString string) (bool, error) {
	claims, reason := a.parse(tokenString, a.now())
	if reason != "" {
		return false, nil
	}
	key := Key(tokenString)
	revoked, err := a.store.IsRevoked(ctx, key)
	if err != nil {
		return false, err
	}
	if revoked {
		return false, nil
	}
	if err := a.store.Revoke(ctx, key, claims.ExpiresAt.Time); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Authority) parse(tokenString string, now time.Time) (*Claims, Reason) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ReasonMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.IssuedAt == nil {
		return nil, ReasonInvalidClaims
	}
	return claims, ""
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	default:
		return ReasonInvalidClaims
	}
}

// Key derives the revocation key for a token: the SHA-256 hex digest, so
// raw bearer credentials are never stored.
func Key(tokenString string) string {
	digest := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(digest[:])
}
