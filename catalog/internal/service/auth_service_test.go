package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nevc-media/vidstream/catalog/internal/metrics"
	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/repository"
	"github.com/nevc-media/vidstream/catalog/internal/revocation"
	"github.com/nevc-media/vidstream/catalog/pkg/tokens"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

type authFixture struct {
	repo  *repository.InMemoryRepository
	store *revocation.MemoryStore
	clock *clock
	svc   *AuthService
}

func newAuthFixture(t *testing.T, opts ...AuthOption) *authFixture {
	t.Helper()
	c := &clock{t: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
	repo := repository.NewInMemoryRepository()
	store := revocation.NewMemoryStore()
	authority, err := tokens.NewAuthority(testSecret, store, tokens.WithClock(c.Now))
	require.NoError(t, err)
	opts = append([]AuthOption{WithBcryptCost(bcrypt.MinCost), WithAuthClock(c.Now)}, opts...)
	return &authFixture{repo: repo, store: store, clock: c, svc: NewAuthService(repo, authority, opts...)}
}

func register(t *testing.T, f *authFixture, email string) *models.TokenResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), &models.RegisterRequest{
		DisplayName: "Test User",
		Email:       email,
		Password:    "correct horse",
	}, &models.Origin{IP: "127.0.0.1"})
	require.NoError(t, err)
	return resp
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	resp := register(t, f, "New@Example.com")

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, f.clock.t.Add(tokens.DefaultTTL), resp.ExpiresAt)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.Equal(t, models.RoleCreator, resp.User.Role)
	assert.Contains(t, resp.User.Capabilities, models.CapVideosPublish)

	stored, err := f.repo.GetUserByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")))
}

func TestRegister_DefaultRoleOption(t *testing.T) {
	f := newAuthFixture(t, WithDefaultRole(models.RoleViewer))
	resp := register(t, f, "v@example.com")
	assert.Equal(t, models.RoleViewer, resp.User.Role)
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	f := newAuthFixture(t)
	register(t, f, "dup@example.com")

	_, err := f.svc.Register(context.Background(), &models.RegisterRequest{
		DisplayName: "Other", Email: "DUP@example.com", Password: "another pass",
	}, nil)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), &models.RegisterRequest{Email: "not-an-email", Password: "short"}, nil)
	bre, ok := AsBadRequest(err)
	require.True(t, ok)
	assert.Len(t, bre.Violations, 3)

	_, err = f.svc.Register(context.Background(), nil, nil)
	_, ok = AsBadRequest(err)
	assert.True(t, ok)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	reg := register(t, f, "login@example.com")

	resp, err := f.svc.Login(ctx, &models.LoginRequest{Email: " LOGIN@example.com ", Password: "correct horse"}, nil)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, resp.User.ID)

	_, err = f.svc.Login(ctx, &models.LoginRequest{Email: "login@example.com", Password: "wrong"}, nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "correct horse"}, nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown email is indistinguishable from a bad password")

	_, err = f.svc.Login(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveIdentity(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	reg := register(t, f, "who@example.com")

	user, err := f.svc.ResolveIdentity(ctx, reg.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, user.ID)

	_, err = f.svc.ResolveIdentity(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	f.clock.t = f.clock.t.Add(tokens.DefaultTTL)
	_, err = f.svc.ResolveIdentity(ctx, reg.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated, "expires exactly at exp")
}

func TestResolveIdentity_RoleComesFromStore(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	reg := register(t, f, "promoted@example.com")

	require.NoError(t, f.repo.UpdateUserRole(ctx, reg.User.ID, models.RoleAdmin, time.Now()))
	user, err := f.svc.ResolveIdentity(ctx, reg.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	reg := register(t, f, "bye@example.com")

	revokedBefore := testutil.ToFloat64(metrics.Logouts.WithLabelValues(metrics.LogoutRevoked))
	ignoredBefore := testutil.ToFloat64(metrics.Logouts.WithLabelValues(metrics.LogoutIgnored))

	require.NoError(t, f.svc.Logout(ctx, reg.AccessToken))
	require.NoError(t, f.svc.Logout(ctx, reg.AccessToken), "idempotent")

	assert.Equal(t, revokedBefore+1, testutil.ToFloat64(metrics.Logouts.WithLabelValues(metrics.LogoutRevoked)))
	assert.Equal(t, ignoredBefore+1, testutil.ToFloat64(metrics.Logouts.WithLabelValues(metrics.LogoutIgnored)), "repeat logout is not a revocation")

	v := f.svc.ValidateToken(ctx, reg.AccessToken)
	assert.False(t, v.Valid)
	assert.Equal(t, string(tokens.ReasonRevoked), v.Reason)

	_, err := f.svc.ResolveIdentity(ctx, reg.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestLogout_InvalidTokensSucceed(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	revokedBefore := testutil.ToFloat64(metrics.Logouts.WithLabelValues(metrics.LogoutRevoked))

	assert.NoError(t, f.svc.Logout(ctx, ""))
	assert.NoError(t, f.svc.Logout(ctx, "not.a.jwt"))
	assert.Zero(t, f.store.Len(), "nothing stored for tokens that can never validate")
	assert.Equal(t, revokedBefore, testutil.ToFloat64(metrics.Logouts.WithLabelValues(metrics.LogoutRevoked)), "invalid tokens are not counted as revoked")
}

func TestLogout_StoreFailureIsInternal(t *testing.T) {
	c := &clock{t: time.Now()}
	authority, err := tokens.NewAuthority(testSecret, failingStore{}, tokens.WithClock(c.Now))
	require.NoError(t, err)
	svc := NewAuthService(repository.NewInMemoryRepository(), authority, WithBcryptCost(bcrypt.MinCost))

	tok, err := authority.Issue(&tokens.Identity{Subject: "u"})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Logout(context.Background(), tok.Value), ErrInternal)

	_, err = svc.ResolveIdentity(context.Background(), tok.Value)
	assert.ErrorIs(t, err, ErrUnauthenticated, "store failures fail closed")
}

type failingStore struct{}

func (failingStore) Revoke(context.Context, string, time.Time) error {
	return errors.New("redis down")
}

func (failingStore) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestValidateToken(t *testing.T) {
	f := newAuthFixture(t)
	reg := register(t, f, "valid@example.com")

	v := f.svc.ValidateToken(context.Background(), reg.AccessToken)
	assert.True(t, v.Valid)
	assert.Equal(t, reg.User.ID, v.UserID)
	assert.Equal(t, models.RoleCreator, v.Role)
	assert.True(t, reg.ExpiresAt.Equal(v.ExpiresAt))

	v = f.svc.ValidateToken(context.Background(), "")
	assert.False(t, v.Valid)
	assert.Equal(t, string(tokens.ReasonMalformed), v.Reason)
}

func TestUserManagement(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	target := register(t, f, "target@example.com")
	admin := &models.User{ID: "admin", Role: models.RoleAdmin}
	creatorUser := &models.User{ID: "c", Role: models.RoleCreator}

	users, err := f.svc.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = f.svc.ListUsers(ctx, creatorUser)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.svc.UpdateUserRole(ctx, admin, target.User.ID, "viewer")
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, updated.Role)

	_, err = f.svc.UpdateUserRole(ctx, admin, target.User.ID, "ROOT")
	_, ok := AsBadRequest(err)
	assert.True(t, ok)

	_, err = f.svc.UpdateUserRole(ctx, admin, "missing", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.UpdateUserRole(ctx, nil, target.User.ID, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
