package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nevc-media/vidstream/catalog/internal/metrics"
	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/repository"
	"github.com/nevc-media/vidstream/catalog/pkg/tokens"
	"github.com/nevc-media/vidstream/common/logging"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	MaxPasswordLength = 72
)

type AuthService struct {
	users       repository.UserRepository
	authority   *tokens.Authority
	defaultRole models.Role
	bcryptCost  int
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

type AuthOption func(*AuthService)

// WithDefaultRole sets the role given to self-registered accounts.
func WithDefaultRole(r models.Role) AuthOption {
	return func(s *AuthService) {
		if r.Valid() {
			s.defaultRole = r
		}
	}
}

func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(users repository.UserRepository, authority *tokens.Authority, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:       users,
		authority:   authority,
		defaultRole: models.RoleCreator,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account with the default role and signs it in.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest, origin *models.Origin) (*models.TokenResponse, error) {
	if req == nil {
		return nil, BadRequest(ReasonValidationFailed, "request body is required")
	}
	email := models.NormalizeEmail(req.Email)
	if violations := validateRegistration(req.DisplayName, email, req.Password); len(violations) > 0 {
		return nil, BadRequest(ReasonValidationFailed, violations...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, internalError("hash password", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, internalError("generate user id", err)
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	user := &models.User{
		ID:           id.String(),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Email:        email,
		PasswordHash: string(hash),
		Role:         s.defaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			slog.InfoContext(ctx, "registration rejected", logging.Email(email), logging.Reason("email in use"), originAttr(origin))
			return nil, ErrConflict
		}
		return nil, internalError("create user", err)
	}

	slog.InfoContext(ctx, "user registered", logging.UserID(user.ID), logging.Role(string(user.Role)), originAttr(origin))
	return s.issue(user)
}

func validateRegistration(displayName, email, password string) []string {
	var violations []string
	if strings.TrimSpace(displayName) == "" {
		violations = append(violations, "display_name is required")
	}
	if email == "" {
		violations = append(violations, "email is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		violations = append(violations, "email is not a valid address")
	}
	if n := utf8.RuneCountInString(password); n < MinPasswordLength {
		violations = append(violations, "password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		violations = append(violations, "password must be at most 72 bytes")
	}
	return violations
}

// Login exchanges credentials for a token. Every failure is reported as
// ErrInvalidCredentials so callers cannot tell which emails exist.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, origin *models.Origin) (*models.TokenResponse, error) {
	if req == nil {
		return nil, ErrInvalidCredentials
	}
	email := models.NormalizeEmail(req.Email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, internalError("load user", err)
		}
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.timingHash(), []byte(req.Password))
		s.loginFailed(ctx, email, "unknown email", origin)
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.loginFailed(ctx, email, "invalid password", origin)
		return nil, ErrInvalidCredentials
	}

	resp, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	metrics.LoginAttempts.WithLabelValues(metrics.StatusSuccess).Inc()
	slog.InfoContext(ctx, "login succeeded", logging.UserID(user.ID), originAttr(origin))
	return resp, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string, origin *models.Origin) {
	metrics.LoginAttempts.WithLabelValues(metrics.StatusFailure).Inc()
	slog.WarnContext(ctx, "login failed", logging.Email(email), logging.Reason(reason), originAttr(origin))
}

func (s *AuthService) timingHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("vidstream-login-timing"), s.bcryptCost)
	})
	return s.dummyHash
}

func (s *AuthService) issue(user *models.User) (*models.TokenResponse, error) {
	tok, err := s.authority.Issue(&tokens.Identity{Subject: user.ID, Role: string(user.Role)})
	if err != nil {
		return nil, internalError("issue token", err)
	}
	metrics.TokensIssued.Inc()
	return &models.TokenResponse{
		AccessToken: tok.Value,
		TokenType:   "Bearer",
		ExpiresAt:   tok.ExpiresAt,
		User:        user.ToResponse(),
	}, nil
}

// Logout revokes token. Malformed, forged, expired and already revoked
// tokens are accepted silently, so the response never reveals whether a
// token was valid.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	revoked, err := s.authority.Revoke(ctx, token)
	if err != nil {
		return internalError("revoke token", err)
	}
	outcome := metrics.LogoutIgnored
	if revoked {
		outcome = metrics.LogoutRevoked
	}
	metrics.Logouts.WithLabelValues(outcome).Inc()
	slog.DebugContext(ctx, "logout processed",
		logging.TokenID(tokens.Key(token)[:16]),
		slog.String("outcome", outcome))
	return nil
}

// ValidateToken is token introspection. It never fails; invalid tokens
// come back with Valid false and a reason.
func (s *AuthService) ValidateToken(ctx context.Context, token string) *models.ValidateTokenResponse {
	v := s.authority.Verify(ctx, token)
	if !v.Valid {
		metrics.TokenVerifications.WithLabelValues(string(v.Reason)).Inc()
		return &models.ValidateTokenResponse{Valid: false, Reason: string(v.Reason)}
	}
	metrics.TokenVerifications.WithLabelValues("valid").Inc()
	return &models.ValidateTokenResponse{
		Valid:     true,
		UserID:    v.Subject,
		Role:      models.Role(v.Role),
		ExpiresAt: v.ExpiresAt,
	}
}

// ResolveIdentity turns a bearer token into the current user record. The
// role comes from the store, so role changes apply to live tokens.
func (s *AuthService) ResolveIdentity(ctx context.Context, token string) (*models.User, error) {
	v := s.authority.Verify(ctx, token)
	if !v.Valid {
		metrics.TokenVerifications.WithLabelValues(string(v.Reason)).Inc()
		if v.Reason == tokens.ReasonStoreUnavailable {
			slog.ErrorContext(ctx, "revocation store unavailable")
		}
		return nil, ErrUnauthenticated
	}
	metrics.TokenVerifications.WithLabelValues("valid").Inc()

	user, err := s.users.GetUserByID(ctx, v.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, internalError("load user", err)
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, caller *models.User) ([]*models.User, error) {
	if err := authorize(caller, models.CapUsersRead); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, internalError("list users", err)
	}
	return users, nil
}

func (s *AuthService) UpdateUserRole(ctx context.Context, caller *models.User, userID string, role models.Role) (*models.User, error) {
	if err := authorize(caller, models.CapUsersUpdate); err != nil {
		return nil, err
	}
	parsed, err := models.ParseRole(string(role))
	if err != nil {
		return nil, BadRequest(ReasonValidationFailed, err.Error())
	}

	if err := s.users.UpdateUserRole(ctx, userID, parsed, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("update role", err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, internalError("reload user", err)
	}
	slog.InfoContext(ctx, "user role changed",
		logging.UserID(userID),
		logging.Role(string(parsed)),
		slog.String("actor_id", caller.ID))
	return user, nil
}

func originAttr(o *models.Origin) slog.Attr {
	if o == nil {
		return logging.IP("")
	}
	return logging.IP(o.IP)
}
