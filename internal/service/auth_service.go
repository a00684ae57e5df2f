package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/dto"
	"github.com/prohmpiriya/test-platform/internal/events"
	"github.com/prohmpiriya/test-platform/internal/repository"
	"github.com/prohmpiriya/test-platform/internal/token"
	"github.com/prohmpiriya/test-platform/pkg/logger"
	"github.com/prohmpiriya/test-platform/pkg/telemetry"
)

// TokenCodec issues and validates session tokens
type TokenCodec interface {
	Issue(p domain.Principal, ttl time.Duration) (string, error)
	Validate(tokenString string) (*token.Claims, error)
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	DummyVerify(password string)
}

// AuthServiceConfig holds configuration for AuthService
type AuthServiceConfig struct {
	TokenTTL     time.Duration
	CacheTimeout time.Duration
	StoreTimeout time.Duration
}

// ResolutionStatus is the outcome of resolving a request credential
type ResolutionStatus int

const (
	StatusAnonymous ResolutionStatus = iota
	StatusAuthenticated
	StatusRejected
)

func (s ResolutionStatus) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticated:
		return "authenticated"
	case StatusRejected:
		return "rejected"
	}
	return "unknown"
}

// RejectReason tells a client why its credential was refused
type RejectReason string

const (
	ReasonTokenExpired       RejectReason = "TOKEN_EXPIRED"
	ReasonInvalidToken       RejectReason = "INVALID_TOKEN"
	ReasonSessionExpired     RejectReason = "SESSION_EXPIRED"
	ReasonServiceUnavailable RejectReason = "SERVICE_UNAVAILABLE"
)

// Resolution is the decision for one request credential
type Resolution struct {
	Status    ResolutionStatus
	Principal *domain.Principal
	Reason    RejectReason
	// Err holds the underlying failure of a rejection
	Err error
}

// AuthService defines the interface for authentication operations
type AuthService interface {
	// Register creates a user; the username check and insert are one atomic write
	Register(ctx context.Context, req *dto.RegisterRequest) (*domain.Principal, error)
	// Login verifies credentials, issues a token and opens the session
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	// Logout ends the session of username; ending no session is not an error
	Logout(ctx context.Context, username string) error
	// CurrentPrincipal reads through the session cache to the user store
	CurrentPrincipal(ctx context.Context, username string) (*domain.Principal, error)
	// ResolveRequest decides the identity behind an Authorization header value
	ResolveRequest(ctx context.Context, authorization string) Resolution
}

// authService implements AuthService
type authService struct {
	userRepo  repository.UserRepository
	sessions  repository.SessionCache
	codec     TokenCodec
	hasher    PasswordHasher
	publisher events.Publisher
	config    *AuthServiceConfig
	log       *logger.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo repository.UserRepository,
	sessions repository.SessionCache,
	codec TokenCodec,
	hasher PasswordHasher,
	publisher events.Publisher,
	config *AuthServiceConfig,
	log *logger.Logger,
) AuthService {
	if config == nil {
		config = &AuthServiceConfig{}
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 24 * time.Hour
	}
	if config.CacheTimeout <= 0 {
		config.CacheTimeout = 500 * time.Millisecond
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 3 * time.Second
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	if log == nil {
		log = logger.Get()
	}
	return &authService{
		userRepo:  userRepo,
		sessions:  sessions,
		codec:     codec,
		hasher:    hasher,
		publisher: publisher,
		config:    config,
		log:       log,
	}
}

// Register registers a new user
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*domain.Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.register")
	defer span.End()

	span.SetAttributes(attribute.String("username", req.Username))

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	user := &domain.User{
		Username:     req.Username,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		Role:         role,
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.userRepo.Create(storeCtx, user); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publisher.Publish(ctx, events.SecurityEvent{Type: events.EventRegistered, Username: user.Username})
	s.log.InfoContext(ctx, "User registered", zap.String("username", user.Username), zap.String("role", string(user.Role)))

	return user.Principal(), nil
}

// Login authenticates a user
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.login")
	defer span.End()

	span.SetAttributes(attribute.String("username", req.Username))

	user, err := s.loadUser(ctx, req.Username)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if user == nil {
		// Unknown users pay the same hashing cost as wrong passwords
		s.hasher.DummyVerify(req.Password)
		return nil, s.loginFailed(ctx, req.Username)
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, s.loginFailed(ctx, req.Username)
	}

	principal := user.Principal()

	tok, err := s.codec.Issue(*principal, s.config.TokenTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.setSession(ctx, principal); err != nil {
		s.log.WarnContext(ctx, "Failed to open session in cache, continuing",
			zap.String("username", principal.Username), zap.Error(err))
	}

	s.publisher.Publish(ctx, events.SecurityEvent{Type: events.EventLoginSucceeded, Username: principal.Username})

	return &dto.LoginResponse{
		Token:     tok,
		TokenType: "Bearer",
		ExpiresIn: s.config.TokenTTL.Milliseconds(),
		User:      principal,
	}, nil
}

func (s *authService) loginFailed(ctx context.Context, username string) error {
	s.log.InfoContext(ctx, "Login failed", zap.String("username", username))
	s.publisher.Publish(ctx, events.SecurityEvent{
		Type:     events.EventLoginFailed,
		Username: username,
		Reason:   "invalid credentials",
	})
	return domain.ErrInvalidCredentials
}

// Logout removes the session cache entry. The token stays signature-valid
// but every later request carrying it is rejected.
func (s *authService) Logout(ctx context.Context, username string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.logout")
	defer span.End()

	span.SetAttributes(attribute.String("username", username))

	cacheCtx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()

	if err := s.sessions.Delete(cacheCtx, username); err != nil {
		telemetry.RecordError(span, err)
		s.log.WarnContext(ctx, "Failed to delete session from cache",
			zap.String("username", username), zap.Error(err))
	}

	s.publisher.Publish(ctx, events.SecurityEvent{Type: events.EventLogout, Username: username})
	return nil
}

// CurrentPrincipal returns the cached principal or reloads it from the store
func (s *authService) CurrentPrincipal(ctx context.Context, username string) (*domain.Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.current_principal")
	defer span.End()

	principal, err := s.getSession(ctx, username)
	if err != nil {
		s.log.WarnContext(ctx, "Session cache unavailable, reading user store",
			zap.String("username", username), zap.Error(err))
	}
	if principal != nil {
		return principal, nil
	}

	user, err := s.loadUser(ctx, username)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	principal = user.Principal()
	if err := s.setSession(ctx, principal); err != nil {
		s.log.WarnContext(ctx, "Failed to repopulate session cache",
			zap.String("username", username), zap.Error(err))
	}
	return principal, nil
}

// ResolveRequest validates the bearer token and checks for an active session
func (s *authService) ResolveRequest(ctx context.Context, authorization string) Resolution {
	raw, ok := bearerToken(authorization)
	if !ok {
		return Resolution{Status: StatusAnonymous}
	}

	ctx, span := telemetry.StartSpan(ctx, "service.auth.resolve_request")
	defer span.End()

	claims, err := s.codec.Validate(raw)
	if err != nil {
		reason := ReasonInvalidToken
		if errors.Is(err, token.ErrTokenExpired) {
			reason = ReasonTokenExpired
		}
		span.SetAttributes(attribute.String("auth.reject_reason", string(reason)))
		return Resolution{Status: StatusRejected, Reason: reason, Err: err}
	}

	span.SetAttributes(attribute.String("username", claims.Subject))

	principal, err := s.getSession(ctx, claims.Subject)
	if err != nil {
		return s.resolveFromStore(ctx, claims, err)
	}
	if principal == nil {
		return Resolution{Status: StatusRejected, Reason: ReasonSessionExpired, Err: domain.ErrSessionNotFound}
	}
	if principal.Username != claims.Subject {
		return Resolution{
			Status: StatusRejected,
			Reason: ReasonSessionExpired,
			Err:    fmt.Errorf("%w: cached entry for %q holds %q", domain.ErrSessionNotFound, claims.Subject, principal.Username),
		}
	}

	return Resolution{Status: StatusAuthenticated, Principal: principal}
}

// resolveFromStore accepts a valid token while the session cache is down,
// provided the user still exists. Logouts made during the outage are not seen.
func (s *authService) resolveFromStore(ctx context.Context, claims *token.Claims, cacheErr error) Resolution {
	s.log.WarnContext(ctx, "Session cache unavailable, resolving against user store",
		zap.String("username", claims.Subject), zap.Error(cacheErr))

	user, err := s.loadUser(ctx, claims.Subject)
	if err != nil {
		return Resolution{Status: StatusRejected, Reason: ReasonServiceUnavailable, Err: err}
	}
	if user == nil {
		return Resolution{Status: StatusRejected, Reason: ReasonSessionExpired, Err: domain.ErrUserNotFound}
	}
	return Resolution{Status: StatusAuthenticated, Principal: user.Principal()}
}

func (s *authService) loadUser(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()
	return s.userRepo.GetByUsername(ctx, username)
}

func (s *authService) getSession(ctx context.Context, username string) (*domain.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()
	return s.sessions.Get(ctx, username)
}

func (s *authService) setSession(ctx context.Context, principal *domain.Principal) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()
	return s.sessions.Set(ctx, principal, s.config.TokenTTL)
}

// bearerToken extracts the credential from "Bearer <token>". Any other scheme,
// or no header at all, means no bearer credential was presented.
func bearerToken(authorization string) (string, bool) {
	const prefix = "bearer "
	authorization = strings.TrimSpace(authorization)
	if len(authorization) < len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		if strings.EqualFold(authorization, "bearer") {
			return "", true
		}
		return "", false
	}
	return strings.TrimSpace(authorization[len(prefix):]), true
}
