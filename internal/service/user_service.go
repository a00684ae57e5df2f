package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/dto"
	"github.com/prohmpiriya/test-platform/internal/events"
	"github.com/prohmpiriya/test-platform/internal/repository"
	"github.com/prohmpiriya/test-platform/pkg/logger"
	"github.com/prohmpiriya/test-platform/pkg/telemetry"
)

// UserService defines user administration operations
type UserService interface {
	ListExecutors(ctx context.Context) ([]dto.ExecutorResponse, error)
	GetUser(ctx context.Context, username string) (*domain.User, error)
	CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*domain.User, error)
	// UpdateUser ends the user's session so changes apply on the next login
	UpdateUser(ctx context.Context, username string, req *dto.UpdateUserRequest) (*domain.User, error)
	DeleteUser(ctx context.Context, username string) error
}

type userService struct {
	userRepo     repository.UserRepository
	sessions     repository.SessionCache
	hasher       PasswordHasher
	publisher    events.Publisher
	storeTimeout time.Duration
	log          *logger.Logger
}

// NewUserService creates a new UserService
func NewUserService(
	userRepo repository.UserRepository,
	sessions repository.SessionCache,
	hasher PasswordHasher,
	publisher events.Publisher,
	storeTimeout time.Duration,
	log *logger.Logger,
) UserService {
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	if log == nil {
		log = logger.Get()
	}
	return &userService{
		userRepo:     userRepo,
		sessions:     sessions,
		hasher:       hasher,
		publisher:    publisher,
		storeTimeout: storeTimeout,
		log:          log,
	}
}

func (s *userService) ListExecutors(ctx context.Context) ([]dto.ExecutorResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.user.list_executors")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	users, err := s.userRepo.List(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	executors := make([]dto.ExecutorResponse, 0, len(users))
	for _, u := range users {
		executors = append(executors, dto.ExecutorResponse{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			Role:        string(u.Role),
		})
	}
	return executors, nil
}

func (s *userService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.user.get")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *userService) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.user.create")
	defer span.End()

	span.SetAttributes(attribute.String("username", req.Username))

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	// The conditional insert below still decides concurrent creates
	existsCtx, cancelExists := context.WithTimeout(ctx, s.storeTimeout)
	exists, err := s.userRepo.ExistsByUsername(existsCtx, req.Username)
	cancelExists()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if exists {
		return nil, domain.ErrDuplicateUsername
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

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.userRepo.Create(storeCtx, user); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publisher.Publish(ctx, events.SecurityEvent{Type: events.EventRegistered, Username: user.Username})
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, username string, req *dto.UpdateUserRequest) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.user.update")
	defer span.End()

	span.SetAttributes(attribute.String("username", username))

	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}
	if req.Role != "" {
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			return nil, err
		}
		user.Role = role
	}
	if req.Password != "" {
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		user.PasswordHash = hash
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.userRepo.Update(storeCtx, user); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.endSession(ctx, username)
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, username string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.user.delete")
	defer span.End()

	span.SetAttributes(attribute.String("username", username))

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.userRepo.Delete(storeCtx, username); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.endSession(ctx, username)
	s.publisher.Publish(ctx, events.SecurityEvent{Type: events.EventUserDeleted, Username: username})
	return nil
}

func (s *userService) endSession(ctx context.Context, username string) {
	if err := s.sessions.Delete(ctx, username); err != nil {
		s.log.WarnContext(ctx, "Failed to invalidate session after user change",
			zap.String("username", username), zap.Error(err))
	}
}
