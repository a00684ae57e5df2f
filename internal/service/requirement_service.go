package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/dto"
	"github.com/prohmpiriya/test-platform/internal/repository"
	"github.com/prohmpiriya/test-platform/pkg/logger"
	"github.com/prohmpiriya/test-platform/pkg/retry"
	"github.com/prohmpiriya/test-platform/pkg/telemetry"
)

// maxCodeAttempts bounds how often a colliding requirement code is regenerated
const maxCodeAttempts = 5

// RequirementService defines requirement operations
type RequirementService interface {
	Create(ctx context.Context, creator *domain.Principal, req *dto.RequirementRequest) (*domain.Requirement, error)
	Update(ctx context.Context, id int64, req *dto.RequirementRequest) (*domain.Requirement, error)
	Get(ctx context.Context, id int64) (*domain.Requirement, error)
	List(ctx context.Context, filter domain.RequirementFilter) ([]*domain.Requirement, int64, error)
	Search(ctx context.Context, keyword string, page, pageSize int) ([]*domain.Requirement, int64, error)
}

type requirementService struct {
	repo         repository.RequirementRepository
	modules      repository.ModuleRepository
	storeTimeout time.Duration
	now          func() time.Time
	log          *logger.Logger
}

// NewRequirementService creates a new RequirementService
func NewRequirementService(
	repo repository.RequirementRepository,
	modules repository.ModuleRepository,
	storeTimeout time.Duration,
	log *logger.Logger,
) RequirementService {
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	if log == nil {
		log = logger.Get()
	}
	return &requirementService{
		repo:         repo,
		modules:      modules,
		storeTimeout: storeTimeout,
		now:          time.Now,
		log:          log,
	}
}

func parseStatus(s string) (domain.RequirementStatus, error) {
	if s == "" {
		return domain.RequirementStatusReviewing, nil
	}
	status := domain.RequirementStatus(s)
	if !status.Valid() {
		return "", domain.ErrInvalidRequirementStatus
	}
	return status, nil
}

// Create stores a requirement under a code drawn from the durable sequence,
// drawing a new code when the generated one already exists
func (s *requirementService) Create(ctx context.Context, creator *domain.Principal, req *dto.RequirementRequest) (*domain.Requirement, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.requirement.create")
	defer span.End()

	status, err := parseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if err := s.checkModule(ctx, req.ModuleID); err != nil {
		return nil, err
	}

	requirement := &domain.Requirement{
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   creator.ID,
		CreatorName: creator.DisplayName,
		ModuleID:    req.ModuleID,
		ExecutorIDs: req.ExecutorIDs,
		Status:      status,
	}

	retrier := retry.New(&retry.Config{
		MaxRetries:      maxCodeAttempts - 1,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
		JitterFactor:    0.5,
		RetryIf: func(err error) bool {
			return errors.Is(err, domain.ErrRequirementCodeTaken)
		},
	})

	result := retrier.DoWithCallback(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()

		seq, err := s.repo.NextCodeSequence(ctx)
		if err != nil {
			return retry.Permanent(err)
		}
		requirement.Code = domain.FormatRequirementCode(s.now(), seq)
		return s.repo.Create(ctx, requirement)
	}, func(attempt int, err error, _ time.Duration) {
		s.log.WarnContext(ctx, "Requirement code collision, regenerating",
			zap.String("code", requirement.Code), zap.Int("attempt", attempt))
	})

	if result.Err != nil {
		err := result.Err
		if errors.Is(err, retry.ErrMaxRetriesExceeded) {
			err = result.LastError
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("requirement.code", requirement.Code))
	s.log.InfoContext(ctx, "Requirement created", zap.String("code", requirement.Code))
	return requirement, nil
}

// Update changes every field except the code
func (s *requirementService) Update(ctx context.Context, id int64, req *dto.RequirementRequest) (*domain.Requirement, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.requirement.update")
	defer span.End()

	span.SetAttributes(attribute.Int64("requirement.id", id))

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Name = req.Name
	existing.Description = req.Description
	if req.Status != "" {
		status, err := parseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		existing.Status = status
	}
	if req.ModuleID != nil {
		if err := s.checkModule(ctx, req.ModuleID); err != nil {
			return nil, err
		}
		existing.ModuleID = req.ModuleID
	}
	if req.ExecutorIDs != nil {
		existing.ExecutorIDs = req.ExecutorIDs
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.repo.Update(ctx, existing); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return existing, nil
}

func (s *requirementService) Get(ctx context.Context, id int64) (*domain.Requirement, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	requirement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requirement == nil {
		return nil, domain.ErrRequirementNotFound
	}
	return requirement, nil
}

func (s *requirementService) List(ctx context.Context, filter domain.RequirementFilter) ([]*domain.Requirement, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.requirement.list")
	defer span.End()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, domain.ErrInvalidRequirementStatus
	}
	filter.Normalize()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	reqs, total, err := s.repo.List(ctx, filter)
	telemetry.RecordError(span, err)
	return reqs, total, err
}

func (s *requirementService) Search(ctx context.Context, keyword string, page, pageSize int) ([]*domain.Requirement, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.requirement.search")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	reqs, total, err := s.repo.Search(ctx, keyword, page, pageSize)
	telemetry.RecordError(span, err)
	return reqs, total, err
}

func (s *requirementService) checkModule(ctx context.Context, moduleID *int64) error {
	if moduleID == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	module, err := s.modules.GetByID(ctx, *moduleID)
	if err != nil {
		return err
	}
	if module == nil {
		return domain.ErrModuleNotFound
	}
	return nil
}
