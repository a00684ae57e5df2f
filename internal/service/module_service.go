package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/dto"
	"github.com/prohmpiriya/test-platform/internal/repository"
	"github.com/prohmpiriya/test-platform/pkg/telemetry"
)

// ModuleService defines module operations
type ModuleService interface {
	ListActive(ctx context.Context) ([]*domain.Module, error)
	Create(ctx context.Context, req *dto.ModuleRequest) (*domain.Module, error)
	Update(ctx context.Context, id int64, req *dto.ModuleRequest) (*domain.Module, error)
	Get(ctx context.Context, id int64) (*domain.Module, error)
	SetStatus(ctx context.Context, id int64, active bool) error
}

type moduleService struct {
	repo         repository.ModuleRepository
	storeTimeout time.Duration
}

// NewModuleService creates a new ModuleService
func NewModuleService(repo repository.ModuleRepository, storeTimeout time.Duration) ModuleService {
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	return &moduleService{repo: repo, storeTimeout: storeTimeout}
}

func (s *moduleService) ListActive(ctx context.Context) ([]*domain.Module, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.module.list_active")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	modules, err := s.repo.ListActive(ctx)
	telemetry.RecordError(span, err)
	return modules, err
}

func (s *moduleService) Create(ctx context.Context, req *dto.ModuleRequest) (*domain.Module, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.module.create")
	defer span.End()

	span.SetAttributes(attribute.String("module.name", req.Name))

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	module := &domain.Module{
		Name:        req.Name,
		Description: req.Description,
		Active:      req.IsActive(),
	}
	if err := s.repo.Create(ctx, module); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return module, nil
}

func (s *moduleService) Update(ctx context.Context, id int64, req *dto.ModuleRequest) (*domain.Module, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.module.update")
	defer span.End()

	span.SetAttributes(attribute.Int64("module.id", id))

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	existing.Name = req.Name
	existing.Description = req.Description
	if req.Active != nil {
		existing.Active = *req.Active
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return existing, nil
}

func (s *moduleService) Get(ctx context.Context, id int64) (*domain.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	module, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, domain.ErrModuleNotFound
	}
	return module, nil
}

func (s *moduleService) SetStatus(ctx context.Context, id int64, active bool) error {
	ctx, span := telemetry.StartSpan(ctx, "service.module.set_status")
	defer span.End()

	span.SetAttributes(attribute.Int64("module.id", id), attribute.Bool("module.active", active))

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	err := s.repo.SetActive(ctx, id, active)
	telemetry.RecordError(span, err)
	return err
}
