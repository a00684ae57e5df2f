package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/prohmpiriya/test-platform/internal/domain"
)

// MockModuleRepository is a mock implementation of ModuleRepository
type MockModuleRepository struct {
	mock.Mock
}

func (m *MockModuleRepository) Create(ctx context.Context, module *domain.Module) error {
	args := m.Called(ctx, module)
	return args.Error(0)
}

func (m *MockModuleRepository) GetByID(ctx context.Context, id int64) (*domain.Module, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Module), args.Error(1)
}

func (m *MockModuleRepository) ListActive(ctx context.Context) ([]*domain.Module, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Module), args.Error(1)
}

func (m *MockModuleRepository) Update(ctx context.Context, module *domain.Module) error {
	args := m.Called(ctx, module)
	return args.Error(0)
}

func (m *MockModuleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

// MockRequirementRepository is a mock implementation of RequirementRepository
type MockRequirementRepository struct {
	mock.Mock
}

func (m *MockRequirementRepository) NextCodeSequence(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRequirementRepository) Create(ctx context.Context, req *domain.Requirement) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequirementRepository) GetByID(ctx context.Context, id int64) (*domain.Requirement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Requirement), args.Error(1)
}

func (m *MockRequirementRepository) Update(ctx context.Context, req *domain.Requirement) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequirementRepository) List(ctx context.Context, filter domain.RequirementFilter) ([]*domain.Requirement, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Requirement), args.Get(1).(int64), args.Error(2)
}

func (m *MockRequirementRepository) Search(ctx context.Context, keyword string, page, pageSize int) ([]*domain.Requirement, int64, error) {
	args := m.Called(ctx, keyword, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Requirement), args.Get(1).(int64), args.Error(2)
}
