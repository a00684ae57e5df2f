package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/dto"
	"github.com/prohmpiriya/test-platform/internal/service"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*domain.Principal, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Principal), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.LoginResponse), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *MockAuthService) CurrentPrincipal(ctx context.Context, username string) (*domain.Principal, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Principal), args.Error(1)
}

func (m *MockAuthService) ResolveRequest(ctx context.Context, authorization string) service.Resolution {
	args := m.Called(ctx, authorization)
	return args.Get(0).(service.Resolution)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) ListExecutors(ctx context.Context) ([]dto.ExecutorResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.ExecutorResponse), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserService) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserService) UpdateUser(ctx context.Context, username string, req *dto.UpdateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, username, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

type MockModuleService struct {
	mock.Mock
}

func (m *MockModuleService) ListActive(ctx context.Context) ([]*domain.Module, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Module), args.Error(1)
}

func (m *MockModuleService) Create(ctx context.Context, req *dto.ModuleRequest) (*domain.Module, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Module), args.Error(1)
}

func (m *MockModuleService) Update(ctx context.Context, id int64, req *dto.ModuleRequest) (*domain.Module, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Module), args.Error(1)
}

func (m *MockModuleService) Get(ctx context.Context, id int64) (*domain.Module, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Module), args.Error(1)
}

func (m *MockModuleService) SetStatus(ctx context.Context, id int64, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

type MockRequirementService struct {
	mock.Mock
}

func (m *MockRequirementService) Create(ctx context.Context, creator *domain.Principal, req *dto.RequirementRequest) (*domain.Requirement, error) {
	args := m.Called(ctx, creator, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Requirement), args.Error(1)
}

func (m *MockRequirementService) Update(ctx context.Context, id int64, req *dto.RequirementRequest) (*domain.Requirement, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Requirement), args.Error(1)
}

func (m *MockRequirementService) Get(ctx context.Context, id int64) (*domain.Requirement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Requirement), args.Error(1)
}

func (m *MockRequirementService) List(ctx context.Context, filter domain.RequirementFilter) ([]*domain.Requirement, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Requirement), args.Get(1).(int64), args.Error(2)
}

func (m *MockRequirementService) Search(ctx context.Context, keyword string, page, pageSize int) ([]*domain.Requirement, int64, error) {
	args := m.Called(ctx, keyword, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Requirement), args.Get(1).(int64), args.Error(2)
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error {
	return p.err
}
