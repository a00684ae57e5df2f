package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/dto"
)

func TestModuleService_Create(t *testing.T) {
	repo := new(MockModuleRepository)
	svc := NewModuleService(repo, 0)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Module) bool {
		return m.Name == "Login" && m.Active
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Module).ID = 7
	}).Return(nil).Once()

	module, err := svc.Create(context.Background(), &dto.ModuleRequest{Name: "Login"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), module.ID)
	repo.AssertExpectations(t)
}

func TestModuleService_CreateDuplicate(t *testing.T) {
	repo := new(MockModuleRepository)
	svc := NewModuleService(repo, 0)

	repo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrDuplicateModuleName)

	_, err := svc.Create(context.Background(), &dto.ModuleRequest{Name: "Login"})
	assert.ErrorIs(t, err, domain.ErrDuplicateModuleName)
}

func TestModuleService_Update(t *testing.T) {
	repo := new(MockModuleRepository)
	svc := NewModuleService(repo, 0)
	inactive := false

	repo.On("GetByID", mock.Anything, int64(3)).
		Return(&domain.Module{ID: 3, Name: "Old", Active: true}, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(m *domain.Module) bool {
		return m.ID == 3 && m.Name == "New" && !m.Active
	})).Return(nil)

	module, err := svc.Update(context.Background(), 3, &dto.ModuleRequest{Name: "New", Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "New", module.Name)
	repo.AssertExpectations(t)
}

func TestModuleService_UpdateKeepsStatusWhenOmitted(t *testing.T) {
	repo := new(MockModuleRepository)
	svc := NewModuleService(repo, 0)

	repo.On("GetByID", mock.Anything, int64(3)).
		Return(&domain.Module{ID: 3, Name: "Old", Active: false}, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(m *domain.Module) bool {
		return !m.Active
	})).Return(nil)

	_, err := svc.Update(context.Background(), 3, &dto.ModuleRequest{Name: "New"})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestModuleService_GetNotFound(t *testing.T) {
	repo := new(MockModuleRepository)
	svc := NewModuleService(repo, 0)

	repo.On("GetByID", mock.Anything, int64(99)).Return(nil, nil)

	_, err := svc.Get(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrModuleNotFound)

	_, err = svc.Update(context.Background(), 99, &dto.ModuleRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrModuleNotFound)
}

func TestModuleService_ListAndToggle(t *testing.T) {
	repo := new(MockModuleRepository)
	svc := NewModuleService(repo, 0)

	repo.On("ListActive", mock.Anything).Return([]*domain.Module{{ID: 1, Name: "A", Active: true}}, nil)
	repo.On("SetActive", mock.Anything, int64(1), false).Return(nil)

	modules, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, modules, 1)

	require.NoError(t, svc.SetStatus(context.Background(), 1, false))
	repo.AssertExpectations(t)
}
