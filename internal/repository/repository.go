package repository

import (
	"context"
	"time"

	"github.com/prohmpiriya/test-platform/internal/domain"
)

// UserRepository is the durable system of record for users
type UserRepository interface {
	// Create inserts user and fills its ID and timestamps.
	// Returns domain.ErrDuplicateUsername if the username is taken.
	Create(ctx context.Context, user *domain.User) error
	// GetByUsername returns (nil, nil) when no such user exists
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]*domain.User, error)
	// Update returns domain.ErrUserNotFound when nothing was updated
	Update(ctx context.Context, user *domain.User) error
	// Delete returns domain.ErrUserNotFound when nothing was deleted
	Delete(ctx context.Context, username string) error
}

// SessionCache records which usernames currently hold an active login
type SessionCache interface {
	// Get returns (nil, nil) on a miss
	Get(ctx context.Context, username string) (*domain.Principal, error)
	Set(ctx context.Context, principal *domain.Principal, ttl time.Duration) error
	// Delete succeeds when no entry exists
	Delete(ctx context.Context, username string) error
}

// ModuleRepository persists modules
type ModuleRepository interface {
	// Create returns domain.ErrDuplicateModuleName if the name is taken
	Create(ctx context.Context, module *domain.Module) error
	// GetByID returns (nil, nil) when no such module exists
	GetByID(ctx context.Context, id int64) (*domain.Module, error)
	ListActive(ctx context.Context) ([]*domain.Module, error)
	// Update returns domain.ErrDuplicateModuleName if renamed onto another module
	Update(ctx context.Context, module *domain.Module) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// RequirementRepository persists requirements
type RequirementRepository interface {
	// NextCodeSequence draws the next value of the durable code sequence
	NextCodeSequence(ctx context.Context) (int64, error)
	// Create returns domain.ErrRequirementCodeTaken on a code collision
	Create(ctx context.Context, req *domain.Requirement) error
	// GetByID returns (nil, nil) when no such requirement exists
	GetByID(ctx context.Context, id int64) (*domain.Requirement, error)
	Update(ctx context.Context, req *domain.Requirement) error
	List(ctx context.Context, filter domain.RequirementFilter) ([]*domain.Requirement, int64, error)
	// Search matches keyword against code or name, newest code first
	Search(ctx context.Context, keyword string, page, pageSize int) ([]*domain.Requirement, int64, error)
}
