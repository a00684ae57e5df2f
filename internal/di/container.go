package di

import (
	"github.com/prohmpiriya/test-platform/internal/credential"
	"github.com/prohmpiriya/test-platform/internal/events"
	"github.com/prohmpiriya/test-platform/internal/handler"
	"github.com/prohmpiriya/test-platform/internal/repository"
	"github.com/prohmpiriya/test-platform/internal/service"
	"github.com/prohmpiriya/test-platform/internal/token"
	"github.com/prohmpiriya/test-platform/pkg/config"
	"github.com/prohmpiriya/test-platform/pkg/database"
	"github.com/prohmpiriya/test-platform/pkg/logger"
	pkgredis "github.com/prohmpiriya/test-platform/pkg/redis"
)

// Container holds all dependencies for the test platform API
type Container struct {
	// Infrastructure
	DB        *database.PostgresDB
	Cache     *pkgredis.Client
	Publisher events.Publisher
	Log       *logger.Logger

	// Repositories
	UserRepo        repository.UserRepository
	Sessions        repository.SessionCache
	ModuleRepo      repository.ModuleRepository
	RequirementRepo repository.RequirementRepository

	// Services
	AuthService        service.AuthService
	UserService        service.UserService
	ModuleService      service.ModuleService
	RequirementService service.RequirementService

	// Handlers
	HealthHandler      *handler.HealthHandler
	AuthHandler        *handler.AuthHandler
	UserHandler        *handler.UserHandler
	ModuleHandler      *handler.ModuleHandler
	RequirementHandler *handler.RequirementHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB        *database.PostgresDB
	Cache     *pkgredis.Client
	Publisher events.Publisher
	Log       *logger.Logger
	JWT       config.JWTConfig
	Auth      config.AuthConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:        cfg.DB,
		Cache:     cfg.Cache,
		Publisher: cfg.Publisher,
		Log:       cfg.Log,
	}
	if c.Publisher == nil {
		c.Publisher = events.NewNoopPublisher()
	}
	if c.Log == nil {
		c.Log = logger.Nop()
	}

	// Initialize repositories
	c.UserRepo = repository.NewPostgresUserRepository(c.DB.Pool())
	c.Sessions = repository.NewRedisSessionCache(c.Cache, cfg.Auth.CacheTimeout)
	c.ModuleRepo = repository.NewPostgresModuleRepository(c.DB.Pool())
	c.RequirementRepo = repository.NewPostgresRequirementRepository(c.DB.Pool())

	codec := token.NewCodec([]byte(cfg.JWT.Secret), token.WithIssuer(cfg.JWT.Issuer))
	hasher := credential.NewStore(cfg.Auth.BcryptCost)

	// Initialize services
	c.AuthService = service.NewAuthService(
		c.UserRepo,
		c.Sessions,
		codec,
		hasher,
		c.Publisher,
		&service.AuthServiceConfig{
			TokenTTL:     cfg.JWT.TokenTTL(),
			CacheTimeout: cfg.Auth.CacheTimeout,
			StoreTimeout: cfg.Auth.StoreTimeout,
		},
		c.Log,
	)
	c.UserService = service.NewUserService(c.UserRepo, c.Sessions, hasher, c.Publisher, cfg.Auth.StoreTimeout, c.Log)
	c.ModuleService = service.NewModuleService(c.ModuleRepo, cfg.Auth.StoreTimeout)
	c.RequirementService = service.NewRequirementService(c.RequirementRepo, c.ModuleRepo, cfg.Auth.StoreTimeout, c.Log)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Cache)
	c.AuthHandler = handler.NewAuthHandler(c.AuthService, c.Log)
	c.UserHandler = handler.NewUserHandler(c.UserService, c.Log)
	c.ModuleHandler = handler.NewModuleHandler(c.ModuleService, c.Log)
	c.RequirementHandler = handler.NewRequirementHandler(c.RequirementService, c.Log)

	return c
}
