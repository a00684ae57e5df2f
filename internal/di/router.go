package di

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/middleware"
	"github.com/prohmpiriya/test-platform/pkg/config"
	"github.com/prohmpiriya/test-platform/pkg/telemetry"
)

// AccessPolicy is the route table enforced by middleware.Authorize. Routes
// missing here are denied.
func AccessPolicy() *middleware.Policy {
	staff := []domain.Role{domain.RoleAdmin, domain.RoleManager}

	return middleware.NewPolicy(
		middleware.Public(http.MethodGet, "/health"),
		middleware.Public(http.MethodGet, "/ready"),

		middleware.Public(http.MethodPost, "/api/auth/register"),
		middleware.Public(http.MethodPost, "/api/auth/login"),
		middleware.Authenticated(http.MethodGet, "/api/auth/info"),
		middleware.Authenticated(http.MethodPost, "/api/auth/logout"),

		middleware.Authenticated(http.MethodGet, "/api/users/executors"),
		middleware.RequireRoles(http.MethodGet, "/api/users/:username", staff...),
		middleware.RequireRoles("*", "/api/users*", domain.RoleAdmin),

		middleware.Authenticated(http.MethodGet, "/api/modules*"),
		middleware.RequireRoles("*", "/api/modules*", staff...),

		middleware.Authenticated(http.MethodGet, "/api/requirements*"),
		middleware.Authenticated(http.MethodPost, "/api/requirements/search"),
		middleware.RequireRoles("*", "/api/requirements*", staff...),
	)
}

// NewRouter builds the gin engine with the full middleware chain and wraps it
// in CORS handling
func NewRouter(c *Container, corsCfg config.CORSConfig) http.Handler {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		telemetry.TracingMiddleware(),
		middleware.Logger(c.Log),
		middleware.Recovery(c.Log),
		middleware.Authenticate(c.AuthService, c.Publisher, c.Log),
		middleware.Authorize(AccessPolicy()),
	)

	// Health check endpoints
	router.GET("/health", c.HealthHandler.Health)
	router.GET("/ready", c.HealthHandler.Ready)

	// Creates replay their first success when retried with an Idempotency-Key
	var idempotent gin.HandlerFunc = func(ctx *gin.Context) { ctx.Next() }
	if c.Cache != nil {
		idempotent = middleware.Idempotent(middleware.IdempotencyConfig{Store: c.Cache}, c.Log)
	}

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", c.AuthHandler.Register)
			auth.POST("/login", c.AuthHandler.Login)
			auth.GET("/info", c.AuthHandler.Info)
			auth.POST("/logout", c.AuthHandler.Logout)
		}

		users := api.Group("/users")
		{
			users.GET("/executors", c.UserHandler.Executors)
			users.GET("/:username", c.UserHandler.Get)
			users.POST("", idempotent, c.UserHandler.Create)
			users.PUT("/:username", c.UserHandler.Update)
			users.DELETE("/:username", c.UserHandler.Delete)
		}

		modules := api.Group("/modules")
		{
			modules.GET("", c.ModuleHandler.List)
			modules.POST("", idempotent, c.ModuleHandler.Create)
			modules.GET("/:id", c.ModuleHandler.Get)
			modules.PUT("/:id", c.ModuleHandler.Update)
			modules.PUT("/:id/status", c.ModuleHandler.SetStatus)
		}

		requirements := api.Group("/requirements")
		{
			requirements.GET("", c.RequirementHandler.List)
			requirements.POST("", idempotent, c.RequirementHandler.Create)
			requirements.POST("/search", c.RequirementHandler.Search)
			requirements.GET("/:id", c.RequirementHandler.Get)
			requirements.PUT("/:id", c.RequirementHandler.Update)
		}
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader, middleware.IdempotencyKeyHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           corsCfg.MaxAge,
	})

	return corsHandler.Handler(router)
}
