package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/dto"
	"github.com/prohmpiriya/test-platform/internal/middleware"
	"github.com/prohmpiriya/test-platform/internal/service"
	"github.com/prohmpiriya/test-platform/pkg/logger"
	"github.com/prohmpiriya/test-platform/pkg/response"
)

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	authService service.AuthService
	log         *logger.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{authService: authService, log: log}
}

// Register handles user registration
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if valid, msg := req.Validate(); !valid {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", msg, "")
		return
	}

	// Self-service sign-up cannot mint administrators
	if domain.Role(req.Role) == domain.RoleAdmin && !middleware.GetPrincipal(c).HasRole(domain.RoleAdmin) {
		response.Forbidden(c, "Only an administrator can create administrators")
		return
	}

	principal, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	response.Created(c, principal)
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	response.Success(c, result)
}

// Info returns the principal resolved for this request. It never writes the
// session marker.
// GET /api/auth/info
func (h *AuthHandler) Info(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	if p == nil {
		response.Unauthorized(c, "UNAUTHORIZED", "Authentication required")
		return
	}

	response.Success(c, p)
}

// Logout ends the caller's session
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	if p == nil {
		response.Unauthorized(c, "UNAUTHORIZED", "Authentication required")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), p.Username); err != nil {
		writeError(c, h.log, err)
		return
	}

	response.Success(c, gin.H{"message": "Logged out successfully"})
}
