package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/test-platform/internal/dto"
	"github.com/prohmpiriya/test-platform/internal/service"
	"github.com/prohmpiriya/test-platform/pkg/logger"
	"github.com/prohmpiriya/test-platform/pkg/response"
)

// UserHandler handles user administration HTTP requests
type UserHandler struct {
	userService service.UserService
	log         *logger.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, log *logger.Logger) *UserHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &UserHandler{userService: userService, log: log}
}

// Executors lists every user that can be assigned to a requirement
// GET /api/users/executors
func (h *UserHandler) Executors(c *gin.Context) {
	executors, err := h.userService.ListExecutors(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, executors)
}

// Get returns one user
// GET /api/users/:username
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, user)
}

// Create adds a user with any role
// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", msg, "")
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Created(c, user)
}

// Update changes a user's profile and ends their session
// PUT /api/users/:username
func (h *UserHandler) Update(c *gin.Context) {
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	if valid, msg := req.Validate(); !valid {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", msg, "")
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), c.Param("username"), &req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, user)
}

// Delete removes a user and their session
// DELETE /api/users/:username
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Request.Context(), c.Param("username")); err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, gin.H{"message": "User deleted"})
}
