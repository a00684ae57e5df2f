package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/test-platform/internal/dto"
	"github.com/prohmpiriya/test-platform/internal/service"
	"github.com/prohmpiriya/test-platform/pkg/logger"
	"github.com/prohmpiriya/test-platform/pkg/response"
)

// ModuleHandler handles module HTTP requests
type ModuleHandler struct {
	moduleService service.ModuleService
	log           *logger.Logger
}

// NewModuleHandler creates a new ModuleHandler
func NewModuleHandler(moduleService service.ModuleService, log *logger.Logger) *ModuleHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ModuleHandler{moduleService: moduleService, log: log}
}

// List returns active modules
// GET /api/modules
func (h *ModuleHandler) List(c *gin.Context) {
	modules, err := h.moduleService.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, modules)
}

// Create adds a module
// POST /api/modules
func (h *ModuleHandler) Create(c *gin.Context) {
	var req dto.ModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	module, err := h.moduleService.Create(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Created(c, module)
}

// Update replaces a module's name and description
// PUT /api/modules/:id
func (h *ModuleHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req dto.ModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	module, err := h.moduleService.Update(c.Request.Context(), id, &req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, module)
}

// Get returns one module
// GET /api/modules/:id
func (h *ModuleHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	module, err := h.moduleService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, module)
}

// SetStatus enables or disables a module
// PUT /api/modules/:id/status?status=true
func (h *ModuleHandler) SetStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	active, err := strconv.ParseBool(c.Query("status"))
	if err != nil {
		response.BadRequest(c, "status must be true or false")
		return
	}

	if err := h.moduleService.SetStatus(c.Request.Context(), id, active); err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, gin.H{"id": id, "active": active})
}
