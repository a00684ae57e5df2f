package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/dto"
	"github.com/prohmpiriya/test-platform/internal/middleware"
	"github.com/prohmpiriya/test-platform/internal/service"
	"github.com/prohmpiriya/test-platform/pkg/logger"
	"github.com/prohmpiriya/test-platform/pkg/response"
)

// RequirementHandler handles requirement HTTP requests
type RequirementHandler struct {
	requirementService service.RequirementService
	log                *logger.Logger
}

// NewRequirementHandler creates a new RequirementHandler
func NewRequirementHandler(requirementService service.RequirementService, log *logger.Logger) *RequirementHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RequirementHandler{requirementService: requirementService, log: log}
}

// List returns a filtered page of requirements
// GET /api/requirements?code=&name=&module_id=&status=&page=&page_size=
func (h *RequirementHandler) List(c *gin.Context) {
	var q dto.RequirementListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	filter := domain.RequirementFilter{
		Code:     q.Code,
		Name:     q.Name,
		ModuleID: q.ModuleID,
		Status:   domain.RequirementStatus(q.Status),
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	filter.Normalize()

	items, total, err := h.requirementService.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Paged(c, items, response.NewPageMeta(filter.Page, filter.PageSize, total))
}

// Create adds a requirement owned by the caller
// POST /api/requirements
func (h *RequirementHandler) Create(c *gin.Context) {
	var req dto.RequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	created, err := h.requirementService.Create(c.Request.Context(), middleware.GetPrincipal(c), &req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Created(c, created)
}

// Update changes a requirement; its code never changes
// PUT /api/requirements/:id
func (h *RequirementHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req dto.RequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	updated, err := h.requirementService.Update(c.Request.Context(), id, &req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, updated)
}

// Get returns one requirement
// GET /api/requirements/:id
func (h *RequirementHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	found, err := h.requirementService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Success(c, found)
}

// Search matches a keyword against code, name and description
// POST /api/requirements/search
func (h *RequirementHandler) Search(c *gin.Context) {
	var req dto.RequirementSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	paging := domain.RequirementFilter{Page: req.Page, PageSize: req.PageSize}
	paging.Normalize()

	items, total, err := h.requirementService.Search(c.Request.Context(), req.Keyword, paging.Page, paging.PageSize)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.Paged(c, items, response.NewPageMeta(paging.Page, paging.PageSize, total))
}
