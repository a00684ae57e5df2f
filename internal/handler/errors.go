package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prohmpiriya/test-platform/internal/credential"
	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/middleware"
	"github.com/prohmpiriya/test-platform/pkg/logger"
	"github.com/prohmpiriya/test-platform/pkg/response"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// First match wins; backend outages sit last so a wrapped domain error is
// reported as itself.
var errorMappings = []errorMapping{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password"},
	{domain.ErrDuplicateUsername, http.StatusConflict, "USER_EXISTS", "Username is already taken"},
	{domain.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"},
	{domain.ErrUserInUse, http.StatusConflict, "USER_IN_USE", "User is still referenced by requirements"},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Access denied"},
	{credential.ErrPasswordTooLong, http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at most 72 bytes"},
	{domain.ErrInvalidRole, http.StatusBadRequest, "VALIDATION_ERROR", "Role must be one of admin, manager, tester"},
	{domain.ErrInvalidRequirementStatus, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown requirement status"},
	{domain.ErrModuleNotFound, http.StatusNotFound, "MODULE_NOT_FOUND", "Module not found"},
	{domain.ErrDuplicateModuleName, http.StatusConflict, "MODULE_EXISTS", "Module name is already taken"},
	{domain.ErrRequirementNotFound, http.StatusNotFound, "REQUIREMENT_NOT_FOUND", "Requirement not found"},
	{domain.ErrRequirementCodeTaken, http.StatusConflict, "REQUIREMENT_CODE_CONFLICT", "Could not allocate a requirement code, please retry"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable"},
	{domain.ErrCacheUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable"},
}

// writeError maps a service error onto the response envelope. Unknown errors
// are logged and reported as a bare 500.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				log.ErrorContext(c.Request.Context(), "Backend unavailable",
					zap.String("request_id", middleware.GetRequestID(c)),
					zap.Error(err),
				)
			}
			response.Error(c, m.status, m.code, m.message, "")
			return
		}
	}

	log.ErrorContext(c.Request.Context(), "Unhandled error",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	response.InternalError(c)
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}
