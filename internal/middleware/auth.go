package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/events"
	"github.com/prohmpiriya/test-platform/internal/service"
	"github.com/prohmpiriya/test-platform/pkg/logger"
	"github.com/prohmpiriya/test-platform/pkg/response"
)

// PrincipalKey is the gin context key of the authenticated principal
const PrincipalKey = "principal"

// Resolver decides the identity behind an Authorization header
type Resolver interface {
	ResolveRequest(ctx context.Context, authorization string) service.Resolution
}

var rejectMessages = map[service.RejectReason]string{
	service.ReasonTokenExpired:       "Token has expired, please log in again",
	service.ReasonInvalidToken:       "Invalid token",
	service.ReasonSessionExpired:     "Session has ended, please log in again",
	service.ReasonServiceUnavailable: "Authentication is temporarily unavailable",
}

// Authenticate resolves the bearer credential of each request. Requests
// without one continue as anonymous; any credential that fails resolution
// ends the request. A request already carrying a principal is left as is.
func Authenticate(resolver Resolver, publisher events.Publisher, log *logger.Logger) gin.HandlerFunc {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}

	return func(c *gin.Context) {
		if GetPrincipal(c) != nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res := resolver.ResolveRequest(ctx, c.GetHeader("Authorization"))

		switch res.Status {
		case service.StatusAnonymous:
			c.Next()

		case service.StatusAuthenticated:
			c.Set(PrincipalKey, res.Principal)
			c.Next()

		default:
			status := http.StatusUnauthorized
			if res.Reason == service.ReasonServiceUnavailable {
				status = http.StatusServiceUnavailable
			}

			fields := []zap.Field{
				zap.String("request_id", GetRequestID(c)),
				zap.String("reason", string(res.Reason)),
				zap.String("ip", c.ClientIP()),
				zap.Error(res.Err),
			}
			if res.Reason == service.ReasonInvalidToken {
				log.WarnContext(ctx, "Rejected tampered or malformed token", fields...)
				publisher.Publish(ctx, events.SecurityEvent{
					Type:      events.EventTokenRejected,
					Reason:    errorText(res.Err),
					ClientIP:  c.ClientIP(),
					RequestID: GetRequestID(c),
				})
			} else {
				log.InfoContext(ctx, "Rejected credential", fields...)
			}

			response.Abort(c, status, string(res.Reason), rejectMessages[res.Reason])
		}
	}
}

// GetPrincipal returns the authenticated principal, or nil for anonymous requests
func GetPrincipal(c *gin.Context) *domain.Principal {
	if v, exists := c.Get(PrincipalKey); exists {
		if p, ok := v.(*domain.Principal); ok {
			return p
		}
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
