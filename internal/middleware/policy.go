package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/pkg/response"
)

// Rule grants access to routes matching Method and Path. Path is a gin route
// pattern; a trailing "*" matches any suffix. Method "*" matches any method.
type Rule struct {
	Method string
	Path   string
	// Public rules admit anonymous requests
	Public bool
	// Roles restricts access to these roles; empty means any authenticated principal
	Roles []domain.Role
}

// Public admits everyone
func Public(method, path string) Rule {
	return Rule{Method: method, Path: path, Public: true}
}

// Authenticated admits any logged-in principal
func Authenticated(method, path string) Rule {
	return Rule{Method: method, Path: path}
}

// RequireRoles admits principals holding one of roles
func RequireRoles(method, path string, roles ...domain.Role) Rule {
	return Rule{Method: method, Path: path, Roles: roles}
}

func (r Rule) matches(method, route string) bool {
	if r.Method != "*" && r.Method != method {
		return false
	}
	if prefix, ok := strings.CutSuffix(r.Path, "*"); ok {
		return strings.HasPrefix(route, prefix)
	}
	return r.Path == route
}

// Policy is an ordered rule table; the first matching rule decides and a
// request no rule matches is denied
type Policy struct {
	rules []Rule
}

// NewPolicy creates a policy from rules evaluated in order
func NewPolicy(rules ...Rule) *Policy {
	return &Policy{rules: rules}
}

// Match returns the first rule matching method and route
func (p *Policy) Match(method, route string) (Rule, bool) {
	for _, r := range p.rules {
		if r.matches(method, route) {
			return r, true
		}
	}
	return Rule{}, false
}

// Authorize enforces policy against the principal set by Authenticate
func Authorize(policy *Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		principal := GetPrincipal(c)
		rule, found := policy.Match(c.Request.Method, route)

		switch {
		case found && rule.Public:
			c.Next()
		case principal == nil:
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		case !found:
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
		case len(rule.Roles) == 0 || principal.HasRole(rule.Roles...):
			c.Next()
		default:
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Insufficient role")
		}
	}
}
