package dto

import (
	"regexp"

	"github.com/prohmpiriya/test-platform/internal/domain"
)

// bcrypt rejects longer input
const maxPasswordBytes = 72

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._\-]{2,50}$`)

// RegisterRequest represents registration request
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required,max=72"`
	DisplayName string `json:"display_name" binding:"required,max=50"`
	Role        string `json:"role" binding:"required"`
}

// Validate checks username format and role
func (r *RegisterRequest) Validate() (bool, string) {
	if ok, msg := ValidateUsername(r.Username); !ok {
		return false, msg
	}
	if !domain.Role(r.Role).Valid() {
		return false, "Role must be one of admin, manager, tester"
	}
	return ValidatePassword(r.Password)
}

// ValidatePassword checks the byte length bcrypt can hash. The binding tag
// counts characters, so multibyte passwords are checked here.
func ValidatePassword(password string) (bool, string) {
	if len(password) > maxPasswordBytes {
		return false, "Password must be at most 72 bytes"
	}
	return true, ""
}

// ValidateUsername checks the allowed username alphabet and length
func ValidateUsername(username string) (bool, string) {
	if !usernamePattern.MatchString(username) {
		return false, "Username must be 2-50 characters of letters, digits, '.', '_' or '-'"
	}
	return true, ""
}

// LoginRequest represents login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	Token     string            `json:"token"`
	TokenType string            `json:"token_type"`
	ExpiresIn int64             `json:"expires_in"` // milliseconds until the token expires
	User      *domain.Principal `json:"user"`
}
