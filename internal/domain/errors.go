package domain

import "errors"

// Domain errors
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found or logged out")
	ErrForbidden          = errors.New("insufficient role")
	ErrUserInUse          = errors.New("user is referenced by requirements")

	// Infrastructure errors
	ErrCacheUnavailable = errors.New("session cache unavailable")
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// Validation errors
	ErrInvalidRole              = errors.New("invalid role")
	ErrInvalidRequirementStatus = errors.New("invalid requirement status")

	// Module errors
	ErrModuleNotFound      = errors.New("module not found")
	ErrDuplicateModuleName = errors.New("module name already exists")

	// Requirement errors
	ErrRequirementNotFound  = errors.New("requirement not found")
	ErrRequirementCodeTaken = errors.New("requirement code already exists")
)
