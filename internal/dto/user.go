package dto

// CreateUserRequest represents an administrator creating a user
type CreateUserRequest = RegisterRequest

// UpdateUserRequest changes profile fields; empty fields are left unchanged
type UpdateUserRequest struct {
	DisplayName string `json:"display_name" binding:"omitempty,max=50"`
	Role        string `json:"role"`
	Password    string `json:"password" binding:"omitempty,max=72"`
}

// Validate checks the new password length, if one is given
func (r *UpdateUserRequest) Validate() (bool, string) {
	return ValidatePassword(r.Password)
}

// ExecutorResponse is the public projection of a user offered as an assignee
type ExecutorResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}
