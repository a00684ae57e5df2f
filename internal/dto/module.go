package dto

// ModuleRequest represents module create and update requests
type ModuleRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

// IsActive defaults to true when the field is omitted
func (r *ModuleRequest) IsActive() bool {
	return r.Active == nil || *r.Active
}
