package dto

// RequirementRequest represents requirement create and update requests
type RequirementRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Description string  `json:"description"`
	ModuleID    *int64  `json:"module_id"`
	ExecutorIDs []int64 `json:"executor_ids"`
	Status      string  `json:"status"`
}

// RequirementListQuery holds the filters of a requirement listing
type RequirementListQuery struct {
	Code     string `form:"code"`
	Name     string `form:"name"`
	ModuleID *int64 `form:"module_id"`
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// RequirementSearchRequest represents a keyword search
type RequirementSearchRequest struct {
	Keyword  string `json:"keyword"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}
