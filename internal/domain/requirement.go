package domain

import (
	"fmt"
	"time"
)

// RequirementStatus represents the lifecycle state of a requirement
type RequirementStatus string

const (
	RequirementStatusReviewing  RequirementStatus = "reviewing"
	RequirementStatusDeveloping RequirementStatus = "developing"
	RequirementStatusTesting    RequirementStatus = "testing"
	RequirementStatusBlocked    RequirementStatus = "blocked"
	RequirementStatusReleased   RequirementStatus = "released"
)

// Valid reports whether s is a known status
func (s RequirementStatus) Valid() bool {
	switch s {
	case RequirementStatusReviewing, RequirementStatusDeveloping, RequirementStatusTesting,
		RequirementStatusBlocked, RequirementStatusReleased:
		return true
	}
	return false
}

// RequirementCodePrefix prefixes every generated requirement code
const RequirementCodePrefix = "REQ"

// FormatRequirementCode builds REQ + yyyyMMdd + 4-digit sequence.
// Only the low four digits of seq are kept.
func FormatRequirementCode(day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", RequirementCodePrefix, day.Format("20060102"), seq%10000)
}

// Requirement is a tracked product requirement
type Requirement struct {
	ID          int64             `json:"id"`
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	CreatorID   int64             `json:"creator_id"`
	CreatorName string            `json:"creator_name,omitempty"`
	ModuleID    *int64            `json:"module_id,omitempty"`
	ModuleName  string            `json:"module_name,omitempty"`
	ExecutorIDs []int64           `json:"executor_ids"`
	Status      RequirementStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// RequirementFilter narrows a requirement listing; empty fields are ignored
type RequirementFilter struct {
	Code     string
	Name     string
	ModuleID *int64
	Status   RequirementStatus
	Page     int
	PageSize int
}

// MaxPage bounds the page number so the row offset cannot overflow
const MaxPage = 1_000_000

// Normalize applies paging defaults and bounds
func (f *RequirementFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.PageSize < 1 {
		f.PageSize = 10
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

// Offset returns the row offset of the current page
func (f *RequirementFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
