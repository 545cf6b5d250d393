package reports

import "time"

// ReportID identifier type
type ReportID string

// Report is an exported analysis kept for history and audit.
type Report struct {
	ID              ReportID  `json:"id"`
	TenantID        string    `json:"tenant_id"`
	SessionID       string    `json:"session_id,omitempty"`
	Filename        string    `json:"filename"`
	Fingerprint     string    `json:"fingerprint"`
	Status          string    `json:"status"`
	ComplianceScore int       `json:"compliance_score"`
	TotalViolations int       `json:"total_violations"`
	ArchiveURL      string    `json:"archive_url,omitempty"`
	Result          string    `json:"result"` // exported JSON document
	CreatedAt       time.Time `json:"created_at"`
}

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*Report `json:"data"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Total      int64     `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}
