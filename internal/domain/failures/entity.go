package failures

import "time"

// Phase where an analysis went wrong.
type Phase string

const (
	PhaseTransport Phase = "transport"
	PhaseNormalize Phase = "normalize"
	PhaseImport    Phase = "import"
	PhaseExport    Phase = "export"
)

// Failure represents a persisted analysis failure entry
type Failure struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	SessionID   string    `json:"session_id"`
	Phase       Phase     `json:"phase,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
