package audit

import "time"

// Entry is an append-only audit record. Entries are never read back by the
// pipeline; this is a one-way side channel.
type Entry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id,omitempty"`
	DocumentID string         `json:"document_id,omitempty"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RequestInfo is the slice of an HTTP request worth auditing.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// Audit actions
const (
	ActionDocumentUploaded  = "document_uploaded"
	ActionAnalysisStarted   = "analysis_started"
	ActionAnalysisCompleted = "analysis_completed"
	ActionAnalysisFailed    = "analysis_failed"
	ActionReportGenerated   = "report_generated"
	ActionFileServed        = "file_served"
)
