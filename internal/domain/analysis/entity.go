package analysis

import "time"

// AnalysisID identifier type
type AnalysisID string

// Status enum. PROCESSING is the only non-terminal state; an analysis
// transitions exactly once to COMPLETED or ERROR.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// FindingType enum
type FindingType string

const (
	FindingRisk        FindingType = "RISK"
	FindingCompliance  FindingType = "COMPLIANCE"
	FindingLegal       FindingType = "LEGAL"
	FindingFinancial   FindingType = "FINANCIAL"
	FindingOperational FindingType = "OPERATIONAL"
)

// Severity enum
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// MaxFindings caps the stored findings per analysis. Provider output beyond
// the cap is truncated, not rejected.
const MaxFindings = 20

// Finding is a single issue surfaced by an analysis.
type Finding struct {
	Type        FindingType `json:"type"`
	Severity    Severity    `json:"severity"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Location    string      `json:"location,omitempty"`
	Suggestion  string      `json:"suggestion,omitempty"`
}

// Aggregate root: one assessment run over a document.
type Analysis struct {
	ID          AnalysisID `json:"id"`
	DocumentID  string     `json:"document_id"`
	Status      Status     `json:"status"`
	RiskScore   *int       `json:"risk_score,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Result is the normalized response shape returned by the pipeline.
type Result struct {
	ID          AnalysisID `json:"id"`
	DocumentID  string     `json:"documentId"`
	Status      Status     `json:"status"`
	RiskScore   int        `json:"riskScore"`
	Summary     string     `json:"summary"`
	Findings    []Finding  `json:"findings"`
	CompletedAt time.Time  `json:"completedAt"`
}

// ClampRiskScore bounds a provider score to [0,100].
func ClampRiskScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// CapFindings keeps the first MaxFindings entries in original order.
func CapFindings(findings []Finding) []Finding {
	if len(findings) > MaxFindings {
		return findings[:MaxFindings]
	}
	return findings
}

// ValidFindingType reports whether t is a known enum value.
func ValidFindingType(t FindingType) bool {
	switch t {
	case FindingRisk, FindingCompliance, FindingLegal, FindingFinancial, FindingOperational:
		return true
	}
	return false
}

// ValidSeverity reports whether s is a known enum value.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
