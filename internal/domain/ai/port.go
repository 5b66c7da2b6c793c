package ai

import (
	"context"

	"github.com/verifai/verifai/internal/domain/analysis"
)

// Request carries the document context handed to the provider.
type Request struct {
	DocumentID   string
	DocumentName string
	Category     string
	Text         string
}

// Result is a best-effort assessment. RiskScore is already clamped to
// [0,100] and Findings capped at analysis.MaxFindings.
type Result struct {
	RiskScore int
	Summary   string
	Findings  []analysis.Finding
	// Degraded marks the deterministic fallback result used when the
	// provider is unconfigured, unreachable, or returned garbage.
	Degraded bool
}

// Analyzer port. Implementations never return an error: any provider failure
// degrades to the fixed fallback result. Availability over live AI.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) Result
}
