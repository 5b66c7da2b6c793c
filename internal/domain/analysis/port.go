package analysis

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("analysis not found or access denied")

// Repository port (persistence)
type Repository interface {
	Create(ctx context.Context, a *Analysis) error
	// Update persists the terminal transition. Implementations must refuse to
	// move a COMPLETED analysis backward.
	Update(ctx context.Context, a *Analysis) error
	Get(ctx context.Context, id AnalysisID) (*Analysis, error)
	// GetAccessible joins through the document's organization membership;
	// ErrNotFound when the analysis is missing or owned by another tenant.
	GetAccessible(ctx context.Context, id AnalysisID, userID string) (*Analysis, error)
	// LatestCompletedByDocument returns (nil, nil) when no completed analysis
	// exists for the document.
	LatestCompletedByDocument(ctx context.Context, documentID string) (*Analysis, error)
	// CountForOrgSince counts COMPLETED and PROCESSING analyses over the
	// org's documents created on/after since. In-flight runs count so bursts
	// cannot evade the monthly quota.
	CountForOrgSince(ctx context.Context, orgID string, since time.Time) (int, error)
	SaveFindings(ctx context.Context, id AnalysisID, findings []Finding) error
	FindingsByAnalysis(ctx context.Context, id AnalysisID) ([]Finding, error)
}
