package analysis

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verifai/verifai/internal/application"
	appaudit "github.com/verifai/verifai/internal/application/audit"
	appbilling "github.com/verifai/verifai/internal/application/billing"
	"github.com/verifai/verifai/internal/domain/ai"
	domain "github.com/verifai/verifai/internal/domain/analysis"
	"github.com/verifai/verifai/internal/domain/audit"
	"github.com/verifai/verifai/internal/domain/documents"
	"github.com/verifai/verifai/internal/domain/users"
)

// ValidationError covers bad input before any state is created.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// EntitlementError carries the human-readable denial reason verbatim.
type EntitlementError struct {
	Reason string
}

func (e *EntitlementError) Error() string { return e.Reason }

// RunCommand is one analysis request.
type RunCommand struct {
	DocumentID   string
	DocumentName string
	Category     string
	Text         string
	User         *users.User
	Request      audit.RequestInfo
}

// Service orchestrates the analysis pipeline: validation, access guard,
// entitlement admission, idempotent reuse, provider call, persistence and
// audit side effects.
type Service struct {
	Documents    documents.Repository
	Analyses     domain.Repository
	Entitlements *appbilling.Service
	Analyzer     ai.Analyzer
	Audit        *appaudit.Service
	Clock        application.Clock
	Log          *zap.Logger

	// Serializes check-then-create per document so concurrent duplicate
	// requests cannot both miss the idempotency lookup. In-process only;
	// multi-instance deployments need a uniqueness constraint on top.
	locks stripedMutex
}

// Run executes the pipeline for one document.
func (s *Service) Run(ctx context.Context, cmd RunCommand) (*domain.Result, error) {
	docID := strings.TrimSpace(cmd.DocumentID)
	if docID == "" {
		return nil, &ValidationError{Msg: "documentId is required"}
	}

	doc, err := s.Documents.FindAccessible(ctx, documents.DocumentID(docID), cmd.User.ID)
	if err != nil {
		return nil, err
	}

	decision, err := s.Entitlements.CanPerformAnalysis(ctx, cmd.User)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &EntitlementError{Reason: decision.Reason}
	}

	unlock := s.locks.lock(docID)
	defer unlock()

	// Idempotency: an existing COMPLETED analysis is returned unchanged,
	// without touching the provider or creating a new row.
	existing, err := s.Analyses.LatestCompletedByDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		findings, err := s.Analyses.FindingsByAnalysis(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		return resultOf(existing, findings), nil
	}

	a := &domain.Analysis{
		ID:         domain.AnalysisID(uuid.New().String()),
		DocumentID: docID,
		Status:     domain.StatusProcessing,
		CreatedAt:  s.Clock.Now(),
	}
	if err := s.Analyses.Create(ctx, a); err != nil {
		return nil, err
	}

	s.Audit.Record(audit.Entry{
		UserID:     cmd.User.ID,
		DocumentID: docID,
		Action:     audit.ActionAnalysisStarted,
		Details:    map[string]any{"analysisId": string(a.ID), "category": cmd.Category},
		IPAddress:  cmd.Request.IPAddress,
		UserAgent:  cmd.Request.UserAgent,
	})

	text := cmd.Text
	if text == "" {
		text = doc.Text
	}
	name := cmd.DocumentName
	if name == "" {
		name = doc.OriginalName
	}
	res := s.Analyzer.Analyze(ctx, ai.Request{
		DocumentID:   docID,
		DocumentName: name,
		Category:     cmd.Category,
		Text:         text,
	})
	if res.Degraded {
		s.Log.Info("analysis degraded to fallback result",
			zap.String("document_id", docID),
			zap.String("analysis_id", string(a.ID)),
		)
	}

	now := s.Clock.Now()
	score := res.RiskScore
	a.Status = domain.StatusCompleted
	a.RiskScore = &score
	a.Summary = res.Summary
	a.CompletedAt = &now
	if err := s.Analyses.Update(ctx, a); err != nil {
		s.fail(cmd, a, err)
		return nil, err
	}
	if err := s.Analyses.SaveFindings(ctx, a.ID, res.Findings); err != nil {
		s.fail(cmd, a, err)
		return nil, err
	}

	s.Audit.Record(audit.Entry{
		UserID:     cmd.User.ID,
		DocumentID: docID,
		Action:     audit.ActionAnalysisCompleted,
		Details:    map[string]any{"analysisId": string(a.ID), "riskScore": score, "findings": len(res.Findings)},
		IPAddress:  cmd.Request.IPAddress,
		UserAgent:  cmd.Request.UserAgent,
	})

	return resultOf(a, res.Findings), nil
}

// fail marks the analysis ERROR (best effort) and records the failure. The
// original persistence error still propagates to the caller.
func (s *Service) fail(cmd RunCommand, a *domain.Analysis, cause error) {
	now := s.Clock.Now()
	a.Status = domain.StatusError
	a.RiskScore = nil
	a.CompletedAt = &now
	if err := s.Analyses.Update(context.Background(), a); err != nil {
		s.Log.Error("failed to mark analysis as ERROR",
			zap.String("analysis_id", string(a.ID)),
			zap.Error(err),
		)
	}
	s.Log.Error("analysis persistence failed",
		zap.String("analysis_id", string(a.ID)),
		zap.String("document_id", a.DocumentID),
		zap.Error(cause),
	)
	s.Audit.Record(audit.Entry{
		UserID:     cmd.User.ID,
		DocumentID: a.DocumentID,
		Action:     audit.ActionAnalysisFailed,
		Details:    map[string]any{"analysisId": string(a.ID)},
		IPAddress:  cmd.Request.IPAddress,
		UserAgent:  cmd.Request.UserAgent,
	})
}

// Get returns an analysis with findings for the requesting user.
func (s *Service) Get(ctx context.Context, id domain.AnalysisID, userID string) (*domain.Result, error) {
	a, err := s.Analyses.GetAccessible(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	findings, err := s.Analyses.FindingsByAnalysis(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return resultOf(a, findings), nil
}

func resultOf(a *domain.Analysis, findings []domain.Finding) *domain.Result {
	r := &domain.Result{
		ID:         a.ID,
		DocumentID: a.DocumentID,
		Status:     a.Status,
		Summary:    a.Summary,
		Findings:   findings,
	}
	if a.RiskScore != nil {
		r.RiskScore = *a.RiskScore
	}
	if a.CompletedAt != nil {
		r.CompletedAt = *a.CompletedAt
	}
	if r.Findings == nil {
		r.Findings = []domain.Finding{}
	}
	return r
}
