package reports

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	appaudit "github.com/verifai/verifai/internal/application/audit"
	appbilling "github.com/verifai/verifai/internal/application/billing"
	domain "github.com/verifai/verifai/internal/domain/analysis"
	"github.com/verifai/verifai/internal/domain/audit"
	"github.com/verifai/verifai/internal/domain/documents"
	"github.com/verifai/verifai/internal/domain/users"
)

// ExportError carries the entitlement denial reason for exports.
type ExportError struct {
	Reason string
}

func (e *ExportError) Error() string { return e.Reason }

// Report is rendered output plus content headers.
type Report struct {
	ContentType string
	Filename    string
	Body        []byte
}

// Service renders completed analyses as CSV or HTML-for-PDF. Export is gated
// by the plan's export entitlement, independent of the analysis pipeline's
// own checks.
type Service struct {
	Analyses     domain.Repository
	Documents    documents.Repository
	Entitlements *appbilling.Service
	Audit        *appaudit.Service
	Log          *zap.Logger
}

// Generate renders the analysis in the requested format ("csv" or "pdf").
// The pdf path emits HTML intended for downstream PDF conversion.
func (s *Service) Generate(ctx context.Context, user *users.User, id domain.AnalysisID, format string, req audit.RequestInfo) (*Report, error) {
	if d := s.Entitlements.CanExportReports(ctx, user); !d.Allowed {
		return nil, &ExportError{Reason: d.Reason}
	}

	a, err := s.Analyses.GetAccessible(ctx, id, user.ID)
	if err != nil {
		return nil, err
	}
	findings, err := s.Analyses.FindingsByAnalysis(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	doc, err := s.Documents.Get(ctx, documents.DocumentID(a.DocumentID))
	if err != nil {
		return nil, err
	}

	s.Audit.Record(audit.Entry{
		UserID:     user.ID,
		DocumentID: a.DocumentID,
		Action:     audit.ActionReportGenerated,
		Details:    map[string]any{"analysisId": string(a.ID), "format": format, "orgId": doc.OrgID},
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
	})

	if format == "csv" {
		return &Report{
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("analysis-%s.csv", a.ID),
			Body:        renderCSV(a, doc, findings),
		}, nil
	}
	return &Report{
		ContentType: "text/html",
		Filename:    fmt.Sprintf("analysis-%s.html", a.ID),
		Body:        renderHTML(a, doc, findings),
	}, nil
}

var csvHeader = []string{
	"Document", "Analysis Date", "Risk Score", "Status",
	"Finding Type", "Severity", "Title", "Description", "Suggestion",
}

// renderCSV emits one row per finding with every field quoted. Zero findings
// produce a single synthetic SUMMARY row so the body is never empty.
func renderCSV(a *domain.Analysis, doc *documents.Document, findings []domain.Finding) []byte {
	completedAt := ""
	if a.CompletedAt != nil {
		completedAt = a.CompletedAt.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	riskScore := ""
	if a.RiskScore != nil {
		riskScore = fmt.Sprintf("%d", *a.RiskScore)
	}

	rows := [][]string{csvHeader}
	for _, f := range findings {
		rows = append(rows, []string{
			doc.OriginalName, completedAt, riskScore, string(a.Status),
			string(f.Type), string(f.Severity), f.Title, f.Description, f.Suggestion,
		})
	}
	if len(findings) == 0 {
		summary := a.Summary
		if summary == "" {
			summary = "No specific findings identified"
		}
		rows = append(rows, []string{
			doc.OriginalName, completedAt, riskScore, string(a.Status),
			"SUMMARY", "INFO", "Analysis Complete", summary, "",
		})
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, field := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(field, `"`, `""`))
			b.WriteByte('"')
		}
	}
	return []byte(b.String())
}
