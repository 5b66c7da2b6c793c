package reports

import (
	"fmt"
	"html"
	"strings"
	"time"

	domain "github.com/verifai/verifai/internal/domain/analysis"
	"github.com/verifai/verifai/internal/domain/documents"
)

const htmlHead = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Contract Analysis Report</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 40px; color: #333; }
    .header { border-bottom: 2px solid #007acc; padding-bottom: 20px; margin-bottom: 30px; }
    .title { font-size: 24px; font-weight: bold; color: #007acc; margin: 0; }
    .subtitle { font-size: 14px; color: #666; margin: 5px 0 0 0; }
    .section { margin-bottom: 30px; }
    .section-title { font-size: 18px; font-weight: bold; margin-bottom: 15px; color: #007acc; }
    .info-grid { display: grid; grid-template-columns: 150px 1fr; gap: 10px; margin-bottom: 20px; }
    .info-label { font-weight: bold; }
    .risk-score { font-size: 20px; font-weight: bold; padding: 10px; border-radius: 5px; text-align: center; }
    .risk-low { background-color: #d4edda; color: #155724; }
    .risk-medium { background-color: #fff3cd; color: #856404; }
    .risk-high { background-color: #f8d7da; color: #721c24; }
    .finding { border: 1px solid #ddd; border-radius: 5px; padding: 15px; margin-bottom: 15px; }
    .finding-title { font-weight: bold; font-size: 16px; }
    .severity-badge { padding: 4px 8px; border-radius: 3px; font-size: 12px; font-weight: bold; float: right; }
    .severity-LOW { background-color: #d4edda; color: #155724; }
    .severity-MEDIUM { background-color: #fff3cd; color: #856404; }
    .severity-HIGH { background-color: #f8d7da; color: #721c24; }
    .severity-CRITICAL { background-color: #721c24; color: white; }
    .finding-description { margin: 10px 0; line-height: 1.5; }
    .finding-suggestion { background-color: #f8f9fa; padding: 10px; border-radius: 3px; font-style: italic; }
    .footer { margin-top: 40px; padding-top: 20px; border-top: 1px solid #ddd; font-size: 12px; color: #666; }
  </style>
</head>
<body>
`

// renderHTML renders the fixed report template with a color-banded risk
// score and one block per finding.
func renderHTML(a *domain.Analysis, doc *documents.Document, findings []domain.Finding) []byte {
	var b strings.Builder
	b.WriteString(htmlHead)

	fmt.Fprintf(&b, `  <div class="header">
    <h1 class="title">Contract Analysis Report</h1>
    <p class="subtitle">Generated by VerifAI on %s</p>
  </div>
`, time.Now().Format("2006-01-02"))

	completedAt := "N/A"
	if a.CompletedAt != nil {
		completedAt = a.CompletedAt.Format("2006-01-02")
	}
	fmt.Fprintf(&b, `  <div class="section">
    <h2 class="section-title">Document Information</h2>
    <div class="info-grid">
      <div class="info-label">Document:</div><div>%s</div>
      <div class="info-label">Analysis Date:</div><div>%s</div>
      <div class="info-label">Status:</div><div>%s</div>
    </div>
  </div>
`, html.EscapeString(doc.OriginalName), completedAt, a.Status)

	score := 0
	scoreText := "N/A"
	if a.RiskScore != nil {
		score = *a.RiskScore
		scoreText = fmt.Sprintf("%d", score)
	}
	fmt.Fprintf(&b, `  <div class="section">
    <h2 class="section-title">Risk Assessment</h2>
    <div class="risk-score %s">Risk Score: %s/100</div>
`, riskClass(score), scoreText)
	if a.Summary != "" {
		fmt.Fprintf(&b, "    <p><strong>Summary:</strong> %s</p>\n", html.EscapeString(a.Summary))
	}
	b.WriteString("  </div>\n")

	fmt.Fprintf(&b, `  <div class="section">
    <h2 class="section-title">Findings (%d)</h2>
`, len(findings))
	if len(findings) == 0 {
		b.WriteString("    <p>No specific findings identified in this analysis.</p>\n")
	}
	for _, f := range findings {
		fmt.Fprintf(&b, `    <div class="finding">
      <span class="severity-badge severity-%s">%s</span>
      <div class="finding-title">%s</div>
      <div class="finding-description">%s</div>
`, f.Severity, f.Severity, html.EscapeString(f.Title), html.EscapeString(f.Description))
		if f.Suggestion != "" {
			fmt.Fprintf(&b, `      <div class="finding-suggestion"><strong>Recommendation:</strong> %s</div>
`, html.EscapeString(f.Suggestion))
		}
		b.WriteString("    </div>\n")
	}
	b.WriteString("  </div>\n")

	b.WriteString(`  <div class="footer">
    <p>This report was generated automatically by VerifAI. Please review all findings with qualified legal counsel.</p>
  </div>
</body>
</html>
`)
	return []byte(b.String())
}

// riskClass bands the score: low up to 30, medium up to 70, high above.
func riskClass(score int) string {
	switch {
	case score <= 30:
		return "risk-low"
	case score <= 70:
		return "risk-medium"
	default:
		return "risk-high"
	}
}
