// Package prompt builds the contract-analysis prompt and parses the
// provider's constrained JSON response into a typed result.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/verifai/verifai/internal/domain/ai"
	"github.com/verifai/verifai/internal/domain/analysis"
)

// maxInputChars bounds the contract text sent to the provider, for cost and
// latency.
const maxInputChars = 10000

// SystemPrompt pins the assistant role and the JSON-only contract.
func SystemPrompt() string {
	return "You are a legal AI assistant. Respond only with valid JSON."
}

// UserPrompt renders the analysis instruction with the truncated contract.
func UserPrompt(req ai.Request) string {
	name := req.DocumentName
	if name == "" {
		name = "Unknown"
	}
	category := req.Category
	if category == "" {
		category = "contract"
	}
	text := req.Text
	if len(text) > maxInputChars {
		// Back off to a rune boundary so the cut never splits a multibyte
		// character.
		cut := maxInputChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return fmt.Sprintf(`You are a legal AI assistant analyzing contracts for SMEs. Analyze the following contract and provide a JSON response with:
- riskScore: number (0-100, where 100 is highest risk)
- summary: string (brief German summary of key points)
- findings: array of objects with:
  - type: one of "RISK", "COMPLIANCE", "LEGAL", "FINANCIAL", "OPERATIONAL"
  - severity: one of "LOW", "MEDIUM", "HIGH", "CRITICAL"
  - title: string (short German title)
  - description: string (detailed German description)
  - suggestion: string (German recommendation)

Contract name: %s
Category: %s
Content: %s

Respond only with valid JSON.`, name, category, text)
}

// wire schema for the provider response; parsed strictly, never trusting
// field presence.
type responseSchema struct {
	RiskScore *int             `json:"riskScore"`
	Summary   *string          `json:"summary"`
	Findings  []findingsSchema `json:"findings"`
}

type findingsSchema struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Suggestion  string `json:"suggestion"`
}

// Parse validates the model output against the schema. Any shape mismatch is
// an error; the caller degrades to the fallback. The risk score is clamped
// and findings beyond the cap discarded.
func Parse(content string) (ai.Result, error) {
	var parsed responseSchema
	dec := json.NewDecoder(strings.NewReader(content))
	if err := dec.Decode(&parsed); err != nil {
		return ai.Result{}, fmt.Errorf("parsing provider response: %w", err)
	}
	if parsed.RiskScore == nil {
		return ai.Result{}, fmt.Errorf("provider response missing riskScore")
	}
	if parsed.Summary == nil || *parsed.Summary == "" {
		return ai.Result{}, fmt.Errorf("provider response missing summary")
	}

	findings := make([]analysis.Finding, 0, len(parsed.Findings))
	for i, f := range parsed.Findings {
		if !analysis.ValidFindingType(analysis.FindingType(f.Type)) {
			return ai.Result{}, fmt.Errorf("finding %d: unknown type %q", i, f.Type)
		}
		if !analysis.ValidSeverity(analysis.Severity(f.Severity)) {
			return ai.Result{}, fmt.Errorf("finding %d: unknown severity %q", i, f.Severity)
		}
		if f.Title == "" || f.Description == "" {
			return ai.Result{}, fmt.Errorf("finding %d: missing title or description", i)
		}
		findings = append(findings, analysis.Finding{
			Type:        analysis.FindingType(f.Type),
			Severity:    analysis.Severity(f.Severity),
			Title:       f.Title,
			Description: f.Description,
			Location:    f.Location,
			Suggestion:  f.Suggestion,
		})
	}

	return ai.Result{
		RiskScore: analysis.ClampRiskScore(*parsed.RiskScore),
		Summary:   *parsed.Summary,
		Findings:  analysis.CapFindings(findings),
	}, nil
}

// Fallback is the deterministic result used whenever the provider path does
// not yield data. It is identical across invocations: this is the
// availability guarantee when the AI dependency is unreachable or
// misbehaving.
func Fallback() ai.Result {
	return ai.Result{
		RiskScore: 50,
		Summary:   "Contract analysis completed",
		Findings: []analysis.Finding{
			{
				Type:        analysis.FindingLegal,
				Severity:    analysis.SeverityMedium,
				Title:       "Kündigungsklausel prüfen",
				Description: "Die Kündigungsbedingungen sollten überprüft werden.",
				Suggestion:  "Rechtliche Beratung für Kündigungsfristen empfohlen.",
			},
			{
				Type:        analysis.FindingFinancial,
				Severity:    analysis.SeverityLow,
				Title:       "Zahlungsbedingungen",
				Description: "Standardzahlungsbedingungen identifiziert.",
				Suggestion:  "Zahlungsfristen könnten optimiert werden.",
			},
		},
		Degraded: true,
	}
}
