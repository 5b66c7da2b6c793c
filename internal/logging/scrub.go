package logging

import "regexp"

// Patterns that must never reach log storage verbatim. Order matters: the
// generic token pattern runs last so the specific ones keep their labels.
var piiPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL_REDACTED]"},
	{regexp.MustCompile(`(\+?1?[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`), "[PHONE_REDACTED]"},
	{regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`), "[SSN_REDACTED]"},
	{regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), "[CC_REDACTED]"},
	{regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`), "[IP_REDACTED]"},
	{regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`), "[TOKEN_REDACTED]"},
}

// Scrub replaces PII-looking substrings with redaction markers.
func Scrub(s string) string {
	if s == "" {
		return s
	}
	for _, p := range piiPatterns {
		s = p.re.ReplaceAllString(s, p.replacement)
	}
	return s
}
