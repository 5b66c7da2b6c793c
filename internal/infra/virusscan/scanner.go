package virusscan

import (
	"strings"

	appdocs "github.com/verifai/verifai/internal/application/documents"
)

// signatures flagged in the leading bytes of an upload. A placeholder for a
// real scanning engine; catches the EICAR-style test payloads used in QA.
var signatures = []string{
	"virus",
	"malware",
	"trojan",
	"ransomware",
	"exploit",
}

const scanWindow = 1000

type HeuristicScanner struct{}

func NewHeuristicScanner() *HeuristicScanner {
	return &HeuristicScanner{}
}

func (HeuristicScanner) Scan(data []byte, filename string) appdocs.ScanResult {
	window := data
	if len(window) > scanWindow {
		window = window[:scanWindow]
	}
	haystack := strings.ToLower(string(window) + " " + filename)

	var threats []string
	for _, sig := range signatures {
		if strings.Contains(haystack, sig) {
			threats = append(threats, sig)
		}
	}
	return appdocs.ScanResult{Clean: len(threats) == 0, Threats: threats}
}
