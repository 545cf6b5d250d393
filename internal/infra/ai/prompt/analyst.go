package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bryanwahyu/docguard/internal/domain/overlay"
)

// maxPromptChars keeps very large documents inside the model context.
const maxPromptChars = 48000

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior regulatory compliance analyst for Philippine financial institutions. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object with a "section_analyses" array.
- Split the document into contiguous sections using its 1-based line numbers; sections must not overlap.
- status is "VIOLATION" or "COMPLIANT".
- violation_details lists one short sentence per violation, naming the law it breaches when known (Data Privacy Act RA 10173, Anti-Money Laundering Act RA 9160, Securities Regulation Code RA 8799, General Banking Law RA 8791).
- regulatory_risk mentions "enforcement" or "high" for severe issues, "warning" or "moderate" for medium ones.

Schema (example with empty values):
{
  "section_analyses": [
    {
      "section_title": "<string>",
      "section_type": "<string>",
      "start_line": 1,
      "end_line": 1,
      "status": "<VIOLATION|COMPLIANT>",
      "violation_details": ["<string>"],
      "regulatory_risk": "<string>",
      "business_impact": "<string>"
    }
  ]
}`
}

// GetUserPrompt builds the user message: the document with line numbers.
func GetUserPrompt(filename, content string) string {
	if utf8.RuneCountInString(content) > maxPromptChars {
		content = string([]rune(content)[:maxPromptChars])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the document %q and respond with the JSON per schema.\n\n", filename)
	for _, line := range overlay.ContentLines(content) {
		fmt.Fprintf(&b, "%d: %s\n", line.Number, line.Text)
	}
	return b.String()
}
