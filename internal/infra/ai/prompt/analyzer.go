package prompt

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/bryanwahyu/docguard/internal/domain/analyzer"
	"github.com/bryanwahyu/docguard/internal/domain/overlay"
)

type detector struct {
	re     *regexp.Regexp
	issue  string
	source string
}

// Keyword detectors per regulation. Heuristic: they flag phrases that are
// almost always a finding and leave the rest to a real analyst.
var detectors = []detector{
	// Data Privacy
	{regexp.MustCompile(`(?i)\b(share|sell|disclose)[sd]?\b.{0,60}\b(personal|customer|client)\s+(data|information|records)`), "Personal data disclosed to third parties without a lawful basis", "RA 10173 Data Privacy Act, Sec. 12, Criteria for lawful processing"},
	{regexp.MustCompile(`(?i)\b(retain|keep|store)[sd]?\b.{0,60}\b(indefinitely|forever|permanently)`), "Personal data retained beyond its purpose", "RA 10173 Data Privacy Act, Sec. 11, General data privacy principles"},
	{regexp.MustCompile(`(?i)without\s+(prior\s+)?(written\s+)?consent`), "Processing without data subject consent", "RA 10173 Data Privacy Act, Sec. 13, Sensitive personal information"},
	// AML
	{regexp.MustCompile(`(?i)\b(cash|deposit|transaction)s?\b.{0,60}\bnot\s+(be\s+)?reported`), "Covered or suspicious transaction not reported (possible money laundering)", "RA 9160 AMLA, Sec. 9, Reporting of covered transactions"},
	{regexp.MustCompile(`(?i)\b(anonymous|fictitious|numbered)\s+accounts?`), "Anonymous or fictitious accounts permitted", "RA 9160 AMLA, Sec. 9(a), Customer identification"},
	{regexp.MustCompile(`(?i)\b(no|skip|waive[sd]?)\b.{0,20}\b(kyc|customer due diligence|identity verification)`), "Customer due diligence skipped", "RA 9160 AMLA, Sec. 9(a), Customer identification"},
	// Securities
	{regexp.MustCompile(`(?i)guaranteed\s+(returns?|profits?|yields?)`), "Guaranteed returns promised to investors", "RA 8799 Securities Regulation Code, Sec. 26, Fraudulent transactions"},
	{regexp.MustCompile(`(?i)\bunregistered\b.{0,30}\b(securities|notes|shares|offering)`), "Sale of unregistered securities", "RA 8799 Securities Regulation Code, Sec. 8, Requirement of registration"},
	// Banking
	{regexp.MustCompile(`(?i)\b(hidden|undisclosed)\s+(fees?|charges?|interest)`), "Finance charges not disclosed to the borrower", "RA 8791 General Banking Law, Sec. 40, Truth in lending"},
	{regexp.MustCompile(`(?i)\binterest\b.{0,40}\b(may change|at (our|the bank's) discretion)\b`), "Interest rate changes without notice", "RA 8791 General Banking Law, Sec. 55, Prohibited transactions"},
}

type lineResult struct {
	LineNumber       int    `json:"line_number"`
	OriginalText     string `json:"original_text"`
	Status           string `json:"status"`
	Violations       int    `json:"violations"`
	ComplianceIssue  string `json:"compliance_issue"`
	RegulatorySource string `json:"regulatory_source"`
}

// AnalyzeDocument runs the keyword detectors line by line and returns the
// legacy line-by-line JSON shape.
func AnalyzeDocument(content string) []byte {
	lines := overlay.ContentLines(content)
	out := struct {
		AnalysisResults []lineResult `json:"analysis_results"`
	}{AnalysisResults: make([]lineResult, 0, len(lines))}

	for _, line := range lines {
		text := line.Text
		r := lineResult{LineNumber: line.Number, OriginalText: text, Status: "COMPLIANT"}
		var issues []string
		for _, d := range detectors {
			if d.re.MatchString(text) {
				issues = append(issues, d.issue)
				if r.RegulatorySource == "" {
					r.RegulatorySource = d.source
				}
			}
		}
		if len(issues) > 0 {
			r.Status = "VIOLATION"
			r.Violations = len(issues)
			r.ComplianceIssue = strings.Join(issues, "; ")
		}
		out.AnalysisResults = append(out.AnalysisResults, r)
	}

	// marshal of plain strings/ints cannot fail
	b, _ := json.Marshal(out)
	return b
}

// Local is an offline analyzer.Backend backed by the keyword detectors.
type Local struct{}

func (Local) Analyze(ctx context.Context, req analyzer.Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return AnalyzeDocument(req.Content), nil
}
