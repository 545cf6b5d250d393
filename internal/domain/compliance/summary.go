package compliance

// AnalysisSummary aggregates an annotation set. Every count map sums to
// TotalViolations.
type AnalysisSummary struct {
	ComplianceScore       int              `json:"complianceScore"`
	TotalViolations       int              `json:"totalViolations"`
	LinesAnalyzed         int              `json:"linesAnalyzed"`
	ViolationsByCategory  map[Category]int `json:"violationsByCategory"`
	ViolationsByAuthority map[string]int   `json:"violationsByAuthority"`
	SeverityDistribution  map[Severity]int `json:"severityDistribution"`
	Status                Status           `json:"status"`
}

// StatusFor is the only place document status is derived.
func StatusFor(totalViolations int) Status {
	if totalViolations == 0 {
		return StatusCompliant
	}
	return StatusNonCompliant
}

// Summarize builds the summary for a set of annotations over a document of
// linesAnalyzed lines.
func Summarize(annotations []Annotation, linesAnalyzed int) AnalysisSummary {
	if linesAnalyzed < 0 {
		linesAnalyzed = 0
	}
	s := AnalysisSummary{
		TotalViolations:       len(annotations),
		LinesAnalyzed:         linesAnalyzed,
		ViolationsByCategory:  make(map[Category]int),
		ViolationsByAuthority: make(map[string]int),
		SeverityDistribution:  make(map[Severity]int),
	}

	violating := make(map[int]bool)
	for _, a := range annotations {
		cat := a.Category
		if cat == "" {
			cat = CategoryBanking
		}
		auth := a.RegulatorySource.Authority
		if auth == "" {
			auth = AuthorityFor(cat)
		}
		sev := a.Severity
		if sev == "" {
			sev = SeverityLow
		}
		s.ViolationsByCategory[cat]++
		s.ViolationsByAuthority[auth]++
		s.SeverityDistribution[sev]++
		violating[a.LineNumber] = true
	}

	s.ComplianceScore = score(len(violating), linesAnalyzed, len(annotations))
	s.Status = StatusFor(s.TotalViolations)
	return s
}

// score is the share of lines without a finding, 0..100.
func score(violatingLines, linesAnalyzed, total int) int {
	if total == 0 {
		return 100
	}
	if linesAnalyzed <= 0 || violatingLines >= linesAnalyzed {
		return 0
	}
	return 100 - (violatingLines*100+linesAnalyzed-1)/linesAnalyzed
}
