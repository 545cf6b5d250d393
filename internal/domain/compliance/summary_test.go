package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sum[K comparable](m map[K]int) int {
	t := 0
	for _, v := range m {
		t += v
	}
	return t
}

func TestSummarize_Consistency(t *testing.T) {
	anns := []Annotation{
		{ID: "1", LineNumber: 2, Severity: SeverityHigh, Category: CategoryAML, RegulatorySource: RegulatorySource{Authority: "BSP"}},
		{ID: "2", LineNumber: 2, Severity: SeverityLow, Category: CategoryDataPrivacy, RegulatorySource: RegulatorySource{Authority: "NPC"}},
		{ID: "3", LineNumber: 5, Severity: SeverityMedium, Category: CategorySecurities},
		{ID: "4", LineNumber: 7},
	}
	s := Summarize(anns, 10)

	assert.Equal(t, 4, s.TotalViolations)
	assert.Equal(t, s.TotalViolations, sum(s.SeverityDistribution))
	assert.Equal(t, s.TotalViolations, sum(s.ViolationsByCategory))
	assert.Equal(t, s.TotalViolations, sum(s.ViolationsByAuthority))
	assert.Equal(t, StatusNonCompliant, s.Status)
	assert.Equal(t, 2, s.ViolationsByAuthority["BSP"])
	assert.Equal(t, 1, s.ViolationsByAuthority["SEC"])
	assert.Equal(t, 1, s.ViolationsByCategory[CategoryBanking])
	assert.Equal(t, 70, s.ComplianceScore)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 3)
	assert.Equal(t, 0, s.TotalViolations)
	assert.Equal(t, StatusCompliant, s.Status)
	assert.Equal(t, 100, s.ComplianceScore)
	assert.Equal(t, 3, s.LinesAnalyzed)
}

func TestSummarize_ExampleScenario(t *testing.T) {
	anns := []Annotation{{ID: "v", LineNumber: 2, StartChar: 10, EndChar: 35, Severity: SeverityHigh}}
	s := Summarize(anns, 3)
	assert.Equal(t, 1, s.TotalViolations)
	assert.Equal(t, map[Severity]int{SeverityHigh: 1}, s.SeverityDistribution)
	assert.Equal(t, StatusNonCompliant, s.Status)
	assert.Equal(t, 66, s.ComplianceScore)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusCompliant, StatusFor(0))
	assert.Equal(t, StatusNonCompliant, StatusFor(1))
}
