package compliance

// Severity enum
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Category enum (closed set, extend di sini kalau ada regulator baru)
type Category string

const (
	CategoryAML         Category = "AML"
	CategoryDataPrivacy Category = "DataPrivacy"
	CategoryBanking     Category = "Banking"
	CategorySecurities  Category = "Securities"
)

// Status of an analysed document. Always derived from the violation count.
type Status string

const (
	StatusCompliant    Status = "COMPLIANT"
	StatusNonCompliant Status = "NON-COMPLIANT"
)

// authorities maps each category to the regulator that enforces it.
var authorities = map[Category]string{
	CategoryAML:         "BSP",
	CategoryDataPrivacy: "NPC",
	CategorySecurities:  "SEC",
	CategoryBanking:     "BSP",
}

// AuthorityFor returns the regulator for a category, BSP for anything unknown.
func AuthorityFor(c Category) string {
	if a, ok := authorities[c]; ok {
		return a
	}
	return "BSP"
}

// RegulatorySource value object
type RegulatorySource struct {
	Law         string `json:"law"`
	Section     string `json:"section"`
	Document    string `json:"document"`
	Authority   string `json:"authority"`
	DirectQuote string `json:"directQuote"`
}

// Remediation value object
type Remediation struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Benefit     string   `json:"benefit"`
}

// Annotation is a normalized finding tied to a span of the document text.
// StartChar/EndChar are rune offsets into the full text, half-open.
type Annotation struct {
	ID               string           `json:"id"`
	LineNumber       int              `json:"lineNumber"`
	StartChar        int              `json:"startChar"`
	EndChar          int              `json:"endChar"`
	Severity         Severity         `json:"severity"`
	Category         Category         `json:"category"`
	ViolatedText     string           `json:"violatedText"`
	RegulatorySource RegulatorySource `json:"regulatorySource"`
	Explanation      string           `json:"explanation"`
	Remediations     []Remediation    `json:"remediations"`
}

// Section is a backend-defined contiguous line range (inclusive).
type Section struct {
	Title     string `json:"section_title"`
	Type      string `json:"section_type"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Status    string `json:"status"`
}

// Contains reports whether line falls inside [StartLine, EndLine].
func (s Section) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}
