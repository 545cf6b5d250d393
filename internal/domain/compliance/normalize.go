package compliance

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// PlaceholderWidth is the span width given to section findings, the
// section shape carries no character offsets.
const PlaceholderWidth = 100

// Result is what the normalizer hands back to the caller.
type Result struct {
	Format      PayloadKind  `json:"format"`
	Annotations []Annotation `json:"annotations"`
	Sections    []Section    `json:"sections,omitempty"`
	Skipped     int          `json:"skipped,omitempty"`
	// Notice is set for non-fatal conditions the UI should show.
	Notice string `json:"notice,omitempty"`
}

// Recognized reports whether the payload had a shape we understand.
func (r Result) Recognized() bool { return r.Format != KindUnrecognized }

// Normalizer converts backend payloads into annotations.
type Normalizer struct {
	// NewID generates annotation ids, uuid by default.
	NewID func() string
}

// NewNormalizer returns a normalizer using random uuids.
func NewNormalizer() *Normalizer {
	return &Normalizer{NewID: uuid.NewString}
}

// Normalize decodes raw JSON and normalizes it.
func (n *Normalizer) Normalize(raw []byte) Result {
	return n.NormalizePayload(DecodePayload(raw))
}

// NormalizePayload turns a decoded payload into a canonical annotation set.
func (n *Normalizer) NormalizePayload(p Payload) Result {
	res := Result{Format: p.Kind, Skipped: p.Skipped}

	switch p.Kind {
	case KindSectionAnalysis:
		res.Annotations, res.Sections = n.fromSections(p.Sections)
	case KindLegacyLineAnalysis:
		res.Annotations = n.fromLines(p.Lines)
	case KindExported:
		res.Annotations = n.uniqueIDs(p.Annotations)
		for _, sa := range p.Sections {
			res.Sections = append(res.Sections, sa.Section())
		}
	default:
		res.Annotations = []Annotation{}
		res.Notice = unrecognizedNotice(p)
		return res
	}

	if res.Skipped > 0 {
		res.Notice = fmt.Sprintf("%d malformed entries were ignored", res.Skipped)
	}
	return res
}

func unrecognizedNotice(p Payload) string {
	msg := strings.TrimSpace(p.Message)
	st := strings.TrimSpace(p.Status)
	switch {
	case msg != "" && st != "":
		return fmt.Sprintf("unrecognized analysis format (%s): %s", st, msg)
	case msg != "":
		return "unrecognized analysis format: " + msg
	case st != "":
		return "unrecognized analysis format, backend status: " + st
	}
	return "unrecognized analysis format"
}

func (n *Normalizer) fromSections(sections []SectionAnalysis) ([]Annotation, []Section) {
	out := make([]Annotation, 0)
	secs := make([]Section, 0, len(sections))
	for _, s := range sections {
		secs = append(secs, s.Section())
		if !strings.EqualFold(strings.TrimSpace(string(s.Status)), "VIOLATION") {
			continue
		}
		sev := sectionSeverity(string(s.RegulatoryRisk) + " " + string(s.BusinessImpact))
		for _, detail := range s.ViolationDetails {
			cat := inferCategory(detail + " " + s.SectionType)
			out = append(out, Annotation{
				ID:           n.newID(),
				LineNumber:   clampLine(int(s.StartLine)),
				StartChar:    0,
				EndChar:      PlaceholderWidth,
				Severity:     sev,
				Category:     cat,
				ViolatedText: detail,
				RegulatorySource: RegulatorySource{
					Law:       lawFor(cat),
					Document:  s.SectionTitle,
					Authority: AuthorityFor(cat),
				},
				Explanation:  detail,
				Remediations: []Remediation{},
			})
		}
	}
	return out, secs
}

func (n *Normalizer) fromLines(lines []LineResult) []Annotation {
	out := make([]Annotation, 0)
	for _, l := range lines {
		if !strings.EqualFold(strings.TrimSpace(string(l.Status)), "VIOLATION") {
			continue
		}
		src := string(l.RegulatorySource)
		law, section := splitSource(src)
		cat := categoryFromSource(src)
		text := string(l.OriginalText)
		out = append(out, Annotation{
			ID:           n.newID(),
			LineNumber:   clampLine(int(l.LineNumber)),
			StartChar:    0,
			EndChar:      utf8.RuneCountInString(text),
			Severity:     lineSeverity(int(l.Violations), string(l.ComplianceIssue)),
			Category:     cat,
			ViolatedText: text,
			RegulatorySource: RegulatorySource{
				Law:       law,
				Section:   section,
				Document:  src,
				Authority: AuthorityFor(cat),
			},
			Explanation:  string(l.ComplianceIssue),
			Remediations: []Remediation{},
		})
	}
	return out
}

// uniqueIDs keeps imported ids but never lets two annotations share one.
func (n *Normalizer) uniqueIDs(in []Annotation) []Annotation {
	out := make([]Annotation, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			id = n.newID()
		}
		if seen[id] {
			base := id
			for i := 2; seen[id]; i++ {
				id = fmt.Sprintf("%s-%d", base, i)
			}
		}
		seen[id] = true
		a.ID = id
		if a.Remediations == nil {
			a.Remediations = []Remediation{}
		}
		if a.RegulatorySource.Authority == "" {
			a.RegulatorySource.Authority = AuthorityFor(a.Category)
		}
		a.LineNumber = clampLine(a.LineNumber)
		out = append(out, a)
	}
	return out
}

func (n *Normalizer) newID() string {
	if n.NewID == nil {
		return uuid.NewString()
	}
	return n.NewID()
}

func clampLine(l int) int {
	if l < 0 {
		return 0
	}
	return l
}

var (
	rxPrivacy    = regexp.MustCompile(`(?i)data privacy|privacy|personal (data|information)|data protection|data subject|\bnpc\b|10173`)
	rxAML        = regexp.MustCompile(`(?i)money[- ]laundering|\baml(a)?\b|anti-money|suspicious transaction|\bkyc\b|know your customer|9160`)
	rxSecurities = regexp.MustCompile(`(?i)securities|\bsec\b|investment contract|prospectus|8799`)
	rxLaundering = regexp.MustCompile(`(?i)money[- ]laundering|\baml(a)?\b`)
)

// inferCategory applies the precedence privacy > AML > securities > banking.
func inferCategory(text string) Category {
	switch {
	case rxPrivacy.MatchString(text):
		return CategoryDataPrivacy
	case rxAML.MatchString(text):
		return CategoryAML
	case rxSecurities.MatchString(text):
		return CategorySecurities
	default:
		return CategoryBanking
	}
}

// categoryFromSource matches the law-act identifiers quoted in a legacy
// regulatory_source string.
func categoryFromSource(src string) Category {
	s := strings.ToLower(src)
	switch {
	case strings.Contains(s, "10173") || strings.Contains(s, "data privacy"):
		return CategoryDataPrivacy
	case strings.Contains(s, "9160") || strings.Contains(s, "amla") || strings.Contains(s, "anti-money"):
		return CategoryAML
	case strings.Contains(s, "8799") || strings.Contains(s, "securities"):
		return CategorySecurities
	default:
		return CategoryBanking
	}
}

func sectionSeverity(riskAndImpact string) Severity {
	s := strings.ToLower(riskAndImpact)
	switch {
	case strings.Contains(s, "enforcement") || strings.Contains(s, "high"):
		return SeverityHigh
	case strings.Contains(s, "warning") || strings.Contains(s, "moderate"):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func lineSeverity(violations int, issue string) Severity {
	switch {
	case violations > 1 || rxLaundering.MatchString(issue):
		return SeverityHigh
	case violations == 1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// splitSource takes "Law, Section, ..." and returns the first two tokens.
func splitSource(src string) (law, section string) {
	parts := strings.SplitN(src, ",", 3)
	if len(parts) > 0 {
		law = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 {
		section = strings.TrimSpace(parts[1])
	}
	return law, section
}

var laws = map[Category]string{
	CategoryAML:         "Anti-Money Laundering Act (RA 9160)",
	CategoryDataPrivacy: "Data Privacy Act of 2012 (RA 10173)",
	CategorySecurities:  "Securities Regulation Code (RA 8799)",
	CategoryBanking:     "General Banking Law of 2000 (RA 8791)",
}

func lawFor(c Category) string { return laws[c] }
