package compliance

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// PayloadKind discriminates the response shapes the analysis backend can return.
type PayloadKind string

const (
	KindSectionAnalysis    PayloadKind = "section_analysis"
	KindLegacyLineAnalysis PayloadKind = "legacy_line_analysis"
	KindExported           PayloadKind = "exported"
	KindUnrecognized       PayloadKind = "unrecognized"
)

// SectionAnalysis is one entry of the "section_analyses" shape.
type SectionAnalysis struct {
	SectionTitle     string     `json:"section_title"`
	SectionType      string     `json:"section_type"`
	StartLine        flexInt    `json:"start_line"`
	EndLine          flexInt    `json:"end_line"`
	Status           flexString `json:"status"`
	ViolationDetails []string   `json:"violation_details"`
	RegulatoryRisk   flexString `json:"regulatory_risk"`
	BusinessImpact   flexString `json:"business_impact"`
}

// Section returns the line range of the entry.
func (s SectionAnalysis) Section() Section {
	return Section{
		Title:     s.SectionTitle,
		Type:      s.SectionType,
		StartLine: int(s.StartLine),
		EndLine:   int(s.EndLine),
		Status:    string(s.Status),
	}
}

// LineResult is one entry of the legacy "analysis_results" shape.
type LineResult struct {
	LineNumber       flexInt    `json:"line_number"`
	OriginalText     flexString `json:"original_text"`
	Status           flexString `json:"status"`
	Violations       flexInt    `json:"violations"`
	ComplianceIssue  flexString `json:"compliance_issue"`
	RegulatorySource flexString `json:"regulatory_source"`
}

// Payload is the decoded backend response. Exactly one of the slices is
// meaningful, selected by Kind.
type Payload struct {
	Kind        PayloadKind
	Sections    []SectionAnalysis
	Lines       []LineResult
	Annotations []Annotation
	// Skipped counts entries dropped because they could not be decoded.
	Skipped int
	// Status/Message are whatever the backend put in a placeholder reply.
	Status  string
	Message string
}

type envelope struct {
	SectionAnalyses json.RawMessage `json:"section_analyses"`
	AnalysisResults json.RawMessage `json:"analysis_results"`
	Annotations     json.RawMessage `json:"annotations"`
	Data            json.RawMessage `json:"data"`
	Status          flexString      `json:"status"`
	Message         flexString      `json:"message"`
}

// DecodePayload sniffs the shape exactly once and returns a tagged payload.
// It never fails: anything it cannot make sense of comes back as
// KindUnrecognized.
func DecodePayload(raw []byte) Payload {
	return decodePayload(raw, 0)
}

func decodePayload(raw []byte, depth int) Payload {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Payload{Kind: KindUnrecognized, Message: "response is not a JSON object"}
	}

	switch {
	case isArray(env.Annotations):
		p := Payload{Kind: KindExported}
		p.Annotations, p.Skipped = decodeEach[Annotation](env.Annotations)
		// exported reports carry their section ranges along
		if isArray(env.SectionAnalyses) {
			p.Sections, _ = decodeEach[SectionAnalysis](env.SectionAnalyses)
		}
		return p
	case isArray(env.SectionAnalyses):
		p := Payload{Kind: KindSectionAnalysis}
		p.Sections, p.Skipped = decodeEach[SectionAnalysis](env.SectionAnalyses)
		return p
	case isArray(env.AnalysisResults):
		p := Payload{Kind: KindLegacyLineAnalysis}
		p.Lines, p.Skipped = decodeEach[LineResult](env.AnalysisResults)
		return p
	}

	// some gateways wrap the analysis in {"data": {...}}
	if depth == 0 && isObject(env.Data) {
		if inner := decodePayload(env.Data, depth+1); inner.Kind != KindUnrecognized {
			return inner
		}
	}

	return Payload{
		Kind:    KindUnrecognized,
		Status:  string(env.Status),
		Message: string(env.Message),
	}
}

// decodeEach decodes array elements one by one so a single bad entry does
// not take the whole response down with it.
func decodeEach[T any](raw json.RawMessage) ([]T, int) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, 0
	}
	out := make([]T, 0, len(items))
	skipped := 0
	for _, it := range items {
		var v T
		if err := json.Unmarshal(it, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}

func isArray(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '['
}

func isObject(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '{'
}

// flexInt accepts numbers, numeric strings and null. Anything else is 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			*f = flexInt(i)
			return nil
		}
		if fl, err := n.Float64(); err == nil {
			*f = flexInt(int(fl))
			return nil
		}
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*f = flexInt(i)
			return nil
		}
	}
	*f = 0
	return nil
}

// flexString accepts strings, numbers, booleans and null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	t := strings.TrimSpace(string(b))
	if t == "null" || strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
		*f = ""
		return nil
	}
	*f = flexString(t)
	return nil
}
