package overlay

import (
	"github.com/bryanwahyu/docguard/internal/domain/compliance"
)

// Line is one line of the document. Start/End exclude the line break.
type Line struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// SplitLines breaks text on \r\n, \n and \r. Empty text has no lines; a
// trailing line break yields a final empty line.
func SplitLines(text string) []Line {
	if text == "" {
		return []Line{}
	}
	runes := []rune(text)
	var out []Line
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\n' && r != '\r' {
			continue
		}
		out = append(out, Line{Number: len(out) + 1, Text: string(runes[start:i]), Start: start, End: i})
		if r == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
			i++
		}
		start = i + 1
	}
	out = append(out, Line{Number: len(out) + 1, Text: string(runes[start:]), Start: start, End: len(runes)})
	return out
}

// ContentLines is SplitLines without the empty line a trailing line break
// leaves behind. It is the line model for counting and analysing lines.
func ContentLines(text string) []Line {
	lines := SplitLines(text)
	if n := len(lines); n > 1 && lines[n-1].Text == "" {
		lines = lines[:n-1]
	}
	return lines
}

// LineSpan returns the rune span of 1-based line number.
func LineSpan(text string, number int) (start, end int, ok bool) {
	lines := SplitLines(text)
	if number < 1 || number > len(lines) {
		return 0, 0, false
	}
	l := lines[number-1]
	return l.Start, l.End, true
}

// AnchorToLines returns copies of the annotations whose span covers their
// whole source line. Annotations pointing past the document keep their
// original span.
func AnchorToLines(text string, annotations []compliance.Annotation) []compliance.Annotation {
	lines := SplitLines(text)
	out := make([]compliance.Annotation, len(annotations))
	for i, a := range annotations {
		if a.LineNumber >= 1 && a.LineNumber <= len(lines) {
			l := lines[a.LineNumber-1]
			a.StartChar, a.EndChar = l.Start, l.End
		}
		out[i] = a
	}
	return out
}

// SectionIndex answers which section a line belongs to. Sections are
// assumed not to overlap; when they do the first one in input order wins.
type SectionIndex struct {
	sections []compliance.Section
}

func NewSectionIndex(sections []compliance.Section) *SectionIndex {
	return &SectionIndex{sections: sections}
}

// For returns the first section containing line.
func (x *SectionIndex) For(line int) (compliance.Section, bool) {
	if x == nil {
		return compliance.Section{}, false
	}
	for _, s := range x.sections {
		if s.Contains(line) {
			return s, true
		}
	}
	return compliance.Section{}, false
}

// IsStart reports whether line is where its section header chip goes.
func (x *SectionIndex) IsStart(line int) bool {
	s, ok := x.For(line)
	return ok && s.StartLine == line
}

// LineView is a line decorated for the document panel.
type LineView struct {
	Line
	Section       *compliance.Section `json:"section,omitempty"`
	SectionHeader bool                `json:"sectionHeader"`
	AnnotationIDs []string            `json:"annotationIds"`
}

// Layout builds the per-line view: section chip on the first line of each
// section and the ids of the annotations reported on that line.
func Layout(text string, sections []compliance.Section, annotations []compliance.Annotation) []LineView {
	idx := NewSectionIndex(sections)
	byLine := make(map[int][]string)
	for _, a := range annotations {
		byLine[a.LineNumber] = append(byLine[a.LineNumber], a.ID)
	}

	lines := SplitLines(text)
	out := make([]LineView, 0, len(lines))
	for _, l := range lines {
		v := LineView{Line: l, AnnotationIDs: byLine[l.Number]}
		if v.AnnotationIDs == nil {
			v.AnnotationIDs = []string{}
		}
		if s, ok := idx.For(l.Number); ok {
			sec := s
			v.Section = &sec
			v.SectionHeader = s.StartLine == l.Number
		}
		out = append(out, v)
	}
	return out
}
