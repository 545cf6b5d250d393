// Package overlay plans how findings are painted over free-form document
// text. Offsets are rune offsets into the whole document.
package overlay

import (
	"sort"

	"github.com/bryanwahyu/docguard/internal/domain/compliance"
)

// Segment is a contiguous run of document text, optionally tagged with the
// annotation that covers it.
type Segment struct {
	Text       string                 `json:"text"`
	Start      int                    `json:"start"`
	End        int                    `json:"end"`
	Annotation *compliance.Annotation `json:"annotation"`
}

// Highlighted reports whether the segment belongs to an annotation.
func (s Segment) Highlighted() bool { return s.Annotation != nil }

// Render walks the annotations in StartChar order and emits alternating
// plain and annotated segments. An annotation starting inside an already
// emitted span is skipped, so concatenating the segment texts always gives
// back the document.
func Render(text string, annotations []compliance.Annotation) []Segment {
	if text == "" {
		return []Segment{}
	}
	runes := []rune(text)
	n := len(runes)
	if len(annotations) == 0 {
		return []Segment{{Text: text, Start: 0, End: n}}
	}

	// stable: equal StartChar keeps discovery order
	order := make([]int, len(annotations))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return annotations[order[i]].StartChar < annotations[order[j]].StartChar
	})

	out := make([]Segment, 0, 2*len(annotations)+1)
	cursor := 0
	for _, idx := range order {
		a := &annotations[idx]
		start, end := clamp(a.StartChar, n), clamp(a.EndChar, n)
		if end <= start || start < cursor {
			continue
		}
		if start > cursor {
			out = append(out, Segment{Text: string(runes[cursor:start]), Start: cursor, End: start})
		}
		out = append(out, Segment{Text: string(runes[start:end]), Start: start, End: end, Annotation: a})
		if end > cursor {
			cursor = end
		}
	}
	if cursor < n {
		out = append(out, Segment{Text: string(runes[cursor:]), Start: cursor, End: n})
	}
	return out
}

// Rendered returns the ids of annotations that got a highlighted segment.
func Rendered(segments []Segment) map[string]bool {
	ids := make(map[string]bool)
	for _, s := range segments {
		if s.Annotation != nil {
			ids[s.Annotation.ID] = true
		}
	}
	return ids
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}
