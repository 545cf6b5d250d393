package session

import (
	"strings"

	"github.com/bryanwahyu/docguard/internal/domain/compliance"
)

// Filter keeps annotations whose violated text, category or law contains
// query, case-insensitively. The query is matched as typed, surrounding
// spaces included. An empty query returns the input as is.
func Filter(annotations []compliance.Annotation, query string) []compliance.Annotation {
	if query == "" {
		return annotations
	}
	q := strings.ToLower(query)
	out := make([]compliance.Annotation, 0, len(annotations))
	for _, a := range annotations {
		if matches(a, q) {
			out = append(out, a)
		}
	}
	return out
}

func matches(a compliance.Annotation, q string) bool {
	return strings.Contains(strings.ToLower(a.ViolatedText), q) ||
		strings.Contains(strings.ToLower(string(a.Category)), q) ||
		strings.Contains(strings.ToLower(a.RegulatorySource.Law), q)
}

// Find returns the annotation with id.
func Find(annotations []compliance.Annotation, id string) (compliance.Annotation, bool) {
	for _, a := range annotations {
		if a.ID == id {
			return a, true
		}
	}
	return compliance.Annotation{}, false
}
