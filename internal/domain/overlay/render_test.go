package overlay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/docguard/internal/domain/compliance"
)

func concat(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestRender_ExampleScenario(t *testing.T) {
	text := "Line one.\nLine two has a violation.\nLine three."
	anns := []compliance.Annotation{{ID: "v", StartChar: 10, EndChar: 35, Severity: compliance.SeverityHigh}}

	segs := Render(text, anns)
	require.Len(t, segs, 3)
	assert.Equal(t, "Line one.\n", segs[0].Text)
	assert.Nil(t, segs[0].Annotation)
	assert.Equal(t, "Line two has a violation.", segs[1].Text)
	require.NotNil(t, segs[1].Annotation)
	assert.Equal(t, "v", segs[1].Annotation.ID)
	assert.Equal(t, "\nLine three.", segs[2].Text)
	assert.Equal(t, text, concat(segs))
}

func TestRender_EmptyAndFastPath(t *testing.T) {
	assert.Empty(t, Render("", []compliance.Annotation{{ID: "a", EndChar: 3}}))

	segs := Render("abc", nil)
	require.Len(t, segs, 1)
	assert.Equal(t, "abc", segs[0].Text)
	assert.False(t, segs[0].Highlighted())
}

func TestRender_OverlapSkipped(t *testing.T) {
	text := "0123456789abcdef"
	anns := []compliance.Annotation{
		{ID: "second", StartChar: 4, EndChar: 12},
		{ID: "first", StartChar: 2, EndChar: 8},
		{ID: "after", StartChar: 12, EndChar: 14},
	}
	segs := Render(text, anns)

	assert.Equal(t, text, concat(segs))
	rendered := Rendered(segs)
	assert.True(t, rendered["first"])
	assert.False(t, rendered["second"])
	assert.True(t, rendered["after"])

	last := 0
	for _, s := range segs {
		assert.GreaterOrEqual(t, s.Start, last)
		last = s.End
	}
}

func TestRender_TieBreakKeepsDiscoveryOrder(t *testing.T) {
	// section findings all share the placeholder span
	anns := []compliance.Annotation{
		{ID: "z", StartChar: 0, EndChar: 100},
		{ID: "a", StartChar: 0, EndChar: 100},
	}
	segs := Render("short document", anns)
	require.Len(t, segs, 1)
	assert.Equal(t, "z", segs[0].Annotation.ID)
	assert.Equal(t, "short document", segs[0].Text)
}

func TestRender_ClampsAndSkipsDegenerateSpans(t *testing.T) {
	text := "héllo wörld"
	anns := []compliance.Annotation{
		{ID: "neg", StartChar: -5, EndChar: 0},
		{ID: "inv", StartChar: 6, EndChar: 3},
		{ID: "ok", StartChar: 6, EndChar: 50},
	}
	segs := Render(text, anns)
	require.Len(t, segs, 2)
	assert.Equal(t, "héllo ", segs[0].Text)
	assert.Equal(t, "wörld", segs[1].Text)
	assert.Equal(t, "ok", segs[1].Annotation.ID)
}

func TestRender_Coverage(t *testing.T) {
	text := "alpha\nbeta\ngamma\ndelta"
	sets := [][]compliance.Annotation{
		{{ID: "1", StartChar: 0, EndChar: 5}},
		{{ID: "1", StartChar: 3, EndChar: 9}, {ID: "2", StartChar: 1, EndChar: 4}, {ID: "3", StartChar: 9, EndChar: 30}},
		{{ID: "1", StartChar: 22, EndChar: 22}},
		{{ID: "1", StartChar: 0, EndChar: 100}, {ID: "2", StartChar: 0, EndChar: 100}},
	}
	for _, anns := range sets {
		assert.Equal(t, text, concat(Render(text, anns)))
	}
}
