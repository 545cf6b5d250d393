package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/docguard/internal/domain/compliance"
)

func TestSplitLines(t *testing.T) {
	lines := SplitLines("a\r\nbb\rccc\n")
	require.Len(t, lines, 4)
	assert.Equal(t, Line{Number: 1, Text: "a", Start: 0, End: 1}, lines[0])
	assert.Equal(t, Line{Number: 2, Text: "bb", Start: 3, End: 5}, lines[1])
	assert.Equal(t, Line{Number: 3, Text: "ccc", Start: 6, End: 9}, lines[2])
	assert.Equal(t, Line{Number: 4, Text: "", Start: 10, End: 10}, lines[3])

	assert.Empty(t, SplitLines(""))
}

func TestContentLines(t *testing.T) {
	assert.Len(t, ContentLines("a\n"), 1)
	assert.Len(t, ContentLines("a\r\nb\r\n"), 2)
	assert.Len(t, ContentLines("a\n\n"), 2)
	assert.Len(t, ContentLines("a\rb\rc"), 3)
	assert.Empty(t, ContentLines(""))
	assert.Len(t, ContentLines("\n"), 1)
}

func TestAnchorToLines(t *testing.T) {
	text := "first\nsecond line\nthird"
	anns := []compliance.Annotation{
		{ID: "a", LineNumber: 2, StartChar: 0, EndChar: 100},
		{ID: "b", LineNumber: 9, StartChar: 1, EndChar: 2},
	}
	out := AnchorToLines(text, anns)
	assert.Equal(t, 6, out[0].StartChar)
	assert.Equal(t, 17, out[0].EndChar)
	assert.Equal(t, 1, out[1].StartChar)
	// input untouched
	assert.Equal(t, 100, anns[0].EndChar)

	segs := Render(text, out)
	assert.Equal(t, "second line", segs[1].Text)
}

func TestSectionIndex_FirstMatchWins(t *testing.T) {
	idx := NewSectionIndex([]compliance.Section{
		{Title: "A", StartLine: 1, EndLine: 3},
		{Title: "B", StartLine: 3, EndLine: 5},
	})
	s, ok := idx.For(3)
	require.True(t, ok)
	assert.Equal(t, "A", s.Title)
	assert.True(t, idx.IsStart(1))
	assert.False(t, idx.IsStart(3))
	_, ok = idx.For(9)
	assert.False(t, ok)
}

func TestLayout(t *testing.T) {
	text := "one\ntwo\nthree"
	views := Layout(text,
		[]compliance.Section{{Title: "S", StartLine: 2, EndLine: 3}},
		[]compliance.Annotation{{ID: "x", LineNumber: 2}, {ID: "y", LineNumber: 2}},
	)
	require.Len(t, views, 3)
	assert.Nil(t, views[0].Section)
	assert.Empty(t, views[0].AnnotationIDs)
	assert.True(t, views[1].SectionHeader)
	assert.Equal(t, []string{"x", "y"}, views[1].AnnotationIDs)
	require.NotNil(t, views[2].Section)
	assert.False(t, views[2].SectionHeader)
}
