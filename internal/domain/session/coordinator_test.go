package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/docguard/internal/domain/compliance"
)

func sample() []compliance.Annotation {
	return []compliance.Annotation{
		{ID: "1", ViolatedText: "Customer IDs stored indefinitely", Category: compliance.CategoryDataPrivacy,
			RegulatorySource: compliance.RegulatorySource{Law: "Data Privacy Act of 2012"}},
		{ID: "2", ViolatedText: "Cash deposits not reported", Category: compliance.CategoryAML,
			RegulatorySource: compliance.RegulatorySource{Law: "Anti-Money Laundering Act"}},
		{ID: "3", ViolatedText: "Unregistered notes offered", Category: compliance.CategorySecurities,
			RegulatorySource: compliance.RegulatorySource{Law: "Securities Regulation Code"}},
	}
}

func ids(anns []compliance.Annotation) []string {
	out := make([]string, 0, len(anns))
	for _, a := range anns {
		out = append(out, a.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	anns := sample()

	assert.Equal(t, []string{"1"}, ids(Filter(anns, "STORED")))
	assert.Equal(t, []string{"2"}, ids(Filter(anns, "aml")))
	assert.Equal(t, []string{"3"}, ids(Filter(anns, "regulation code")))
	assert.Empty(t, Filter(anns, "nothing like this"))
}

func TestFilter_EmptyQueryReturnsInputInOrder(t *testing.T) {
	anns := sample()
	assert.Equal(t, anns, Filter(anns, ""))
}

func TestFilter_QueryNotTrimmed(t *testing.T) {
	anns := sample()
	assert.Equal(t, []string{"1", "2"}, ids(Filter(anns, "ACT")))
	assert.Equal(t, []string{"1"}, ids(Filter(anns, "act ")))
	assert.Empty(t, Filter(anns, "   "))
}

func TestFilter_Idempotent(t *testing.T) {
	anns := sample()
	for _, q := range []string{"", "act", "data", "x"} {
		once := Filter(anns, q)
		assert.Equal(t, once, Filter(once, q), q)
	}
}
