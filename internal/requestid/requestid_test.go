package requestid

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var alnumOnly = regexp.MustCompile(`^[A-Za-z0-9]*$`)

func TestDeriveIsDeterministic(t *testing.T) {
	t.Parallel()

	a := Derive("https://example.com/page")
	b := Derive("https://example.com/page")
	assert.Equal(t, a, b)
}

func TestDeriveDiffersOnDifferentKeys(t *testing.T) {
	t.Parallel()

	a := Derive("https://example.com/page-1")
	b := Derive("https://example.com/page-2")
	assert.NotEqual(t, a, b)
}

func TestDeriveOutputIsAlphanumericAndBounded(t *testing.T) {
	t.Parallel()

	keys := []string{
		"",
		"https://example.com",
		"https://example.com/very/long/path/that/keeps/going/and/going?x=1&y=2",
	}
	for _, k := range keys {
		id := Derive(k)
		assert.LessOrEqual(t, len(id), derivedIDLength)
		assert.True(t, alnumOnly.MatchString(id), "id %q for key %q contains non-alnum chars", id, k)
	}
}
