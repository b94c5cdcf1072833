package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegex_Flags(t *testing.T) {
	r, err := ParseRegex("/abc/i")
	require.NoError(t, err)
	assert.True(t, r.Match("ABCdef"))
	assert.False(t, r.FullMatch("ABCdef"))
	assert.True(t, r.FullMatch("aBc"))

	r, err = ParseRegex("/a.c/s")
	require.NoError(t, err)
	assert.True(t, r.Match("a\nc"))

	r, err = ParseRegex("#a b c # comment\n#x")
	require.NoError(t, err)
	assert.True(t, r.FullMatch("abc"))

	r, err = ParseRegex("/[ ]x/xu")
	require.NoError(t, err)
	assert.True(t, r.FullMatch(" x"))
}

func TestParseRegex_Delimiter(t *testing.T) {
	r, err := ParseRegex("|a/b|")
	require.NoError(t, err)
	assert.True(t, r.FullMatch("a/b"))
	assert.Equal(t, "|a/b|", r.String())
}

func TestParseRegex_Invalid(t *testing.T) {
	for _, src := range []string{"", "/", "/abc", "/abc/q", "/(abc/"} {
		_, err := ParseRegex(src)
		assert.True(t, errors.Is(err, ErrInvalidRegex), src)
	}
}

func TestDateLayout(t *testing.T) {
	layout, err := DateLayout("%d/%m/%Y")
	require.NoError(t, err)
	assert.Equal(t, "02/01/2006", layout)

	layout, err = DateLayout("%Y-%m-%dT%H:%M:%S")
	require.NoError(t, err)
	assert.Equal(t, "2006-01-02T15:04:05", layout)

	_, err = DateLayout("%Q")
	assert.Error(t, err)
	_, err = DateLayout("%d%")
	assert.Error(t, err)
}
