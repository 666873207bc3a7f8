package randcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_LengthAndAlphabet(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 5, 20, 64} {
		code, err := Generate(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected symbol %q", r)
		}
	}
}

func TestGenerate_ExcludesAmbiguousSymbols(t *testing.T) {
	t.Parallel()

	for _, r := range "01lIoO" {
		assert.False(t, strings.ContainsRune(Alphabet, r), "ambiguous symbol %q in alphabet", r)
	}
}

func TestGenerate_InvalidLength(t *testing.T) {
	t.Parallel()

	_, err := Generate(0)
	require.Error(t, err)
}

func TestGenerator_Next(t *testing.T) {
	t.Parallel()

	g := Generator{Length: 5}
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		code, err := g.Next()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 45)
}
