package textnorm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeBasic(t *testing.T) {
	require.Equal(t, "f u c k", Normalize("F.U-C,K"))
	require.Equal(t, "fuack", Normalize("fu@ck"))
	require.Equal(t, "shit", Normalize("$h1t"))
}

func TestNormalizeCollapsesLongRuns(t *testing.T) {
	require.Equal(t, "fuuck", Normalize("fuuuuuck"))
}

func TestNormalizeCollapsesSeparators(t *testing.T) {
	require.Equal(t, "f u c k", Normalize("f.u.c.k"))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"F.U-C,K", "fu@ck", "$h1t", "hello world", "नमस्ते", "مرحبا"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		require.Equal(t, once, twice, "Normalize should be idempotent for %q", in)
	}
}

func TestNormalizePreservesDevanagari(t *testing.T) {
	out := Normalize("नमस्ते")
	require.NotEmpty(t, out)
	require.Contains(t, out, "न")
}

func TestNormalizeEmptyString(t *testing.T) {
	require.Equal(t, "", Normalize(""))
}
