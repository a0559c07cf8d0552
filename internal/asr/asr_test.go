package asr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQualityForTierResolvesEachPlan(t *testing.T) {
	require.Equal(t, QualityBase, QualityForTier("free"))
	require.Equal(t, QualityMedium, QualityForTier("basic"))
	require.Equal(t, QualityLarge, QualityForTier("pro"))
	require.Equal(t, QualityLarge, QualityForTier("enterprise"))
}

func TestQualityForTierDefaultsUnknownTierToFree(t *testing.T) {
	require.Equal(t, QualityBase, QualityForTier("nonexistent"))
	require.Equal(t, QualityBase, QualityForTier(""))
}
