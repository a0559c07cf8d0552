package mlclassify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, a linearArtifact) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadLinearTFIDFRejectsMismatchedDimensions(t *testing.T) {
	path := writeArtifact(t, linearArtifact{
		Vocab:   map[string]int{"bad": 0},
		IDF:     []float64{1.0, 2.0},
		Weights: []float64{0.5},
		Labels:  []string{"clean", "abusive"},
	})

	_, err := LoadLinearTFIDF(path, 0.5)
	require.Error(t, err)
}

func TestLinearTFIDFPredictsAbusiveForStrongSignal(t *testing.T) {
	path := writeArtifact(t, linearArtifact{
		Vocab:   map[string]int{"damn": 0},
		IDF:     []float64{2.0},
		Weights: []float64{10.0},
		Bias:    0,
		Labels:  []string{"clean", "abusive"},
	})

	clf, err := LoadLinearTFIDF(path, 0.5)
	require.NoError(t, err)

	result := clf.Predict(context.Background(), "damn")
	require.True(t, result.IsAbusive)
	require.Greater(t, result.Confidence, 0.5)
}

func TestLinearTFIDFPredictsCleanForNoVocabHits(t *testing.T) {
	path := writeArtifact(t, linearArtifact{
		Vocab:   map[string]int{"damn": 0},
		IDF:     []float64{2.0},
		Weights: []float64{10.0},
		Bias:    0,
		Labels:  []string{"clean", "abusive"},
	})

	clf, err := LoadLinearTFIDF(path, 0.6)
	require.NoError(t, err)

	result := clf.Predict(context.Background(), "completely unrelated text")
	require.False(t, result.IsAbusive)
	require.InDelta(t, 0.5, result.Confidence, 0.0001)
}

func TestLinearTFIDFInfo(t *testing.T) {
	path := writeArtifact(t, linearArtifact{
		Vocab:   map[string]int{"damn": 0},
		IDF:     []float64{1.0},
		Weights: []float64{1.0},
		Labels:  []string{"clean", "abusive"},
	})
	clf, err := LoadLinearTFIDF(path, 0.7)
	require.NoError(t, err)

	info := clf.Info()
	require.Equal(t, "linear-tfidf", info.ModelKind)
	require.True(t, info.Loaded)
	require.Equal(t, 0.7, info.ConfidenceThreshold)
}

func TestDisabledClassifierReturnsCleanWithError(t *testing.T) {
	clf := Disabled()
	result := clf.Predict(context.Background(), "anything")
	require.False(t, result.IsAbusive)
	require.NotEmpty(t, result.Error)
}
