package detector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kushagrasharma/censorly/internal/mlclassify"
	"github.com/kushagrasharma/censorly/internal/regexscan"
	"github.com/kushagrasharma/censorly/internal/wordlist"
)

type stubML struct {
	result mlclassify.Result
}

func (s stubML) Predict(ctx context.Context, text string) mlclassify.Result { return s.result }
func (s stubML) PredictBatch(ctx context.Context, texts []string) []mlclassify.Result {
	out := make([]mlclassify.Result, len(texts))
	for i := range texts {
		out[i] = s.result
	}
	return out
}
func (s stubML) Info() mlclassify.Info { return mlclassify.Info{ModelKind: "stub", Loaded: true} }

func buildPatterns(t *testing.T) *regexscan.PatternSet {
	t.Helper()
	doc := wordlist.Document{
		wordlist.English: []wordlist.Entry{{Surface: "damn", Severity: 1}},
	}
	return regexscan.Build(doc)
}

func TestClassifyFastFirstCleanTextSkipsML(t *testing.T) {
	ml := stubML{result: mlclassify.Result{IsAbusive: true, Confidence: 0.9}}
	d := New(buildPatterns(t), ml, PolicyFastFirst)

	result := d.Classify(context.Background(), "totally clean text")
	require.False(t, result.IsAbusive)
	require.False(t, result.Parts.MLChecked, "ML should never be consulted when regex finds nothing")
}

func TestClassifyFastFirstAgreement(t *testing.T) {
	ml := stubML{result: mlclassify.Result{IsAbusive: true, Confidence: 0.9}}
	d := New(buildPatterns(t), ml, PolicyFastFirst)

	result := d.Classify(context.Background(), "that is so damn cool")
	require.True(t, result.IsAbusive)
	require.Equal(t, "ensemble", result.Method)
	require.True(t, result.Parts.MLChecked)
}

func TestClassifyFastFirstDisagreementTakesML(t *testing.T) {
	ml := stubML{result: mlclassify.Result{IsAbusive: false, Confidence: 0.7}}
	d := New(buildPatterns(t), ml, PolicyFastFirst)

	result := d.Classify(context.Background(), "that is so damn cool")
	require.False(t, result.IsAbusive)
	require.InDelta(t, 0.7*0.8, result.Confidence, 0.0001)
}

func TestClassifyFastFirstMLErrorFallsBackToRegex(t *testing.T) {
	ml := stubML{result: mlclassify.Result{Error: "model not loaded"}}
	d := New(buildPatterns(t), ml, PolicyFastFirst)

	result := d.Classify(context.Background(), "that is so damn cool")
	require.True(t, result.IsAbusive)
	require.Equal(t, "regex", result.Method)
}

func TestClassifyRegexOnlyIgnoresML(t *testing.T) {
	ml := stubML{result: mlclassify.Result{IsAbusive: false}}
	d := New(buildPatterns(t), ml, PolicyRegexOnly)

	result := d.Classify(context.Background(), "that is so damn cool")
	require.True(t, result.IsAbusive)
	require.False(t, result.Parts.MLChecked)
}

func TestClassifyBothFlagsOnEitherBranch(t *testing.T) {
	ml := stubML{result: mlclassify.Result{IsAbusive: true, Confidence: 0.6}}
	d := New(buildPatterns(t), ml, PolicyBoth)

	result := d.Classify(context.Background(), "clean text but ml disagrees")
	require.True(t, result.IsAbusive)
	require.InDelta(t, 0.7*0.6, result.Confidence, 0.0001)
}

func TestClassifyBothPenalizesDisagreement(t *testing.T) {
	ml := stubML{result: mlclassify.Result{IsAbusive: false}}
	d := New(buildPatterns(t), ml, PolicyBoth)

	result := d.Classify(context.Background(), "that is so damn cool")
	require.True(t, result.IsAbusive)
	regexConf := regexConfidence(1)
	require.InDelta(t, 0.7*regexConf, result.Confidence, 0.0001)
}

func TestSetPatternsSwapsAtomically(t *testing.T) {
	d := New(buildPatterns(t), mlclassify.Disabled(), PolicyRegexOnly)
	require.False(t, d.Classify(context.Background(), "heck").IsAbusive)

	newDoc := wordlist.Document{wordlist.English: []wordlist.Entry{{Surface: "heck", Severity: 1}}}
	d.SetPatterns(regexscan.Build(newDoc))

	require.True(t, d.Classify(context.Background(), "heck").IsAbusive)
}

func TestClassifyWithPolicyOverridesDefault(t *testing.T) {
	ml := stubML{result: mlclassify.Result{IsAbusive: true, Confidence: 0.9}}
	d := New(buildPatterns(t), ml, PolicyRegexOnly)

	result := d.ClassifyWithPolicy(context.Background(), "totally clean text", PolicyMLOnly)
	require.True(t, result.IsAbusive)
	require.Equal(t, "ml", result.Method)
}

func TestClassifyMLOnlyMarksUnavailableOnClassifierError(t *testing.T) {
	d := New(buildPatterns(t), mlclassify.Disabled(), PolicyMLOnly)

	result := d.Classify(context.Background(), "anything")
	require.True(t, result.MLUnavailable)
}

func TestSnapshotTracksCalls(t *testing.T) {
	d := New(buildPatterns(t), mlclassify.Disabled(), PolicyRegexOnly)
	d.Classify(context.Background(), "damn")
	d.Classify(context.Background(), "clean")

	stats := d.Snapshot()
	require.Equal(t, int64(2), stats.TotalCalls)
	require.Equal(t, int64(2), stats.RegexCalls)
}
