package segment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kushagrasharma/censorly/internal/asr"
	"github.com/kushagrasharma/censorly/internal/detector"
	"github.com/kushagrasharma/censorly/internal/mlclassify"
	"github.com/kushagrasharma/censorly/internal/regexscan"
	"github.com/kushagrasharma/censorly/internal/wordlist"
)

func buildDetector(t *testing.T) *detector.Detector {
	t.Helper()
	doc := wordlist.Document{
		wordlist.English: []wordlist.Entry{{Surface: "damn", Severity: 2}},
	}
	patterns := regexscan.Build(doc)
	return detector.New(patterns, mlclassify.Disabled(), detector.PolicyRegexOnly)
}

func TestMapWordLevelPrecision(t *testing.T) {
	det := buildDetector(t)
	segments := []asr.Segment{
		{
			ID:     "seg1",
			Text:   "that is so damn cool",
			StartS: 0,
			EndS:   2,
			Words: []asr.Word{
				{Text: "that", StartS: 0, EndS: 0.3},
				{Text: "is", StartS: 0.3, EndS: 0.5},
				{Text: "so", StartS: 0.5, EndS: 0.7},
				{Text: "damn", StartS: 0.7, EndS: 1.0},
				{Text: "cool", StartS: 1.0, EndS: 1.3},
			},
		},
	}

	intervals, err := Map(context.Background(), segments, det, DefaultMapConfig(0.5, 10), "")
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	require.InDelta(t, 0.7-0.05, intervals[0].StartS, 0.0001)
	require.InDelta(t, 1.0+0.05, intervals[0].EndS, 0.0001)
	require.Equal(t, 2, intervals[0].SeverityScore)
}

func TestMapFallsBackToSegmentSpanWithoutWordTimestamps(t *testing.T) {
	det := buildDetector(t)
	segments := []asr.Segment{
		{ID: "seg1", Text: "that is so damn cool", StartS: 1.0, EndS: 3.0},
	}

	intervals, err := Map(context.Background(), segments, det, DefaultMapConfig(0.5, 10), "")
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	require.InDelta(t, 1.0-0.05, intervals[0].StartS, 0.0001)
	require.InDelta(t, 3.0+0.05, intervals[0].EndS, 0.0001)
}

func TestMapSkipsBelowThreshold(t *testing.T) {
	det := buildDetector(t)
	segments := []asr.Segment{{ID: "seg1", Text: "damn", StartS: 0, EndS: 1}}

	intervals, err := Map(context.Background(), segments, det, DefaultMapConfig(1.5, 10), "")
	require.NoError(t, err)
	require.Empty(t, intervals)
}

func TestMapMergesCloseIntervals(t *testing.T) {
	det := buildDetector(t)
	segments := []asr.Segment{
		{ID: "s1", Text: "damn", StartS: 0, EndS: 1},
		{ID: "s2", Text: "damn", StartS: 1.1, EndS: 2},
	}
	cfg := MapConfig{Threshold: 0.5, MergeGapS: 0.2, PaddingBeforeS: 0, PaddingAfterS: 0, InputDurationS: 10}

	intervals, err := Map(context.Background(), segments, det, cfg, "")
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	require.InDelta(t, 0, intervals[0].StartS, 0.0001)
	require.InDelta(t, 2, intervals[0].EndS, 0.0001)
}

func TestMapClipsPaddingToDuration(t *testing.T) {
	det := buildDetector(t)
	segments := []asr.Segment{{ID: "s1", Text: "damn", StartS: 0, EndS: 0.9}}
	cfg := MapConfig{Threshold: 0.5, MergeGapS: 0.1, PaddingBeforeS: 0.2, PaddingAfterS: 0.5, InputDurationS: 1.0}

	intervals, err := Map(context.Background(), segments, det, cfg, "")
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	require.InDelta(t, 0, intervals[0].StartS, 0.0001)
	require.InDelta(t, 1.0, intervals[0].EndS, 0.0001)
}

func TestMapEmptySegmentsProducesNoIntervals(t *testing.T) {
	det := buildDetector(t)
	intervals, err := Map(context.Background(), nil, det, DefaultMapConfig(0.5, 10), "")
	require.NoError(t, err)
	require.Empty(t, intervals)
}

func TestMapFailsUnderMLOnlyWhenClassifierUnavailable(t *testing.T) {
	doc := wordlist.Document{wordlist.English: []wordlist.Entry{{Surface: "damn", Severity: 2}}}
	det := detector.New(regexscan.Build(doc), mlclassify.Disabled(), detector.PolicyFastFirst)
	segments := []asr.Segment{{ID: "s1", Text: "that is so damn cool", StartS: 0, EndS: 1}}

	intervals, err := Map(context.Background(), segments, det, DefaultMapConfig(0.5, 10), detector.PolicyMLOnly)
	require.ErrorIs(t, err, ErrMLUnavailable)
	require.Nil(t, intervals)
}
