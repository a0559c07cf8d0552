// Package segment turns ASR transcript segments into a sorted, disjoint
// list of abusive intervals by running the hybrid detector over each
// segment and, where possible, each word within it.
package segment

import (
	"context"
	"errors"
	"sort"

	"github.com/kushagrasharma/censorly/internal/asr"
	"github.com/kushagrasharma/censorly/internal/detector"
	"github.com/kushagrasharma/censorly/internal/regexscan"
	"github.com/kushagrasharma/censorly/internal/textnorm"
)

// ErrMLUnavailable is returned by Map when policy is ml_only and the ML
// classifier reports itself unavailable (disabled, or failed to load):
// under ml_only there is no regex fallback, so the job must fail rather
// than silently produce a clean, uncensored result.
var ErrMLUnavailable = errors.New("ml classifier unavailable under ml_only policy")

// Interval is one censored span, per the Abusive Interval entity.
type Interval struct {
	StartS        float64
	EndS          float64
	Confidence    float64
	Method        string
	MatchedWords  []string
	SourceSegment string
	// SeverityScore is the max wordlist severity among matched surface
	// forms contributing to this interval. It is computed but not acted
	// on by any censoring decision — a future severity-weighted policy
	// hook.
	SeverityScore int
}

// MapConfig carries the job-scoped tuning knobs for the mapping algorithm.
type MapConfig struct {
	Threshold       float64
	MergeGapS       float64
	PaddingBeforeS  float64
	PaddingAfterS   float64
	InputDurationS  float64
}

// DefaultMapConfig returns the spec defaults for merge gap and padding.
func DefaultMapConfig(threshold, inputDurationS float64) MapConfig {
	return MapConfig{
		Threshold:      threshold,
		MergeGapS:      0.12,
		PaddingBeforeS: 0.05,
		PaddingAfterS:  0.05,
		InputDurationS: inputDurationS,
	}
}

// Map implements the §4.6 algorithm: classify each segment, prefer
// word-level precision when a regex hit pins the match to specific words,
// fall back to the whole segment span for ML-only decisions, then merge,
// pad, and sort. policy overrides det's configured default for this call;
// pass "" to use det's own default. Returns ErrMLUnavailable if policy is
// ml_only and the classifier is unavailable for any segment.
func Map(ctx context.Context, segments []asr.Segment, det *detector.Detector, cfg MapConfig, policy detector.Policy) ([]Interval, error) {
	var raw []Interval

	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		result := det.ClassifyWithPolicy(ctx, seg.Text, policy)
		if result.MLUnavailable {
			return nil, ErrMLUnavailable
		}
		if !result.IsAbusive || result.Confidence < cfg.Threshold {
			continue
		}

		words := wordLevelIntervals(seg, result)
		if words != nil {
			raw = append(raw, words...)
			continue
		}

		raw = append(raw, Interval{
			StartS:        seg.StartS,
			EndS:          seg.EndS,
			Confidence:    result.Confidence,
			Method:        result.Method,
			MatchedWords:  matchedSurfaces(result.Matches),
			SourceSegment: seg.ID,
			SeverityScore: maxSeverity(result.Matches),
		})
	}

	merged := merge(raw, cfg.MergeGapS)
	padded := pad(merged, cfg.PaddingBeforeS, cfg.PaddingAfterS, cfg.InputDurationS)
	sort.Slice(padded, func(i, j int) bool { return padded[i].StartS < padded[j].StartS })
	return padded, nil
}

// wordLevelIntervals emits one interval per word whose normalized form
// falls within a regex match span, provided the segment has word
// timestamps and the detector result carries at least one regex match.
// Returns nil (not just empty) when word-level precision isn't available,
// so the caller falls back to the whole-segment span.
func wordLevelIntervals(seg asr.Segment, result detector.Result) []Interval {
	if len(seg.Words) == 0 || len(result.Matches) == 0 {
		return nil
	}

	var out []Interval
	offset := 0
	normText := textnorm.Normalize(seg.Text)
	for _, w := range seg.Words {
		normWord := textnorm.Normalize(w.Text)
		idx := indexFrom(normText, normWord, offset)
		if idx < 0 {
			continue
		}
		wStart, wEnd := idx, idx+len(normWord)
		offset = wEnd

		if !overlapsAny(result.Matches, wStart, wEnd) {
			continue
		}
		out = append(out, Interval{
			StartS:        w.StartS,
			EndS:          w.EndS,
			Confidence:    result.Confidence,
			Method:        result.Method,
			MatchedWords:  []string{w.Text},
			SourceSegment: seg.ID,
			SeverityScore: maxSeverity(result.Matches),
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func indexFrom(haystack, needle string, from int) int {
	if from > len(haystack) || needle == "" {
		return -1
	}
	rel := indexString(haystack[from:], needle)
	if rel < 0 {
		return -1
	}
	return from + rel
}

func indexString(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func overlapsAny(matches []regexscan.Match, start, end int) bool {
	for _, m := range matches {
		if start < m.EndChar && end > m.StartChar {
			return true
		}
	}
	return false
}

func maxSeverity(matches []regexscan.Match) int {
	max := 0
	for _, m := range matches {
		if m.Severity > max {
			max = m.Severity
		}
	}
	return max
}

func matchedSurfaces(matches []regexscan.Match) []string {
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Surface
	}
	return out
}

// merge combines intervals that overlap or are separated by less than
// gapS, preserving the union of matched words and the max confidence.
func merge(intervals []Interval, gapS float64) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].StartS < intervals[j].StartS })

	out := []Interval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &out[len(out)-1]
		if iv.StartS <= last.EndS+gapS {
			if iv.EndS > last.EndS {
				last.EndS = iv.EndS
			}
			if iv.Confidence > last.Confidence {
				last.Confidence = iv.Confidence
			}
			if iv.SeverityScore > last.SeverityScore {
				last.SeverityScore = iv.SeverityScore
			}
			last.MatchedWords = unionWords(last.MatchedWords, iv.MatchedWords)
			continue
		}
		out = append(out, iv)
	}
	return out
}

func unionWords(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, w := range append(append([]string{}, a...), b...) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// pad expands each interval by the configured padding, clipped to
// [0, inputDurationS], then re-merges since padding can create new
// overlaps.
func pad(intervals []Interval, beforeS, afterS, inputDurationS float64) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	padded := make([]Interval, len(intervals))
	for i, iv := range intervals {
		start := iv.StartS - beforeS
		if start < 0 {
			start = 0
		}
		end := iv.EndS + afterS
		if inputDurationS > 0 && end > inputDurationS {
			end = inputDurationS
		}
		iv.StartS, iv.EndS = start, end
		padded[i] = iv
	}
	return merge(padded, 0)
}
