// Package detector implements the hybrid abuse detector (C4): an
// ensemble of the regex scanner (C2) and ML classifier (C3) under a
// configurable policy.
package detector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kushagrasharma/censorly/internal/fuzzyscan"
	"github.com/kushagrasharma/censorly/internal/mlclassify"
	"github.com/kushagrasharma/censorly/internal/regexscan"
)

// Policy names the ensemble strategy combining regex and ML verdicts.
type Policy string

const (
	PolicyRegexOnly Policy = "regex_only"
	PolicyMLOnly    Policy = "ml_only"
	PolicyFastFirst Policy = "fast_first"
	PolicyBoth      Policy = "both"
)

// Parts holds the raw per-branch results contributing to a Result.
type Parts struct {
	RegexChecked bool
	RegexHit     bool
	RegexConf    float64
	MLChecked    bool
	MLAbusive    bool
	MLConf       float64
	MLError      string
	// FuzzyChecked/FuzzyHit/FuzzyConf/FuzzySurface record the phonetic
	// fallback (see internal/fuzzyscan), consulted only when the regex
	// scanner finds nothing and a Matcher is configured via
	// SetFuzzyMatcher — it catches ASR mis-transcriptions the compiled
	// patterns can't match literally.
	FuzzyChecked bool
	FuzzyHit     bool
	FuzzyConf    float64
	FuzzySurface string
}

// Result is one ensemble decision for a single text.
type Result struct {
	IsAbusive bool
	Confidence float64
	Method    string // "regex", "ml", "ensemble", or "fuzzy"
	Parts     Parts
	TimeMs    float64
	Matches   []regexscan.Match
	// MLUnavailable is set under PolicyMLOnly when the classifier reports
	// an error (e.g. disabled or failed to load). Callers that run under
	// ml_only must treat this as a failure, not a clean verdict — see
	// internal/segment.Map.
	MLUnavailable bool
}

// Stats are running counters updated under one short critical section.
type Stats struct {
	TotalCalls        int64
	RegexCalls        int64
	MLCalls           int64
	Agreements        int64
	Disagreements     int64
	// AvgRegexTimeMs and AvgMLTimeMs are not updated by record; per-branch
	// times are not measured, so both stay zero.
	AvgRegexTimeMs    float64
	AvgMLTimeMs       float64
}

// Detector combines a regex pattern set and an ML classifier under a
// configured ensemble policy.
type Detector struct {
	patterns atomic.Pointer[regexscan.PatternSet]
	fuzzy    atomic.Pointer[fuzzyscan.Matcher]
	ml       mlclassify.Classifier
	policy   Policy

	mu    sync.Mutex
	stats Stats
}

// New creates a Detector. patterns may be swapped later via SetPatterns
// (used by the admin wordlist-reload hook); ml may be mlclassify.Disabled().
func New(patterns *regexscan.PatternSet, ml mlclassify.Classifier, policy Policy) *Detector {
	d := &Detector{ml: ml, policy: policy}
	d.patterns.Store(patterns)
	return d
}

// SetPatterns atomically swaps the compiled pattern set. Readers in
// flight continue using the old set until this call returns; new calls
// observe the new set. This implements the builder/atomic-swap design
// note: no per-language mutation after construction.
func (d *Detector) SetPatterns(patterns *regexscan.PatternSet) {
	d.patterns.Store(patterns)
}

// SetFuzzyMatcher installs (or, passed nil, disables) the phonetic
// fallback consulted when the regex scanner finds no match. Swapping is
// atomic, mirroring SetPatterns.
func (d *Detector) SetFuzzyMatcher(m *fuzzyscan.Matcher) {
	d.fuzzy.Store(m)
}

// Snapshot returns a copy of the current statistics.
func (d *Detector) Snapshot() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Classify runs the Detector's configured default ensemble policy
// against one text.
func (d *Detector) Classify(ctx context.Context, text string) Result {
	return d.ClassifyWithPolicy(ctx, text, "")
}

// ClassifyWithPolicy runs policy against one text, falling back to the
// Detector's configured default policy when policy is empty. This lets a
// caller honor a per-job ensemble policy override (see internal/segment)
// without mutating the shared Detector's own default.
func (d *Detector) ClassifyWithPolicy(ctx context.Context, text string, policy Policy) Result {
	start := time.Now()
	patterns := d.patterns.Load()
	if policy == "" {
		policy = d.policy
	}

	var result Result
	switch policy {
	case PolicyRegexOnly:
		result = d.classifyRegexOnly(patterns, text)
	case PolicyMLOnly:
		result = d.classifyMLOnly(ctx, text)
	case PolicyBoth:
		result = d.classifyBoth(ctx, patterns, text)
	default: // PolicyFastFirst
		result = d.classifyFastFirst(ctx, patterns, text)
	}

	result.TimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	d.record(result)
	return result
}

func regexConfidence(matchCount int) float64 {
	if matchCount == 0 {
		return 0
	}
	return min(1.0, 0.5+0.5*float64(matchCount))
}

func (d *Detector) classifyRegexOnly(patterns *regexscan.PatternSet, text string) Result {
	matches := patterns.FindAll(text)
	conf := regexConfidence(len(matches))
	return Result{
		IsAbusive:  len(matches) > 0,
		Confidence: conf,
		Method:     "regex",
		Matches:    matches,
		Parts:      Parts{RegexChecked: true, RegexHit: len(matches) > 0, RegexConf: conf},
	}
}

func (d *Detector) classifyMLOnly(ctx context.Context, text string) Result {
	mlRes := d.ml.Predict(ctx, text)
	return Result{
		IsAbusive:     mlRes.IsAbusive,
		Confidence:    mlRes.Confidence,
		Method:        "ml",
		MLUnavailable: mlRes.Error != "",
		Parts:         Parts{MLChecked: true, MLAbusive: mlRes.IsAbusive, MLConf: mlRes.Confidence, MLError: mlRes.Error},
	}
}

// classifyFastFirst implements spec.md §4.4's default policy: query
// regex; if it matches, confirm/refine with ML; if it doesn't, consult the
// fuzzy matcher when one is installed, and otherwise return clean without
// calling ML at all.
func (d *Detector) classifyFastFirst(ctx context.Context, patterns *regexscan.PatternSet, text string) Result {
	matches := patterns.FindAll(text)
	regexConf := regexConfidence(len(matches))
	parts := Parts{RegexChecked: true, RegexHit: len(matches) > 0, RegexConf: regexConf}

	if len(matches) == 0 {
		if fz := d.fuzzy.Load(); fz != nil {
			parts.FuzzyChecked = true
			if r, ok := fz.MatchText(text); ok {
				parts.FuzzyHit = true
				parts.FuzzyConf = r.Confidence
				parts.FuzzySurface = r.Surface
				return Result{IsAbusive: true, Confidence: r.Confidence * 0.75, Method: "fuzzy", Parts: parts}
			}
		}
		return Result{IsAbusive: false, Confidence: 0, Method: "regex", Matches: matches, Parts: parts}
	}

	mlRes := d.ml.Predict(ctx, text)
	parts.MLChecked = true
	parts.MLAbusive = mlRes.IsAbusive
	parts.MLConf = mlRes.Confidence
	parts.MLError = mlRes.Error

	if mlRes.Error != "" {
		// ML unavailable: fall back to regex-only, per §4.3's "ensemble
		// falls back to regex-only" and the monotonicity invariant (§8.5).
		return Result{IsAbusive: true, Confidence: regexConf, Method: "regex", Matches: matches, Parts: parts}
	}

	if mlRes.IsAbusive {
		return Result{
			IsAbusive:  true,
			Confidence: (regexConf + mlRes.Confidence) / 2,
			Method:     "ensemble",
			Matches:    matches,
			Parts:      parts,
		}
	}

	// Disagreement: regex said abusive, ML said clean. Take ML's
	// decision with a disagreement penalty.
	return Result{
		IsAbusive:  false,
		Confidence: mlRes.Confidence * 0.8,
		Method:     "ensemble",
		Matches:    matches,
		Parts:      parts,
	}
}

// classifyBoth implements spec.md §4.4's "both" policy: always query
// both; abusive iff either flags; confidence is max on agreement, or
// 0.7*max when only one branch flags.
func (d *Detector) classifyBoth(ctx context.Context, patterns *regexscan.PatternSet, text string) Result {
	matches := patterns.FindAll(text)
	regexHit := len(matches) > 0
	regexConf := regexConfidence(len(matches))

	mlRes := d.ml.Predict(ctx, text)

	mlConsulted := mlRes.Error == ""
	parts := Parts{
		RegexChecked: true, RegexHit: regexHit, RegexConf: regexConf,
		MLChecked: true, MLAbusive: mlRes.IsAbusive, MLConf: mlRes.Confidence, MLError: mlRes.Error,
	}

	if !mlConsulted {
		// ML unavailable: fall back to regex-only.
		return Result{IsAbusive: regexHit, Confidence: regexConf, Method: "regex", Matches: matches, Parts: parts}
	}

	isAbusive := regexHit || mlRes.IsAbusive
	if !isAbusive {
		return Result{IsAbusive: false, Confidence: 0, Method: "ensemble", Matches: matches, Parts: parts}
	}

	maxConf := max(regexConf, mlRes.Confidence)
	confidence := maxConf
	if regexHit != mlRes.IsAbusive {
		confidence = 0.7 * maxConf
	}

	return Result{IsAbusive: true, Confidence: confidence, Method: "ensemble", Matches: matches, Parts: parts}
}

func (d *Detector) record(r Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.TotalCalls++
	if r.Parts.RegexChecked {
		d.stats.RegexCalls++
	}
	if r.Parts.MLChecked {
		d.stats.MLCalls++
		if r.Parts.RegexChecked {
			if r.Parts.RegexHit == r.Parts.MLAbusive {
				d.stats.Agreements++
			} else {
				d.stats.Disagreements++
			}
		}
	}
}
