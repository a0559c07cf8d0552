// Package regexscan compiles a wordlist.Document into per-language regular
// expression pattern sets and provides fast contains/find-all queries
// against normalized text.
package regexscan

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/kushagrasharma/censorly/internal/textnorm"
	"github.com/kushagrasharma/censorly/internal/wordlist"
)

// Match describes one profanity hit in a find-all query.
type Match struct {
	Surface     string
	LanguageTag wordlist.LanguageTag
	StartChar   int
	EndChar     int
	Severity    int
}

// PatternSet is an immutable, per-language collection of compiled
// alternations built from a wordlist.Document. It is safe to share
// across goroutines without locking: callers only ever read it after
// construction (see internal/detector's atomic swap on reload).
type PatternSet struct {
	patterns map[wordlist.LanguageTag]*regexp.Regexp
	severity map[string]int // surface -> max severity, used for Match.Severity
	warnings []string
}

// Warnings returns compile-time warnings (e.g. a language whose pattern
// failed to compile and was omitted).
func (p *PatternSet) Warnings() []string { return p.warnings }

const maxVariantWordLen = 24

var leetSubs = map[rune][]rune{
	'a': {'a', '@', '4'},
	'e': {'e', '3'},
	'i': {'i', '1', '!'},
	'o': {'o', '0'},
	's': {'s', '$', '5'},
	't': {'t', '7'},
	'b': {'b', '8'},
}

var separators = []string{"_", "-", "."}

// isASCIIAlpha reports whether s consists solely of ASCII letters.
func isASCIIAlpha(s string) bool {
	for _, r := range s {
		if r > unicode127 || !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return len(s) > 0
}

const unicode127 = rune(127)

// variants generates the bounded set of surface-form variations for one
// wordlist entry, per the specification's §4.2 build step.
func variants(surface string) []string {
	if surface == "" {
		return nil
	}
	lower := strings.ToLower(surface)
	set := map[string]struct{}{lower: {}}
	set[textnorm.Normalize(lower)] = struct{}{}
	set[strings.ReplaceAll(lower, " ", "")] = struct{}{}
	for _, sep := range separators {
		if strings.Contains(lower, " ") {
			set[strings.ReplaceAll(lower, " ", sep)] = struct{}{}
		}
	}
	if len(lower) <= maxVariantWordLen {
		for _, v := range leetspeakVariants(lower) {
			set[v] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for v := range set {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// leetspeakVariants substitutes at most one character of each class per
// variant, matching the spec's "leetspeak variants substituting at most
// one character of each class" rule.
func leetspeakVariants(word string) []string {
	runesIn := []rune(word)
	results := map[string]struct{}{}
	for i, r := range runesIn {
		subs, ok := leetSubs[r]
		if !ok {
			continue
		}
		for _, s := range subs {
			if s == r {
				continue
			}
			cp := make([]rune, len(runesIn))
			copy(cp, runesIn)
			cp[i] = s
			results[string(cp)] = struct{}{}
		}
	}
	out := make([]string, 0, len(results))
	for v := range results {
		out = append(out, v)
	}
	return out
}

type compiledVariant struct {
	source   string
	severity int
}

// Build constructs an immutable PatternSet from a wordlist document.
// A language whose alternation fails to compile is omitted with a
// recorded warning; the remaining languages stay usable.
func Build(doc wordlist.Document) *PatternSet {
	ps := &PatternSet{
		patterns: make(map[wordlist.LanguageTag]*regexp.Regexp, len(doc)),
		severity: make(map[string]int),
	}

	for lang, entries := range doc {
		var all []compiledVariant
		for _, e := range entries {
			for _, v := range variants(e.Surface) {
				all = append(all, compiledVariant{source: v, severity: e.Severity})
				if e.Severity > ps.severity[v] {
					ps.severity[v] = e.Severity
				}
			}
		}
		if len(all) == 0 {
			continue
		}

		sort.Slice(all, func(i, j int) bool { return len(all[i].source) > len(all[j].source) })

		seen := make(map[string]struct{}, len(all))
		parts := make([]string, 0, len(all))
		for _, v := range all {
			if _, ok := seen[v.source]; ok {
				continue
			}
			seen[v.source] = struct{}{}
			parts = append(parts, asPattern(v.source))
		}

		expr := "(?i)(?:" + strings.Join(parts, "|") + ")"
		re, err := regexp.Compile(expr)
		if err != nil {
			ps.warnings = append(ps.warnings, "language "+string(lang)+": "+err.Error())
			slog.Warn("regexscan: pattern compile failed, language disabled", "language", lang, "error", err)
			continue
		}
		ps.patterns[lang] = re
	}

	return ps
}

// asPattern escapes a surface form and adds ASCII word boundaries when the
// form begins and ends with ASCII letters; other scripts use unbounded
// matches since they have no concept of \b.
func asPattern(surface string) string {
	escaped := regexp.QuoteMeta(surface)
	if surface != "" && isASCIIAlpha(surface[:1]) && isASCIIAlpha(surface[len(surface)-1:]) {
		return `\b` + escaped + `\b`
	}
	return escaped
}

// Contains reports whether text matches any compiled language pattern
// after normalization. It short-circuits on the first match.
func (p *PatternSet) Contains(text string) bool {
	if p == nil {
		return false
	}
	normalized := textnorm.Normalize(text)
	for _, re := range p.patterns {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

// FindAll returns all non-overlapping matches across all languages, with
// leftmost-longest overlap resolution (patterns are sorted by descending
// length at build time so the regex engine's natural leftmost-first
// alternation already favors longer forms).
func (p *PatternSet) FindAll(text string) []Match {
	if p == nil {
		return nil
	}
	normalized := textnorm.Normalize(text)

	var matches []Match
	for lang, re := range p.patterns {
		for _, loc := range re.FindAllStringIndex(normalized, -1) {
			surface := normalized[loc[0]:loc[1]]
			matches = append(matches, Match{
				Surface:     surface,
				LanguageTag: lang,
				StartChar:   loc[0],
				EndChar:     loc[1],
				Severity:    p.severity[surface],
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].StartChar != matches[j].StartChar {
			return matches[i].StartChar < matches[j].StartChar
		}
		return (matches[i].EndChar - matches[i].StartChar) > (matches[j].EndChar - matches[j].StartChar)
	})

	return dedupeOverlaps(matches)
}

// dedupeOverlaps keeps the longest-earliest match when spans overlap.
func dedupeOverlaps(matches []Match) []Match {
	var out []Match
	lastEnd := -1
	for _, m := range matches {
		if m.StartChar < lastEnd {
			continue
		}
		out = append(out, m)
		lastEnd = m.EndChar
	}
	return out
}
