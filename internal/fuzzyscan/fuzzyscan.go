// Package fuzzyscan is a phonetic/fuzzy fallback for the regex scanner
// (C2): it catches profane surface forms an ASR transcript mis-hears or
// misspells, using the same two-stage Double Metaphone + Jaro-Winkler
// technique the pack's phonetic entity matcher uses for correcting
// mistranscribed proper nouns, applied here to wordlist surface forms
// instead of arbitrary entity names.
package fuzzyscan

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/kushagrasharma/censorly/internal/textnorm"
	"github.com/kushagrasharma/censorly/internal/wordlist"
)

const (
	defaultPhoneticThreshold = 0.82
	defaultFuzzyThreshold    = 0.92
)

type candidate struct {
	surface  string
	severity int
	codes    map[string]struct{}
}

// Matcher ranks a single mis-transcribed word against indexed wordlist
// surface forms. It is read-only after Build and safe for concurrent use.
type Matcher struct {
	candidates        []candidate
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// Build indexes every single-word surface form in doc. Multi-word
// surfaces are skipped: phonetic fallback only makes sense word-by-word.
func Build(doc wordlist.Document) *Matcher {
	m := &Matcher{phoneticThreshold: defaultPhoneticThreshold, fuzzyThreshold: defaultFuzzyThreshold}
	seen := make(map[string]struct{})
	for _, entries := range doc {
		for _, e := range entries {
			surface := strings.ToLower(strings.TrimSpace(e.Surface))
			if surface == "" || strings.Contains(surface, " ") {
				continue
			}
			if _, ok := seen[surface]; ok {
				continue
			}
			seen[surface] = struct{}{}

			codes := metaphoneCodes(surface)
			if len(codes) == 0 {
				continue
			}
			m.candidates = append(m.candidates, candidate{surface: surface, severity: e.Severity, codes: codes})
		}
	}
	return m
}

// Result is one fuzzy match against the wordlist.
type Result struct {
	Surface    string
	Confidence float64
	Severity   int
}

// Match tests word against the indexed wordlist, returning the
// best-scoring candidate clearing the phonetic or fuzzy threshold.
func (m *Matcher) Match(word string) (Result, bool) {
	if m == nil || len(m.candidates) == 0 {
		return Result{}, false
	}
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return Result{}, false
	}
	wordCodes := metaphoneCodes(word)

	var best Result
	var bestIsPhonetic bool
	for _, c := range m.candidates {
		score := matchr.JaroWinkler(word, c.surface, false)
		phoneticMatch := len(wordCodes) > 0 && codesOverlap(wordCodes, c.codes)

		if phoneticMatch {
			if score >= m.phoneticThreshold && (!bestIsPhonetic || score > best.Confidence) {
				best = Result{Surface: c.surface, Confidence: score, Severity: c.severity}
				bestIsPhonetic = true
			}
			continue
		}
		if !bestIsPhonetic && score >= m.fuzzyThreshold && score > best.Confidence {
			best = Result{Surface: c.surface, Confidence: score, Severity: c.severity}
		}
	}

	if best.Surface == "" {
		return Result{}, false
	}
	return best, true
}

// MatchText scans every word of text and returns the single
// highest-confidence match, if any clears threshold.
func (m *Matcher) MatchText(text string) (Result, bool) {
	normalized := textnorm.Normalize(text)
	var best Result
	var found bool
	for _, w := range strings.Fields(normalized) {
		if r, ok := m.Match(w); ok && (!found || r.Confidence > best.Confidence) {
			best, found = r, true
		}
	}
	return best, found
}

func metaphoneCodes(word string) map[string]struct{} {
	p, s := matchr.DoubleMetaphone(word)
	codes := make(map[string]struct{}, 2)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
