// Package textnorm canonicalizes text for profanity matching: case,
// diacritics, leetspeak substitution, run collapsing, and separator
// normalization. Devanagari and Arabic/Urdu letters are exempt from
// separator replacement; their nonspacing marks (Devanagari vowel signs
// and virama, Arabic harakat) are stripped along with all other
// combining marks.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// confusables maps common obfuscation characters to the letter they stand in for.
var confusables = map[rune]rune{
	'@': 'a', '$': 's', '0': 'o', '1': 'i', '3': 'e',
	'4': 'a', '5': 's', '7': 't', '8': 'b', '!': 'i',
}

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes s for matching. It is a total function with no
// failure conditions and is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(s string) string {
	lowered := strings.ToLower(s)

	decomposed, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		decomposed = lowered
	}

	substituted := substitute(decomposed)
	collapsed := collapseRuns(substituted)
	spaced := spaceNonWord(collapsed)
	return collapseSpaces(spaced)
}

func substitute(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := confusables[r]; ok {
			b.WriteRune(repl)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// collapseRuns reduces runs of the same rune longer than 2 to length 2,
// e.g. "fuuuck" -> "fuuck".
func collapseRuns(s string) string {
	runesIn := []rune(s)
	if len(runesIn) == 0 {
		return s
	}
	out := make([]rune, 0, len(runesIn))
	run := 1
	for i := 0; i < len(runesIn); i++ {
		if i > 0 && runesIn[i] == runesIn[i-1] {
			run++
		} else {
			run = 1
		}
		if run <= 2 {
			out = append(out, runesIn[i])
		}
	}
	return string(out)
}

// keepScript reports whether r belongs to a script whose word boundaries
// must not be mangled by non-alphanumeric replacement: Devanagari or
// Arabic/Urdu.
func keepScript(r rune) bool {
	return unicode.Is(unicode.Devanagari, r) || unicode.Is(unicode.Arabic, r)
}

func spaceNonWord(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || keepScript(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}
	return b.String()
}

func collapseSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
