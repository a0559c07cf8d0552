package fuzzyscan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kushagrasharma/censorly/internal/wordlist"
)

func testDoc() wordlist.Document {
	return wordlist.Document{
		wordlist.English: []wordlist.Entry{
			{Surface: "shit", Severity: 2},
			{Surface: "damn", Severity: 1},
		},
	}
}

func TestMatchPhoneticallySimilarWord(t *testing.T) {
	m := Build(testDoc())
	result, ok := m.Match("sheet")
	require.True(t, ok)
	require.Equal(t, "shit", result.Surface)
}

func TestMatchRejectsUnrelatedWord(t *testing.T) {
	m := Build(testDoc())
	_, ok := m.Match("banana")
	require.False(t, ok)
}

func TestMatchTextScansWords(t *testing.T) {
	m := Build(testDoc())
	result, ok := m.MatchText("that was a real sheet show")
	require.True(t, ok)
	require.Equal(t, "shit", result.Surface)
}

func TestMatchSkipsMultiWordSurfaces(t *testing.T) {
	doc := wordlist.Document{
		wordlist.English: []wordlist.Entry{{Surface: "son of a gun", Severity: 1}},
	}
	m := Build(doc)
	require.Empty(t, m.candidates)
}

func TestNilMatcherIsSafe(t *testing.T) {
	var m *Matcher
	_, ok := m.Match("anything")
	require.False(t, ok)
}

func TestMatchEmptyWord(t *testing.T) {
	m := Build(testDoc())
	_, ok := m.Match("")
	require.False(t, ok)
}
