package regexscan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kushagrasharma/censorly/internal/wordlist"
)

func testDoc() wordlist.Document {
	return wordlist.Document{
		wordlist.English: []wordlist.Entry{
			{Surface: "damn", Severity: 1},
			{Surface: "heck", Severity: 2},
		},
	}
}

func TestBuildAndContains(t *testing.T) {
	ps := Build(testDoc())
	require.Empty(t, ps.Warnings())

	require.True(t, ps.Contains("that is so damn cool"))
	require.False(t, ps.Contains("this text is clean"))
}

func TestContainsMatchesLeetspeakVariant(t *testing.T) {
	ps := Build(testDoc())
	require.True(t, ps.Contains("d4mn it"))
}

func TestFindAllReportsSeverity(t *testing.T) {
	ps := Build(testDoc())
	matches := ps.FindAll("damn and heck")
	require.Len(t, matches, 2)
	require.Equal(t, 1, matches[0].Severity)
	require.Equal(t, 2, matches[1].Severity)
}

func TestFindAllDedupesOverlaps(t *testing.T) {
	doc := wordlist.Document{
		wordlist.English: []wordlist.Entry{
			{Surface: "dam", Severity: 1},
			{Surface: "damn", Severity: 3},
		},
	}
	ps := Build(doc)
	matches := ps.FindAll("damn")
	require.Len(t, matches, 1)
	require.Equal(t, "damn", matches[0].Surface)
}

func TestNilPatternSetIsSafe(t *testing.T) {
	var ps *PatternSet
	require.False(t, ps.Contains("anything"))
	require.Nil(t, ps.FindAll("anything"))
}

func TestBuildSkipsEmptyLanguage(t *testing.T) {
	doc := wordlist.Document{wordlist.Hindi: []wordlist.Entry{}}
	ps := Build(doc)
	require.False(t, ps.Contains("whatever"))
}
