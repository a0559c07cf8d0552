package wordlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadJSONBareAndObjectEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.json")
	content := `{"english": ["damn", {"surface": "heck", "meaning": "mild", "severity": 2}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	require.Len(t, doc[English], 2)
	require.Equal(t, "damn", doc[English][0].Surface)
	require.Equal(t, 0, doc[English][0].Severity)
	require.Equal(t, "heck", doc[English][1].Surface)
	require.Equal(t, 2, doc[English][1].Severity)
}

func TestLoadYAMLByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.yaml")
	content := "english:\n  - damn\n  - surface: heck\n    severity: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	require.Len(t, doc[English], 2)
}

func TestLoadSkipsBlankSurface(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.json")
	content := `{"english": ["", "damn"]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	require.Len(t, doc[English], 1)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/words.json")
	require.Error(t, err)
}

func TestIsYAMLRecognizesShortExtensions(t *testing.T) {
	require.True(t, isYAML("a.yml"))
	require.True(t, isYAML(".yml"))
	require.True(t, isYAML("words.yaml"))
	require.False(t, isYAML("words.json"))
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	doc := Document{English: []Entry{{Surface: "damn", Severity: 1}}}

	require.NoError(t, Save(path, doc))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, doc, loaded)
}
