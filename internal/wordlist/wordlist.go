// Package wordlist loads the versioned, language-partitioned profanity
// wordlist document consumed by the regex scanner (internal/regexscan).
package wordlist

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LanguageTag identifies one of the supported wordlist languages.
type LanguageTag string

const (
	English        LanguageTag = "english"
	Hindi          LanguageTag = "hindi"
	Hinglish       LanguageTag = "hinglish"
	HindiDevanagari LanguageTag = "hindi-devanagari"
	HindiUrduScript LanguageTag = "hindi-urdu-script"
)

// Entry is one profane surface form.
type Entry struct {
	Surface  string `json:"surface" yaml:"surface"`
	Meaning  string `json:"meaning,omitempty" yaml:"meaning,omitempty"`
	Severity int    `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// rawEntry accepts either a bare string surface or an object form, per §6
// of the specification ("a bare surface string or an object").
type rawEntry struct {
	Surface  string
	Meaning  string
	Severity int
}

func (e *rawEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Surface = s
		return nil
	}
	var obj struct {
		Surface  string `json:"surface"`
		Meaning  string `json:"meaning"`
		Severity int    `json:"severity"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Surface, e.Meaning, e.Severity = obj.Surface, obj.Meaning, obj.Severity
	return nil
}

func (e *rawEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&e.Surface)
	}
	var obj struct {
		Surface  string `yaml:"surface"`
		Meaning  string `yaml:"meaning"`
		Severity int    `yaml:"severity"`
	}
	if err := node.Decode(&obj); err != nil {
		return err
	}
	e.Surface, e.Meaning, e.Severity = obj.Surface, obj.Meaning, obj.Severity
	return nil
}

// Document is the versioned wordlist: a mapping of language tag to entries.
type Document map[LanguageTag][]Entry

// Load reads a wordlist document from path, detecting JSON vs. YAML by
// extension. Load failures at process startup are fatal per the
// propagation policy; callers decide whether to treat an error as fatal.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wordlist %s: %w", path, err)
	}

	raw := map[LanguageTag][]rawEntry{}
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse wordlist yaml: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse wordlist json: %w", err)
		}
	}

	doc := make(Document, len(raw))
	for lang, entries := range raw {
		converted := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if e.Surface == "" {
				continue
			}
			converted = append(converted, Entry{Surface: e.Surface, Meaning: e.Meaning, Severity: e.Severity})
		}
		doc[lang] = converted
	}
	return doc, nil
}

func isYAML(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// Save persists doc back to path as JSON. The admin reload endpoint only
// reads the file; nothing in the daemon calls Save.
func Save(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wordlist: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write wordlist %s: %w", path, err)
	}
	return nil
}
