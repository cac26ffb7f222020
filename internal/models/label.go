package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Label is a display string that is either a single value or one value per
// language tag.
type Label struct {
	Text     string
	ByLocale map[string]string
}

// TextLabel returns a single-value label.
func TextLabel(s string) Label {
	return Label{Text: s}
}

// ParseLabel converts a decoded config value (string or table) into a Label.
func ParseLabel(v interface{}) (Label, error) {
	switch t := v.(type) {
	case nil:
		return Label{}, nil
	case string:
		return Label{Text: t}, nil
	case map[string]string:
		return Label{ByLocale: t}, nil
	case map[string]interface{}:
		m := make(map[string]string, len(t))
		for k, raw := range t {
			s, ok := raw.(string)
			if !ok {
				return Label{}, fmt.Errorf("label for %q must be a string, got %T", k, raw)
			}
			m[k] = s
		}
		return Label{ByLocale: m}, nil
	default:
		return Label{}, fmt.Errorf("expected a string or a table of strings, got %T", v)
	}
}

// IsZero reports whether the label carries no value at all.
func (l Label) IsZero() bool {
	return l.Text == "" && len(l.ByLocale) == 0
}

// Resolve returns the value for lang, falling back to defaultLang.
func (l Label) Resolve(lang, defaultLang string) (string, error) {
	if l.ByLocale == nil {
		return l.Text, nil
	}
	label, ok := l.ByLocale[lang]
	if !ok || label == "" {
		label = l.ByLocale[defaultLang]
	}
	if label == "" {
		return "", fmt.Errorf("missing label for the default language %q", defaultLang)
	}
	return label, nil
}

// Locales returns the language tags of a per-locale label, sorted.
func (l Label) Locales() []string {
	keys := make([]string, 0, len(l.ByLocale))
	for k := range l.ByLocale {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes the label as a string or an object.
func (l Label) MarshalJSON() ([]byte, error) {
	if l.ByLocale != nil {
		return json.Marshal(l.ByLocale)
	}
	return json.Marshal(l.Text)
}

// UnmarshalJSON accepts a string or an object of strings.
func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = Label{Text: s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("label: %w", err)
	}
	*l = Label{ByLocale: m}
	return nil
}
