// Package market defines the marketplace entities, the typed REST resources
// that fetch and mutate them, and the browse view-mode state machine.
package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Supported content languages. English is the fallback.
var supportedTags = []language.Tag{language.English, language.Arabic}

var languageMatcher = language.NewMatcher(supportedTags)

// LocalizedText is a user-visible string the server sends either already
// resolved (a plain JSON string) or as a per-language object such as
// {"en": "Steel", "ar": "فولاذ"}.
type LocalizedText struct {
	plain  string
	values map[string]string
}

// Plain returns text the server has already resolved to one language.
func Plain(s string) LocalizedText {
	return LocalizedText{plain: s}
}

// Localized returns text carrying both languages.
func Localized(en, ar string) LocalizedText {
	values := make(map[string]string, 2)
	if en != "" {
		values["en"] = en
	}
	if ar != "" {
		values["ar"] = ar
	}
	return LocalizedText{values: values}
}

// IsZero reports whether no text is present in any language.
func (t LocalizedText) IsZero() bool {
	if t.plain != "" {
		return false
	}
	for _, v := range t.values {
		if v != "" {
			return false
		}
	}
	return true
}

// IsLocalized reports whether the text carries per-language values.
func (t LocalizedText) IsLocalized() bool {
	return len(t.values) > 0
}

// Get returns the value for one language code without fallback.
func (t LocalizedText) Get(lang string) string {
	if t.values == nil {
		return ""
	}
	return t.values[lang]
}

// Resolve picks the best value for tag. Per-language values are matched
// with English as the fallback; plain text is returned as is.
func (t LocalizedText) Resolve(tag language.Tag) string {
	if len(t.values) == 0 {
		return t.plain
	}
	_, idx, conf := languageMatcher.Match(tag)
	if conf != language.No {
		base, _ := supportedTags[idx].Base()
		if v := t.values[base.String()]; v != "" {
			return v
		}
	}
	if v := t.values["en"]; v != "" {
		return v
	}
	if t.plain != "" {
		return t.plain
	}
	// Unknown language keys only: stable pick.
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if t.values[k] != "" {
			return t.values[k]
		}
	}
	return ""
}

// In resolves the text for a language code such as "ar" or "en-GB".
func (t LocalizedText) In(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return t.Resolve(tag)
}

// String resolves to English.
func (t LocalizedText) String() string {
	return t.Resolve(language.English)
}

// UnmarshalJSON accepts a string, a per-language object, or null.
func (t *LocalizedText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = LocalizedText{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Plain(s)
		return nil
	case b[0] == '{':
		var raw map[string]any
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		values := make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				values[strings.ToLower(k)] = s
			}
		}
		*t = LocalizedText{values: values}
		return nil
	default:
		return fmt.Errorf("localized text: unexpected JSON %s", truncate(b))
	}
}

// MarshalJSON writes the per-language object when present, else a string.
func (t LocalizedText) MarshalJSON() ([]byte, error) {
	if len(t.values) > 0 {
		return json.Marshal(t.values)
	}
	return json.Marshal(t.plain)
}

// ID is an entity identifier. The server sends numeric ids on some
// resources and string ids on others; both decode to the same form.
type ID string

func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(b []byte) error {
	parsed, err := parseID(b)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseID(b []byte) (ID, error) {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return "", nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return ID(s), nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return "", fmt.Errorf("id: unexpected JSON %s", truncate(b))
		}
		if i, err := n.Int64(); err == nil {
			return ID(strconv.FormatInt(i, 10)), nil
		}
		return ID(n.String()), nil
	}
}

func truncate(b []byte) string {
	const maxLen = 40
	if len(b) > maxLen {
		return string(b[:maxLen]) + "..."
	}
	return string(b)
}
