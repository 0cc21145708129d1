// Package locale handles localized display fields: values stored either as a
// plain string or as a locale→string mapping, resolved to a single display
// string at read time.
package locale

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Default is the fallback locale for unsupported or missing requests.
const Default = "en"

// supported is the set of locales the product ships translations for.
var supported = []string{"en", "fr"}

// Supported returns the supported locale codes.
func Supported() []string {
	return append([]string(nil), supported...)
}

// IsSupported reports whether code is a supported locale.
func IsSupported(code string) bool {
	for _, l := range supported {
		if l == code {
			return true
		}
	}
	return false
}

// Normalize maps a raw locale indicator (query param or Accept-Language
// value) to a supported locale, defaulting to English. "fr-CA" and "fr;q=0.9"
// both normalize to "fr".
func Normalize(raw string) string {
	code := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(code, ",;"); i >= 0 {
		code = code[:i]
	}
	if i := strings.Index(code, "-"); i >= 0 {
		code = code[:i]
	}
	if IsSupported(code) {
		return code
	}
	return Default
}

// Field is a localized field as stored in the database: either a plain
// string or a JSON object mapping locale codes to strings.
type Field struct {
	Plain    string
	ByLocale map[string]string
}

// NewField creates a Field holding content under a single locale.
func NewField(content, loc string) Field {
	return Field{ByLocale: map[string]string{loc: content}}
}

// IsZero reports whether the field holds no content at all.
func (f Field) IsZero() bool {
	return f.Plain == "" && len(f.ByLocale) == 0
}

// Resolve returns the display string for the requested locale.
// Fallback order: requested locale → English → first non-empty value → "".
// User-owned content is not translated; the first non-empty value wins.
func (f Field) Resolve(loc string, userContent bool) string {
	if f.Plain != "" {
		return f.Plain
	}
	if len(f.ByLocale) == 0 {
		return ""
	}

	if userContent {
		return f.firstNonEmpty()
	}

	if v := f.ByLocale[loc]; v != "" {
		return v
	}
	if v := f.ByLocale[Default]; v != "" {
		return v
	}
	return f.firstNonEmpty()
}

// firstNonEmpty returns a deterministic first value: the lexically smallest
// locale key with non-empty content. Map iteration order must not leak into
// responses.
func (f Field) firstNonEmpty() string {
	best := ""
	for key, v := range f.ByLocale {
		if v == "" {
			continue
		}
		if best == "" || key < best {
			best = key
		}
	}
	if best == "" {
		return ""
	}
	return f.ByLocale[best]
}

// UnmarshalJSON accepts either a JSON string or a locale→string object.
func (f *Field) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = Field{Plain: s}
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("locale field: expected string or object: %w", err)
	}
	*f = Field{ByLocale: m}
	return nil
}

// MarshalJSON writes the plain form when set, otherwise the object form.
func (f Field) MarshalJSON() ([]byte, error) {
	if f.Plain != "" {
		return json.Marshal(f.Plain)
	}
	if f.ByLocale == nil {
		return []byte("null"), nil
	}
	return json.Marshal(f.ByLocale)
}

// Scan implements sql.Scanner so Field can back a jsonb column.
func (f *Field) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = Field{}
		return nil
	case []byte:
		if len(v) == 0 {
			*f = Field{}
			return nil
		}
		return f.UnmarshalJSON(v)
	case string:
		if v == "" {
			*f = Field{}
			return nil
		}
		return f.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("locale field: unsupported type %T", src)
	}
}

// Value implements driver.Valuer.
func (f Field) Value() (driver.Value, error) {
	if f.IsZero() {
		return nil, nil
	}
	data, err := f.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
