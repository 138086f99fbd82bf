package database

import (
	"fmt"
	"strings"
	"time"
)

// TypeCategory is the storage classification used for schema creation and
// for typing query results.
type TypeCategory int

const (
	TypeText TypeCategory = iota
	TypeInteger
	TypeReal
)

func (t TypeCategory) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	default:
		return "text"
	}
}

// ParseTypeCategory is the inverse of TypeCategory.String.
func ParseTypeCategory(s string) (TypeCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return TypeText, nil
	case "integer":
		return TypeInteger, nil
	case "real":
		return TypeReal, nil
	}
	return TypeText, &UnmappedTypeError{Token: s}
}

// TypeMap maps source-reported type tokens to storage categories.
type TypeMap map[string]TypeCategory

// Map looks up token. Tokens missing from the map are configuration errors.
func (m TypeMap) Map(token string) (TypeCategory, error) {
	t, ok := m[token]
	if !ok {
		return TypeText, &UnmappedTypeError{Token: token}
	}
	return t, nil
}

// MapAll maps every token in order, failing on the first unmapped one.
func (m TypeMap) MapAll(tokens []string) ([]TypeCategory, error) {
	types := make([]TypeCategory, len(tokens))
	for i, tok := range tokens {
		t, err := m.Map(tok)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return types, nil
}

// CategoryOf infers the category of a value returned by a driver.
// NULL, strings, blobs and timestamps are all text.
func CategoryOf(v any) TypeCategory {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, bool:
		return TypeInteger
	case float32, float64:
		return TypeReal
	case string, []byte, time.Time, nil:
		return TypeText
	}
	return TypeText
}

// IsBlank reports whether v is an empty or whitespace-only string.
func IsBlank(v any) bool {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s) == ""
	case []byte:
		return strings.TrimSpace(string(s)) == ""
	}
	return false
}

// Stringify renders a driver value the way it would print in a report.
func Stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
