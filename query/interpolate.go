package query

import "strings"

// Interpolate replaces every %(key)s placeholder in text with values[key].
// %% yields a literal percent sign; any other percent sign is copied as is.
// A key missing from values returns an *IncompleteTemplateError carrying the
// key and the unmodified text.
func Interpolate(text string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '%' || i+1 >= len(text) {
			b.WriteByte(c)
			continue
		}
		switch text[i+1] {
		case '%':
			b.WriteByte('%')
			i++
		case '(':
			end := strings.IndexByte(text[i+2:], ')')
			if end < 0 || i+2+end+1 >= len(text) || text[i+2+end+1] != 's' {
				b.WriteByte(c)
				continue
			}
			key := text[i+2 : i+2+end]
			v, ok := values[key]
			if !ok {
				return "", &IncompleteTemplateError{Key: key, SQL: text}
			}
			b.WriteString(v)
			i += 2 + end + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
