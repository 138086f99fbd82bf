package database

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var disallowed = regexp.MustCompile(`[^0-9a-zA-Z*\-()']+`)

// CleanColumnNames makes raw headers usable as column names: every run of
// characters outside [0-9a-zA-Z*-()'] collapses to one underscore. Names
// that then collide, ignoring case, get a numeric suffix: a_b, a_b_2.
func CleanColumnNames(raw []string) []string {
	clean := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, name := range raw {
		name = disallowed.ReplaceAllString(name, "_")
		candidate := name
		for n := 2; seen[strings.ToLower(candidate)]; n++ {
			candidate = name + "_" + strconv.Itoa(n)
		}
		seen[strings.ToLower(candidate)] = true
		clean[i] = candidate
	}
	return clean
}

// trimStatement drops trailing semicolons so the query can be nested.
func trimStatement(query string) string {
	return strings.TrimRight(strings.TrimSpace(query), "; \t\r\n")
}

// GenCreateTableSQL generates a CREATE TABLE statement for the dialect.
func (d *Dialect) GenCreateTableSQL(table string, columns []string, types []TypeCategory) string {
	var builder strings.Builder
	builder.Grow(len(table) + len(columns)*20)

	builder.WriteString("CREATE TABLE ")
	builder.WriteString(d.Quote(table))
	builder.WriteString(" (")
	for i, name := range columns {
		t := TypeText
		if i < len(types) {
			t = types[i]
		}
		builder.WriteString(d.Quote(name))
		builder.WriteByte(' ')
		builder.WriteString(d.StorageType(t))
		if i < len(columns)-1 {
			builder.WriteString(", ")
		}
	}
	builder.WriteByte(')')
	return builder.String()
}

// GenInsertSQL generates a positional-parameter INSERT statement.
func (d *Dialect) GenInsertSQL(table string, columns []string) (string, error) {
	if table == "" || len(columns) == 0 {
		return "", fmt.Errorf("table name and fields are required")
	}
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = d.Quote(col)
		placeholders[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table),
		strings.Join(quoted, ","),
		strings.Join(placeholders, ","),
	), nil
}

// GenDropTableSQL generates a DROP TABLE statement.
func (d *Dialect) GenDropTableSQL(table string) string {
	return "DROP TABLE " + d.Quote(table)
}
