package template

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/query"
)

// DefaultSeparator joins fragments of keys without a configured separator.
const DefaultSeparator = ", "

// DistinctValues runs a query and renders, for every key, one fragment per
// value of the first result column, joined with the key's separator. The
// fragment templates see the value as dot.
//
//	"{{.}}.bar AS {{.}}" over values foo, baz  =>  "foo.bar AS foo, baz.bar AS baz"
type DistinctValues struct {
	name       string
	query      string
	fragments  map[string]*template.Template
	separators map[string]string
}

var _ query.TemplateProvider = (*DistinctValues)(nil)

// NewDistinctValues parses the fragment templates.
func NewDistinctValues(name, sql string, fragments, separators map[string]string) (*DistinctValues, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, fmt.Errorf("template provider '%s': query is empty", name)
	}
	d := &DistinctValues{
		name:       name,
		query:      sql,
		fragments:  make(map[string]*template.Template, len(fragments)),
		separators: separators,
	}
	for key, text := range fragments {
		tmpl, err := template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("template provider '%s': key %s: %w", name, key, err)
		}
		d.fragments[key] = tmpl
	}
	return d, nil
}

func (d *DistinctValues) Name() string { return d.name }

// Keys returns the sorted keys the provider substitutes.
func (d *DistinctValues) Keys() []string {
	keys := make([]string, 0, len(d.fragments))
	for k := range d.fragments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *DistinctValues) GetStrings(ctx context.Context, conn query.Connection) (map[string]string, error) {
	cur, err := conn.Query(ctx, d.query)
	if err != nil {
		return nil, err
	}
	rows, err := cur.All()
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			values = append(values, database.Stringify(row[0]))
		}
	}

	out := make(map[string]string, len(d.fragments))
	var sb strings.Builder
	for key, tmpl := range d.fragments {
		sep, ok := d.separators[key]
		if !ok {
			sep = DefaultSeparator
		}
		parts := make([]string, len(values))
		for i, v := range values {
			sb.Reset()
			if err := tmpl.Execute(&sb, v); err != nil {
				return nil, fmt.Errorf("template provider '%s': key %s: %w", d.name, key, err)
			}
			parts[i] = sb.String()
		}
		out[key] = strings.Join(parts, sep)
	}
	return out, nil
}
