package config

// Example returns a starter run: a DBF import, a pivot
// template over its distinct values and two reports.
func Example() *Config {
	header := true
	cfg := DefaultConfig()
	cfg.Overwrite = true
	cfg.Title = "monthly"
	cfg.Database = &DatabaseConfig{Path: "work/mince.db"}
	cfg.Imports = []ImportConfig{
		{
			Name:        "parcels",
			File:        "data/parcels.dbf",
			Table:       "parcels",
			TitleColumn: "source",
		},
	}
	cfg.Templates = []TemplateConfig{
		{
			Name:  "foo_types",
			Query: "SELECT DISTINCT foo FROM parcels",
			Strings: map[string]string{
				"foo_pivot_select": "{{.}}.bar AS {{.}}",
				"foo_pivot_from":   "parcels {{.}}",
				"foo_pivot_where":  "{{.}}.foo LIKE '{{.}}'",
			},
			Separators: map[string]string{"foo_pivot_where": " AND "},
		},
	}
	cfg.Queries = []QueryConfig{
		{
			Name:      "pivot",
			SQL:       "SELECT %(foo_pivot_select)s FROM %(foo_pivot_from)s WHERE %(foo_pivot_where)s",
			Templates: []string{"foo_types"},
			Output:    &OutputConfig{File: "reports/pivot.xlsx", Worksheet: "Pivot", Header: &header},
		},
		{
			Name:   "history",
			SQL:    "SELECT COUNT(*) AS parcels FROM parcels",
			Output: &OutputConfig{Database: "reports/history.db", Table: "history", Mode: "native", TitleColumn: "run"},
		},
	}
	return cfg
}
