// Package config loads run files. A run file is HCL; string values may read
// the process environment through the env object, e.g. dsn = env.SALES_DSN.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/darianmavgo/mince/database"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Config represents one run: the working database, the data imported into
// it and the queries reported from it.
type Config struct {
	BatchSize int    `hcl:"batch_size,optional"`
	Overwrite bool   `hcl:"overwrite,optional"`
	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`
	Title     string `hcl:"title,optional"`

	Database  *DatabaseConfig  `hcl:"database,block"`
	Sources   []SourceConfig   `hcl:"source,block"`
	Imports   []ImportConfig   `hcl:"import,block"`
	Templates []TemplateConfig `hcl:"template,block"`
	Queries   []QueryConfig    `hcl:"query,block"`
	Metrics   *MetricsConfig   `hcl:"metrics,block"`
}

// DatabaseConfig is the working store.
type DatabaseConfig struct {
	Path   string `hcl:"path"`
	Engine string `hcl:"engine,optional"`
}

// SourceConfig is an additional store that SQL imports can read from.
type SourceConfig struct {
	Name   string `hcl:"name,label"`
	Engine string `hcl:"engine,optional"`
	DSN    string `hcl:"dsn"`
}

// ImportConfig loads a file, or the result of a query against a source, into
// a table of the working store.
type ImportConfig struct {
	Name        string   `hcl:"name,label"`
	File        string   `hcl:"file,optional"`
	Source      string   `hcl:"source,optional"`
	Query       string   `hcl:"query,optional"`
	Table       string   `hcl:"table,optional"`
	TitleColumn string   `hcl:"title_column,optional"`
	Encoding    string   `hcl:"encoding,optional"`
	Delimiter   string   `hcl:"delimiter,optional"`
	Sheet       string   `hcl:"sheet,optional"`
	NullValues  []string `hcl:"null_values,optional"`
	DBNull      *string  `hcl:"db_null,optional"`
}

// TemplateConfig defines a distinct-values template provider.
type TemplateConfig struct {
	Name       string            `hcl:"name,label"`
	Query      string            `hcl:"query"`
	Strings    map[string]string `hcl:"strings"`
	Separators map[string]string `hcl:"separators,optional"`
}

// QueryConfig is a report query.
type QueryConfig struct {
	Name      string        `hcl:"name,label"`
	SQL       string        `hcl:"sql"`
	Params    []string      `hcl:"params,optional"`
	Templates []string      `hcl:"templates,optional"`
	Output    *OutputConfig `hcl:"output,block"`
}

// OutputConfig is where a query's result goes: a file, or a table of a
// database.
type OutputConfig struct {
	File        string `hcl:"file,optional"`
	Database    string `hcl:"database,optional"`
	Engine      string `hcl:"engine,optional"`
	Table       string `hcl:"table,optional"`
	Mode        string `hcl:"mode,optional"`
	TitleColumn string `hcl:"title_column,optional"`
	Worksheet   string `hcl:"worksheet,optional"`
	Cell        string `hcl:"cell,optional"`
	Header      *bool  `hcl:"header,optional"`
	Template    string `hcl:"template,optional"`
}

// WantHeader reports whether a header row is written; the default is yes.
func (o *OutputConfig) WantHeader() bool {
	return o.Header == nil || *o.Header
}

// MetricsConfig enables pushing run metrics to a Prometheus Pushgateway.
type MetricsConfig struct {
	Pushgateway string `hcl:"pushgateway,optional"`
	Job         string `hcl:"job,optional"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize: database.DefaultBatchSize,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the configuration from the given HCL file.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(content, path)
}

// Parse decodes HCL content; filename is used in diagnostics.
func Parse(content []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(content, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file: %s", diags.Error())
	}

	cfg := DefaultConfig()
	diags = gohcl.DecodeBody(file.Body, EvalContext(), cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config: %s", diags.Error())
	}

	return cfg, nil
}

// EvalContext exposes the process environment as the env object.
func EvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !hclIdent(name) {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

func hclIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}

// Validate checks the references and required settings of the run.
func (c *Config) Validate() error {
	var errs []error
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.Database == nil || c.Database.Path == "" {
		errs = append(errs, errors.New("database block with a path is required"))
	}

	sources := make(map[string]bool)
	for _, s := range c.Sources {
		if sources[s.Name] {
			errs = append(errs, fmt.Errorf("source %q defined twice", s.Name))
		}
		sources[s.Name] = true
	}

	imports := make(map[string]bool)
	for _, imp := range c.Imports {
		if imports[imp.Name] {
			errs = append(errs, fmt.Errorf("import %q defined twice", imp.Name))
		}
		imports[imp.Name] = true
		switch {
		case imp.File != "" && imp.Query != "":
			errs = append(errs, fmt.Errorf("import %q: file and query are mutually exclusive", imp.Name))
		case imp.File == "" && imp.Query == "":
			errs = append(errs, fmt.Errorf("import %q: one of file or query is required", imp.Name))
		}
		if imp.Source != "" && !sources[imp.Source] {
			errs = append(errs, fmt.Errorf("import %q: unknown source %q", imp.Name, imp.Source))
		}
		if imp.Source != "" && imp.File != "" {
			errs = append(errs, fmt.Errorf("import %q: source applies to query imports only", imp.Name))
		}
		if utf8.RuneCountInString(imp.Delimiter) > 1 {
			errs = append(errs, fmt.Errorf("import %q: delimiter must be a single character", imp.Name))
		}
	}

	templates := make(map[string]bool)
	for _, t := range c.Templates {
		if templates[t.Name] {
			errs = append(errs, fmt.Errorf("template %q defined twice", t.Name))
		}
		templates[t.Name] = true
	}

	queries := make(map[string]bool)
	for _, q := range c.Queries {
		if queries[q.Name] {
			errs = append(errs, fmt.Errorf("query %q defined twice", q.Name))
		}
		queries[q.Name] = true
		if strings.TrimSpace(q.SQL) == "" {
			errs = append(errs, fmt.Errorf("query %q: sql is empty", q.Name))
		}
		if o := q.Output; o != nil {
			switch {
			case o.File != "" && o.Database != "":
				errs = append(errs, fmt.Errorf("query %q: output file and database are mutually exclusive", q.Name))
			case o.File == "" && o.Database == "":
				errs = append(errs, fmt.Errorf("query %q: output needs a file or a database", q.Name))
			case o.Database != "" && o.Table == "":
				errs = append(errs, fmt.Errorf("query %q: database output needs a table", q.Name))
			}
		}
	}

	return errors.Join(errs...)
}

// Export writes the configuration to the specified file in HCL format.
func Export(path string, cfg *Config) error {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	root.SetAttributeValue("batch_size", cty.NumberIntVal(int64(cfg.BatchSize)))
	root.SetAttributeValue("overwrite", cty.BoolVal(cfg.Overwrite))
	setString(root, "log_level", cfg.LogLevel)
	setString(root, "log_format", cfg.LogFormat)
	setString(root, "title", cfg.Title)

	if db := cfg.Database; db != nil {
		root.AppendNewline()
		b := root.AppendNewBlock("database", nil).Body()
		b.SetAttributeValue("path", cty.StringVal(db.Path))
		setString(b, "engine", db.Engine)
	}

	for _, s := range cfg.Sources {
		root.AppendNewline()
		b := root.AppendNewBlock("source", []string{s.Name}).Body()
		setString(b, "engine", s.Engine)
		b.SetAttributeValue("dsn", cty.StringVal(s.DSN))
	}

	for _, imp := range cfg.Imports {
		root.AppendNewline()
		b := root.AppendNewBlock("import", []string{imp.Name}).Body()
		setString(b, "file", imp.File)
		setString(b, "source", imp.Source)
		setString(b, "query", imp.Query)
		setString(b, "table", imp.Table)
		setString(b, "title_column", imp.TitleColumn)
		setString(b, "encoding", imp.Encoding)
		setString(b, "delimiter", imp.Delimiter)
		setString(b, "sheet", imp.Sheet)
		setList(b, "null_values", imp.NullValues)
		if imp.DBNull != nil {
			b.SetAttributeValue("db_null", cty.StringVal(*imp.DBNull))
		}
	}

	for _, t := range cfg.Templates {
		root.AppendNewline()
		b := root.AppendNewBlock("template", []string{t.Name}).Body()
		b.SetAttributeValue("query", cty.StringVal(t.Query))
		setMap(b, "strings", t.Strings)
		if len(t.Strings) == 0 {
			b.SetAttributeValue("strings", cty.MapValEmpty(cty.String))
		}
		setMap(b, "separators", t.Separators)
	}

	for _, q := range cfg.Queries {
		root.AppendNewline()
		b := root.AppendNewBlock("query", []string{q.Name}).Body()
		b.SetAttributeValue("sql", cty.StringVal(q.SQL))
		setList(b, "params", q.Params)
		setList(b, "templates", q.Templates)
		if o := q.Output; o != nil {
			ob := b.AppendNewBlock("output", nil).Body()
			setString(ob, "file", o.File)
			setString(ob, "database", o.Database)
			setString(ob, "engine", o.Engine)
			setString(ob, "table", o.Table)
			setString(ob, "mode", o.Mode)
			setString(ob, "title_column", o.TitleColumn)
			setString(ob, "worksheet", o.Worksheet)
			setString(ob, "cell", o.Cell)
			if o.Header != nil {
				ob.SetAttributeValue("header", cty.BoolVal(*o.Header))
			}
			setString(ob, "template", o.Template)
		}
	}

	if m := cfg.Metrics; m != nil {
		root.AppendNewline()
		b := root.AppendNewBlock("metrics", nil).Body()
		setString(b, "pushgateway", m.Pushgateway)
		setString(b, "job", m.Job)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	_, err = file.Write(f.Bytes())
	if err != nil {
		return fmt.Errorf("failed to write config to file: %w", err)
	}

	return nil
}

func setString(b *hclwrite.Body, name, value string) {
	if value != "" {
		b.SetAttributeValue(name, cty.StringVal(value))
	}
}

func setList(b *hclwrite.Body, name string, values []string) {
	if len(values) == 0 {
		return
	}
	list := make([]cty.Value, len(values))
	for i, v := range values {
		list[i] = cty.StringVal(v)
	}
	b.SetAttributeValue(name, cty.ListVal(list))
}

func setMap(b *hclwrite.Body, name string, values map[string]string) {
	if len(values) == 0 {
		return
	}
	m := make(map[string]cty.Value, len(values))
	for k, v := range values {
		m[k] = cty.StringVal(v)
	}
	b.SetAttributeValue(name, cty.MapVal(m))
}
