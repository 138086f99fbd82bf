package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestExportAndLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "run.hcl")

	// Test Export
	cfg := Example()
	cfg.BatchSize = 500
	dbNull := "-"
	cfg.Imports = append(cfg.Imports, ImportConfig{
		Name:       "legacy",
		Query:      "SELECT * FROM legacy",
		NullValues: []string{"N/A", ""},
		DBNull:     &dbNull,
	})
	err := Export(configPath, cfg)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// Test Load
	loadedCfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loadedCfg.BatchSize != 500 {
		t.Errorf("expected BatchSize 500, got %d", loadedCfg.BatchSize)
	}
	if !loadedCfg.Overwrite || loadedCfg.Title != "monthly" || loadedCfg.Database.Path != "work/mince.db" {
		t.Errorf("top-level settings lost: %+v", loadedCfg)
	}
	if len(loadedCfg.Imports) != 2 || !reflect.DeepEqual(loadedCfg.Imports[1], cfg.Imports[1]) {
		t.Errorf("imports mismatch: %+v", loadedCfg.Imports)
	}
	if !reflect.DeepEqual(loadedCfg.Templates, cfg.Templates) {
		t.Errorf("templates mismatch:\n got %+v\nwant %+v", loadedCfg.Templates, cfg.Templates)
	}
	if len(loadedCfg.Queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(loadedCfg.Queries))
	}
	for i, q := range loadedCfg.Queries {
		if q.SQL != cfg.Queries[i].SQL || !reflect.DeepEqual(q.Output, cfg.Queries[i].Output) {
			t.Errorf("query %s mismatch: %+v", q.Name, q)
		}
	}
	if err := loadedCfg.Validate(); err != nil {
		t.Errorf("example config should validate: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.hcl")
	err := os.WriteFile(configPath, []byte(""), 0644)
	if err != nil {
		t.Fatalf("failed to write empty config: %v", err)
	}

	loadedCfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loadedCfg.BatchSize != 10000 {
		t.Errorf("expected default BatchSize 10000, got %d", loadedCfg.BatchSize)
	}
	if loadedCfg.Overwrite {
		t.Error("overwrite should default to false")
	}
}

func TestEnvVariables(t *testing.T) {
	t.Setenv("MINCE_TEST_DSN", "postgres://reader@db/sales")
	cfg, err := Parse([]byte(`
database {
  path = "work.db"
}

source "sales" {
  engine = "postgres"
  dsn    = env.MINCE_TEST_DSN
}
`), "env.hcl")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cfg.Sources[0].DSN; got != "postgres://reader@db/sales" {
		t.Errorf("dsn = %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"Syntax", `batch_size = `},
		{"UnknownAttribute", `colour = "blue"`},
		{"MissingEnv", `title = env.MINCE_SURELY_UNSET_VARIABLE`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.content), tt.name+".hcl"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.Database = &DatabaseConfig{Path: "work.db"}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"Valid", func(c *Config) {}, ""},
		{"NoDatabase", func(c *Config) { c.Database = nil }, "database block"},
		{"BatchSize", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"ImportNeitherFileNorQuery", func(c *Config) {
			c.Imports = []ImportConfig{{Name: "a"}}
		}, "one of file or query"},
		{"ImportBoth", func(c *Config) {
			c.Imports = []ImportConfig{{Name: "a", File: "a.csv", Query: "SELECT 1"}}
		}, "mutually exclusive"},
		{"UnknownSource", func(c *Config) {
			c.Imports = []ImportConfig{{Name: "a", Source: "nope", Query: "SELECT 1"}}
		}, "unknown source"},
		{"LongDelimiter", func(c *Config) {
			c.Imports = []ImportConfig{{Name: "a", File: "a.csv", Delimiter: ";;"}}
		}, "single character"},
		{"DuplicateQuery", func(c *Config) {
			c.Queries = []QueryConfig{{Name: "q", SQL: "SELECT 1"}, {Name: "q", SQL: "SELECT 2"}}
		}, "defined twice"},
		{"DatabaseOutputWithoutTable", func(c *Config) {
			c.Queries = []QueryConfig{{Name: "q", SQL: "SELECT 1", Output: &OutputConfig{Database: "out.db"}}}
		}, "needs a table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestWantHeader(t *testing.T) {
	no := false
	if !(&OutputConfig{}).WantHeader() {
		t.Error("header should default to true")
	}
	if (&OutputConfig{Header: &no}).WantHeader() {
		t.Error("explicit header = false ignored")
	}
}
