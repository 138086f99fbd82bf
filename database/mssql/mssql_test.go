package mssql

import (
	"testing"

	"github.com/darianmavgo/mince/database"
)

func TestHelpers(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Placeholder", Placeholder(3), "@p3"},
		{"Quote", Quote("a]b"), "[a]]b]"},
		{"Sample", Sample("SELECT x FROM t"), "SELECT TOP 1 * FROM (SELECT x FROM t) AS sample"},
		{"Integer", StorageType(database.TypeInteger), "BIGINT"},
		{"Real", StorageType(database.TypeReal), "FLOAT"},
		{"Text", StorageType(database.TypeText), "NVARCHAR(MAX)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestRegisteredDialect(t *testing.T) {
	d, err := database.LookupDialect("sqlserver")
	if err != nil {
		t.Fatal(err)
	}
	if d.DriverName != "sqlserver" || d.FileBased {
		t.Errorf("unexpected dialect %+v", d)
	}
	create := d.GenCreateTableSQL("t", []string{"id", "x"}, []database.TypeCategory{database.TypeInteger})
	if want := "CREATE TABLE [t] ([id] BIGINT, [x] NVARCHAR(MAX))"; create != want {
		t.Errorf("create = %q, want %q", create, want)
	}
	insert, err := d.GenInsertSQL("t", []string{"id", "x"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "INSERT INTO [t] ([id],[x]) VALUES (@p1,@p2)"; insert != want {
		t.Errorf("insert = %q, want %q", insert, want)
	}
}
