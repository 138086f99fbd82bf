package html

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/dataimport"
)

const page = `<!DOCTYPE html>
<html><body>
<table id="people">
  <thead><tr><th>Name</th><th>Age</th></tr></thead>
  <tbody>
    <tr><td>Alice</td><td>30</td></tr>
    <tr><td><b>Bob</b> </td><td>25</td></tr>
  </tbody>
</table>
<table>
  <caption>Totals</caption>
  <tr><th>count</th></tr>
  <tr><td>2<table><tr><td>nested</td></tr></table></td></tr>
</table>
</body></html>`

func readAll(t *testing.T, r dataimport.FileReader) [][]any {
	t.Helper()
	var rows [][]any
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows
		}
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, row)
	}
}

func TestParse(t *testing.T) {
	tables, err := Parse(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 3 {
		t.Fatalf("expected 3 tables including the nested one, got %d", len(tables))
	}
	if tables[0].ID != "people" || tables[1].ID != "Totals" {
		t.Errorf("ids = %q, %q", tables[0].ID, tables[1].ID)
	}
	if len(tables[1].Rows) != 1 {
		t.Errorf("nested rows leaked into outer table: %v", tables[1].Rows)
	}
}

func TestReader(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		headers []string
		rows    [][]any
	}{
		{"First", "", []string{"Name", "Age"}, [][]any{{"Alice", "30"}, {"Bob", "25"}}},
		{"ByCaption", "Totals", []string{"count"}, [][]any{{"2nested"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(strings.NewReader(page), tt.table)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			var headers []string
			for _, f := range r.Fields() {
				headers = append(headers, f.Name)
				if f.Type != "C" {
					t.Errorf("field %s has type %q", f.Name, f.Type)
				}
			}
			if !reflect.DeepEqual(headers, tt.headers) {
				t.Errorf("headers = %v, want %v", headers, tt.headers)
			}
			if got := readAll(t, r); !reflect.DeepEqual(got, tt.rows) {
				t.Errorf("rows = %v, want %v", got, tt.rows)
			}
		})
	}
}

func TestReaderErrors(t *testing.T) {
	if _, err := NewReader(strings.NewReader("<p>no tables</p>"), ""); err == nil {
		t.Error("expected error for a document without tables")
	}
	if _, err := NewReader(strings.NewReader(page), "missing"); err == nil {
		t.Error("expected error for an unknown table")
	}
}

func TestImportIntoStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.htm")
	if err := os.WriteFile(path, []byte(page), 0644); err != nil {
		t.Fatal(err)
	}
	fi, err := dataimport.NewFileImport("people", path, "", "", &dataimport.ReaderConfig{Sheet: "people"})
	if err != nil {
		t.Fatal(err)
	}

	store, err := database.NewStore(filepath.Join(dir, "work.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	n, err := store.ImportData(context.Background(), fi)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("imported %d rows, want 2", n)
	}
}
