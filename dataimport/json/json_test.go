package json

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

func TestRootArray(t *testing.T) {
	src := `[
  {"name": "bolt", "qty": 10, "price": 0.25, "tags": ["m4", "zinc"]},
  {"qty": 4, "name": "nut", "price": 1, "extra": true},
  {"name": null, "qty": 2.5, "active": false}
]`
	r, err := NewReader(strings.NewReader(src), "")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	wantFields := []dataimport.Field{
		{Name: "name", Type: "C"},
		{Name: "qty", Type: "N"},
		{Name: "price", Type: "F"},
		{Name: "tags", Type: "C"},
	}
	if got := r.Fields(); !reflect.DeepEqual(got, wantFields) {
		t.Errorf("fields = %v, want %v", got, wantFields)
	}

	want := [][]any{
		{"bolt", int64(10), 0.25, `["m4","zinc"]`},
		{"nut", int64(4), 1.0, nil},
		{nil, 2.5, nil, nil},
	}
	if got := readAll(t, r); !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %#v\nwant %#v", got, want)
	}
}

func TestObjectKey(t *testing.T) {
	src := `{"meta": {"count": [1]}, "first": [{"a": "x"}], "second": [{"b": "y"}, {"b": "z"}]}`
	tests := []struct {
		key   string
		field string
		rows  int
	}{
		{"", "a", 1},
		{"second", "b", 2},
	}
	for _, tt := range tests {
		t.Run("key="+tt.key, func(t *testing.T) {
			r, err := NewReader(strings.NewReader(src), tt.key)
			if err != nil {
				t.Fatal(err)
			}
			if f := r.Fields(); len(f) != 1 || f[0].Name != tt.field {
				t.Errorf("fields = %v", f)
			}
			if got := readAll(t, r); len(got) != tt.rows {
				t.Errorf("got %d rows, want %d", len(got), tt.rows)
			}
		})
	}
}

func TestScalarElements(t *testing.T) {
	r, err := NewReader(strings.NewReader(`[3, 4]`), "")
	if err != nil {
		t.Fatal(err)
	}
	if f := r.Fields(); len(f) != 1 || f[0].Name != ValueColumn || f[0].Type != "N" {
		t.Errorf("fields = %v", f)
	}
	if got := readAll(t, r); !reflect.DeepEqual(got, [][]any{{int64(3)}, {int64(4)}}) {
		t.Errorf("rows = %v", got)
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		key  string
	}{
		{"Scalar", `42`, ""},
		{"MissingKey", `{"a": [1]}`, "b"},
		{"KeyNotArray", `{"a": {"b": 1}}`, "a"},
		{"NoArray", `{"a": 1}`, ""},
		{"KeyOnArray", `[1]`, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewReader(strings.NewReader(tt.src), tt.key); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestImportIntoStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parts.json")
	if err := os.WriteFile(path, []byte(`{"parts": [{"id": 1, "name": "bolt"}, {"id": 2, "name": " "}]}`), 0644); err != nil {
		t.Fatal(err)
	}
	fi, err := dataimport.NewFileImport("parts", path, "", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	types, err := fi.Types(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(types, []database.TypeCategory{database.TypeInteger, database.TypeText}) {
		t.Errorf("types = %v", types)
	}

	store, err := database.NewStore(filepath.Join(dir, "work.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.ImportData(context.Background(), fi); err != nil {
		t.Fatal(err)
	}
	cur, err := store.Query(context.Background(), `SELECT id, name FROM parts ORDER BY id`)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := cur.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0][0] != int64(1) || rows[1][1] != nil {
		t.Errorf("rows = %v", rows)
	}
}
