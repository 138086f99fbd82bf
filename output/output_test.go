package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/query"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		dest     Destination
		expected Kind
		wantErr  bool
	}{
		{"Spreadsheet", Destination{Path: "report.xlsx"}, KindSpreadsheet, false},
		{"UpperCase", Destination{Path: "REPORT.XLSX"}, KindSpreadsheet, false},
		{"Delimited", Destination{Path: "out/report.tsv"}, KindDelimited, false},
		{"HTML", Destination{Path: "report.htm"}, KindHTML, false},
		{"Parquet", Destination{Path: "report.parquet"}, KindParquet, false},
		{"Table", Destination{Path: "report.db"}, KindTable, false},
		{"Native", Destination{Path: "report.sqlite", Mode: "native"}, KindReporting, false},
		{"SlideDeck", Destination{Path: "deck.pptx"}, KindSlideDeck, false},
		{"Engine", Destination{Path: "postgres://host/db", Engine: "postgres"}, KindTable, false},
		{"Unknown", Destination{Path: "report.unknown"}, KindUnknown, true},
		{"AccessDropped", Destination{Path: "report.mdb"}, KindUnknown, true},
		{"NativeOnFile", Destination{Path: "report.xlsx", Mode: "native"}, KindUnknown, true},
		{"BadMode", Destination{Path: "report.db", Mode: "sideways"}, KindUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KindOf(tt.dest)
			if tt.wantErr {
				var unsupported *UnsupportedOutputFormatError
				if !errors.As(err, &unsupported) {
					t.Fatalf("expected UnsupportedOutputFormatError, got %v", err)
				}
				if unsupported.Path != tt.dest.Path {
					t.Errorf("error names %q, want %q", unsupported.Path, tt.dest.Path)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.expected {
				t.Errorf("KindOf(%+v) = %v, want %v", tt.dest, got, tt.expected)
			}
		})
	}
}

type recordingHandler struct {
	dest      Destination
	overwrite bool
}

func (h *recordingHandler) Handle(ctx context.Context, title string, cur *database.Cursor) error {
	_, err := cur.All()
	return err
}

func TestRouteFileDestination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deck.pptx")
	tmpl := filepath.Join(dir, "template.pptx")
	if err := os.WriteFile(tmpl, []byte("template"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRouter(false)
	defer r.Close()
	dest := Destination{Path: path, Template: tmpl}

	// Slide decks need a handler from the host.
	if _, err := r.Route(context.Background(), dest); err == nil {
		t.Fatal("expected error without a registered slide deck handler")
	}

	var got *recordingHandler
	r.Register(KindSlideDeck, func(ctx context.Context, d Destination, overwrite bool) (query.ResultHandler, error) {
		got = &recordingHandler{dest: d, overwrite: overwrite}
		return got, nil
	})
	sink, err := r.Route(context.Background(), dest)
	if err != nil {
		t.Fatal(err)
	}
	if sink.Kind != KindSlideDeck || sink.Handler != got || sink.Feature != nil {
		t.Errorf("unexpected sink %+v", sink)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("template was not copied: %v", err)
	}
	if string(b) != "template" {
		t.Errorf("unexpected template contents %q", b)
	}
}

func TestRouteOverwriteRemovesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	r := NewRouter(true)
	defer r.Close()
	r.Register(KindSlideDeck, func(ctx context.Context, d Destination, overwrite bool) (query.ResultHandler, error) {
		if !overwrite {
			t.Error("overwrite not passed to factory")
		}
		return &recordingHandler{}, nil
	})

	if _, err := r.Route(context.Background(), Destination{Path: path}); err != nil {
		t.Fatal(err)
	}
	if FileExists(path) {
		t.Fatal("overwrite should remove the existing file")
	}

	// A second query writing to the same file in this run must not lose the first.
	if err := os.WriteFile(path, []byte("first query"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Route(context.Background(), Destination{Path: path}); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Error("file removed twice in one run")
	}
}

func newSource(t *testing.T) *database.Store {
	t.Helper()
	s, err := database.NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if _, err := s.Execute(context.Background(), `CREATE TABLE t (name TEXT, n INTEGER)`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(context.Background(), `INSERT INTO t VALUES ('a', 1), ('b', 2)`); err != nil {
		t.Fatal(err)
	}
	return s
}

func countRows(t *testing.T, path, table string) int64 {
	t.Helper()
	s, err := database.NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	cur, err := s.Query(context.Background(), `SELECT COUNT(*) FROM `+table)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := cur.All()
	if err != nil {
		t.Fatal(err)
	}
	return rows[0][0].(int64)
}

func runInto(t *testing.T, src *database.Store, overwrite bool, dest Destination) {
	t.Helper()
	r := NewRouter(overwrite)
	defer r.Close()
	sink, err := r.Route(context.Background(), dest)
	if err != nil {
		t.Fatal(err)
	}
	q := query.New("copy", `SELECT name, n FROM t`)
	sink.Attach(q)
	if _, err := q.Run(context.Background(), query.StoreProvider{Conn: src}, "weekly"); err != nil {
		t.Fatal(err)
	}
}

func TestTableDestination(t *testing.T) {
	src := newSource(t)
	path := filepath.Join(t.TempDir(), "out", "report.db")
	dest := Destination{Path: path, Table: "summary", TitleColumn: "run"}

	runInto(t, src, false, dest)
	runInto(t, src, false, dest)
	if n := countRows(t, path, "summary"); n != 4 {
		t.Errorf("append mode: expected 4 rows, got %d", n)
	}

	runInto(t, src, true, dest)
	if n := countRows(t, path, "summary"); n != 2 {
		t.Errorf("overwrite mode: expected 2 rows, got %d", n)
	}
}

func TestReportingDestination(t *testing.T) {
	src := newSource(t)
	path := filepath.Join(t.TempDir(), "report.sqlite")
	dest := Destination{Path: path, Mode: ModeNative, Table: "tracked", TitleColumn: "run"}

	r := NewRouter(true)
	sink, err := r.Route(context.Background(), dest)
	if err != nil {
		t.Fatal(err)
	}
	if sink.Kind != KindReporting || sink.Feature == nil || sink.Handler != nil {
		t.Fatalf("unexpected sink %+v", sink)
	}
	q := query.New("tracked", `SELECT name, n FROM t`)
	sink.Attach(q)
	if _, err := q.Run(context.Background(), query.StoreProvider{Conn: src}, "weekly"); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	s, err := database.NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	cur, err := s.Query(context.Background(), `SELECT run, name FROM tracked ORDER BY n`)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := cur.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0][0] != "weekly" || rows[0][1] != "a" {
		t.Errorf("unexpected tracked rows %v", rows)
	}
}

func TestTableDestinationNeedsTable(t *testing.T) {
	r := NewRouter(false)
	defer r.Close()
	if _, err := r.Route(context.Background(), Destination{Path: "x.db"}); err == nil {
		t.Error("expected error without a table name")
	}
}
