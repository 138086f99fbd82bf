package delimited

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/output"
)

func TestHandleCreatesThenAppends(t *testing.T) {
	s, err := database.NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	if _, err := s.Execute(ctx, `CREATE TABLE t (name TEXT, n INTEGER, note TEXT)`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(ctx, `INSERT INTO t VALUES ('a', 1, NULL), ('b,c', 2, 'x')`); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	h, err := New(ctx, output.Destination{Path: path}, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		cur, err := s.Query(ctx, `SELECT name, n, note FROM t ORDER BY n`)
		if err != nil {
			t.Fatal(err)
		}
		if err := h.Handle(ctx, "t", cur); err != nil {
			t.Fatal(err)
		}
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "name,n,note\na,1,\n\"b,c\",2,x\na,1,\n\"b,c\",2,x\n"
	if string(got) != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestTSV(t *testing.T) {
	h, err := New(context.Background(), output.Destination{Path: "out.TSV"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if h.(*Handler).delimiter != '\t' {
		t.Error("expected tab delimiter for .tsv")
	}
}
