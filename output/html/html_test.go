package html

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/output"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func count(n *html.Node, a atom.Atom) int {
	c := 0
	if n.Type == html.ElementNode && n.DataAtom == a {
		c++
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c += count(ch, a)
	}
	return c
}

func TestHandleAppendsTables(t *testing.T) {
	s, err := database.NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	if _, err := s.Execute(ctx, `CREATE TABLE t (name TEXT, n INTEGER)`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(ctx, `INSERT INTO t VALUES ('<a>', 1), ('b', 2)`); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "report.html")
	h, err := New(ctx, output.Destination{Path: path, Header: true}, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, title := range []string{"First", "Second"} {
		cur, err := s.Query(ctx, `SELECT name, n FROM t`)
		if err != nil {
			t.Fatal(err)
		}
		if err := h.Handle(ctx, title, cur); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	doc, err := html.Parse(f)
	if err != nil {
		t.Fatal(err)
	}
	if n := count(doc, atom.Table); n != 2 {
		t.Errorf("expected 2 tables, got %d", n)
	}
	if n := count(doc, atom.Th); n != 4 {
		t.Errorf("expected 4 header cells, got %d", n)
	}
	if n := count(doc, atom.Td); n != 8 {
		t.Errorf("expected 8 data cells, got %d", n)
	}
	title := find(doc, atom.Title)
	if title == nil || title.FirstChild == nil || title.FirstChild.Data != "First" {
		t.Error("document title should come from the first result")
	}
}
