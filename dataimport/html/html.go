// Package html reads the tables of an HTML document. The first row of a
// table is its header; cells are text.
package html

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/darianmavgo/mince/dataimport"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func init() {
	dataimport.Register(".html", Open)
	dataimport.Register(".htm", Open)
}

// Table is a parsed <table> element.
type Table struct {
	ID      string // id attribute, or the text of its <caption>
	Headers []string
	Rows    [][]string
}

// Reader returns the rows of one table.
type Reader struct {
	table *Table
	next  int
}

var _ dataimport.FileReader = (*Reader)(nil)

// Open reads the table whose id or caption is cfg.Sheet, or the first table
// of the document. The document is parsed completely before the first row
// is returned.
func Open(path string, cfg *dataimport.ReaderConfig) (dataimport.FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open HTML file: %w", err)
	}
	defer f.Close()

	name := ""
	if cfg != nil {
		name = cfg.Sheet
	}
	return NewReader(f, name)
}

// NewReader parses src and selects the table named name, or the first one.
func NewReader(src io.Reader, name string) (*Reader, error) {
	tables, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables found in HTML")
	}
	if name == "" {
		return &Reader{table: &tables[0]}, nil
	}
	for i := range tables {
		if tables[i].ID == name {
			return &Reader{table: &tables[i]}, nil
		}
	}
	return nil, fmt.Errorf("table %q not found", name)
}

func (r *Reader) Fields() []dataimport.Field {
	fields := make([]dataimport.Field, len(r.table.Headers))
	for i, h := range r.table.Headers {
		fields[i] = dataimport.Field{Name: h, Type: "C"}
	}
	return fields
}

func (r *Reader) Next() ([]any, error) {
	if r.next >= len(r.table.Rows) {
		return nil, io.EOF
	}
	cells := r.table.Rows[r.next]
	r.next++
	row := make([]any, len(cells))
	for i, v := range cells {
		row[i] = v
	}
	return row, nil
}

func (r *Reader) Close() error { return nil }

// Parse returns every table of the document in document order. Nested
// tables are returned separately and do not contribute rows to the table
// around them.
func Parse(src io.Reader) ([]Table, error) {
	doc, err := html.Parse(bufio.NewReaderSize(src, 65536))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var tables []Table
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			tables = append(tables, extractTable(n))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tables, nil
}

func extractTable(n *html.Node) Table {
	var t Table
	for _, attr := range n.Attr {
		if attr.Key == "id" {
			t.ID = attr.Val
			break
		}
	}

	var rows [][]string
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch node.DataAtom {
			case atom.Caption:
				if t.ID == "" {
					t.ID = text(node)
				}
				return
			case atom.Tr:
				var row []string
				for c := node.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
						row = append(row, text(c))
					}
				}
				rows = append(rows, row)
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Table {
				continue
			}
			visit(c)
		}
	}
	visit(n)

	if len(rows) > 0 {
		t.Headers, t.Rows = rows[0], rows[1:]
	}
	return t
}

func text(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.TrimSpace(sb.String())
}
