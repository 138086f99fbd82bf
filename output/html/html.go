package html

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/output"
	"github.com/darianmavgo/mince/query"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func init() {
	output.RegisterHandler(output.KindHTML, New)
}

const skeleton = `<!DOCTYPE html><html><head><meta charset="utf-8"><title></title></head><body></body></html>`

// Handler appends each result as a titled table to the body of an HTML
// document, creating the document when it does not exist.
type Handler struct {
	path   string
	header bool
}

var _ query.ResultHandler = (*Handler)(nil)

func New(ctx context.Context, dest output.Destination, overwrite bool) (query.ResultHandler, error) {
	return &Handler{path: dest.Path, header: dest.Header}, nil
}

func (h *Handler) Handle(ctx context.Context, title string, cur *database.Cursor) error {
	doc, err := h.load(title)
	if err != nil {
		return output.WriteError(cur, h.path, err)
	}
	body := find(doc, atom.Body)
	if body == nil {
		return output.WriteError(cur, h.path, fmt.Errorf("document has no body"))
	}

	if title != "" {
		body.AppendChild(element(atom.H2, text(title)))
	}
	table := element(atom.Table)
	if h.header {
		tr := element(atom.Tr)
		for _, c := range cur.Columns() {
			tr.AppendChild(element(atom.Th, text(c)))
		}
		table.AppendChild(element(atom.Thead, tr))
	}
	tbody := element(atom.Tbody)
	for cur.Next() {
		tr := element(atom.Tr)
		for _, v := range cur.Row() {
			tr.AppendChild(element(atom.Td, text(database.Stringify(v))))
		}
		tbody.AppendChild(tr)
	}
	if err := cur.Err(); err != nil {
		return err
	}
	table.AppendChild(tbody)
	body.AppendChild(table)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return output.WriteError(cur, h.path, err)
	}
	if err := os.WriteFile(h.path, buf.Bytes(), 0644); err != nil {
		return output.WriteError(cur, h.path, err)
	}
	return nil
}

func (h *Handler) load(title string) (*html.Node, error) {
	if output.FileExists(h.path) {
		f, err := os.Open(h.path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return html.Parse(f)
	}

	doc, err := html.Parse(strings.NewReader(skeleton))
	if err != nil {
		return nil, err
	}
	if t := find(doc, atom.Title); t != nil {
		t.AppendChild(text(title))
	}
	return doc, nil
}

func element(a atom.Atom, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}
