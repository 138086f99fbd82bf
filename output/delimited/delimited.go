package delimited

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/output"
	"github.com/darianmavgo/mince/query"
)

func init() {
	output.RegisterHandler(output.KindDelimited, New)
}

// Handler writes results as delimited text. A new file starts with a header
// record; results for an existing file are appended without one.
type Handler struct {
	path      string
	delimiter rune
}

var _ query.ResultHandler = (*Handler)(nil)

// New returns a comma separated writer, or tab separated for .tsv paths.
func New(ctx context.Context, dest output.Destination, overwrite bool) (query.ResultHandler, error) {
	h := &Handler{path: dest.Path, delimiter: ','}
	if strings.EqualFold(filepath.Ext(dest.Path), ".tsv") {
		h.delimiter = '\t'
	}
	return h, nil
}

func (h *Handler) Handle(ctx context.Context, title string, cur *database.Cursor) error {
	created := !output.FileExists(h.path)

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return output.WriteError(cur, h.path, err)
	}

	w := csv.NewWriter(f)
	w.Comma = h.delimiter
	if created {
		if err := w.Write(cur.Columns()); err != nil {
			f.Close()
			return output.WriteError(cur, h.path, err)
		}
	}

	record := make([]string, len(cur.Columns()))
	for cur.Next() {
		for i, v := range cur.Row() {
			record[i] = database.Stringify(v)
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return output.WriteError(cur, h.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return output.WriteError(cur, h.path, err)
	}
	if err := f.Close(); err != nil {
		return output.WriteError(cur, h.path, err)
	}
	return cur.Err()
}
