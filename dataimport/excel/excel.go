package excel

import (
	"fmt"
	"io"

	"github.com/darianmavgo/mince/dataimport"

	"github.com/xuri/excelize/v2"
)

func init() {
	dataimport.Register(".xlsx", Open)
	dataimport.Register(".xlsm", Open)
}

// Reader streams one worksheet. The first non-empty row is the header and
// every field is reported as text.
type Reader struct {
	file    *excelize.File
	rows    *excelize.Rows
	sheet   string
	headers []string
}

var _ dataimport.FileReader = (*Reader)(nil)

// Open opens the worksheet named by cfg.Sheet, or the first worksheet.
func Open(path string, cfg *dataimport.ReaderConfig) (dataimport.FileReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	r, err := newReader(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// NewReader reads from an Excel stream.
func NewReader(src io.Reader, cfg *dataimport.ReaderConfig) (*Reader, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel stream: %w", err)
	}
	r, err := newReader(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *excelize.File, cfg *dataimport.ReaderConfig) (*Reader, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}
	sheet := sheets[0]
	if cfg != nil && cfg.Sheet != "" {
		if idx, _ := f.GetSheetIndex(cfg.Sheet); idx < 0 {
			return nil, fmt.Errorf("sheet %q not found", cfg.Sheet)
		}
		sheet = cfg.Sheet
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows iterator for sheet %s: %w", sheet, err)
	}
	r := &Reader{file: f, rows: rows, sheet: sheet}
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to read header of sheet %s: %w", sheet, err)
		}
		if len(cols) > 0 {
			r.headers = cols
			break
		}
	}
	return r, nil
}

// Sheet returns the worksheet being read.
func (r *Reader) Sheet() string { return r.sheet }

func (r *Reader) Fields() []dataimport.Field {
	fields := make([]dataimport.Field, len(r.headers))
	for i, h := range r.headers {
		fields[i] = dataimport.Field{Name: h, Type: "C"}
	}
	return fields
}

func (r *Reader) Next() ([]any, error) {
	if !r.rows.Next() {
		if err := r.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	cols, err := r.rows.Columns()
	if err != nil {
		return nil, err
	}
	row := make([]any, len(cols))
	for i, v := range cols {
		row[i] = v
	}
	return row, nil
}

func (r *Reader) Close() error {
	r.rows.Close()
	return r.file.Close()
}
