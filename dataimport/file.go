// Package dataimport provides the data import sources consumed by
// database.Store.ImportData: FileImport over flat files and SQLImport over
// the result of a query.
package dataimport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/darianmavgo/mince/database"
)

// FieldTypes maps the field type codes reported by file readers to storage
// categories. Codes outside this table are configuration errors.
var FieldTypes = database.TypeMap{
	"C": database.TypeText,
	"N": database.TypeInteger,
	"F": database.TypeReal,
}

// Field is a column as reported by a file reader.
type Field struct {
	Name string
	Type string // type code, see FieldTypes
}

// FileReader reads one open file. Next returns io.EOF after the last row.
type FileReader interface {
	Fields() []Field
	Next() ([]any, error)
	Close() error
}

// ReaderConfig stores options for the file readers.
type ReaderConfig struct {
	Encoding  string // code page of text fields (dbf)
	Delimiter rune   // field delimiter (csv); detected when zero
	Sheet     string // worksheet (excel) or table (html, markdown) to read; the first when empty
}

// Opener opens path for reading. cfg may be nil.
type Opener func(path string, cfg *ReaderConfig) (FileReader, error)

// FileImport imports a flat file. Every accessor opens the file, reads what
// it needs and closes it again; nothing stays open between calls. Rows
// re-opens the file each time it is called.
type FileImport struct {
	name        string
	path        string
	destination string
	titleColumn string
	config      *ReaderConfig
	opener      Opener

	columns []string
	types   []database.TypeCategory
}

var _ database.DataImport = (*FileImport)(nil)

// NewFileImport creates a FileImport, choosing the reader by the file's
// extension. An empty destination defaults to name.
func NewFileImport(name, path, destination, titleColumn string, cfg *ReaderConfig) (*FileImport, error) {
	opener, err := Lookup(path)
	if err != nil {
		return nil, err
	}
	if destination == "" {
		destination = name
	}
	return &FileImport{
		name:        name,
		path:        path,
		destination: destination,
		titleColumn: titleColumn,
		config:      cfg,
		opener:      opener,
	}, nil
}

func (f *FileImport) Name() string        { return f.name }
func (f *FileImport) Destination() string { return f.destination }
func (f *FileImport) TitleColumn() string { return f.titleColumn }

// Path returns the imported file.
func (f *FileImport) Path() string { return f.path }

func (f *FileImport) withReader(fn func(FileReader) error) error {
	r, err := f.opener(f.path, f.config)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer r.Close()
	return fn(r)
}

// Columns returns the field names of the file.
func (f *FileImport) Columns(ctx context.Context) ([]string, error) {
	if f.columns != nil {
		return f.columns, nil
	}
	err := f.withReader(func(r FileReader) error {
		fields := r.Fields()
		columns := make([]string, len(fields))
		for i, field := range fields {
			columns[i] = field.Name
		}
		f.columns = columns
		return nil
	})
	return f.columns, err
}

// Types maps the file's field type codes through FieldTypes.
func (f *FileImport) Types(ctx context.Context) ([]database.TypeCategory, error) {
	if f.types != nil {
		return f.types, nil
	}
	err := f.withReader(func(r FileReader) error {
		fields := r.Fields()
		codes := make([]string, len(fields))
		for i, field := range fields {
			codes[i] = field.Type
		}
		types, err := FieldTypes.MapAll(codes)
		if err != nil {
			return fmt.Errorf("%s: %w", f.path, err)
		}
		f.types = types
		return nil
	})
	return f.types, err
}

// Rows opens the file and streams its records. The file is closed when the
// rows are exhausted, when reading fails, or when the iterator is closed.
func (f *FileImport) Rows(ctx context.Context) (database.RowIterator, error) {
	r, err := f.opener(f.path, f.config)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	return &fileRows{path: f.path, reader: r}, nil
}

type fileRows struct {
	path      string
	reader    FileReader
	current   []any
	err       error
	exhausted bool
	closed    bool
}

func (r *fileRows) Next() bool {
	if r.closed {
		return false
	}
	row, err := r.reader.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.exhausted = true
		} else {
			r.err = fmt.Errorf("failed to read %s: %w", r.path, err)
		}
		r.Close()
		return false
	}
	r.current = row
	return true
}

func (r *fileRows) Row() []any      { return r.current }
func (r *fileRows) Err() error      { return r.err }
func (r *fileRows) Exhausted() bool { return r.exhausted }

func (r *fileRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.reader.Close()
}
