package dataimport

import (
	"context"

	"github.com/darianmavgo/mince/database"
)

// Querier runs a query and returns a cursor over its results.
// *database.Store satisfies it.
type Querier interface {
	Query(ctx context.Context, query string, params ...any) (*database.Cursor, error)
}

// SQLOptions configures an SQLImport.
type SQLOptions struct {
	Destination string // defaults to the import name
	TitleColumn string
	Params      []any
	// NullValues lists source values, compared by their string form, that
	// are replaced with DBNull. SQL NULL is always replaced.
	NullValues []string
	DBNull     any
}

// SQLImport imports the result of a query. The query runs once and its
// cursor is shared by Columns, Types and Rows until the rows have been read
// to the end, after which the next access runs the query again.
type SQLImport struct {
	name        string
	destination string
	titleColumn string
	db          Querier
	query       string
	params      []any
	nullValues  map[string]struct{}
	dbNull      any

	cursor *database.Cursor
}

var _ database.DataImport = (*SQLImport)(nil)

func NewSQLImport(name string, db Querier, query string, opts SQLOptions) *SQLImport {
	s := &SQLImport{
		name:        name,
		destination: opts.Destination,
		titleColumn: opts.TitleColumn,
		db:          db,
		query:       query,
		params:      opts.Params,
		nullValues:  make(map[string]struct{}, len(opts.NullValues)),
		dbNull:      opts.DBNull,
	}
	if s.destination == "" {
		s.destination = name
	}
	for _, v := range opts.NullValues {
		s.nullValues[v] = struct{}{}
	}
	return s
}

func (s *SQLImport) Name() string        { return s.name }
func (s *SQLImport) Destination() string { return s.destination }
func (s *SQLImport) TitleColumn() string { return s.titleColumn }

// Query returns the source statement.
func (s *SQLImport) Query() string { return s.query }

func (s *SQLImport) getCursor(ctx context.Context) (*database.Cursor, error) {
	if s.cursor != nil {
		return s.cursor, nil
	}
	cur, err := s.db.Query(ctx, s.query, s.params...)
	if err != nil {
		return nil, err
	}
	s.cursor = cur
	return cur, nil
}

func (s *SQLImport) Columns(ctx context.Context) ([]string, error) {
	cur, err := s.getCursor(ctx)
	if err != nil {
		return nil, err
	}
	return cur.Columns(), nil
}

func (s *SQLImport) Types(ctx context.Context) ([]database.TypeCategory, error) {
	cur, err := s.getCursor(ctx)
	if err != nil {
		return nil, err
	}
	return cur.Types(), nil
}

// Rows streams the cached cursor with null values normalized.
func (s *SQLImport) Rows(ctx context.Context) (database.RowIterator, error) {
	cur, err := s.getCursor(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlRows{imp: s, cur: cur}, nil
}

// Close releases a cursor that was opened but never read to the end.
func (s *SQLImport) Close() error {
	if s.cursor == nil {
		return nil
	}
	err := s.cursor.Close()
	s.cursor = nil
	return err
}

func (s *SQLImport) normalize(v any) any {
	if v == nil {
		return s.dbNull
	}
	if len(s.nullValues) > 0 {
		if _, ok := s.nullValues[database.Stringify(v)]; ok {
			return s.dbNull
		}
	}
	return v
}

type sqlRows struct {
	imp     *SQLImport
	cur     *database.Cursor
	current []any
}

func (r *sqlRows) Next() bool {
	if !r.cur.Next() {
		r.release()
		return false
	}
	row := r.cur.Row()
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = r.imp.normalize(v)
	}
	r.current = values
	return true
}

func (r *sqlRows) release() {
	if r.imp.cursor == r.cur {
		r.imp.cursor = nil
	}
}

func (r *sqlRows) Row() []any      { return r.current }
func (r *sqlRows) Err() error      { return r.cur.Err() }
func (r *sqlRows) Exhausted() bool { return r.cur.Exhausted() }

func (r *sqlRows) Close() error {
	r.release()
	return r.cur.Close()
}
