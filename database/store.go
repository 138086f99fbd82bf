// Package database owns the local relational store: connection lifecycle,
// table creation, batched ingestion of data imports and ad-hoc queries whose
// column types are inferred by sampling the first result row.
//
// A Store holds exactly one connection and is meant for a single caller at a
// time. Imports commit every BatchSize rows; when an import fails partway
// through, the batches committed before the failure stay in the table.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// DefaultBatchSize is the number of rows inserted per import transaction.
const DefaultBatchSize = 10000

// ProgressFunc is called after every committed import batch.
type ProgressFunc func(table string, rows int)

// Option configures a Store.
type Option func(*Store)

// WithEngine selects the dialect by name. The default is sqlite.
func WithEngine(name string) Option {
	return func(s *Store) { s.engine = name }
}

// WithBatchSize overrides DefaultBatchSize. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the logger used for import progress.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress registers a callback for committed import batches.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Store) { s.progress = fn }
}

// Store is a connection to one relational database.
type Store struct {
	path      string
	engine    string
	dialect   *Dialect
	batchSize int
	logger    *slog.Logger
	progress  ProgressFunc

	db   *sql.DB
	conn *sql.Conn

	// tables created by this instance; each is dropped and recreated at
	// most once per Store.
	importedTables map[string]struct{}
}

// NewStore prepares a store for path. No connection is made until the store
// is first used.
func NewStore(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:           path,
		engine:         DefaultDialect,
		batchSize:      DefaultBatchSize,
		logger:         slog.Default(),
		importedTables: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	d, err := LookupDialect(s.engine)
	if err != nil {
		return nil, err
	}
	s.dialect = d

	if d.FileBased && path != ":memory:" && !strings.HasPrefix(path, "file:") {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, &StoreConnectionError{Path: path, Err: err}
		}
		s.path = abs
	}
	s.logger = s.logger.With("store", filepath.Base(s.path))
	return s, nil
}

func (s *Store) String() string { return s.path }

// Path returns the resolved path or DSN of the store.
func (s *Store) Path() string { return s.path }

// Dialect returns the dialect the store speaks.
func (s *Store) Dialect() *Dialect { return s.dialect }

// BatchSize returns the number of rows committed per import transaction.
func (s *Store) BatchSize() int { return s.batchSize }

// Connect opens the connection if it is not open yet.
func (s *Store) Connect(ctx context.Context) error {
	_, err := s.connection(ctx)
	return err
}

func (s *Store) connection(ctx context.Context) (*sql.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	db, err := sql.Open(s.dialect.DriverName, s.path)
	if err != nil {
		return nil, &StoreConnectionError{Path: s.path, Err: err}
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, &StoreConnectionError{Path: s.path, Err: err}
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, &StoreConnectionError{Path: s.path, Err: err}
	}
	for _, pragma := range s.dialect.Pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			db.Close()
			return nil, &StoreConnectionError{Path: s.path, Err: fmt.Errorf("failed to set %q: %w", pragma, err)}
		}
	}

	s.db = db
	s.conn = conn
	return conn, nil
}

// Close closes the connection. The table registry is discarded with it.
func (s *Store) Close() error {
	s.importedTables = make(map[string]struct{})
	if s.conn == nil {
		return nil
	}
	err := errors.Join(s.conn.Close(), s.db.Close())
	s.conn = nil
	s.db = nil
	return err
}

// HasTable checks the engine's catalog for a table.
func (s *Store) HasTable(ctx context.Context, name string) (bool, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return false, err
	}
	var found int
	err = conn.QueryRowContext(ctx, s.dialect.TableExistsSQL, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &QueryError{SQL: s.dialect.TableExistsSQL, Err: err}
	}
	return true, nil
}

// InitializeTable drops and recreates name the first time it is called for
// that name on this store; later calls are no-ops so imports append.
func (s *Store) InitializeTable(ctx context.Context, name string, columns []string, types []TypeCategory) error {
	if _, done := s.importedTables[name]; done {
		return nil
	}

	exists, err := s.HasTable(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		if _, err := s.Execute(ctx, s.dialect.GenDropTableSQL(name)); err != nil {
			return err
		}
	}

	createSQL := s.dialect.GenCreateTableSQL(name, CleanColumnNames(columns), types)
	if _, err := s.Execute(ctx, createSQL); err != nil {
		return err
	}
	s.importedTables[name] = struct{}{}
	return nil
}

// ImportData copies every row of di into its destination table and returns
// the number of rows committed. The table is recreated the first time this
// store writes to it.
func (s *Store) ImportData(ctx context.Context, di DataImport) (int64, error) {
	return s.importData(ctx, di, s.InitializeTable)
}

// AppendData is ImportData for an existing table: rows are added to it and it
// is only created when missing.
func (s *Store) AppendData(ctx context.Context, di DataImport) (int64, error) {
	return s.importData(ctx, di, s.ensureTable)
}

func (s *Store) ensureTable(ctx context.Context, name string, columns []string, types []TypeCategory) error {
	exists, err := s.HasTable(ctx, name)
	if err != nil || exists {
		return err
	}
	return s.InitializeTable(ctx, name, columns, types)
}

type tableInit func(ctx context.Context, name string, columns []string, types []TypeCategory) error

func (s *Store) importData(ctx context.Context, di DataImport, initTable tableInit) (int64, error) {
	name := di.Name()
	table := di.Destination()
	titleColumn := di.TitleColumn()

	rawColumns, err := di.Columns(ctx)
	if err != nil {
		return 0, fmt.Errorf("data import '%s': failed to read columns: %w", name, err)
	}
	if len(rawColumns) == 0 {
		return 0, &SchemaError{
			Import: name,
			Reason: "no column names specified. Either configure the column names " +
				"explicitly or ensure that the input data contains a header row",
		}
	}
	rawTypes, err := di.Types(ctx)
	if err != nil {
		return 0, fmt.Errorf("data import '%s': failed to read column types: %w", name, err)
	}

	columns := make([]string, 0, len(rawColumns)+1)
	types := make([]TypeCategory, 0, len(rawColumns)+1)
	if titleColumn != "" {
		columns = append(columns, titleColumn)
		types = append(types, TypeText)
	}
	columns = append(columns, rawColumns...)
	types = append(types, rawTypes...)
	for len(types) < len(columns) {
		types = append(types, TypeText)
	}
	columns = CleanColumnNames(columns)

	if err := initTable(ctx, table, columns, types); err != nil {
		return 0, err
	}

	insertSQL, err := s.dialect.GenInsertSQL(table, columns)
	if err != nil {
		return 0, err
	}

	rows, err := di.Rows(ctx)
	if err != nil {
		return 0, fmt.Errorf("data import '%s': failed to read rows: %w", name, err)
	}
	defer rows.Close()

	var imported int64
	batch := make([][]any, 0, min(s.batchSize, 1024))
	flush := func() error {
		if err := s.ExecuteMany(ctx, insertSQL, batch); err != nil {
			return err
		}
		imported += int64(len(batch))
		s.logger.Info("imported rows", "import", name, "table", table, "rows", imported)
		if s.progress != nil {
			s.progress(table, len(batch))
		}
		batch = batch[:0]
		return nil
	}

	offset := 0
	if titleColumn != "" {
		offset = 1
	}
	for rows.Next() {
		row := rows.Row()
		if len(row)+offset > len(columns) {
			return imported, &SchemaError{
				Import: name,
				Reason: fmt.Sprintf("%d columns expected, but data contains %d. Check configured column names",
					len(columns), len(row)+offset),
			}
		}

		// Short rows are padded with NULL.
		values := make([]any, len(columns))
		if offset == 1 {
			values[0] = name
		}
		for i, v := range row {
			if IsBlank(v) {
				v = nil
			}
			values[offset+i] = v
		}
		batch = append(batch, values)

		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return imported, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return imported, fmt.Errorf("data import '%s': %w", name, err)
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return imported, err
		}
	}
	return imported, nil
}

// Query prepares a read-only statement. Column names and types come from a
// sampling run of the same statement limited to one row; when that run
// returns nothing the cursor reports its columns but no types. The statement
// itself runs when the cursor is first advanced, which lets callers create
// or drop tables on this store between Query and the first read.
func (s *Store) Query(ctx context.Context, query string, params ...any) (*Cursor, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	query = trimStatement(query)

	columns, types, err := s.sample(ctx, conn, query, params)
	if err != nil {
		return nil, err
	}

	exec := func() (*sql.Rows, error) {
		return conn.QueryContext(ctx, query, params...)
	}
	return &Cursor{sql: query, exec: exec, columns: columns, types: types}, nil
}

func (s *Store) sample(ctx context.Context, conn *sql.Conn, query string, params []any) ([]string, []TypeCategory, error) {
	sampleSQL := s.dialect.Sample(query)
	rows, err := conn.QueryContext(ctx, sampleSQL, params...)
	if err != nil {
		return nil, nil, &QueryError{SQL: sampleSQL, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, &QueryError{SQL: sampleSQL, Err: err}
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, nil, &QueryError{SQL: sampleSQL, Err: err}
		}
		return columns, []TypeCategory{}, nil
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, nil, &QueryError{SQL: sampleSQL, Err: err}
	}
	types := make([]TypeCategory, len(values))
	for i, v := range values {
		types[i] = CategoryOf(v)
	}
	return columns, types, nil
}

// Execute runs and commits a single statement, returning the number of rows
// affected.
func (s *Store) Execute(ctx context.Context, query string, params ...any) (int64, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return 0, err
	}
	res, err := conn.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, &QueryError{SQL: query, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

// ExecuteMany runs query once per parameter set inside one transaction.
func (s *Store) ExecuteMany(ctx context.Context, query string, batches [][]any) error {
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &QueryError{SQL: query, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return &QueryError{SQL: query, Err: err}
	}
	for _, params := range batches {
		if _, err := stmt.ExecContext(ctx, params...); err != nil {
			stmt.Close()
			tx.Rollback()
			return &QueryError{SQL: query, Err: err}
		}
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		return &QueryError{SQL: query, Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return nil
}
