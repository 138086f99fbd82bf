package database

import (
	"context"
	"database/sql"
)

// RowIterator is a lazy, single-pass sequence of rows. Next returns false
// once the sequence is exhausted or failed; Err tells the two apart.
type RowIterator interface {
	Next() bool
	Row() []any
	Err() error
	Close() error
	// Exhausted reports whether every row has been read.
	Exhausted() bool
}

// DataImport is a uniform view over a heterogeneous data origin.
type DataImport interface {
	Name() string
	Destination() string
	TitleColumn() string
	Columns(ctx context.Context) ([]string, error)
	Types(ctx context.Context) ([]TypeCategory, error)
	Rows(ctx context.Context) (RowIterator, error)
}

// Cursor is the result of Store.Query. It is single-pass: reading the
// results again requires running the query again. The statement runs on the
// first call to Next, so the store's connection holds no open statement
// between Query and the first read.
type Cursor struct {
	sql       string
	exec      func() (*sql.Rows, error)
	rows      *sql.Rows
	columns   []string
	types     []TypeCategory
	current   []any
	err       error
	exhausted bool
	closed    bool
}

var _ RowIterator = (*Cursor)(nil)

// SQL returns the statement the cursor reads.
func (c *Cursor) SQL() string { return c.sql }

// Columns returns the result's column names.
func (c *Cursor) Columns() []string { return c.columns }

// Types returns the column categories inferred from the first result row.
// It is empty when the query produced no rows.
func (c *Cursor) Types() []TypeCategory { return c.types }

// TypeAt returns the category of column i, text when it is not known.
func (c *Cursor) TypeAt(i int) TypeCategory {
	if i < len(c.types) {
		return c.types[i]
	}
	return TypeText
}

func (c *Cursor) Next() bool {
	if c.closed || c.exhausted {
		return false
	}
	if c.rows == nil {
		rows, err := c.exec()
		if err != nil {
			c.err = &QueryError{SQL: c.sql, Err: err}
			c.closed = true
			return false
		}
		c.rows = rows
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			c.err = &QueryError{SQL: c.sql, Err: err}
		} else {
			c.exhausted = true
		}
		c.Close()
		return false
	}

	values := make([]any, len(c.columns))
	ptrs := make([]any, len(c.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.err = &QueryError{SQL: c.sql, Err: err}
		c.Close()
		return false
	}
	for i, v := range values {
		// Drivers may reuse the backing array of []byte values.
		if b, ok := v.([]byte); ok {
			values[i] = append([]byte(nil), b...)
		}
	}
	c.current = values
	return true
}

// Row returns the row read by the last successful Next.
func (c *Cursor) Row() []any { return c.current }

func (c *Cursor) Err() error { return c.err }

func (c *Cursor) Exhausted() bool { return c.exhausted }

func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.rows == nil {
		return nil
	}
	return c.rows.Close()
}

// All drains the cursor into memory.
func (c *Cursor) All() ([][]any, error) {
	defer c.Close()
	var out [][]any
	for c.Next() {
		out = append(out, c.Row())
	}
	return out, c.Err()
}
