package database

import "fmt"

// QueryError wraps any failure reported by the storage engine, or by an
// output artifact being written from a query result.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	if e.SQL == "" {
		return fmt.Sprintf("query error: %v", e.Err)
	}
	return fmt.Sprintf("query error: %v [sql: %s]", e.Err, e.SQL)
}

func (e *QueryError) Unwrap() error { return e.Err }

// StoreConnectionError is returned when the engine cannot open the store.
type StoreConnectionError struct {
	Path string
	Err  error
}

func (e *StoreConnectionError) Error() string {
	return fmt.Sprintf("error connecting to %s: %v", e.Path, e.Err)
}

func (e *StoreConnectionError) Unwrap() error { return e.Err }

// SchemaError reports a data import whose shape does not fit its table.
type SchemaError struct {
	Import string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("error processing data import '%s': %s", e.Import, e.Reason)
}

// UnmappedTypeError is a source type token with no storage category.
type UnmappedTypeError struct {
	Token string
}

func (e *UnmappedTypeError) Error() string {
	return fmt.Sprintf("unmapped column type %q", e.Token)
}
