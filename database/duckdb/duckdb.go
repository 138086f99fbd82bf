// Package duckdb registers the "duckdb" store dialect.
package duckdb

import (
	"github.com/darianmavgo/mince/database"

	_ "github.com/marcboeker/go-duckdb"
)

func init() {
	database.RegisterDialect(&database.Dialect{
		Name:           "duckdb",
		DriverName:     "duckdb",
		FileBased:      true,
		TableExistsSQL: "SELECT 1 FROM information_schema.tables WHERE table_name = ?",
		Placeholder:    database.QuestionPlaceholder,
		Quote:          database.DoubleQuote,
		Sample:         database.LimitSample,
		StorageType:    StorageType,
	})
}

// StorageType maps categories to DuckDB's 64-bit types.
func StorageType(t database.TypeCategory) string {
	switch t {
	case database.TypeInteger:
		return "BIGINT"
	case database.TypeReal:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}
