// Package mssql registers the "sqlserver" store dialect.
package mssql

import (
	"strconv"
	"strings"

	"github.com/darianmavgo/mince/database"

	_ "github.com/microsoft/go-mssqldb"
)

func init() {
	database.RegisterDialect(&database.Dialect{
		Name:           "sqlserver",
		DriverName:     "sqlserver",
		TableExistsSQL: "SELECT 1 FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @p1",
		Placeholder:    Placeholder,
		Quote:          Quote,
		Sample:         Sample,
		StorageType:    StorageType,
	})
}

// Placeholder renders "@p1", "@p2", ...
func Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

// Quote brackets an identifier.
func Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// Sample limits query to its first row; SQL Server has no LIMIT clause.
func Sample(query string) string {
	return "SELECT TOP 1 * FROM (" + query + ") AS sample"
}

func StorageType(t database.TypeCategory) string {
	switch t {
	case database.TypeInteger:
		return "BIGINT"
	case database.TypeReal:
		return "FLOAT"
	default:
		return "NVARCHAR(MAX)"
	}
}
