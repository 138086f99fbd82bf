// Package postgres registers the "postgres" store dialect on top of the
// pgx database/sql driver. It is mostly used as the origin of query-backed
// imports; the DSN is passed to the driver verbatim.
package postgres

import (
	"github.com/darianmavgo/mince/database"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func init() {
	database.RegisterDialect(&database.Dialect{
		Name:       "postgres",
		DriverName: "pgx",
		TableExistsSQL: "SELECT 1 FROM information_schema.tables " +
			"WHERE table_schema = current_schema() AND table_name = $1",
		Placeholder: database.DollarPlaceholder,
		Quote:       database.DoubleQuote,
		Sample:      database.LimitSample,
		StorageType: StorageType,
	})
}

func StorageType(t database.TypeCategory) string {
	switch t {
	case database.TypeInteger:
		return "BIGINT"
	case database.TypeReal:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}
