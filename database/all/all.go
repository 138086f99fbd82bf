package all

import (
	// Import all the dialects so they register themselves
	_ "github.com/darianmavgo/mince/database/duckdb"
	_ "github.com/darianmavgo/mince/database/mssql"
	_ "github.com/darianmavgo/mince/database/postgres"
)
