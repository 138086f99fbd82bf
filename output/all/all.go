package all

import (
	// Import all the handlers so they register themselves
	_ "github.com/darianmavgo/mince/output/delimited"
	_ "github.com/darianmavgo/mince/output/html"
	_ "github.com/darianmavgo/mince/output/parquet"
	_ "github.com/darianmavgo/mince/output/spreadsheet"
)
