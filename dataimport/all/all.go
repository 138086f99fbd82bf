package all

import (
	// Import all the readers so they register themselves
	_ "github.com/darianmavgo/mince/dataimport/csv"
	_ "github.com/darianmavgo/mince/dataimport/dbf"
	_ "github.com/darianmavgo/mince/dataimport/excel"
	_ "github.com/darianmavgo/mince/dataimport/html"
	_ "github.com/darianmavgo/mince/dataimport/json"
	_ "github.com/darianmavgo/mince/dataimport/markdown"
)
