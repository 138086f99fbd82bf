// Package output routes query results to their destinations. A destination
// path's extension, optionally overridden by a mode, selects one of a closed
// set of kinds; every kind is served either by a result handler or by a
// reporting feature writing into another store.
//
// Handlers for file formats live in subpackages that register themselves:
//
//	import _ "github.com/darianmavgo/mince/output/all"
package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/query"
)

// Kind is a destination category.
type Kind int

const (
	KindUnknown Kind = iota
	KindSpreadsheet
	KindDelimited
	KindHTML
	KindParquet
	KindTable
	KindReporting
	KindSlideDeck
)

func (k Kind) String() string {
	switch k {
	case KindSpreadsheet:
		return "spreadsheet"
	case KindDelimited:
		return "delimited"
	case KindHTML:
		return "html"
	case KindParquet:
		return "parquet"
	case KindTable:
		return "table"
	case KindReporting:
		return "reporting"
	case KindSlideDeck:
		return "slidedeck"
	}
	return "unknown"
}

// ModeNative routes a database destination to a reporting feature instead
// of a table handler.
const ModeNative = "native"

var extensions = map[string]Kind{
	".xlsx":    KindSpreadsheet,
	".xlsm":    KindSpreadsheet,
	".csv":     KindDelimited,
	".tsv":     KindDelimited,
	".html":    KindHTML,
	".htm":     KindHTML,
	".parquet": KindParquet,
	".db":      KindTable,
	".sqlite":  KindTable,
	".sqlite3": KindTable,
	".pptx":    KindSlideDeck,
}

// Destination describes where one query's result goes.
type Destination struct {
	Path        string
	Mode        string
	Engine      string // store dialect; set for database destinations whose path is a DSN or lacks a database extension
	Table       string
	TitleColumn string
	Worksheet   string
	Cell        string
	Header      bool
	Template    string // file copied to Path when Path does not exist yet
}

// UnsupportedOutputFormatError reports a destination outside the supported
// set of extensions and modes.
type UnsupportedOutputFormatError struct {
	Path string
	Mode string
}

func (e *UnsupportedOutputFormatError) Error() string {
	if e.Mode != "" {
		return fmt.Sprintf("unsupported output format: %s (mode %s)", e.Path, e.Mode)
	}
	return fmt.Sprintf("unsupported output format: %s", e.Path)
}

// KindOf resolves the kind of dest. A destination with an engine is a
// database whatever its path looks like.
func KindOf(dest Destination) (Kind, error) {
	kind, ok := extensions[strings.ToLower(filepath.Ext(dest.Path))]
	if dest.Engine != "" {
		kind, ok = KindTable, true
	}
	if !ok {
		return KindUnknown, &UnsupportedOutputFormatError{Path: dest.Path, Mode: dest.Mode}
	}

	switch strings.ToLower(dest.Mode) {
	case "":
		return kind, nil
	case ModeNative:
		if kind == KindTable {
			return KindReporting, nil
		}
	case "table":
		if kind == KindTable {
			return KindTable, nil
		}
	}
	return KindUnknown, &UnsupportedOutputFormatError{Path: dest.Path, Mode: dest.Mode}
}

// Sink is the routed consumer of a destination: a handler, or for
// KindReporting a reporting feature.
type Sink struct {
	Kind    Kind
	Handler query.ResultHandler
	Feature query.ReportingFeature
}

// Attach connects the sink to q.
func (s Sink) Attach(q *query.Query) {
	if s.Feature != nil {
		q.AddReportingFeature(s.Feature)
		return
	}
	q.SetOutputHandler(s.Handler)
}

// WriteError wraps an artifact I/O failure of a handler as a query error.
func WriteError(cur *database.Cursor, path string, err error) error {
	sql := ""
	if cur != nil {
		sql = cur.SQL()
	}
	return &database.QueryError{SQL: sql, Err: fmt.Errorf("failed to write %s: %w", path, err)}
}
