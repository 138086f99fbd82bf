package output

import (
	"context"
	"fmt"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/query"
)

// TableHandler writes query results into a table of a store. With overwrite
// set the table is recreated the first time the store writes to it during
// the run; otherwise rows are appended and the table is created only when it
// is missing. The optional title column receives the run title.
type TableHandler struct {
	store       *database.Store
	table       string
	titleColumn string
	overwrite   bool
}

var _ query.ResultHandler = (*TableHandler)(nil)

func NewTableHandler(store *database.Store, table, titleColumn string, overwrite bool) *TableHandler {
	return &TableHandler{store: store, table: table, titleColumn: titleColumn, overwrite: overwrite}
}

// Store returns the destination store.
func (h *TableHandler) Store() *database.Store { return h.store }

func (h *TableHandler) Handle(ctx context.Context, title string, cur *database.Cursor) error {
	src := &cursorImport{title: title, table: h.table, titleColumn: h.titleColumn, cur: cur}
	var err error
	if h.overwrite {
		_, err = h.store.ImportData(ctx, src)
	} else {
		_, err = h.store.AppendData(ctx, src)
	}
	if err != nil {
		return fmt.Errorf("output %s.%s: %w", h.store.Path(), h.table, err)
	}
	return nil
}

// cursorImport presents a query result as a data import.
type cursorImport struct {
	title       string
	table       string
	titleColumn string
	cur         *database.Cursor
}

func (c *cursorImport) Name() string        { return c.title }
func (c *cursorImport) Destination() string { return c.table }
func (c *cursorImport) TitleColumn() string { return c.titleColumn }

func (c *cursorImport) Columns(context.Context) ([]string, error) {
	return c.cur.Columns(), nil
}

func (c *cursorImport) Types(context.Context) ([]database.TypeCategory, error) {
	types := make([]database.TypeCategory, len(c.cur.Columns()))
	for i := range types {
		types[i] = c.cur.TypeAt(i)
	}
	return types, nil
}

func (c *cursorImport) Rows(context.Context) (database.RowIterator, error) {
	return c.cur, nil
}

// ReportingFeature persists a query's result into another store's table
// while leaving the query's SQL unchanged.
type ReportingFeature struct {
	*TableHandler
}

var _ query.ReportingFeature = (*ReportingFeature)(nil)

func NewReportingFeature(h *TableHandler) *ReportingFeature {
	return &ReportingFeature{TableHandler: h}
}

func (f *ReportingFeature) Name() string {
	return "report(" + f.store.Path() + ":" + f.table + ")"
}

func (f *ReportingFeature) PrepareQuery(ctx context.Context, sql string, provider query.FeatureProvider) (string, error) {
	return sql, nil
}
