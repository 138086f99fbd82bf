package spreadsheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/output"
	"github.com/darianmavgo/mince/query"

	"github.com/xuri/excelize/v2"
)

func init() {
	output.RegisterHandler(output.KindSpreadsheet, New)
}

const maxSheetName = 31

// Handler writes results into a worksheet of an Excel workbook. A missing
// workbook is created; an existing one is opened and saved in place. Rows
// start at the configured cell, or below the last used row of the sheet.
type Handler struct {
	path      string
	worksheet string
	cell      string
	header    bool
}

var _ query.ResultHandler = (*Handler)(nil)

func New(ctx context.Context, dest output.Destination, overwrite bool) (query.ResultHandler, error) {
	if dest.Cell != "" {
		if _, _, err := excelize.CellNameToCoordinates(dest.Cell); err != nil {
			return nil, fmt.Errorf("output %s: invalid cell %q: %w", dest.Path, dest.Cell, err)
		}
	}
	return &Handler{
		path:      dest.Path,
		worksheet: dest.Worksheet,
		cell:      dest.Cell,
		header:    dest.Header,
	}, nil
}

// SheetName returns a valid worksheet name: name if set, else title.
func SheetName(name, title string) string {
	if name == "" {
		name = title
	}
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.Trim(name, "'"))
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" {
		return "Sheet1"
	}
	return name
}

func (h *Handler) Handle(ctx context.Context, title string, cur *database.Cursor) error {
	created := !output.FileExists(h.path)

	var f *excelize.File
	if created {
		f = excelize.NewFile()
	} else {
		var err error
		if f, err = excelize.OpenFile(h.path); err != nil {
			return output.WriteError(cur, h.path, err)
		}
	}
	defer f.Close()

	sheet := SheetName(h.worksheet, title)
	if err := ensureSheet(f, sheet, created); err != nil {
		return output.WriteError(cur, h.path, err)
	}

	col, row := 1, 1
	if h.cell != "" {
		col, row, _ = excelize.CellNameToCoordinates(h.cell)
	} else {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return output.WriteError(cur, h.path, err)
		}
		row = len(rows) + 1
	}

	writeRow := func(values []any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		row++
		return f.SetSheetRow(sheet, cell, &values)
	}

	if h.header {
		header := make([]any, len(cur.Columns()))
		for i, c := range cur.Columns() {
			header[i] = c
		}
		if err := writeRow(header); err != nil {
			return output.WriteError(cur, h.path, err)
		}
	}

	for cur.Next() {
		values := cur.Row()
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		if err := writeRow(values); err != nil {
			return output.WriteError(cur, h.path, err)
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}

	var err error
	if created {
		err = f.SaveAs(h.path)
	} else {
		err = f.Save()
	}
	if err != nil {
		return output.WriteError(cur, h.path, err)
	}
	return nil
}

// ensureSheet makes sheet exist. A new workbook's default sheet is renamed
// rather than left empty beside it.
func ensureSheet(f *excelize.File, sheet string, created bool) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return nil
	}
	if created {
		if list := f.GetSheetList(); len(list) == 1 {
			return f.SetSheetName(list[0], sheet)
		}
	}
	_, err = f.NewSheet(sheet)
	return err
}
