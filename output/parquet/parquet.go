package parquet

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/output"
	"github.com/darianmavgo/mince/query"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

func init() {
	output.RegisterHandler(output.KindParquet, New)
}

// parallelism of the parquet page encoder
const writerParallelism = 4

var nonIdent = regexp.MustCompile(`[^0-9A-Za-z_]+`)

// Handler writes a result as a Snappy compressed Parquet file with one
// optional column per result column. Parquet files cannot be appended to: an
// existing file is replaced when overwriting and is an error otherwise.
type Handler struct {
	path      string
	overwrite bool
}

var _ query.ResultHandler = (*Handler)(nil)

func New(ctx context.Context, dest output.Destination, overwrite bool) (query.ResultHandler, error) {
	return &Handler{path: dest.Path, overwrite: overwrite}, nil
}

// Schema returns the CSV writer metadata for the given columns.
func Schema(columns []string, types []database.TypeCategory) []string {
	md := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		name := nonIdent.ReplaceAllString(c, "_")
		if name == "" {
			name = "col" + strconv.Itoa(i+1)
		}
		if n := seen[name]; n > 0 {
			name += "_" + strconv.Itoa(n)
		}
		seen[name]++

		var kind string
		switch category(types, i) {
		case database.TypeInteger:
			kind = "type=INT64"
		case database.TypeReal:
			kind = "type=DOUBLE"
		default:
			kind = "type=BYTE_ARRAY, convertedtype=UTF8"
		}
		md[i] = fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", name, kind)
	}
	return md
}

func category(types []database.TypeCategory, i int) database.TypeCategory {
	if i < len(types) {
		return types[i]
	}
	return database.TypeText
}

func (h *Handler) Handle(ctx context.Context, title string, cur *database.Cursor) error {
	if !h.overwrite && output.FileExists(h.path) {
		return output.WriteError(cur, h.path, fmt.Errorf("parquet files cannot be appended to; enable overwrite"))
	}

	types := make([]database.TypeCategory, len(cur.Columns()))
	for i := range types {
		types[i] = cur.TypeAt(i)
	}

	fw, err := local.NewLocalFileWriter(h.path)
	if err != nil {
		return output.WriteError(cur, h.path, err)
	}
	pw, err := writer.NewCSVWriter(Schema(cur.Columns(), types), fw, writerParallelism)
	if err != nil {
		fw.Close()
		return output.WriteError(cur, h.path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for cur.Next() {
		row := cur.Row()
		rec := make([]any, len(row))
		for i, v := range row {
			rec[i] = convert(v, types[i])
		}
		if err := pw.Write(rec); err != nil {
			fw.Close()
			return output.WriteError(cur, h.path, err)
		}
	}
	if err := cur.Err(); err != nil {
		fw.Close()
		return err
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return output.WriteError(cur, h.path, err)
	}
	if err := fw.Close(); err != nil {
		return output.WriteError(cur, h.path, err)
	}
	return nil
}

// convert coerces v to the Go type of its column; values that do not fit
// become null.
func convert(v any, t database.TypeCategory) any {
	if v == nil {
		return nil
	}
	switch t {
	case database.TypeInteger:
		switch x := v.(type) {
		case int64:
			return x
		case int:
			return int64(x)
		case int32:
			return int64(x)
		case bool:
			if x {
				return int64(1)
			}
			return int64(0)
		case float64:
			return int64(x)
		}
		if n, err := strconv.ParseInt(database.Stringify(v), 10, 64); err == nil {
			return n
		}
		return nil
	case database.TypeReal:
		switch x := v.(type) {
		case float64:
			return x
		case float32:
			return float64(x)
		case int64:
			return float64(x)
		}
		if f, err := strconv.ParseFloat(database.Stringify(v), 64); err == nil {
			return f
		}
		return nil
	}
	return database.Stringify(v)
}
