// Package markdown reads the pipe tables of a Markdown document.
package markdown

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/darianmavgo/mince/dataimport"
)

func init() {
	dataimport.Register(".md", Open)
	dataimport.Register(".markdown", Open)
}

var (
	headingRegex   = regexp.MustCompile(`^#{1,6}\s+(.*?)\s*#*$`)
	tableRowRegex  = regexp.MustCompile(`^\s*\|`)
	separatorRegex = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?\s*$`)
)

// Table is a pipe table and the heading above it.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Reader returns the rows of one table. Cells are text.
type Reader struct {
	table *Table
	next  int
}

var _ dataimport.FileReader = (*Reader)(nil)

// Open reads the table under the heading cfg.Sheet, or the first table.
func Open(path string, cfg *dataimport.ReaderConfig) (dataimport.FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Markdown file: %w", err)
	}
	defer f.Close()

	name := ""
	if cfg != nil {
		name = cfg.Sheet
	}
	return NewReader(f, name)
}

// NewReader parses src and selects the table named name, or the first one.
func NewReader(src io.Reader, name string) (*Reader, error) {
	tables, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables found in Markdown")
	}
	if name == "" {
		return &Reader{table: &tables[0]}, nil
	}
	for i := range tables {
		if tables[i].Name == name {
			return &Reader{table: &tables[i]}, nil
		}
	}
	return nil, fmt.Errorf("table %q not found", name)
}

func (r *Reader) Fields() []dataimport.Field {
	fields := make([]dataimport.Field, len(r.table.Headers))
	for i, h := range r.table.Headers {
		fields[i] = dataimport.Field{Name: h, Type: "C"}
	}
	return fields
}

func (r *Reader) Next() ([]any, error) {
	if r.next >= len(r.table.Rows) {
		return nil, io.EOF
	}
	cells := r.table.Rows[r.next]
	r.next++
	row := make([]any, len(cells))
	for i, v := range cells {
		row[i] = v
	}
	return row, nil
}

func (r *Reader) Close() error { return nil }

// Parse returns the pipe tables of the document. A table is a row of pipe
// separated cells followed by a delimiter row; it ends at the first line
// without a pipe. Each table takes the name of the closest heading above it.
func Parse(src io.Reader) ([]Table, error) {
	var lines []string
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Markdown: %w", err)
	}

	var tables []Table
	heading := ""
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if m := headingRegex.FindStringSubmatch(line); m != nil {
			heading = m[1]
			continue
		}
		if !tableRowRegex.MatchString(line) || i+1 >= len(lines) || !separatorRegex.MatchString(lines[i+1]) {
			continue
		}

		t := Table{Name: heading, Headers: splitRow(line)}
		i += 2
		for ; i < len(lines) && strings.Contains(lines[i], "|"); i++ {
			t.Rows = append(t.Rows, splitRow(lines[i]))
		}
		i--
		tables = append(tables, t)
		heading = ""
	}
	return tables, nil
}

// splitRow splits a table row on unescaped pipes.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}

	var cells []string
	var sb strings.Builder
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			sb.WriteByte('|')
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(sb.String()))
			sb.Reset()
		default:
			sb.WriteByte(line[i])
		}
	}
	return append(cells, strings.TrimSpace(sb.String()))
}
