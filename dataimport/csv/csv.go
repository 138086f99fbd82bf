package csv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/darianmavgo/mince/dataimport"
)

func init() {
	dataimport.Register(".csv", Open)
	dataimport.Register(".tsv", openTSV)
	dataimport.Register(".txt", Open)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader reads a delimited text file whose first record is the header.
// Every field is reported as text.
type Reader struct {
	file    io.Closer
	reader  *csv.Reader
	headers []string
}

var _ dataimport.FileReader = (*Reader)(nil)

// Open opens a delimited file. The delimiter is detected from the header
// line unless cfg sets one.
func Open(path string, cfg *dataimport.ReaderConfig) (dataimport.FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var delimiter rune
	if cfg != nil {
		delimiter = cfg.Delimiter
	}
	r, err := NewReader(f, delimiter)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

func openTSV(path string, cfg *dataimport.ReaderConfig) (dataimport.FileReader, error) {
	if cfg == nil || cfg.Delimiter == 0 {
		cfg = &dataimport.ReaderConfig{Delimiter: '\t'}
	}
	return Open(path, cfg)
}

// NewReader reads the header from r. A zero delimiter is detected.
func NewReader(r io.Reader, delimiter rune) (*Reader, error) {
	br := bufio.NewReaderSize(r, 65536)
	if peek, _ := br.Peek(len(utf8BOM)); bytes.Equal(peek, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	if delimiter == 0 {
		peekBytes, _ := br.Peek(2048)
		sample := string(peekBytes)
		if idx := strings.IndexAny(sample, "\r\n"); idx != -1 {
			sample = sample[:idx]
		}
		delimiter = DetectDelimiter(sample)
	}

	reader := csv.NewReader(br)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("CSV file is empty")
		}
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	return &Reader{reader: reader, headers: headers}, nil
}

func (r *Reader) Fields() []dataimport.Field {
	fields := make([]dataimport.Field, len(r.headers))
	for i, h := range r.headers {
		fields[i] = dataimport.Field{Name: h, Type: "C"}
	}
	return fields
}

func (r *Reader) Next() ([]any, error) {
	record, err := r.reader.Read()
	if err != nil {
		return nil, err
	}
	row := make([]any, len(record))
	for i, v := range record {
		row[i] = v
	}
	return row, nil
}

func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// DetectDelimiter picks the most frequent of comma, tab, semicolon and pipe
// in line. Ties go to the earlier candidate; an empty line yields a comma.
func DetectDelimiter(line string) rune {
	if line == "" {
		return ','
	}

	delimiters := []rune{',', '\t', ';', '|'}
	maxCount := -1
	winner := ','

	for _, delim := range delimiters {
		count := strings.Count(line, string(delim))
		if count > maxCount {
			maxCount = count
			winner = delim
		}
	}

	return winner
}
