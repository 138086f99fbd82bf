// Package dbf reads dBASE III/IV and FoxPro table files with go-dbase.
//
// Character fields are decoded from the file's code page, taken in order
// from the reader configuration, a sibling .cpg file, or the language driver
// byte of the header. Numeric fields without decimals become int64, numeric
// fields with decimals and float fields become float64.
package dbf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/darianmavgo/mince/dataimport"

	"github.com/Valentin-Kaiser/go-dbase/dbase"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

func init() {
	dataimport.Register(".dbf", Open)
}

// offset of the language driver id in the file header
const languageDriverOffset = 29

// language driver IDs found in the header.
var languageDrivers = map[byte]encoding.Encoding{
	0x01: charmap.CodePage437,
	0x02: charmap.CodePage850,
	0x03: charmap.Windows1252,
	0x57: charmap.Windows1252,
	0x64: charmap.CodePage852,
	0x65: charmap.CodePage866,
	0x66: charmap.CodePage865,
	0xC8: charmap.Windows1250,
	0xC9: charmap.Windows1251,
	0xCA: charmap.Windows1254,
	0xCB: charmap.Windows1253,
}

var codePages = map[string]encoding.Encoding{
	"437":  charmap.CodePage437,
	"850":  charmap.CodePage850,
	"852":  charmap.CodePage852,
	"865":  charmap.CodePage865,
	"866":  charmap.CodePage866,
	"1250": charmap.Windows1250,
	"1251": charmap.Windows1251,
	"1252": charmap.Windows1252,
	"1253": charmap.Windows1253,
	"1254": charmap.Windows1254,
}

// codePage adapts an x/text encoding to a go-dbase converter. A nil
// encoding passes bytes through unchanged.
type codePage struct {
	enc encoding.Encoding
	id  byte
}

var _ dbase.EncodingConverter = codePage{}

func (c codePage) Decode(in []byte) ([]byte, error) {
	if c.enc == nil {
		return in, nil
	}
	return c.enc.NewDecoder().Bytes(in)
}

func (c codePage) Encode(in []byte) ([]byte, error) {
	if c.enc == nil {
		return in, nil
	}
	return c.enc.NewEncoder().Bytes(in)
}

func (c codePage) CodePage() byte { return c.id }

// Reader reads the live records of one DBF file.
type Reader struct {
	table      *dbase.File
	fields     []dataimport.Field
	LanguageID byte
}

var _ dataimport.FileReader = (*Reader)(nil)

// Open opens a DBF file.
func Open(path string, cfg *dataimport.ReaderConfig) (dataimport.FileReader, error) {
	name := ""
	if cfg != nil {
		name = cfg.Encoding
	}
	if name == "" {
		name = readCPG(path)
	}
	var enc encoding.Encoding
	if name != "" {
		var err error
		if enc, err = LookupEncoding(name); err != nil {
			return nil, err
		}
	}
	return OpenFile(path, enc)
}

// OpenFile opens path decoding text with enc. When enc is nil the language
// driver byte chooses the code page; without one, text is passed through as
// is.
func OpenFile(path string, enc encoding.Encoding) (*Reader, error) {
	ldid, err := readLanguageDriver(path)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		enc = languageDrivers[ldid]
	}

	table, err := dbase.OpenTable(&dbase.Config{
		Filename:   path,
		Converter:  codePage{enc: enc, id: ldid},
		TrimSpaces: true,
		Untested:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open dbf %s: %w", path, err)
	}

	r := &Reader{table: table, LanguageID: ldid}
	for _, col := range table.Columns() {
		if col.Length == 0 {
			table.Close()
			return nil, fmt.Errorf("%s: field %s has zero width", path, col.Name())
		}
		r.fields = append(r.fields, dataimport.Field{Name: col.Name(), Type: col.Type()})
	}
	return r, nil
}

// readLanguageDriver returns the language driver id of the header.
func readLanguageDriver(path string) (byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var hdr [languageDriverOffset + 1]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return 0, fmt.Errorf("failed to read dbf header: %w", err)
	}
	return hdr[languageDriverOffset], nil
}

// readCPG returns the contents of the .cpg file next to path, if any.
func readCPG(path string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".cpg", ".CPG"} {
		if b, err := os.ReadFile(base + ext); err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	return ""
}

// LookupEncoding resolves a code page name such as "1252", "cp850",
// "windows-1251", "ANSI 1252" or any IANA charset name. UTF-8 resolves to
// nil, meaning no decoding.
func LookupEncoding(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	key := n
	for _, prefix := range []string{"ansi ", "windows-", "cp", "ibm"} {
		key = strings.TrimPrefix(key, prefix)
	}
	if enc, ok := codePages[key]; ok {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

func (r *Reader) Fields() []dataimport.Field { return r.fields }

// Next returns the next record that is not marked deleted.
func (r *Reader) Next() ([]any, error) {
	for !r.table.EOF() {
		row, err := r.table.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read dbf record: %w", err)
		}
		if row.Deleted {
			continue
		}
		values := make([]any, len(r.fields))
		for i := range values {
			if f := row.Field(i); f != nil {
				values[i] = f.GetValue()
			}
		}
		return values, nil
	}
	return nil, io.EOF
}

func (r *Reader) Close() error {
	return r.table.Close()
}
