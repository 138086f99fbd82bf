package database

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Dialect describes how the store talks to one storage engine through
// database/sql.
type Dialect struct {
	Name       string
	DriverName string
	// FileBased dialects resolve the store path to an absolute file path.
	FileBased bool
	// TableExistsSQL takes the table name as its single parameter.
	TableExistsSQL string
	// Pragmas run once after the connection is opened.
	Pragmas []string

	Placeholder func(n int) string
	Quote       func(ident string) string
	Sample      func(query string) string
	StorageType func(t TypeCategory) string
}

var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]*Dialect)
)

// DefaultDialect is used when a store is created without WithDialect.
const DefaultDialect = "sqlite"

// RegisterDialect makes a dialect available by name.
// If RegisterDialect is called twice with the same name or if d is nil, it panics.
func RegisterDialect(d *Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	if d == nil {
		panic("database: RegisterDialect dialect is nil")
	}
	if _, dup := dialects[d.Name]; dup {
		panic("database: RegisterDialect called twice for dialect " + d.Name)
	}
	dialects[d.Name] = d
}

// LookupDialect returns a registered dialect.
func LookupDialect(name string) (*Dialect, error) {
	if name == "" {
		name = DefaultDialect
	}
	dialectsMu.RLock()
	d, ok := dialects[name]
	dialectsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database: unknown dialect %q (forgotten import?)", name)
	}
	return d, nil
}

// Dialects returns a sorted list of the registered dialect names.
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	list := make([]string, 0, len(dialects))
	for name := range dialects {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// QuestionPlaceholder renders "?" for every position.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders "$1", "$2", ...
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// DoubleQuote quotes an identifier the ANSI way.
func DoubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// LimitSample wraps query for the LIMIT-style engines.
func LimitSample(query string) string {
	return "SELECT * FROM (" + query + ") AS sample LIMIT 1"
}

// StandardStorageType is the TEXT/INTEGER/REAL mapping shared by most engines.
func StandardStorageType(t TypeCategory) string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func init() {
	RegisterDialect(&Dialect{
		Name:           "sqlite",
		DriverName:     "sqlite",
		FileBased:      true,
		TableExistsSQL: "SELECT 1 FROM sqlite_master WHERE type='table' AND name=?",
		Pragmas:        []string{"PRAGMA page_size = 65536", "PRAGMA cache_size = -2000"},
		Placeholder:    QuestionPlaceholder,
		Quote:          DoubleQuote,
		Sample:         LimitSample,
		StorageType:    StandardStorageType,
	})
}
