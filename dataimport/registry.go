package dataimport

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	readersMu sync.RWMutex
	readers   = make(map[string]Opener)
)

// Register makes a file reader available for a file extension such as ".dbf".
// If Register is called twice with the same extension or if opener is nil, it panics.
func Register(ext string, opener Opener) {
	readersMu.Lock()
	defer readersMu.Unlock()
	if opener == nil {
		panic("dataimport: Register opener is nil")
	}
	ext = strings.ToLower(ext)
	if _, dup := readers[ext]; dup {
		panic("dataimport: Register called twice for extension " + ext)
	}
	readers[ext] = opener
}

// Lookup returns the opener registered for path's extension.
func Lookup(path string) (Opener, error) {
	ext := strings.ToLower(filepath.Ext(path))
	readersMu.RLock()
	opener, ok := readers[ext]
	readersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dataimport: no reader for %q files (forgotten import?)", ext)
	}
	return opener, nil
}

// Readers returns a sorted list of the registered extensions.
func Readers() []string {
	readersMu.RLock()
	defer readersMu.RUnlock()
	list := make([]string, 0, len(readers))
	for ext := range readers {
		list = append(list, ext)
	}
	sort.Strings(list)
	return list
}
