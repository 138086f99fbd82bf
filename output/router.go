package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/darianmavgo/mince/database"
	"github.com/darianmavgo/mince/query"
)

// Factory builds the handler for a file destination. The router has already
// prepared the path: parent directories exist, and with overwrite set any
// file left from an earlier run is gone.
type Factory func(ctx context.Context, dest Destination, overwrite bool) (query.ResultHandler, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[Kind]Factory)
)

// RegisterHandler makes a handler factory available for kind to every
// router. If RegisterHandler is called twice for a kind or if f is nil, it
// panics.
func RegisterHandler(kind Kind, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if f == nil {
		panic("output: RegisterHandler factory is nil")
	}
	if _, dup := factories[kind]; dup {
		panic("output: RegisterHandler called twice for kind " + kind.String())
	}
	factories[kind] = f
}

// Handlers returns the sorted names of the globally registered kinds.
func Handlers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	list := make([]string, 0, len(factories))
	for k := range factories {
		list = append(list, k.String())
	}
	sort.Strings(list)
	return list
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// WithStoreOptions sets the options of the stores opened for database
// destinations.
func WithStoreOptions(opts ...database.Option) RouterOption {
	return func(r *Router) { r.storeOpts = opts }
}

// Router resolves destinations to sinks for one run. It owns the stores
// opened for database destinations until Close.
type Router struct {
	overwrite bool
	logger    *slog.Logger
	storeOpts []database.Option

	local    map[Kind]Factory
	stores   map[string]*database.Store
	shared   map[string]*database.Store
	prepared map[string]struct{}
}

func NewRouter(overwrite bool, opts ...RouterOption) *Router {
	r := &Router{
		overwrite: overwrite,
		logger:    slog.Default(),
		local:     make(map[Kind]Factory),
		stores:    make(map[string]*database.Store),
		shared:    make(map[string]*database.Store),
		prepared:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Overwrite reports the router's overwrite policy.
func (r *Router) Overwrite() bool { return r.overwrite }

// Register sets the factory for kind on this router only, taking precedence
// over RegisterHandler.
func (r *Router) Register(kind Kind, f Factory) {
	r.local[kind] = f
}

// UseStore makes database destinations at path write through s instead of
// a store of their own. The router does not close s.
func (r *Router) UseStore(path string, s *database.Store) {
	r.shared[path] = s
}

// Kind resolves the kind of dest.
func (r *Router) Kind(dest Destination) (Kind, error) {
	return KindOf(dest)
}

func (r *Router) factory(kind Kind) (Factory, bool) {
	if f, ok := r.local[kind]; ok {
		return f, true
	}
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[kind]
	return f, ok
}

// Route resolves dest to its sink.
func (r *Router) Route(ctx context.Context, dest Destination) (Sink, error) {
	kind, err := KindOf(dest)
	if err != nil {
		return Sink{}, err
	}

	switch kind {
	case KindTable, KindReporting:
		store, err := r.store(dest)
		if err != nil {
			return Sink{}, err
		}
		table := NewTableHandler(store, dest.Table, dest.TitleColumn, r.overwrite)
		if kind == KindReporting {
			return Sink{Kind: kind, Feature: NewReportingFeature(table)}, nil
		}
		return Sink{Kind: kind, Handler: table}, nil
	}

	f, ok := r.factory(kind)
	if !ok {
		return Sink{}, &UnsupportedOutputFormatError{Path: dest.Path, Mode: dest.Mode}
	}
	if err := r.prepareFile(dest); err != nil {
		return Sink{}, err
	}
	h, err := f(ctx, dest, r.overwrite)
	if err != nil {
		return Sink{}, err
	}
	r.logger.Debug("routed output", "path", dest.Path, "kind", kind.String())
	return Sink{Kind: kind, Handler: h}, nil
}

func (r *Router) store(dest Destination) (*database.Store, error) {
	if dest.Table == "" {
		return nil, fmt.Errorf("output %s: no table configured", dest.Path)
	}
	if s, ok := r.shared[dest.Path]; ok {
		return s, nil
	}
	if abs, err := filepath.Abs(dest.Path); err == nil {
		if s, ok := r.shared[abs]; ok {
			return s, nil
		}
	}
	key := dest.Engine + "|" + dest.Path
	if s, ok := r.stores[key]; ok {
		return s, nil
	}
	if dest.Engine == "" || dest.Engine == database.DefaultDialect {
		if err := os.MkdirAll(filepath.Dir(dest.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	opts := append([]database.Option{database.WithEngine(dest.Engine), database.WithLogger(r.logger)}, r.storeOpts...)
	s, err := database.NewStore(dest.Path, opts...)
	if err != nil {
		return nil, err
	}
	r.stores[key] = s
	return s, nil
}

// prepareFile runs once per path and router: it creates the parent
// directory, removes an existing file when overwriting, and copies the
// template into place when the file does not exist.
func (r *Router) prepareFile(dest Destination) error {
	if _, done := r.prepared[dest.Path]; done {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest.Path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if r.overwrite {
		if err := os.Remove(dest.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", dest.Path, err)
		}
	}
	if dest.Template != "" && !FileExists(dest.Path) {
		if err := copyFile(dest.Template, dest.Path); err != nil {
			return fmt.Errorf("failed to copy template %s: %w", dest.Template, err)
		}
	}
	r.prepared[dest.Path] = struct{}{}
	return nil
}

// Close closes every store the router opened.
func (r *Router) Close() error {
	var errs []error
	for key, s := range r.stores {
		errs = append(errs, s.Close())
		delete(r.stores, key)
	}
	return errors.Join(errs...)
}

// FileExists reports whether path exists. Handlers use it to choose between
// creating an artifact and updating it.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
