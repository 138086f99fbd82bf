// Package runner executes a run file: it opens the working store, imports
// every configured file or query into it, then runs the report queries and
// routes each result to its destination.
//
// Steps run in configuration order. The first failing step ends the run;
// data committed by earlier steps, and by earlier batches of the failing
// import, is kept.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/darianmavgo/mince/config"
	"github.com/darianmavgo/mince/database"
	_ "github.com/darianmavgo/mince/database/all"
	"github.com/darianmavgo/mince/dataimport"
	_ "github.com/darianmavgo/mince/dataimport/all"
	"github.com/darianmavgo/mince/logging"
	"github.com/darianmavgo/mince/metrics"
	"github.com/darianmavgo/mince/output"
	_ "github.com/darianmavgo/mince/output/all"
	"github.com/darianmavgo/mince/query"
	"github.com/darianmavgo/mince/template"

	"github.com/google/uuid"
)

// TitleLayout formats the default run title from the run's start time.
const TitleLayout = "2006-01-02"

// Summary describes a finished, or partially finished, run.
type Summary struct {
	RunID string
	Title string
	// Imported maps import names to the rows they committed.
	Imported map[string]int64
	// Queries maps query names to the SQL that was executed.
	Queries map[string]string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger; the run id is added to it.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithStallTimeout cancels the run when neither an import batch nor a step
// completes within d. Zero disables the check.
func WithStallTimeout(d time.Duration) Option {
	return func(r *Runner) { r.stallTimeout = d }
}

// WithTemplateProvider makes p available to queries alongside the providers
// defined in the run file.
func WithTemplateProvider(p query.TemplateProvider) Option {
	return func(r *Runner) { r.providers = append(r.providers, p) }
}

// WithHandler serves kind with f for this run, e.g. slide decks, which have
// no built-in handler.
func WithHandler(kind output.Kind, f output.Factory) Option {
	return func(r *Runner) { r.handlers[kind] = f }
}

// Runner executes one configuration.
type Runner struct {
	cfg          *config.Config
	logger       *slog.Logger
	stallTimeout time.Duration
	providers    []query.TemplateProvider
	handlers     map[output.Kind]output.Factory
	now          func() time.Time
}

// New validates cfg and prepares a runner for it.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("runner: no configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	r := &Runner{
		cfg:      cfg,
		logger:   slog.Default(),
		handlers: make(map[output.Kind]output.Factory),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes cfg once.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) (*Summary, error) {
	r, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Run executes the configuration. The returned summary covers the steps
// that completed, also when an error is returned.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	started := r.now()
	sum := &Summary{
		RunID:    uuid.NewString(),
		Title:    r.cfg.Title,
		Imported: make(map[string]int64),
		Queries:  make(map[string]string),
	}
	if sum.Title == "" {
		sum.Title = started.Format(TitleLayout)
	}
	logger := logging.WithFields(r.logger, "run_id", sum.RunID)

	rec, err := r.recorder()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rec.Push(sum.RunID); err != nil {
			logger.Warn("failed to push metrics", "error", err)
		}
	}()

	dog := newWatchdog(r.stallTimeout, logger)
	ctx = dog.Start(ctx)
	defer dog.Stop()
	progress := func(table string, rows int) {
		rec.Batch(table, rows)
		dog.Kick()
	}

	logger.Info("run started", "title", sum.Title, "database", r.cfg.Database.Path)
	err = r.execute(ctx, logger, sum, rec, dog, progress)
	if err != nil && errors.Is(context.Cause(ctx), ErrStalled) {
		err = fmt.Errorf("%w: %w", ErrStalled, err)
	}
	if err != nil {
		return sum, err
	}
	logger.Info("run finished",
		"imports", len(sum.Imported),
		"queries", len(sum.Queries),
		"elapsed", time.Since(started).Round(time.Millisecond))
	return sum, nil
}

func (r *Runner) execute(ctx context.Context, logger *slog.Logger, sum *Summary, rec *metrics.Recorder, dog *watchdog, progress database.ProgressFunc) (err error) {
	store, err := openStore(r.cfg.Database.Path, r.cfg.Database.Engine,
		database.WithBatchSize(r.cfg.BatchSize),
		database.WithLogger(logger),
		database.WithProgress(progress))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", store, cerr)
		}
	}()

	sources := make(map[string]*database.Store)
	defer func() {
		for _, s := range sources {
			s.Close()
		}
	}()

	for _, ic := range r.cfg.Imports {
		stepStarted := time.Now()
		n, err := r.importOne(ctx, logger, store, sources, ic)
		rec.Step("import", stepStarted, err)
		dog.Kick()
		if err != nil {
			return fmt.Errorf("import %q failed: %w", ic.Name, err)
		}
		sum.Imported[ic.Name] = n
	}

	if len(r.cfg.Queries) == 0 {
		return nil
	}
	providers, err := r.templates()
	if err != nil {
		return err
	}

	router := output.NewRouter(r.cfg.Overwrite,
		output.WithLogger(logger),
		output.WithStoreOptions(database.WithBatchSize(r.cfg.BatchSize), database.WithProgress(progress)))
	router.UseStore(store.Path(), store)
	for kind, f := range r.handlers {
		router.Register(kind, f)
	}
	defer func() {
		if cerr := router.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output stores: %w", cerr)
		}
	}()

	conn := query.StoreProvider{Conn: store}
	for _, qc := range r.cfg.Queries {
		stepStarted := time.Now()
		sql, err := r.runQuery(ctx, router, providers, conn, qc, sum.Title)
		rec.Step("query", stepStarted, err)
		dog.Kick()
		if err != nil {
			return fmt.Errorf("query %q failed: %w", qc.Name, err)
		}
		logger.Info("query finished", "query", qc.Name, "elapsed", time.Since(stepStarted).Round(time.Millisecond))
		sum.Queries[qc.Name] = sql
	}
	return nil
}

func (r *Runner) recorder() (*metrics.Recorder, error) {
	m := r.cfg.Metrics
	if m == nil {
		return nil, nil
	}
	rec, err := metrics.New(m.Job, m.Pushgateway)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}
	return rec, nil
}

func openStore(path, engine string, opts ...database.Option) (*database.Store, error) {
	if (engine == "" || engine == database.DefaultDialect) && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return database.NewStore(path, append([]database.Option{database.WithEngine(engine)}, opts...)...)
}

func (r *Runner) source(logger *slog.Logger, sources map[string]*database.Store, name string) (*database.Store, error) {
	if s, ok := sources[name]; ok {
		return s, nil
	}
	for _, sc := range r.cfg.Sources {
		if sc.Name != name {
			continue
		}
		s, err := database.NewStore(sc.DSN,
			database.WithEngine(sc.Engine),
			database.WithLogger(logging.WithFields(logger, "source", name)))
		if err != nil {
			return nil, err
		}
		sources[name] = s
		return s, nil
	}
	return nil, fmt.Errorf("unknown source %q", name)
}

func (r *Runner) importOne(ctx context.Context, logger *slog.Logger, store *database.Store, sources map[string]*database.Store, ic config.ImportConfig) (int64, error) {
	logger = logging.WithFields(logger, "import", ic.Name)

	if ic.File != "" {
		rc := &dataimport.ReaderConfig{Encoding: ic.Encoding, Sheet: ic.Sheet}
		if ic.Delimiter != "" {
			rc.Delimiter, _ = utf8.DecodeRuneInString(ic.Delimiter)
		}
		fi, err := dataimport.NewFileImport(ic.Name, ic.File, ic.Table, ic.TitleColumn, rc)
		if err != nil {
			return 0, err
		}
		logger.Info("importing file", "file", ic.File, "table", fi.Destination())
		return store.ImportData(ctx, fi)
	}

	var db dataimport.Querier = store
	if ic.Source != "" {
		s, err := r.source(logger, sources, ic.Source)
		if err != nil {
			return 0, err
		}
		db = s
	}
	opts := dataimport.SQLOptions{
		Destination: ic.Table,
		TitleColumn: ic.TitleColumn,
		NullValues:  ic.NullValues,
	}
	if ic.DBNull != nil {
		opts.DBNull = *ic.DBNull
	}
	si := dataimport.NewSQLImport(ic.Name, db, ic.Query, opts)
	defer si.Close()
	logger.Info("importing query", "source", ic.Source, "table", si.Destination())
	return store.ImportData(ctx, si)
}

// providerSet resolves provider names: providers from the run file and
// WithTemplateProvider first, then the package registry.
type providerSet struct {
	local *template.Registry
}

func (p providerSet) Lookup(name string) (query.TemplateProvider, error) {
	if tp, err := p.local.Lookup(name); err == nil {
		return tp, nil
	}
	return template.Lookup(name)
}

func (r *Runner) templates() (providerSet, error) {
	reg := template.NewRegistry()
	for _, tc := range r.cfg.Templates {
		p, err := template.NewDistinctValues(tc.Name, tc.Query, tc.Strings, tc.Separators)
		if err != nil {
			return providerSet{}, fmt.Errorf("template %q: %w", tc.Name, err)
		}
		reg.Register(p)
	}
	for _, p := range r.providers {
		if _, err := reg.Lookup(p.Name()); err == nil {
			return providerSet{}, fmt.Errorf("template %q defined twice", p.Name())
		}
		reg.Register(p)
	}
	return providerSet{local: reg}, nil
}

func (r *Runner) runQuery(ctx context.Context, router *output.Router, providers providerSet, conn query.FeatureProvider, qc config.QueryConfig, title string) (string, error) {
	params := make([]any, len(qc.Params))
	for i, p := range qc.Params {
		params[i] = p
	}
	q := query.New(qc.Name, qc.SQL, params...)
	for _, name := range qc.Templates {
		p, err := providers.Lookup(name)
		if err != nil {
			return "", err
		}
		q.AddFeature(query.NewTemplatedFeature(p))
	}
	if qc.Output != nil {
		sink, err := router.Route(ctx, Destination(qc.Output))
		if err != nil {
			return "", err
		}
		sink.Attach(q)
	}
	return q.Run(ctx, conn, title)
}

// Destination translates an output block into a routable destination.
// Database outputs default to the sqlite engine.
func Destination(o *config.OutputConfig) output.Destination {
	dest := output.Destination{
		Path:        o.File,
		Mode:        o.Mode,
		Engine:      o.Engine,
		Table:       o.Table,
		TitleColumn: o.TitleColumn,
		Worksheet:   o.Worksheet,
		Cell:        o.Cell,
		Header:      o.WantHeader(),
		Template:    o.Template,
	}
	if o.Database != "" {
		dest.Path = o.Database
		if dest.Engine == "" {
			dest.Engine = database.DefaultDialect
		}
	}
	return dest
}
