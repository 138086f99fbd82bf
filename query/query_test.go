package query

import (
	"context"
	"errors"
	"testing"

	"github.com/darianmavgo/mince/database"
)

type staticProvider struct {
	name   string
	values map[string]string
	calls  int
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) GetStrings(ctx context.Context, conn Connection) (map[string]string, error) {
	p.calls++
	return p.values, nil
}

func TestInterpolate(t *testing.T) {
	values := map[string]string{"cols": "a.bar AS a", "tbl": "t a"}
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"Placeholders", "SELECT %(cols)s FROM %(tbl)s", "SELECT a.bar AS a FROM t a"},
		{"EscapedPercent", "SELECT * FROM t WHERE x LIKE 'a%%'", "SELECT * FROM t WHERE x LIKE 'a%'"},
		{"LonePercent", "SELECT 5 % 2", "SELECT 5 % 2"},
		{"TrailingPercent", "100%", "100%"},
		{"NotAConversion", "%(cols)d", "%(cols)d"},
		{"Unterminated", "%(cols", "%(cols"},
		{"Repeated", "%(tbl)s/%(tbl)s", "t a/t a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Interpolate(tt.text, values)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.expected {
				t.Errorf("Interpolate(%q) = %q, want %q", tt.text, got, tt.expected)
			}
		})
	}
}

func TestTemplatedFeature(t *testing.T) {
	p := &staticProvider{name: "foo_types", values: map[string]string{"cols": "a.bar AS a", "tbl": "t a"}}
	f := NewTemplatedFeature(p)

	got, err := f.PrepareQuery(context.Background(), "SELECT %(cols)s FROM %(tbl)s", StoreProvider{Conn: nopConn{}})
	if err != nil {
		t.Fatal(err)
	}
	if want := "SELECT a.bar AS a FROM t a"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if p.calls != 1 {
		t.Errorf("provider asked %d times, want 1", p.calls)
	}
}

func TestTemplatedFeatureMissingKey(t *testing.T) {
	const sql = "SELECT %(cols)s FROM %(tbl)s"
	p := &staticProvider{name: "foo_types", values: map[string]string{"cols": "a.bar AS a"}}
	f := NewTemplatedFeature(p)

	_, err := f.PrepareQuery(context.Background(), sql, StoreProvider{Conn: nopConn{}})
	var incomplete *IncompleteTemplateError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteTemplateError, got %v", err)
	}
	if incomplete.Key != "tbl" {
		t.Errorf("key = %q, want tbl", incomplete.Key)
	}
	if incomplete.SQL != sql {
		t.Errorf("sql = %q, want the unresolved text", incomplete.SQL)
	}
	if incomplete.Provider != "foo_types" {
		t.Errorf("provider = %q, want foo_types", incomplete.Provider)
	}
}

func TestTemplatedFeatureWithoutConnection(t *testing.T) {
	f := NewTemplatedFeature(&staticProvider{name: "p"})
	for _, provider := range []FeatureProvider{nil, StoreProvider{}} {
		_, err := f.PrepareQuery(context.Background(), "SELECT 1", provider)
		var unsupported *UnsupportedFeatureError
		if !errors.As(err, &unsupported) {
			t.Errorf("provider %#v: expected UnsupportedFeatureError, got %v", provider, err)
		}
	}
}

type nopConn struct{}

func (nopConn) Query(ctx context.Context, query string, params ...any) (*database.Cursor, error) {
	return nil, errors.New("not connected")
}

type collectHandler struct {
	titles []string
	rows   [][]any
}

func (h *collectHandler) Handle(ctx context.Context, title string, cur *database.Cursor) error {
	h.titles = append(h.titles, title)
	rows, err := cur.All()
	h.rows = append(h.rows, rows...)
	return err
}

type collectReport struct {
	collectHandler
}

func (r *collectReport) Name() string { return "collect" }

func (r *collectReport) PrepareQuery(ctx context.Context, sql string, p FeatureProvider) (string, error) {
	return sql, nil
}

type suffixFeature string

func (s suffixFeature) Name() string { return string(s) }

func (s suffixFeature) PrepareQuery(ctx context.Context, sql string, p FeatureProvider) (string, error) {
	return sql + string(s), nil
}

func newStore(t *testing.T) *database.Store {
	t.Helper()
	s, err := database.NewStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if _, err := s.Execute(context.Background(), `CREATE TABLE t (n INTEGER)`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(context.Background(), `INSERT INTO t VALUES (1), (2), (3)`); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFeatureOrder(t *testing.T) {
	q := New("q", "SELECT n FROM t")
	q.AddFeature(suffixFeature(" WHERE n > 1"))
	q.AddFeature(suffixFeature(" ORDER BY n"))

	got, err := q.Prepare(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := "SELECT n FROM t WHERE n > 1 ORDER BY n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRunFeedsEveryConsumer(t *testing.T) {
	store := newStore(t)
	q := New("q", "SELECT n FROM t WHERE n >= ? ORDER BY n", 2)
	h := &collectHandler{}
	r := &collectReport{}
	q.SetOutputHandler(h)
	q.AddReportingFeature(r)

	if _, err := q.Run(context.Background(), StoreProvider{Conn: store}, "monthly"); err != nil {
		t.Fatal(err)
	}
	for name, got := range map[string]*collectHandler{"handler": h, "report": &r.collectHandler} {
		if len(got.rows) != 2 || got.rows[0][0] != int64(2) {
			t.Errorf("%s received %v", name, got.rows)
		}
		if len(got.titles) != 1 || got.titles[0] != "monthly" {
			t.Errorf("%s titles %v", name, got.titles)
		}
	}
}

func TestRunQueryError(t *testing.T) {
	store := newStore(t)
	q := New("broken", "SELECT nope FROM missing")
	q.SetOutputHandler(&collectHandler{})

	_, err := q.Run(context.Background(), StoreProvider{Conn: store}, "")
	var qe *database.QueryError
	if !errors.As(err, &qe) {
		t.Errorf("expected QueryError, got %v", err)
	}
}
