// Package query runs named SQL queries against a store. Before execution the
// SQL passes through an ordered chain of features that may rewrite it; after
// execution the result goes to an output handler and to any reporting
// features attached to the query.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/darianmavgo/mince/database"
)

// Connection is a live store connection. *database.Store satisfies it.
type Connection interface {
	Query(ctx context.Context, query string, params ...any) (*database.Cursor, error)
}

// FeatureProvider gives features access to the store the query runs on.
type FeatureProvider interface {
	Connection() Connection
}

// Feature rewrites a query's SQL before execution.
type Feature interface {
	Name() string
	PrepareQuery(ctx context.Context, sql string, provider FeatureProvider) (string, error)
}

// ResultHandler consumes a query result and writes it somewhere.
type ResultHandler interface {
	Handle(ctx context.Context, title string, cur *database.Cursor) error
}

// ReportingFeature is a feature that leaves the SQL alone and instead
// persists the executed result.
type ReportingFeature interface {
	Feature
	ResultHandler
}

// StoreProvider adapts a connection to FeatureProvider.
type StoreProvider struct {
	Conn Connection
}

func (p StoreProvider) Connection() Connection { return p.Conn }

// Query is a named SQL statement with its feature chain and consumers.
type Query struct {
	Name   string
	SQL    string
	Params []any

	features  []Feature
	handler   ResultHandler
	reporting []ReportingFeature
}

// New creates a query.
func New(name, sql string, params ...any) *Query {
	return &Query{Name: name, SQL: sql, Params: params}
}

// AddFeature appends f to the chain. Features run in the order added.
func (q *Query) AddFeature(f Feature) {
	q.features = append(q.features, f)
}

// SetOutputHandler sets the handler that receives the result.
func (q *Query) SetOutputHandler(h ResultHandler) {
	q.handler = h
}

// AddReportingFeature attaches a feature that receives the result.
func (q *Query) AddReportingFeature(f ReportingFeature) {
	q.reporting = append(q.reporting, f)
}

// Features returns the feature chain.
func (q *Query) Features() []Feature { return q.features }

// Prepare passes the SQL through every feature in order.
func (q *Query) Prepare(ctx context.Context, provider FeatureProvider) (string, error) {
	sql := q.SQL
	for _, f := range q.features {
		var err error
		sql, err = f.PrepareQuery(ctx, sql, provider)
		if err != nil {
			return "", err
		}
	}
	return sql, nil
}

// Run prepares the query and executes it on the provider's connection once
// for every consumer, since a cursor can only be read once. Without any
// consumer the query still runs and its result is discarded. Run returns the
// prepared SQL.
func (q *Query) Run(ctx context.Context, provider FeatureProvider, title string) (string, error) {
	if provider == nil || provider.Connection() == nil {
		return "", fmt.Errorf("query '%s': no database connection", q.Name)
	}
	sql, err := q.Prepare(ctx, provider)
	if err != nil {
		return "", err
	}
	conn := provider.Connection()

	consumers := make([]ResultHandler, 0, len(q.reporting)+1)
	if q.handler != nil {
		consumers = append(consumers, q.handler)
	}
	for _, r := range q.reporting {
		consumers = append(consumers, r)
	}

	if len(consumers) == 0 {
		cur, err := conn.Query(ctx, sql, q.Params...)
		if err != nil {
			return sql, err
		}
		_, err = cur.All()
		return sql, err
	}

	for _, h := range consumers {
		cur, err := conn.Query(ctx, sql, q.Params...)
		if err != nil {
			return sql, err
		}
		err = h.Handle(ctx, title, cur)
		err = errors.Join(err, cur.Close())
		if err != nil {
			return sql, err
		}
	}
	return sql, nil
}
