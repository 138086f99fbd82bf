package query

import (
	"context"
	"errors"
	"fmt"
)

// TemplateProvider computes named SQL fragments from the store, for example
// a pivot column list built from the distinct values of a column.
type TemplateProvider interface {
	Name() string
	GetStrings(ctx context.Context, conn Connection) (map[string]string, error)
}

// TemplatedFeature substitutes %(key)s placeholders with the fragments of a
// template provider. The provider is asked once per PrepareQuery.
type TemplatedFeature struct {
	provider TemplateProvider
}

var _ Feature = (*TemplatedFeature)(nil)

func NewTemplatedFeature(provider TemplateProvider) *TemplatedFeature {
	return &TemplatedFeature{provider: provider}
}

func (f *TemplatedFeature) Name() string {
	if f.provider == nil {
		return "template"
	}
	return "template(" + f.provider.Name() + ")"
}

func (f *TemplatedFeature) PrepareQuery(ctx context.Context, sql string, provider FeatureProvider) (string, error) {
	if provider == nil || f.provider == nil {
		return "", &UnsupportedFeatureError{Feature: f.Name()}
	}
	conn := provider.Connection()
	if conn == nil {
		return "", &UnsupportedFeatureError{Feature: f.Name()}
	}

	values, err := f.provider.GetStrings(ctx, conn)
	if err != nil {
		return "", fmt.Errorf("template provider '%s': %w", f.provider.Name(), err)
	}

	out, err := Interpolate(sql, values)
	var incomplete *IncompleteTemplateError
	if errors.As(err, &incomplete) {
		incomplete.Provider = f.provider.Name()
	}
	return out, err
}
