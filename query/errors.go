package query

import "fmt"

// UnsupportedFeatureError reports a feature invoked without a collaborator
// it requires, such as a live connection.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("query feature %s is not supported without a database connection", e.Feature)
}

// IncompleteTemplateError reports a placeholder with no substitution.
// SQL is the text as configured, before any substitution.
type IncompleteTemplateError struct {
	Provider string
	Key      string
	SQL      string
}

func (e *IncompleteTemplateError) Error() string {
	return fmt.Sprintf("template provider '%s' has no value for key '%s' [sql: %s]", e.Provider, e.Key, e.SQL)
}
