// Package query filters feature maps with simple field comparisons such as
// label>=3 or lang=en.
package query

import (
	"fmt"
	"strings"
)

// Operators in the order they are tried when parsing, longest first.
var operators = []string{">=", "<=", "!=", "=", ">", "<"}

// FieldQuery represents a single field-based query condition
type FieldQuery struct {
	Field    string // Feature name to query (e.g., "label", "lang")
	Operator string // Comparison operator: "=", "!=", ">", "<", ">=", "<="
	Value    string // Parsed according to the kind of the feature it is compared with
}

// Validate checks if the query is properly formed
func (q *FieldQuery) Validate() error {
	if q.Field == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if q.Operator == "" {
		return fmt.Errorf("operator cannot be empty")
	}
	for _, op := range operators {
		if q.Operator == op {
			return nil
		}
	}
	return fmt.Errorf("invalid operator: %s", q.Operator)
}

func (q FieldQuery) String() string {
	return q.Field + q.Operator + q.Value
}

// ParseFieldQuery parses an expression of the form <field><op><value>. The
// first operator found splits the expression, so field names cannot contain
// operator characters but values can.
func ParseFieldQuery(expr string) (FieldQuery, error) {
	at, op := -1, ""
	for i := 0; i < len(expr) && at < 0; i++ {
		for _, candidate := range operators {
			if strings.HasPrefix(expr[i:], candidate) {
				at, op = i, candidate
				break
			}
		}
	}
	if at < 0 {
		return FieldQuery{}, fmt.Errorf("query %q has no operator", expr)
	}

	q := FieldQuery{
		Field:    strings.TrimSpace(expr[:at]),
		Operator: op,
		Value:    strings.TrimSpace(expr[at+len(op):]),
	}
	if err := q.Validate(); err != nil {
		return FieldQuery{}, fmt.Errorf("query %q: %w", expr, err)
	}
	return q, nil
}

// Query is a conjunction of field queries.
type Query []FieldQuery

// Parse parses every expression into one Query.
func Parse(exprs ...string) (Query, error) {
	q := make(Query, 0, len(exprs))
	for _, expr := range exprs {
		fq, err := ParseFieldQuery(expr)
		if err != nil {
			return nil, err
		}
		q = append(q, fq)
	}
	return q, nil
}
