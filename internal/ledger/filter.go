package ledger

import (
	"fmt"
	"regexp"
	"strings"
)

// validIdentifier matches valid SQL identifiers (column names).
// Only allows alphanumeric and underscore, must start with letter or
// underscore. This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter is a sealed predicate tree over ledger columns. The two
// implementations are Equals and And; history queries compile a Filter
// to a parameterized WHERE clause.
type Filter interface {
	filter()
}

// Equals matches rows whose column equals the value.
type Equals struct {
	Field string
	Value any
}

func (Equals) filter() {}

// And matches rows satisfying every member filter. An empty And
// matches everything.
type And struct {
	Filters []Filter
}

func (And) filter() {}

// compileFilter converts a filter tree to a WHERE clause fragment plus
// its parameters. A nil filter compiles to the empty fragment.
//
// Values are always parameterized, never interpolated; field names are
// validated against validIdentifier because identifiers cannot be
// parameterized.
func compileFilter(f Filter) (string, []any, error) {
	if f == nil {
		return "", nil, nil
	}

	switch pred := f.(type) {
	case Equals:
		if !validIdentifier.MatchString(pred.Field) {
			return "", nil, fmt.Errorf("invalid column name %q: must match pattern %s",
				pred.Field, validIdentifier.String())
		}
		return pred.Field + " = ?", []any{pred.Value}, nil
	case And:
		if len(pred.Filters) == 0 {
			return "", nil, nil
		}
		var parts []string
		var params []any
		for _, member := range pred.Filters {
			sql, memberParams, err := compileFilter(member)
			if err != nil {
				return "", nil, err
			}
			if sql == "" {
				continue
			}
			parts = append(parts, sql)
			params = append(params, memberParams...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter type: %T", f)
	}
}
