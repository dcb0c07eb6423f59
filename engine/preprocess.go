package engine

import (
	"github.com/doctorgu/querybank/query"
)

// statement is a registered template resolved against one call's
// parameters: positional SQL ready for the driver, plus the pre-bind
// source text kept for diagnostics.
type statement struct {
	sql    string
	args   []any
	source string
}

// prepare looks up key, applies the enabled preprocessor rewrites, and
// binds parameters. alias selects the bilingual column-alias label; nil
// leaves aliases untouched.
func (e *Engine) prepare(key string, params query.Params, alias *bool) (statement, error) {
	raw, err := e.reg.Lookup(key)
	if err != nil {
		return statement{}, err
	}

	if e.aliasEnabled && alias != nil {
		raw = query.SelectAlias(raw, *alias)
	}

	source := raw
	if e.condEnabled {
		tmpl, err := e.templates.GetOrParse(e.cacheKey(key, alias), func() (*query.Template, error) {
			return query.Parse(raw)
		})
		if err != nil {
			return statement{}, err
		}
		source = tmpl.Render(params)
	}

	sql, args, err := query.Bind(source, params)
	if err != nil {
		return statement{}, err
	}
	return statement{sql: sql, args: args, source: source}, nil
}

// cacheKey distinguishes the three alias states a template can be parsed
// under.
func (e *Engine) cacheKey(key string, alias *bool) string {
	switch {
	case !e.aliasEnabled || alias == nil:
		return key + "|a_"
	case *alias:
		return key + "|a1"
	default:
		return key + "|a0"
	}
}
