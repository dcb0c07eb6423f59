package engine

import (
	"github.com/doctorgu/querybank/naming"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Camelized returns a copy of the row with snake_case column names
// converted to camelCase for API consumers.
func (r Row) Camelized() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[naming.Camelize(k)] = v
	}
	return out
}

// CallOption adjusts one read or stream operation.
type CallOption func(*callOptions)

type callOptions struct {
	camelize bool
	alias    *bool
	pageSize int
}

// WithAlias resolves bilingual "first|second" column aliases to the first
// label when first is true, the second otherwise. Without this option
// aliases pass through unresolved.
func WithAlias(first bool) CallOption {
	return func(o *callOptions) { o.alias = &first }
}

// WithCamelize converts result-row keys to camelCase.
func WithCamelize() CallOption {
	return func(o *callOptions) { o.camelize = true }
}

// WithPageSize sets how many rows each partial-fetch chunk carries.
// Ignored by non-streaming reads.
func WithPageSize(n int) CallOption {
	return func(o *callOptions) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

func buildCallOptions(opts []CallOption) callOptions {
	o := callOptions{pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
