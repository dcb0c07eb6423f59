package engine

import (
	"context"
)

// ReadRows executes the registered query and returns every result row.
// The call borrows a connection for its own duration.
func (e *Engine) ReadRows(ctx context.Context, key string, params Params, opts ...CallOption) ([]Row, error) {
	var rows []Row
	err := e.withAdhoc(ctx, func(s *Session) error {
		var err error
		rows, err = s.ReadRows(ctx, key, params, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadRow executes the registered query and returns the first row, or nil
// when the result set is empty.
func (e *Engine) ReadRow(ctx context.Context, key string, params Params, opts ...CallOption) (Row, error) {
	var row Row
	err := e.withAdhoc(ctx, func(s *Session) error {
		var err error
		row, err = s.ReadRow(ctx, key, params, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ReadRows executes the registered query on the session's transaction and
// returns every result row.
func (s *Session) ReadRows(ctx context.Context, key string, params Params, opts ...CallOption) ([]Row, error) {
	return s.readRows(ctx, key, params, buildCallOptions(opts), false)
}

// ReadRow is ReadRows limited to the first row; nil means no row matched.
func (s *Session) ReadRow(ctx context.Context, key string, params Params, opts ...CallOption) (Row, error) {
	rows, err := s.readRows(ctx, key, params, buildCallOptions(opts), true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *Session) readRows(ctx context.Context, key string, params Params, o callOptions, firstOnly bool) ([]Row, error) {
	if err := s.active(); err != nil {
		return nil, err
	}

	st, err := s.engine.prepare(key, params, o.alias)
	if err != nil {
		return nil, err
	}
	s.engine.logStatement(ctx, s.id, key, st.source, params)

	rows, err := s.tx.Query(ctx, st.sql, st.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := rows.Columns()
	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		if o.camelize {
			row = row.Camelized()
		}
		out = append(out, row)
		if firstOnly {
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
