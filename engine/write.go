package engine

import (
	"context"
)

// BatchItem is one statement of an atomic multi-statement write.
type BatchItem struct {
	Key    string
	Params Params
	// Out pre-declares output parameters. After the statement executes,
	// columns of its returned row that match existing keys overwrite the
	// placeholder values. Keys the row does not produce keep their
	// placeholders; columns without a matching key are ignored.
	Out Params
}

// Updates executes every item in one transaction on one borrowed
// connection and returns the affected-row count per item. Any failure
// rolls back the whole batch.
func (e *Engine) Updates(ctx context.Context, items []BatchItem) ([]int64, error) {
	var counts []int64
	err := e.withAdhoc(ctx, func(s *Session) error {
		var err error
		counts, err = s.Updates(ctx, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Update executes a single write; see Updates.
func (e *Engine) Update(ctx context.Context, key string, params, out Params) (int64, error) {
	counts, err := e.Updates(ctx, []BatchItem{{Key: key, Params: params, Out: out}})
	if err != nil {
		return 0, err
	}
	return counts[0], nil
}

// Updates executes every item on the session's transaction. An item
// failure aborts the remainder and propagates; whether already-executed
// items take effect is decided by the scope's commit or rollback.
func (s *Session) Updates(ctx context.Context, items []BatchItem) ([]int64, error) {
	if err := s.active(); err != nil {
		return nil, err
	}

	counts := make([]int64, 0, len(items))
	for _, item := range items {
		count, err := s.execItem(ctx, item)
		if err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}
	return counts, nil
}

// Update executes a single write on the session's transaction.
func (s *Session) Update(ctx context.Context, key string, params, out Params) (int64, error) {
	counts, err := s.Updates(ctx, []BatchItem{{Key: key, Params: params, Out: out}})
	if err != nil {
		return 0, err
	}
	return counts[0], nil
}

func (s *Session) execItem(ctx context.Context, item BatchItem) (int64, error) {
	st, err := s.engine.prepare(item.Key, item.Params, nil)
	if err != nil {
		return 0, err
	}
	s.engine.logStatement(ctx, s.id, item.Key, st.source, item.Params)

	rows, err := s.tx.Query(ctx, st.sql, st.args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if len(item.Out) > 0 && rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return 0, err
		}
		for i, col := range rows.Columns() {
			if _, ok := item.Out[col]; ok {
				item.Out[col] = values[i]
			}
		}
	}
	// Drain so the command tag is complete for RETURNING statements.
	for rows.Next() {
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return rows.CommandTag().RowsAffected(), nil
}
