package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doctorgu/querybank/database"
	"github.com/doctorgu/querybank/naming"
)

const defaultPageSize = 100

// utf8BOM prefixes the first chunk so spreadsheet tools decode
// multilingual headers correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVStream yields a large result set as successive CSV chunks pulled by
// the caller from a server-side cursor. The first chunk carries a UTF-8
// BOM and the header row. A stream is not restartable: once Next returns
// io.EOF the cursor is closed and the stream is terminal.
type CSVStream struct {
	session  *Session
	cursor   string
	pageSize int
	camelize bool

	started bool
	done    bool
	// finish settles the stream's own transaction; nil when the stream
	// runs inside a caller's scope.
	finish func(ctx context.Context, err error)
}

// ReadPartialCSV opens a server-side cursor for the registered query and
// returns a stream over it. The stream borrows a connection until it is
// exhausted or closed; abandoning it without Close leaks the connection,
// so callers must always Close (Close after exhaustion is a no-op).
func (e *Engine) ReadPartialCSV(ctx context.Context, key string, params Params, opts ...CallOption) (*CSVStream, error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		e.pool.Release(conn)
		return nil, err
	}

	s := &Session{engine: e, tx: tx, state: StateActive, id: newSessionID()}
	stream, err := s.openStream(ctx, key, params, buildCallOptions(opts))
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			e.logger.Warn("rollback failed", "session", s.id, "error", rbErr)
		}
		e.pool.Release(conn)
		return nil, err
	}

	stream.finish = func(ctx context.Context, cause error) {
		if cause == nil {
			if err := tx.Commit(ctx); err != nil {
				e.logger.Warn("stream commit failed", "session", s.id, "error", err)
				s.state = StateRolledBack
			} else {
				s.state = StateCommitted
			}
		} else {
			s.state = StateRolledBack
			if err := tx.Rollback(ctx); err != nil {
				e.logger.Warn("rollback failed", "session", s.id, "error", err)
			}
		}
		e.pool.Release(conn)
	}
	return stream, nil
}

// ReadPartialCSV opens the cursor on the session's transaction. The
// stream shares the scope's connection; its Close only closes the cursor
// and the scope's exit settles the transaction as usual.
func (s *Session) ReadPartialCSV(ctx context.Context, key string, params Params, opts ...CallOption) (*CSVStream, error) {
	if err := s.active(); err != nil {
		return nil, err
	}
	return s.openStream(ctx, key, params, buildCallOptions(opts))
}

func (s *Session) openStream(ctx context.Context, key string, params Params, o callOptions) (*CSVStream, error) {
	st, err := s.engine.prepare(key, params, o.alias)
	if err != nil {
		return nil, err
	}
	s.engine.logStatement(ctx, s.id, key, st.source, params)

	cursor := newCursorName()
	declare := fmt.Sprintf("DECLARE %s CURSOR FOR %s", cursor, st.sql)
	// DECLARE cannot be prepared server-side, so its arguments are
	// inlined by the driver.
	args := append([]any{database.SimpleProtocol}, st.args...)
	rows, err := s.tx.Query(ctx, declare, args...)
	if err != nil {
		return nil, err
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &CSVStream{
		session:  s,
		cursor:   cursor,
		pageSize: o.pageSize,
		camelize: o.camelize,
	}, nil
}

// Next fetches one page from the cursor and returns it encoded as a CSV
// chunk. The first chunk is BOM-prefixed and includes the header row. An
// empty fetch closes the cursor, settles the stream, and returns io.EOF.
func (st *CSVStream) Next(ctx context.Context) ([]byte, error) {
	if st.done {
		return nil, io.EOF
	}

	rows, err := st.session.tx.Query(ctx, fmt.Sprintf("FETCH %d FROM %s", st.pageSize, st.cursor))
	if err != nil {
		st.settle(ctx, err)
		return nil, err
	}

	columns := rows.Columns()
	var page [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			rows.Close()
			st.settle(ctx, err)
			return nil, err
		}
		page = append(page, values)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		st.settle(ctx, err)
		return nil, err
	}

	if len(page) == 0 {
		st.closeCursor(ctx)
		st.settle(ctx, nil)
		return nil, io.EOF
	}

	chunk, err := st.encodeChunk(columns, page)
	if err != nil {
		st.settle(ctx, err)
		return nil, err
	}
	st.started = true
	return chunk, nil
}

// Close releases the stream's resources. Early abandonment closes the
// cursor and, for streams that own their transaction, rolls it back and
// returns the connection. Closing an exhausted stream does nothing.
func (st *CSVStream) Close(ctx context.Context) error {
	if st.done {
		return nil
	}
	st.closeCursor(ctx)
	st.settle(ctx, errStreamAbandoned)
	return nil
}

var errStreamAbandoned = fmt.Errorf("stream abandoned before exhaustion")

func (st *CSVStream) settle(ctx context.Context, cause error) {
	if st.done {
		return
	}
	st.done = true
	if st.finish != nil {
		st.finish(ctx, cause)
	}
}

func (st *CSVStream) closeCursor(ctx context.Context) {
	if _, err := st.session.tx.Exec(ctx, "CLOSE "+st.cursor); err != nil {
		st.session.engine.logger.Warn("closing cursor",
			"session", st.session.id, "cursor", st.cursor, "error", err)
	}
}

func (st *CSVStream) encodeChunk(columns []string, page [][]any) ([]byte, error) {
	var buf bytes.Buffer
	if !st.started {
		buf.Write(utf8BOM)
	}

	w := csv.NewWriter(&buf)
	if !st.started {
		header := columns
		if st.camelize {
			header = make([]string, len(columns))
			for i, col := range columns {
				header[i] = naming.Camelize(col)
			}
		}
		if err := w.Write(header); err != nil {
			return nil, err
		}
	}

	record := make([]string, len(columns))
	for _, values := range page {
		for i, v := range values {
			record[i] = csvValue(v)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func csvValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprint(v)
}

func newCursorName() string {
	return "cur_partial_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
