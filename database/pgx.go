package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SimpleProtocol, passed as the first query argument, makes the adapter
// sanitize and inline arguments client-side. Required for statements the
// extended protocol cannot prepare, such as DECLARE CURSOR.
var SimpleProtocol any = pgx.QueryExecModeSimpleProtocol

// PgxDialer opens pgx connections from a DSN.
type PgxDialer struct {
	dsn            string
	connectTimeout time.Duration
}

// NewPgxDialer creates a dialer for the given DSN. A non-zero timeout
// bounds every dial.
func NewPgxDialer(dsn string, connectTimeout time.Duration) *PgxDialer {
	return &PgxDialer{dsn: dsn, connectTimeout: connectTimeout}
}

// Dial opens one connection.
func (d *PgxDialer) Dial(ctx context.Context) (Conn, error) {
	if d.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.connectTimeout)
		defer cancel()
	}
	conn, err := pgx.Connect(ctx, d.dsn)
	if err != nil {
		return nil, err
	}
	return &PgxConn{conn: conn}, nil
}

// PgxConn implements Conn for *pgx.Conn.
type PgxConn struct {
	conn *pgx.Conn
}

func (c *PgxConn) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &PgxRows{rows: rows}, nil
}

func (c *PgxConn) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	tag, err := c.conn.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (c *PgxConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PgxTx{tx: tx}, nil
}

func (c *PgxConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *PgxConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// PgxTx implements Tx for pgx.Tx.
type PgxTx struct {
	tx pgx.Tx
}

func (t *PgxTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &PgxRows{rows: rows}, nil
}

func (t *PgxTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (t *PgxTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *PgxTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// PgxRows implements Rows for pgx.Rows.
type PgxRows struct {
	rows    pgx.Rows
	columns []string
}

func (r *PgxRows) Next() bool { return r.rows.Next() }

func (r *PgxRows) Columns() []string {
	if r.columns == nil {
		fields := r.rows.FieldDescriptions()
		r.columns = make([]string, len(fields))
		for i, fd := range fields {
			r.columns[i] = fd.Name
		}
	}
	return r.columns
}

func (r *PgxRows) Values() ([]any, error) { return r.rows.Values() }

func (r *PgxRows) Close() { r.rows.Close() }

func (r *PgxRows) Err() error { return r.rows.Err() }

func (r *PgxRows) CommandTag() CommandTag { return r.rows.CommandTag() }

var (
	_ Conn       = (*PgxConn)(nil)
	_ Tx         = (*PgxTx)(nil)
	_ Rows       = (*PgxRows)(nil)
	_ CommandTag = pgconn.CommandTag{}
	_ Dialer     = (*PgxDialer)(nil)
)
