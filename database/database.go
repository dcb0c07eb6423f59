// Package database defines the narrow driver surface the engine and pool
// depend on. The pgx adapter is the production implementation; tests use
// in-memory fakes.
package database

import "context"

// Querier is the statement-execution surface shared by connections and
// transactions.
type Querier interface {
	// Query executes sql with positional args and returns the result
	// rows. Statements that return no rows still produce a Rows whose
	// CommandTag carries the affected-row count.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	// Exec executes sql without reading rows.
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
}

// Conn is a single live database connection. Ownership transfers to
// whichever session holds it and reverts to the pool on release.
type Conn interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx is an open transaction on one connection.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Rows is a forward-only row iterator.
type Rows interface {
	Next() bool
	// Columns returns the result column names in statement order.
	Columns() []string
	// Values returns the current row's values in column order.
	Values() ([]any, error)
	Close()
	Err() error
	// CommandTag is valid after the rows have been closed.
	CommandTag() CommandTag
}

// CommandTag reports the outcome of one executed statement.
type CommandTag interface {
	RowsAffected() int64
}

// Dialer opens new connections for the pool.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
