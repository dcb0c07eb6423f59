package engine

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"

	"github.com/doctorgu/querybank/database"
)

// ErrSessionClosed is returned by operations on a session whose scope has
// already committed or rolled back.
var ErrSessionClosed = errors.New("session scope already ended")

// State tracks a session through its lifecycle.
type State int

const (
	StateIdle State = iota
	StateActive
	StateCommitted
	StateRolledBack
)

// Session is one transaction on one pooled connection. A scoped session
// lives for the whole WithScope callback and spans every operation inside
// it; an ad hoc session is created and finished within a single Engine
// operation.
type Session struct {
	engine *Engine
	tx     database.Tx
	state  State
	id     string
	scoped bool
}

// ID returns the session's ULID, also stamped on its log lines.
func (s *Session) ID() string { return s.id }

// State reports where the session is in its lifecycle.
func (s *Session) State() State { return s.state }

// newSessionID returns a ULID, sortable by creation time, used to
// correlate a session's log lines.
func newSessionID() string {
	return ulid.Make().String()
}

func (s *Session) active() error {
	if s.state != StateActive {
		return ErrSessionClosed
	}
	return nil
}

// WithScope runs fn inside one transaction on one exclusively held
// connection. The transaction commits when fn returns nil and rolls back
// otherwise; the cursor state and connection are released on every exit
// path, and cleanup failures never mask fn's error.
func (e *Engine) WithScope(ctx context.Context, fn func(*Session) error) error {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer e.pool.Release(conn)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	s := &Session{engine: e, tx: tx, state: StateActive, id: newSessionID(), scoped: true}
	e.logger.Debug("scope opened", "session", s.id)

	// A panic in fn unwinds past the commit below; the connection must
	// not go back to the pool with its transaction still open.
	defer func() {
		if s.state != StateActive {
			return
		}
		s.state = StateRolledBack
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			e.logger.Warn("rollback failed", "session", s.id, "error", rbErr)
		}
	}()

	if err := fn(s); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.state = StateRolledBack
		return err
	}
	s.state = StateCommitted
	e.logger.Debug("scope committed", "session", s.id)
	return nil
}

// withAdhoc borrows a connection for exactly one logical operation,
// committing on success and rolling back on failure, all within the call.
func (e *Engine) withAdhoc(ctx context.Context, fn func(*Session) error) error {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer e.pool.Release(conn)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	s := &Session{engine: e, tx: tx, state: StateActive, id: newSessionID()}
	defer func() {
		if s.state != StateActive {
			return
		}
		s.state = StateRolledBack
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			e.logger.Warn("rollback failed", "session", s.id, "error", rbErr)
		}
	}()

	if err := fn(s); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.state = StateRolledBack
		return err
	}
	s.state = StateCommitted
	return nil
}
