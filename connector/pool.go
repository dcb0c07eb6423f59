package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doctorgu/querybank/database"
)

// ErrPoolExhausted is returned by Acquire when every connection stayed
// checked out for the whole acquire timeout. Callers may retry with
// backoff; the pool never retries internally.
var ErrPoolExhausted = errors.New("connection pool exhausted")

// ErrPoolClosed is returned by Acquire after Shutdown.
var ErrPoolClosed = errors.New("connection pool closed")

// Pool is a bounded, thread-safe pool of live database connections.
// Ownership of a connection transfers to the caller on Acquire and
// reverts to the pool on Release. At most MaxConns connections are
// checked out at any moment.
type Pool struct {
	dialer         database.Dialer
	retry          *RetryConfig
	acquireTimeout time.Duration
	logger         *slog.Logger

	// Each token in slots is permission to own one connection; idle
	// connections keep their token until closed.
	slots chan struct{}
	idle  chan database.Conn

	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	open  int
	inUse int
}

// NewPool creates a pool bounded by cfg.Pool and warms it with MinConns
// connections. Construction fails if any warm connection cannot be
// dialed.
func NewPool(ctx context.Context, cfg Config, dialer database.Dialer, logger *slog.Logger) (*Pool, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		dialer:         dialer,
		retry:          cfg.Retry,
		acquireTimeout: cfg.Pool.AcquireTimeout.Std(),
		logger:         logger,
		slots:          make(chan struct{}, cfg.Pool.MaxConns),
		idle:           make(chan database.Conn, cfg.Pool.MaxConns),
		done:           make(chan struct{}),
	}
	for i := 0; i < cfg.Pool.MaxConns; i++ {
		p.slots <- struct{}{}
	}

	for i := 0; i < cfg.Pool.MinConns; i++ {
		<-p.slots
		conn, err := p.dial(ctx)
		if err != nil {
			p.Shutdown(ctx)
			return nil, fmt.Errorf("warm connection %d: %w", i+1, err)
		}
		p.idle <- conn
	}

	logger.Info("connection pool opened",
		"min_conns", cfg.Pool.MinConns, "max_conns", cfg.Pool.MaxConns)
	return p, nil
}

func (p *Pool) dial(ctx context.Context) (database.Conn, error) {
	var conn database.Conn
	var err error
	if p.retry != nil {
		conn, err = retryDial(ctx, p.retry, p.dialer)
	} else {
		conn, err = p.dialer.Dial(ctx)
	}
	if err != nil {
		p.slots <- struct{}{}
		return nil, err
	}
	p.mu.Lock()
	p.open++
	p.mu.Unlock()
	return conn, nil
}

// Acquire returns a connection, dialing a new one while the pool is under
// its bound and blocking otherwise until a connection is released, the
// acquire timeout elapses (ErrPoolExhausted), ctx is cancelled, or the
// pool shuts down (ErrPoolClosed).
func (p *Pool) Acquire(ctx context.Context) (database.Conn, error) {
	select {
	case <-p.done:
		return nil, ErrPoolClosed
	default:
	}

	// Fast path: a warm connection is waiting.
	select {
	case conn := <-p.idle:
		p.checkout()
		return conn, nil
	default:
	}

	var timeout <-chan time.Time
	if p.acquireTimeout > 0 {
		timer := time.NewTimer(p.acquireTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case conn := <-p.idle:
		p.checkout()
		return conn, nil
	case <-p.slots:
		conn, err := p.dial(ctx)
		if err != nil {
			return nil, err
		}
		p.checkout()
		return conn, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-timeout:
		return nil, ErrPoolExhausted
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a connection to the available set. After Shutdown the
// connection is closed instead.
func (p *Pool) Release(conn database.Conn) {
	p.mu.Lock()
	p.inUse--
	p.mu.Unlock()

	select {
	case <-p.done:
		p.discard(conn)
		return
	default:
	}
	p.idle <- conn

	// Shutdown may have started while we were enqueueing; sweep so the
	// connection is not stranded in a drained channel.
	select {
	case <-p.done:
		select {
		case c := <-p.idle:
			p.discard(c)
		default:
		}
	default:
	}
}

// Shutdown closes every idle connection and makes all future Acquire
// calls fail with ErrPoolClosed. Checked-out connections are closed as
// they are released.
func (p *Pool) Shutdown(ctx context.Context) {
	p.closeOnce.Do(func() {
		close(p.done)
		for {
			select {
			case conn := <-p.idle:
				p.discard(conn)
			default:
				p.logger.Info("connection pool closed")
				return
			}
		}
	})
}

func (p *Pool) discard(conn database.Conn) {
	if err := conn.Close(context.Background()); err != nil {
		p.logger.Warn("closing pooled connection", "error", err)
	}
	p.mu.Lock()
	p.open--
	p.mu.Unlock()
	p.slots <- struct{}{}
}

func (p *Pool) checkout() {
	p.mu.Lock()
	p.inUse++
	p.mu.Unlock()
}

// Stats returns a point-in-time snapshot of pool occupancy.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Open:  p.open,
		InUse: p.inUse,
		Idle:  p.open - p.inUse,
	}
}
