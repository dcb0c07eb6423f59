package engine

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"

	"github.com/doctorgu/querybank/connector"
	"github.com/doctorgu/querybank/database"
	"github.com/doctorgu/querybank/registry"
)

// queryHandler scripts the fake driver's response to one statement.
type queryHandler func(sql string, args []any) (*fakeResult, error)

type fakeResult struct {
	columns []string
	data    [][]any
	tag     int64
}

type fakeTag int64

func (t fakeTag) RowsAffected() int64 { return int64(t) }

type fakeRows struct {
	res    *fakeResult
	idx    int
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.closed || r.idx >= len(r.res.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Columns() []string { return r.res.columns }

func (r *fakeRows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.res.data) {
		return nil, errors.New("Values called without Next")
	}
	return r.res.data[r.idx-1], nil
}

func (r *fakeRows) Close()                          { r.closed = true }
func (r *fakeRows) Err() error                      { return nil }
func (r *fakeRows) CommandTag() database.CommandTag { return fakeTag(r.res.tag) }

type fakeTx struct {
	conn       *fakeConn
	statements []string
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	if len(args) > 0 && args[0] == database.SimpleProtocol {
		args = args[1:]
	}
	t.statements = append(t.statements, sql)
	res, err := t.conn.handler(sql, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{res: res}, nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (database.CommandTag, error) {
	t.statements = append(t.statements, sql)
	res, err := t.conn.handler(sql, args)
	if err != nil {
		return nil, err
	}
	return fakeTag(res.tag), nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeConn struct {
	handler queryHandler
	begins  int
	txs     []*fakeTx
	closed  bool
}

func (c *fakeConn) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	return nil, errors.New("query outside transaction")
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (database.CommandTag, error) {
	return nil, errors.New("exec outside transaction")
}

func (c *fakeConn) Begin(ctx context.Context) (database.Tx, error) {
	c.begins++
	tx := &fakeTx{conn: c}
	c.txs = append(c.txs, tx)
	return tx, nil
}

func (c *fakeConn) Ping(ctx context.Context) error { return nil }

func (c *fakeConn) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

type fakeDialer struct {
	mu      sync.Mutex
	handler queryHandler
	conns   []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context) (database.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn := &fakeConn{handler: d.handler}
	d.conns = append(d.conns, conn)
	return conn, nil
}

// allStatements flattens every statement run on every transaction of
// every dialed connection, in order.
func (d *fakeDialer) allStatements() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, conn := range d.conns {
		for _, tx := range conn.txs {
			out = append(out, tx.statements...)
		}
	}
	return out
}

func (d *fakeDialer) lastTx() *fakeTx {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.conns) - 1; i >= 0; i-- {
		if n := len(d.conns[i].txs); n > 0 {
			return d.conns[i].txs[n-1]
		}
	}
	return nil
}

// staticHandler answers every statement with the same result.
func staticHandler(res *fakeResult) queryHandler {
	return func(sql string, args []any) (*fakeResult, error) {
		return res, nil
	}
}

var fetchPattern = regexp.MustCompile(`^FETCH (\d+) FROM (\S+)$`)

// cursorHandler emulates a server-side cursor over a fixed result set,
// answering DECLARE, FETCH, and CLOSE. Any other statement gets an empty
// result.
func cursorHandler(columns []string, data [][]any) queryHandler {
	pos := 0
	open := false
	return func(sql string, args []any) (*fakeResult, error) {
		switch {
		case len(sql) > 7 && sql[:7] == "DECLARE":
			open = true
			return &fakeResult{}, nil
		case fetchPattern.MatchString(sql):
			if !open {
				return nil, errors.New("cursor not open")
			}
			m := fetchPattern.FindStringSubmatch(sql)
			n, _ := strconv.Atoi(m[1])
			end := pos + n
			if end > len(data) {
				end = len(data)
			}
			page := data[pos:end]
			pos = end
			return &fakeResult{columns: columns, data: page, tag: int64(len(page))}, nil
		case len(sql) > 5 && sql[:5] == "CLOSE":
			open = false
			return &fakeResult{}, nil
		}
		return &fakeResult{}, nil
	}
}

func testConfig() connector.Config {
	return connector.Config{
		Host:              "localhost",
		Port:              5432,
		Pool:              connector.PoolConfig{MinConns: 0, MaxConns: 4},
		UseAliasSelection: true,
		UseConditional:    true,
	}
}

// newTestEngine wires an Engine over a real pool backed by the fake
// dialer.
func newTestEngine(sources registry.Source, handler queryHandler, cfg connector.Config) (*Engine, *fakeDialer, error) {
	reg, err := registry.Build(sources)
	if err != nil {
		return nil, nil, err
	}
	dialer := &fakeDialer{handler: handler}
	pool, err := connector.NewPool(context.Background(), cfg, dialer, nil)
	if err != nil {
		return nil, nil, err
	}
	return New(pool, reg, cfg), dialer, nil
}

// mutableHandler lets a test swap behavior mid-flight.
type mutableHandler struct {
	mu sync.Mutex
	fn queryHandler
}

func (h *mutableHandler) handle(sql string, args []any) (*fakeResult, error) {
	h.mu.Lock()
	fn := h.fn
	h.mu.Unlock()
	return fn(sql, args)
}

func (h *mutableHandler) set(fn queryHandler) {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
}
