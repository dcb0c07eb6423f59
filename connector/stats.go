package connector

// PoolStats represents connection pool statistics.
type PoolStats struct {
	// Open is the number of live connections the pool owns, checked out
	// or idle.
	Open int
	// InUse is the number of connections currently checked out.
	InUse int
	// Idle is the number of warm connections waiting in the pool.
	Idle int
}
