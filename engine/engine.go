// Package engine executes registered query templates against a pooled
// PostgreSQL database, inside either caller-scoped or per-call
// transactions.
package engine

import (
	"context"
	"log/slog"

	"github.com/doctorgu/querybank/cache"
	"github.com/doctorgu/querybank/connector"
	"github.com/doctorgu/querybank/query"
	"github.com/doctorgu/querybank/registry"
)

const defaultTemplateCacheSize = 256

// Params carries one call's named parameter values.
type Params = query.Params

// Engine dispatches registered queries through the connection pool. It
// holds no connection of its own; every operation borrows one for exactly
// as long as the operation (or the enclosing scope) lasts.
type Engine struct {
	pool      *connector.Pool
	reg       *registry.Registry
	templates *cache.TemplateCache
	logger    *slog.Logger

	aliasEnabled bool
	condEnabled  bool
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger sets the logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTemplateCacheSize bounds the parsed-template cache.
func WithTemplateCacheSize(size int) Option {
	return func(e *Engine) { e.templates = cache.NewTemplateCache(size) }
}

// New creates an Engine over an existing pool and registry. The config's
// feature flags gate the preprocessor rewrites.
func New(pool *connector.Pool, reg *registry.Registry, cfg connector.Config, opts ...Option) *Engine {
	e := &Engine{
		pool:         pool,
		reg:          reg,
		aliasEnabled: cfg.UseAliasSelection,
		condEnabled:  cfg.UseConditional,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.templates == nil {
		e.templates = cache.NewTemplateCache(defaultTemplateCacheSize)
	}
	return e
}

// Pool exposes the underlying pool, e.g. for stats or shutdown at the
// composition boundary.
func (e *Engine) Pool() *connector.Pool {
	return e.pool
}

// logStatement logs the fully inlined statement at debug level. The
// inlined text never goes anywhere near the driver.
func (e *Engine) logStatement(ctx context.Context, sessionID, key, source string, params query.Params) {
	if !e.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	e.logger.Debug("executing query",
		"session", sessionID,
		"query", key,
		"sql", query.Inline(source, params),
	)
}
