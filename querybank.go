// Package querybank is a registry of named SQL templates and a
// transactional execution engine for PostgreSQL. Queries are registered
// once under string keys and invoked by key with named parameters; the
// engine preprocesses each template (conditional blocks, alias
// selection, placeholder binding) and runs it inside a pooled,
// transaction-scoped connection.
package querybank

import (
	"context"
	"log/slog"

	"github.com/doctorgu/querybank/connector"
	"github.com/doctorgu/querybank/database"
	"github.com/doctorgu/querybank/engine"
	"github.com/doctorgu/querybank/registry"
)

type Config = connector.Config
type Source = registry.Source
type Params = engine.Params
type Row = engine.Row
type BatchItem = engine.BatchItem
type Session = engine.Session
type CSVStream = engine.CSVStream

// LoadConfig reads a connection configuration from a YAML file.
func LoadConfig(path string) (Config, error) {
	return connector.LoadConfig(path)
}

// Connect validates the configuration, builds the query registry from
// the given sources, warms the connection pool, and returns a ready
// engine. Shut the engine down through Engine.Pool().Shutdown.
func Connect(ctx context.Context, cfg Config, sources ...Source) (*engine.Engine, error) {
	return ConnectWithLogger(ctx, cfg, slog.Default(), sources...)
}

// ConnectWithLogger is Connect with an explicit logger for the pool and
// the engine.
func ConnectWithLogger(ctx context.Context, cfg Config, logger *slog.Logger, sources ...Source) (*engine.Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg, err := registry.Build(sources...)
	if err != nil {
		return nil, err
	}
	dialer := database.NewPgxDialer(cfg.DSN(), cfg.ConnectTimeout.Std())
	pool, err := connector.NewPool(ctx, cfg, dialer, logger)
	if err != nil {
		return nil, err
	}
	return engine.New(pool, reg, cfg, engine.WithLogger(logger)), nil
}
