// Package dbsource implements a rapidsql.ConnectionProvider on top of a
// database/sql pool. The pool is opened through otelsql so every statement
// carries OpenTelemetry spans; mysql, postgres and sqlite drivers are
// registered.
package dbsource

import (
	"context"
	"database/sql"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	// Database drivers selected through Config.Dialect.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Source hands out dedicated connections from an instrumented pool.
type Source struct {
	db  *sql.DB
	cfg *Config
}

// Open validates cfg and opens the instrumented pool. The pool connects
// lazily; use Ping to verify reachability.
func Open(cfg *Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driverName, dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := otelsql.Open(driverName, dsn,
		otelsql.WithAttributes(attribute.String("db.system", cfg.Dialect)))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", cfg.Dialect)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime))
	}

	return &Source{db: db, cfg: cfg}, nil
}

// Conn obtains a dedicated connection from the pool.
func (s *Source) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "obtaining database connection")
	}

	return conn, nil
}

func (s *Source) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "pinging database")
}

func (s *Source) Dialect() string {
	return s.cfg.Dialect
}

func (s *Source) Close() error {
	return s.db.Close()
}
