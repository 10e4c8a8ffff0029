// Package db implements the task store on a SQL database.
//
// Two engines are supported through jmoiron/sqlx:
//   - sqlite: embedded SQLite (ncruces/go-sqlite3), the default. The database
//     is a single file opened in WAL mode so the HTTP handlers can read
//     while a sync batch writes.
//   - postgres: any PostgreSQL server through the pgx stdlib driver.
//
// Queries are written once with ? placeholders and rebound per engine.
package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/sirupsen/logrus"
)

// Engine names accepted in Options.Driver.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Options configures Open.
type Options struct {
	// Driver is SQLite or Postgres. Empty means SQLite.
	Driver string

	// DSN is a file path for SQLite and a connection URL for Postgres.
	DSN string

	// MaxOpenConns caps the pool. Zero keeps the default of 25.
	MaxOpenConns int

	Logger logrus.FieldLogger
}

// DB is a SQL-backed task store.
type DB struct {
	conn   *sqlx.DB
	engine string
	dsn    string
	log    logrus.FieldLogger
}

// Open connects to the database described by opts. The schema is not
// created; call InitSchema.
//
// The caller MUST call Close() when done.
func Open(ctx context.Context, opts Options) (*DB, error) {
	engine := opts.Driver
	if engine == "" {
		engine = SQLite
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	var (
		driverName string
		dsn        string
	)
	switch engine {
	case SQLite:
		if opts.DSN == "" {
			return nil, fmt.Errorf("sqlite needs a database path")
		}
		if dir := filepath.Dir(opts.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		driverName, dsn = "sqlite3", sqliteDSN(opts.DSN)
	case Postgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres needs a connection URL")
		}
		driverName, dsn = "pgx", opts.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q (want %s or %s)", engine, SQLite, Postgres)
	}

	conn, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn:   conn,
		engine: engine,
		dsn:    opts.DSN,
		log:    log.WithField("component", "db"),
	}

	if engine == SQLite {
		// journal_mode is stored in the file, so one connection is enough.
		var mode string
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	return db, nil
}

// sqliteDSN turns a path into a URI that applies the per-connection pragmas
// to every pooled connection, not just the first one.
func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Engine returns SQLite or Postgres.
func (db *DB) Engine() string {
	return db.engine
}

// Location describes where the data lives, without credentials.
func (db *DB) Location() string {
	if db.engine != Postgres {
		return db.dsn
	}
	u, err := url.Parse(db.dsn)
	if err != nil {
		return "postgres"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection. For SQLite the WAL is checkpointed
// first so the main file is complete on its own.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if db.engine == SQLite {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			db.log.WithError(err).Warn("failed to checkpoint WAL")
		}
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}
