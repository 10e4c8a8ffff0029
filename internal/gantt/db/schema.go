package db

import (
	"context"
	"fmt"
)

// AUTOINCREMENT keeps SQLite from handing out the id of a deleted row
// again. PostgreSQL identity sequences never go backwards on their own.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		start_date TEXT,
		end_date TEXT,
		duration REAL,
		percent_done REAL DEFAULT 0,
		parent_id INTEGER,  -- no foreign key: dangling parents are kept as sent
		parent_index INTEGER,
		expanded INTEGER DEFAULT 1,
		rollup INTEGER DEFAULT 0,
		manually_scheduled INTEGER DEFAULT 1,
		effort INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id, parent_index);
`

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS tasks (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		start_date TEXT,
		end_date TEXT,
		duration DOUBLE PRECISION,
		percent_done DOUBLE PRECISION DEFAULT 0,
		parent_id BIGINT,
		parent_index BIGINT,
		expanded BOOLEAN DEFAULT TRUE,
		rollup BOOLEAN DEFAULT FALSE,
		manually_scheduled BOOLEAN DEFAULT TRUE,
		effort BIGINT
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id, parent_index);
`

// InitSchema creates the tasks table and its index if they don't exist.
// It is idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	ddl := sqliteSchema
	if db.engine == Postgres {
		ddl = postgresSchema
	}
	if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Reset drops the tasks table and creates it again, which also restarts
// id assignment.
func (db *DB) Reset(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DROP TABLE IF EXISTS tasks`); err != nil {
		return fmt.Errorf("failed to drop tasks: %w", err)
	}
	return db.InitSchemaContext(ctx)
}
