package main

import (
	"context"
	"fmt"

	"github.com/ganttd/ganttd/internal/config"
	"github.com/ganttd/ganttd/internal/gantt/db"
	"github.com/ganttd/ganttd/internal/gantt/store"
)

// backend is the task store a command works against.
type backend struct {
	store.Store
	store.Seeder

	// Driver and Location describe the store for status output.
	Driver   string
	Location string

	// Ping is nil for the in-memory store.
	Ping func(context.Context) error

	close func() error
}

func (b *backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// openBackend opens the configured store and makes sure its schema exists.
func openBackend(ctx context.Context, c config.DBConfig) (*backend, error) {
	if c.Driver == config.DriverMemory {
		mem := store.NewMemory()
		return &backend{Store: mem, Seeder: mem, Driver: c.Driver, Location: "(in memory)"}, nil
	}

	conn, err := db.Open(ctx, db.Options{
		Driver:       c.Driver,
		DSN:          c.DSN,
		MaxOpenConns: c.MaxOpenConns,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	if err := conn.InitSchemaContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &backend{
		Store:    conn,
		Seeder:   conn,
		Driver:   conn.Engine(),
		Location: conn.Location(),
		Ping:     conn.Ping,
		close:    conn.Close,
	}, nil
}
