// Package store persists proposals, subscriptions and the records that hang
// off them, in PostgreSQL/PostGIS or in memory.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// driver for postgresql
	_ "github.com/lib/pq"
)

// NewDB opens a connection pool and verifies it with a ping
func NewDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
