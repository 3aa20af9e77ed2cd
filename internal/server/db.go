// db.go - PostgreSQL pool setup.
package server

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDB opens the PostgreSQL pool the transcript, subscription and summary
// stores share. Connectivity is verified before the pool is handed out so a
// bad DATABASE_URL fails at startup instead of on the first request.
func OpenDB(databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}

	pool, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return pool, nil
}
