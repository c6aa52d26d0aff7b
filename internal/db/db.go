package db

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS games (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id TEXT NOT NULL,
	player_id TEXT NOT NULL,
	bot_id TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	player_mark TEXT NOT NULL,
	winner TEXT NOT NULL,
	moves INTEGER NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	UNIQUE (room_id, finished_at)
);

CREATE INDEX IF NOT EXISTS idx_games_player ON games (player_id, finished_at);`

// Connect opens the SQLite database at dbPath and makes sure the schema exists.
func Connect(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	pool, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if dbPath == ":memory:" {
		// Every new connection to :memory: is a separate, empty database.
		pool.SetMaxOpenConns(1)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := InitializeSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to database", "db.path", dbPath)
	return pool, nil
}

// InitializeSchema creates the users and games tables if they don't exist.
func InitializeSchema(ctx context.Context, pool *sqlx.DB) error {
	if _, err := pool.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := pool.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
