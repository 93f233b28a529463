// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sqlite opens the SQLite file behind the sqlite cache backend and
// checks it for corruption.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Config tunes the connection pool of a cache database.
type Config struct {
	// BusyTimeout is how long a writer waits on a locked database. Sweeps
	// and clears hold the write lock while slots keep reading.
	BusyTimeout time.Duration
	// MaxOpenConns bounds the pool. Readers share it with one writer at a
	// time under WAL.
	MaxOpenConns int
	// ConnMaxLifetime recycles pooled connections.
	ConnMaxLifetime time.Duration
}

// DefaultConfig sizes the pool for one viewer: a handful of concurrent
// slot reads plus the export write-back.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    8,
		ConnMaxLifetime: time.Hour,
	}
}

func (c Config) dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, c.BusyTimeout.Milliseconds())
}

// Open returns a pool on the database at path, creating the file when
// missing. WAL and the busy timeout travel in the DSN so every pooled
// connection gets them.
func Open(path string, cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: empty database path")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}

	db, err := sql.Open("sqlite", cfg.dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return db, nil
}
