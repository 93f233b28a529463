// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/persistence/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	class      TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	data       BLOB    NOT NULL,
	PRIMARY KEY (class, key)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_created ON cache_entries (class, created_at);
`

// SqliteBackend stores entries in a single SQLite table.
type SqliteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSqliteBackend opens the database at path and ensures the schema. An
// existing file that fails a quick integrity check is moved aside to
// path+".corrupt" and a fresh database is created.
func OpenSqliteBackend(path string) (*SqliteBackend, error) {
	if err := quarantineCorrupt(path); err != nil {
		return nil, err
	}
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite cache: schema: %w", err)
	}
	return &SqliteBackend{db: db, now: time.Now}, nil
}

func quarantineCorrupt(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	problems, err := sqlite.VerifyIntegrity(path, sqlite.CheckQuick)
	if err == nil && len(problems) == 0 {
		return nil
	}
	detail := strings.Join(problems, "; ")
	if err != nil {
		detail = err.Error()
	}
	logger := xglog.WithComponent("cache.sqlite")
	logger.Warn().
		Str(xglog.FieldEvent, "cache.sqlite_corrupt").
		Str(xglog.FieldPath, path).
		Str("detail", detail).
		Msg("cache database failed integrity check, starting empty")
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	if err := os.Rename(path, path+".corrupt"); err != nil {
		return fmt.Errorf("sqlite cache: quarantine %s: %w", path, err)
	}
	return nil
}

// Name implements Backend.
func (s *SqliteBackend) Name() string { return "sqlite" }

// Get implements Backend.
func (s *SqliteBackend) Get(ctx context.Context, class Class, key string) ([]byte, error) {
	if err := checkArgs(class, key); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM cache_entries WHERE class = ? AND key = ?`, string(class), key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite cache: get: %w", err)
	}
	return data, nil
}

// Put implements Backend.
func (s *SqliteBackend) Put(ctx context.Context, class Class, key string, data []byte, createdAt time.Time) error {
	if err := checkArgs(class, key); err != nil {
		return err
	}
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (class, key, created_at, data) VALUES (?, ?, ?, ?)
		ON CONFLICT (class, key) DO UPDATE SET created_at = excluded.created_at, data = excluded.data`,
		string(class), key, createdAt.UnixNano(), data)
	if err != nil {
		return fmt.Errorf("sqlite cache: put: %w", err)
	}
	return nil
}

// Remove implements Backend.
func (s *SqliteBackend) Remove(ctx context.Context, class Class, key string) error {
	if err := checkArgs(class, key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE class = ? AND key = ?`, string(class), key); err != nil {
		return fmt.Errorf("sqlite cache: remove: %w", err)
	}
	return nil
}

// Sweep implements Backend.
func (s *SqliteBackend) Sweep(ctx context.Context, class Class, cutoff time.Time) (int, error) {
	if !class.Valid() {
		return 0, ErrInvalidClass
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE class = ? AND created_at < ?`, string(class), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite cache: sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite cache: sweep rows: %w", err)
	}
	return int(n), nil
}

// Clear implements Backend.
func (s *SqliteBackend) Clear(ctx context.Context, class Class) error {
	if !class.Valid() {
		return ErrInvalidClass
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE class = ?`, string(class)); err != nil {
		return fmt.Errorf("sqlite cache: clear: %w", err)
	}
	return nil
}

// Close implements Backend.
func (s *SqliteBackend) Close() error { return s.db.Close() }
