// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package drafts

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/threadsync/lib/sqlitepool"
	"github.com/bureau-foundation/threadsync/schema"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// SQLite stores the draft map as one row of a key/value table.
type SQLite struct {
	pool *sqlitepool.Pool
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, sqliteSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening drafts database: %w", err)
	}
	return &SQLite{pool: pool}, nil
}

func (s *SQLite) Load(ctx context.Context) (map[schema.ThreadID]string, error) {
	var value []byte
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM kv WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{Key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, value)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading drafts: %w", err)
	}
	return decode(value)
}

func (s *SQLite) Save(ctx context.Context, drafts map[schema.ThreadID]string) error {
	data, err := encode(drafts)
	if err != nil {
		return err
	}
	err = s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			&sqlitex.ExecOptions{Args: []any{Key, data}})
	})
	if err != nil {
		return fmt.Errorf("saving drafts: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.pool.Close()
}
