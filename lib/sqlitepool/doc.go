// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite connection pools with the pragmas
// threadsync's local storage expects.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers either
// [Pool.Take] and [Pool.Put] connections themselves or hand a function
// to [Pool.Do], which does both. Connections are not safe for
// concurrent use; each goroutine holds its own for the duration of its
// work.
//
// # Pragmas
//
//   - journal_mode=WAL: readers never block the writer.
//   - synchronous=NORMAL: commits survive a process crash. Drafts are
//     convenience state, so losing the last write to a power failure is
//     acceptable.
//   - busy_timeout=5000: wait up to 5 seconds for the write lock.
//   - cache_size=-2048: 2 MB page cache per connection.
//   - temp_store=MEMORY
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(root, "drafts.db"),
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.Do(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, query, options)
//	})
package sqlitepool
