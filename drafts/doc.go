// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package drafts persists unsent compose content across restarts.
//
// Every backend holds exactly one durable value under [Key]: the
// Core Deterministic CBOR encoding of a map from thread id to draft
// text. The engine loads it once at startup and rewrites the whole map
// on every change, so a backend never needs to merge.
//
// Backends:
//
//   - [Memory]: process-local, for tests and ephemeral sessions.
//   - [File]: one file replaced atomically on each save.
//   - [SQLite]: a key/value table in a SQLite database.
//   - [Pebble]: a single key in a Pebble store.
//
// [Open] picks a backend by its configuration name.
package drafts
