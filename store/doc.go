// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is the state-machine core of threadsync: an immutable
// [State] and the pure transition function [Reduce].
//
// Reduce never mutates its input. Every action clones only the maps
// and slices it touches (copy-on-write), so a *State obtained from a
// previous Reduce call stays valid forever and can be read from any
// goroutine without locks. Reduce is total: actions that reference
// unknown threads or messages are no-ops, and it never panics or
// returns an error.
//
// # Message arena
//
// Messages live in an arena keyed by an internal handle. Each thread
// keeps an ordered list of handles, and a separate index maps message
// ids to handles. Reconciling an optimistic message with its confirmed
// counterpart re-keys the same handle under the real id, so every list
// that contained the temporary message now contains the confirmed one
// without a scan. The pending-send index (thread, client id) -> current
// message id locates an in-flight send directly.
//
// # Ordering
//
// The internal handle order is an implementation detail. The selectors
// define what callers observe: [State.Threads] sorts by UpdatedAt
// descending and [State.MessagesForThread] sorts by CreatedAt
// ascending, both stable with respect to insertion order.
package store
