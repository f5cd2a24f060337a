// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine keeps a client's local view of threads and messages
// consistent with a remote [service.Service].
//
// An [Engine] owns one [store.State]. Every change, whether it comes
// from an operation such as [Engine.SendMessage] or from a pushed
// event consumed by [Engine.RunEvents], is an action applied by a
// single dispatcher goroutine. The resulting immutable state is
// published atomically, so the read methods ([Engine.State],
// [Engine.Threads], [Engine.MessagesForThread], ...) never block and
// always observe a state some sequence of actions produced.
//
// Sends are optimistic. SendMessage inserts a placeholder with status
// "sending" before the service is called and returns a [Send] that
// resolves once the service answers. The placeholder is replaced in
// place by the confirmed message, whether the confirmation arrives as
// the call's response or first as a pushed message.created event.
//
// Inbound messages pass through the role-based sanitizer before they
// reach the store. Drafts are persisted through a [drafts.Store] on
// every change.
package engine
