// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service defines the contract between the sync engine and the
// remote messaging backend.
//
// The [Service] interface is implemented outside this module (an HTTP
// client, a websocket gateway, or the in-memory double in
// [github.com/bureau-foundation/threadsync/service/memservice]). Real-time
// pushes arrive over a [Subscription] as values of the closed [Event]
// union; [DecodeEvent] turns the JSON wire form into those values.
//
// Failures reported by a backend should be *[Error] values so callers
// can branch on the [ErrorCode] with [IsError]. Any other error is
// treated as a transport failure.
package service
