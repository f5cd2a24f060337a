// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// ThreadID identifies a conversation thread. Stable for the thread's
// lifetime.
type ThreadID string

// MessageID identifies a message. Optimistic messages carry a
// temporary id equal to their ClientID until reconciled.
type MessageID string

// UserID identifies a participant.
type UserID string

// ClientID is generated locally for each send and links an optimistic
// message to its confirmed counterpart.
type ClientID string

// Cursor is an opaque pagination token marking the oldest loaded
// message of a thread. The empty cursor means "not yet paginated" or
// "no further history".
type Cursor string

// IsZero reports whether the cursor is empty.
func (c Cursor) IsZero() bool { return c == "" }
