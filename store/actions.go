// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import "github.com/bureau-foundation/threadsync/schema"

// Action is a state transition understood by Reduce. The set of
// actions is closed: only the types in this file implement it.
type Action interface {
	// Kind names the action for logs and metrics.
	Kind() string

	isAction()
}

// ThreadsReceived merges a page of threads. With ReplaceOrder the
// thread ordering becomes exactly the incoming sequence; otherwise new
// ids are appended after the known ones.
type ThreadsReceived struct {
	Threads      []schema.Thread
	ReplaceOrder bool
}

// ThreadUpdated merges a partial update into a thread without moving
// it in the ordering. A snapshot patch for an unknown thread inserts
// it at the end of the ordering; any other patch for an unknown thread
// is ignored.
type ThreadUpdated struct {
	Patch schema.ThreadPatch
}

// ThreadArchived sets the archived flag of a known thread.
type ThreadArchived struct {
	ThreadID schema.ThreadID
	Archived bool
}

// ThreadCreated merges a thread and moves it to the front of the
// ordering.
type ThreadCreated struct {
	Thread schema.Thread
}

// MessagesReceived seeds the visible window of a thread from its
// newest end. A non-nil Cursor replaces the stored cursor.
type MessagesReceived struct {
	ThreadID schema.ThreadID
	Messages []schema.Message
	Cursor   *schema.Cursor
}

// MessagesPrepended adds an older page before the messages already
// loaded. A non-nil Cursor replaces the stored cursor.
type MessagesPrepended struct {
	ThreadID schema.ThreadID
	Messages []schema.Message
	Cursor   *schema.Cursor
}

// MessagesAppended adds newer messages after the ones already loaded.
type MessagesAppended struct {
	ThreadID schema.ThreadID
	Messages []schema.Message
}

// MessageOptimistic inserts a locally created message and records it
// in the pending-send index under its ClientID.
type MessageOptimistic struct {
	Message schema.Message
}

// MessageSucceeded replaces the optimistic message TempID with the
// confirmed Message.
type MessageSucceeded struct {
	TempID  schema.MessageID
	Message schema.Message
}

// MessageFailed marks a message as failed.
type MessageFailed struct {
	MessageID schema.MessageID
}

// MessageStatusChanged merges a partial update into a message.
type MessageStatusChanged struct {
	MessageID schema.MessageID
	Patch     schema.MessagePatch
}

// DraftSaved stores compose content for a thread. Empty content
// removes the draft.
type DraftSaved struct {
	ThreadID schema.ThreadID
	Content  string
}

// DraftCleared removes a thread's draft.
type DraftCleared struct {
	ThreadID schema.ThreadID
}

// TypingUpdated replaces the set of users typing in a thread.
type TypingUpdated struct {
	ThreadID schema.ThreadID
	Users    []schema.UserID
}

func (ThreadsReceived) Kind() string      { return "threads-received" }
func (ThreadUpdated) Kind() string        { return "thread-updated" }
func (ThreadArchived) Kind() string       { return "thread-archived" }
func (ThreadCreated) Kind() string        { return "thread-created" }
func (MessagesReceived) Kind() string     { return "messages-received" }
func (MessagesPrepended) Kind() string    { return "messages-prepend" }
func (MessagesAppended) Kind() string     { return "messages-append" }
func (MessageOptimistic) Kind() string    { return "message-optimistic" }
func (MessageSucceeded) Kind() string     { return "message-succeeded" }
func (MessageFailed) Kind() string        { return "message-failed" }
func (MessageStatusChanged) Kind() string { return "message-status" }
func (DraftSaved) Kind() string           { return "drafts-save" }
func (DraftCleared) Kind() string         { return "drafts-clear" }
func (TypingUpdated) Kind() string        { return "typing-update" }

func (ThreadsReceived) isAction()      {}
func (ThreadUpdated) isAction()        {}
func (ThreadArchived) isAction()       {}
func (ThreadCreated) isAction()        {}
func (MessagesReceived) isAction()     {}
func (MessagesPrepended) isAction()    {}
func (MessagesAppended) isAction()     {}
func (MessageOptimistic) isAction()    {}
func (MessageSucceeded) isAction()     {}
func (MessageFailed) isAction()        {}
func (MessageStatusChanged) isAction() {}
func (DraftSaved) isAction()           {}
func (DraftCleared) isAction()         {}
func (TypingUpdated) isAction()        {}
