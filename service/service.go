// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"time"

	"github.com/bureau-foundation/threadsync/schema"
)

// Service is the remote messaging backend. Implementations must be
// safe for concurrent use; the engine issues calls from many
// goroutines. Timeouts are the implementation's concern: the engine
// passes contexts through but never imposes deadlines of its own.
type Service interface {
	// ListThreads returns one page of the viewer's threads.
	ListThreads(ctx context.Context, request ListThreadsRequest) (*ThreadPage, error)

	// GetThread returns a full thread snapshot.
	GetThread(ctx context.Context, threadID schema.ThreadID) (schema.Thread, error)

	// ListMessages returns the newest page of a thread's history when
	// cursor is empty, or the page older than cursor otherwise.
	ListMessages(ctx context.Context, threadID schema.ThreadID, cursor schema.Cursor) (*MessagePage, error)

	// SendMessage posts a message and returns the stored message with
	// its server-assigned id.
	SendMessage(ctx context.Context, threadID schema.ThreadID, draft schema.OutgoingDraft) (schema.Message, error)

	// CreateThread creates a thread. The initial message, if any, is
	// sent by the engine afterwards through SendMessage; implementations
	// may ignore request.InitialMessage.
	CreateThread(ctx context.Context, request CreateThreadRequest) (schema.Thread, error)

	// MarkRead marks a thread read up to messageID, or entirely when
	// messageID is empty.
	MarkRead(ctx context.Context, threadID schema.ThreadID, messageID schema.MessageID) error

	// ArchiveThread sets or clears a thread's archived flag.
	ArchiveThread(ctx context.Context, threadID schema.ThreadID, archived bool) error

	// Subscribe opens a real-time event stream. The caller must Close
	// the returned subscription.
	Subscribe(ctx context.Context) (*Subscription, error)
}

// OptimisticBuilder is implemented by services that want control over
// the placeholder message shown while a send is in flight. The returned
// message must carry clientID as both its ID and ClientID.
type OptimisticBuilder interface {
	BuildOptimisticMessage(threadID schema.ThreadID, draft schema.OutgoingDraft, clientID schema.ClientID, now time.Time) schema.Message
}

// Thread list filters understood by ListThreadsRequest.Filter.
const (
	FilterAll    = ""
	FilterUnread = "unread"
)

// ListThreadsRequest selects a page of threads. Page is 1-based; zero
// values let the service pick its defaults.
type ListThreadsRequest struct {
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
	Search   string `json:"search,omitempty"`
	Filter   string `json:"filter,omitempty"`
	Archived bool   `json:"archived,omitempty"`
}

// ThreadListing is one entry of a thread page: the thread plus any
// preview messages the service inlined with it.
type ThreadListing struct {
	Thread  schema.Thread    `json:"thread"`
	Preview []schema.Message `json:"preview,omitempty"`
}

// ThreadPage is a page of thread listings.
type ThreadPage struct {
	Items      []ThreadListing `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

// Threads returns the page's threads without their previews.
func (p *ThreadPage) Threads() []schema.Thread {
	threads := make([]schema.Thread, len(p.Items))
	for index, item := range p.Items {
		threads[index] = item.Thread
	}
	return threads
}

// MessagePage is a page of a thread's history. NextCursor is empty
// when there is no older history.
type MessagePage struct {
	Items      []schema.Message `json:"items"`
	NextCursor schema.Cursor    `json:"next_cursor,omitempty"`
}

// CreateThreadRequest describes a new thread.
type CreateThreadRequest struct {
	Title          string                `json:"title,omitempty"`
	ParticipantIDs []schema.UserID       `json:"participant_ids"`
	InitialMessage *schema.OutgoingDraft `json:"initial_message,omitempty"`
}
