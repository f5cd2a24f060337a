// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/service"
	"github.com/bureau-foundation/threadsync/store"
)

// ListThreadsParams selects a page of threads. With Reset the local
// thread ordering is replaced by this page's order; otherwise new
// threads are appended after the ones already known.
type ListThreadsParams struct {
	Page     int
	PageSize int
	Search   string
	Filter   string
	Archived bool
	Reset    bool
}

// ListThreads fetches a page of threads and merges it, along with any
// inline preview messages, into the local state.
func (e *Engine) ListThreads(ctx context.Context, params ListThreadsParams) (*service.ThreadPage, error) {
	page, err := e.service.ListThreads(ctx, service.ListThreadsRequest{
		Page:     params.Page,
		PageSize: params.PageSize,
		Search:   params.Search,
		Filter:   params.Filter,
		Archived: params.Archived,
	})
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}

	if err := e.dispatch(store.ThreadsReceived{Threads: page.Threads(), ReplaceOrder: params.Reset}); err != nil {
		return nil, err
	}
	for index, item := range page.Items {
		if len(item.Preview) == 0 {
			continue
		}
		preview := e.sanitize(item.Preview)
		page.Items[index].Preview = preview
		if len(preview) == 0 {
			continue
		}
		if err := e.dispatch(store.MessagesReceived{ThreadID: item.Thread.ID, Messages: preview}); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// GetThread fetches a thread snapshot, merges it into the local state
// (inserting the thread if it was unknown) and returns the merged
// thread.
func (e *Engine) GetThread(ctx context.Context, threadID schema.ThreadID) (schema.Thread, error) {
	thread, err := e.service.GetThread(ctx, threadID)
	if err != nil {
		return schema.Thread{}, fmt.Errorf("getting thread %s: %w", threadID, err)
	}
	if thread.ID == "" {
		thread.ID = threadID
	}
	if err := e.dispatch(store.ThreadUpdated{Patch: thread.Patch()}); err != nil {
		return schema.Thread{}, err
	}
	if merged, ok := e.State().Thread(thread.ID); ok {
		return merged, nil
	}
	return thread, nil
}

// CreateThreadParams describes a new thread and, optionally, the first
// message to send in it.
type CreateThreadParams struct {
	Title          string
	ParticipantIDs []schema.UserID
	InitialMessage *schema.OutgoingDraft
}

// CreateThread creates a thread and puts it at the front of the local
// ordering. When params carries an initial message it is sent with the
// optimistic protocol and its Send is returned; otherwise the Send is
// nil. The initial message is validated before the thread is created.
func (e *Engine) CreateThread(ctx context.Context, params CreateThreadParams) (schema.Thread, *Send, error) {
	if len(params.ParticipantIDs) == 0 {
		return schema.Thread{}, nil, &ValidationError{Field: "participant_ids", Reason: "at least one participant is required"}
	}
	var initial schema.OutgoingDraft
	if params.InitialMessage != nil {
		var err error
		if initial, err = e.prepareDraft(*params.InitialMessage); err != nil {
			return schema.Thread{}, nil, err
		}
	}

	thread, err := e.service.CreateThread(ctx, service.CreateThreadRequest{
		Title:          params.Title,
		ParticipantIDs: params.ParticipantIDs,
	})
	if err != nil {
		return schema.Thread{}, nil, fmt.Errorf("creating thread: %w", err)
	}
	if err := e.dispatch(store.ThreadCreated{Thread: thread}); err != nil {
		return schema.Thread{}, nil, err
	}
	e.logger.Info("thread created", "thread_id", thread.ID, "participants", len(thread.ParticipantIDs))

	if params.InitialMessage == nil {
		return thread, nil, nil
	}
	send, err := e.send(ctx, thread.ID, initial)
	if err != nil {
		return thread, nil, err
	}
	return thread, send, nil
}

// MarkRead marks a thread read, up to messageID when it is not empty.
// On success the local unread count is zero.
func (e *Engine) MarkRead(ctx context.Context, threadID schema.ThreadID, messageID schema.MessageID) error {
	if err := e.service.MarkRead(ctx, threadID, messageID); err != nil {
		return fmt.Errorf("marking thread %s read: %w", threadID, err)
	}
	zero := 0
	return e.dispatch(store.ThreadUpdated{Patch: schema.ThreadPatch{ID: threadID, UnreadCount: &zero}})
}

// ArchiveThread sets or clears a thread's archived flag.
func (e *Engine) ArchiveThread(ctx context.Context, threadID schema.ThreadID, archived bool) error {
	if err := e.service.ArchiveThread(ctx, threadID, archived); err != nil {
		return fmt.Errorf("archiving thread %s: %w", threadID, err)
	}
	return e.dispatch(store.ThreadArchived{ThreadID: threadID, Archived: archived})
}
