// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bureau-foundation/threadsync/sanitize"
	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/service"
	"github.com/bureau-foundation/threadsync/store"
)

// ListMessages fetches one page of a thread's history. An empty cursor
// loads the newest page and seeds the thread's visible window; a
// cursor from a previous page loads the page before it. The returned
// page holds only the messages visible to the viewer, and its
// NextCursor is also stored as the thread's cursor.
//
// A thread that is not yet known locally is fetched first.
func (e *Engine) ListMessages(ctx context.Context, threadID schema.ThreadID, cursor schema.Cursor) (*service.MessagePage, error) {
	if _, known := e.State().Thread(threadID); !known {
		if _, err := e.GetThread(ctx, threadID); err != nil {
			return nil, err
		}
	}

	page, err := e.service.ListMessages(ctx, threadID, cursor)
	if err != nil {
		return nil, fmt.Errorf("listing messages of thread %s: %w", threadID, err)
	}
	visible := e.sanitize(page.Items)
	next := page.NextCursor

	var action store.Action
	if cursor.IsZero() {
		action = store.MessagesReceived{ThreadID: threadID, Messages: visible, Cursor: &next}
	} else {
		action = store.MessagesPrepended{ThreadID: threadID, Messages: visible, Cursor: &next}
	}
	if err := e.dispatch(action); err != nil {
		return nil, err
	}
	return &service.MessagePage{Items: visible, NextCursor: next}, nil
}

// SendMessage sends draft to a thread using the optimistic protocol:
// a placeholder with status "sending" is in the local state when
// SendMessage returns, and the service call continues in the
// background. The returned Send resolves with the confirmed message or
// the service error; in the latter case the placeholder is marked
// failed. Cancelling ctx does not cancel the service call.
//
// A draft without a sender is sent as the viewer. Malformed drafts
// return a *ValidationError and a thread missing from the local state
// returns an error matching ErrNotFound; in both cases nothing is
// inserted or sent.
func (e *Engine) SendMessage(ctx context.Context, threadID schema.ThreadID, draft schema.OutgoingDraft) (*Send, error) {
	prepared, err := e.prepareDraft(draft)
	if err != nil {
		return nil, err
	}
	if _, known := e.State().Thread(threadID); !known {
		return nil, fmt.Errorf("sending to thread %s: %w", threadID, ErrNotFound)
	}
	return e.send(ctx, threadID, prepared)
}

// prepareDraft validates draft and fills in defaults.
func (e *Engine) prepareDraft(draft schema.OutgoingDraft) (schema.OutgoingDraft, error) {
	if draft.SenderID == "" {
		draft.SenderID = e.viewer.ID
	}
	if draft.SenderID == "" {
		return draft, &ValidationError{Field: "sender_id", Reason: "no sender and no viewer configured"}
	}
	if draft.IsEmpty() {
		return draft, &ValidationError{Field: "text", Reason: "message has no text and no attachments"}
	}
	for index, attachment := range draft.Attachments {
		if strings.TrimSpace(attachment.Name) == "" && attachment.URL == "" {
			return draft, &ValidationError{Field: fmt.Sprintf("attachments[%d]", index), Reason: "attachment needs a name or a URL"}
		}
	}
	draft.Attachments = slices.Clone(draft.Attachments)
	return draft, nil
}

// send runs the optimistic protocol for an already validated draft.
func (e *Engine) send(ctx context.Context, threadID schema.ThreadID, draft schema.OutgoingDraft) (*Send, error) {
	clientID := e.newClientID()
	draft.ClientID = clientID
	optimistic := e.buildOptimistic(threadID, draft, clientID)

	if err := e.dispatch(store.MessageOptimistic{Message: optimistic}); err != nil {
		return nil, err
	}
	e.logger.Debug("optimistic message inserted", "thread_id", threadID, "temp_id", optimistic.ID)

	pending := &Send{tempID: optimistic.ID, threadID: threadID, done: make(chan struct{})}
	go e.completeSend(context.WithoutCancel(ctx), pending, draft, e.clock.Now())
	return pending, nil
}

// completeSend performs the service call for a send and reconciles the
// result into the state.
func (e *Engine) completeSend(ctx context.Context, pending *Send, draft schema.OutgoingDraft, started time.Time) {
	threadID, tempID := pending.threadID, pending.tempID

	confirmed, err := e.service.SendMessage(ctx, threadID, draft)
	e.metrics.sendLatency.Observe(e.clock.Now().Sub(started).Seconds())
	if err != nil {
		if dispatchErr := e.dispatch(store.MessageFailed{MessageID: tempID}); dispatchErr != nil {
			e.logger.Debug("could not mark send failed", "temp_id", tempID, "error", dispatchErr)
		}
		e.metrics.sends.WithLabelValues(outcomeFailed).Inc()
		e.logger.Warn("send failed", "thread_id", threadID, "temp_id", tempID, "error", err)
		pending.resolve(schema.Message{}, fmt.Errorf("sending message to thread %s: %w", threadID, err))
		return
	}

	if confirmed.ThreadID == "" {
		confirmed.ThreadID = threadID
	}
	if confirmed.ClientID == "" {
		confirmed.ClientID = draft.ClientID
	}

	if !sanitize.Visible(confirmed, e.viewer.Role) {
		// The viewer may not see the stored form; acknowledge the
		// placeholder instead of replacing it.
		e.metrics.filtered.Inc()
		read := schema.StatusRead
		if err := e.dispatch(store.MessageStatusChanged{MessageID: tempID, Patch: schema.MessagePatch{Status: &read}}); err != nil {
			e.logger.Debug("could not acknowledge filtered send", "temp_id", tempID, "error", err)
		}
		e.metrics.sends.WithLabelValues(outcomeFiltered).Inc()
		pending.resolve(confirmed, nil)
		return
	}

	if err := e.dispatch(store.MessageSucceeded{TempID: tempID, Message: confirmed}); err != nil {
		e.logger.Debug("could not reconcile send", "temp_id", tempID, "error", err)
	} else if err := e.ClearDraft(ctx, threadID); err != nil {
		e.logger.Warn("clearing draft after send failed", "thread_id", threadID, "error", err)
	}
	e.metrics.sends.WithLabelValues(outcomeSent).Inc()
	e.logger.Debug("send confirmed", "thread_id", threadID, "temp_id", tempID, "message_id", confirmed.ID)
	pending.resolve(confirmed, nil)
}

// buildOptimistic returns the placeholder for a send. Whatever builder
// is used, the placeholder is keyed by the client id and starts in the
// sending state.
func (e *Engine) buildOptimistic(threadID schema.ThreadID, draft schema.OutgoingDraft, clientID schema.ClientID) schema.Message {
	now := e.clock.Now()
	var message schema.Message
	if e.builder != nil {
		message = e.builder.BuildOptimisticMessage(threadID, draft, clientID, now)
	} else {
		message = schema.Message{
			SenderID:    draft.SenderID,
			Kind:        draft.Kind(),
			Text:        draft.Text,
			Attachments: slices.Clone(draft.Attachments),
			CreatedAt:   now,
		}
	}
	message.ID = schema.MessageID(clientID)
	message.ClientID = clientID
	message.ThreadID = threadID
	message.Status = schema.StatusSending
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}
	return message
}

// Send is an in-flight optimistic send. It resolves exactly once.
type Send struct {
	tempID   schema.MessageID
	threadID schema.ThreadID
	done     chan struct{}

	message schema.Message
	err     error
}

// TempID returns the id of the placeholder message, which is also the
// send's client id.
func (s *Send) TempID() schema.MessageID {
	return s.tempID
}

// ThreadID returns the thread the message was sent to.
func (s *Send) ThreadID() schema.ThreadID {
	return s.threadID
}

// Done is closed once the send has resolved.
func (s *Send) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the send resolves or ctx is done. It returns the
// confirmed message (unfiltered, even when the viewer cannot see it)
// or the service error. Giving up on Wait does not abandon the send.
func (s *Send) Wait(ctx context.Context) (schema.Message, error) {
	select {
	case <-s.done:
		return s.message, s.err
	case <-ctx.Done():
		return schema.Message{}, fmt.Errorf("waiting for send %s: %w", s.tempID, ctx.Err())
	}
}

func (s *Send) resolve(message schema.Message, err error) {
	s.message = message
	s.err = err
	close(s.done)
}
