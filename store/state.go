// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"maps"
	"slices"
	"sort"

	"github.com/bureau-foundation/threadsync/schema"
)

// handle addresses a message record in the arena. Handles are never
// reused within a State lineage.
type handle uint64

// State is an immutable snapshot of the local view. Obtain one from
// New or Reduce; the zero value is not usable.
type State struct {
	threads map[schema.ThreadID]schema.Thread
	order   []schema.ThreadID

	records map[handle]schema.Message
	byID    map[schema.MessageID]handle
	lists   map[schema.ThreadID][]handle

	cursors map[schema.ThreadID]schema.Cursor
	drafts  map[schema.ThreadID]string
	typing  map[schema.ThreadID][]schema.UserID
	pending map[schema.ThreadID]map[schema.ClientID]schema.MessageID

	nextHandle handle
}

// New returns an empty state.
func New() *State {
	return &State{
		threads: make(map[schema.ThreadID]schema.Thread),
		records: make(map[handle]schema.Message),
		byID:    make(map[schema.MessageID]handle),
		lists:   make(map[schema.ThreadID][]handle),
		cursors: make(map[schema.ThreadID]schema.Cursor),
		drafts:  make(map[schema.ThreadID]string),
		typing:  make(map[schema.ThreadID][]schema.UserID),
		pending: make(map[schema.ThreadID]map[schema.ClientID]schema.MessageID),
	}
}

// WithDrafts returns a copy of s with drafts merged over its current
// drafts. Used once at startup to seed persisted compose content.
func (s *State) WithDrafts(drafts map[schema.ThreadID]string) *State {
	next := *s
	next.drafts = maps.Clone(s.drafts)
	for threadID, content := range drafts {
		if content != "" {
			next.drafts[threadID] = content
		}
	}
	return &next
}

// Threads returns the known threads, most recently updated first.
// Threads with equal UpdatedAt keep their ordering-list position.
func (s *State) Threads() []schema.Thread {
	result := make([]schema.Thread, 0, len(s.order))
	for _, threadID := range s.order {
		if thread, ok := s.threads[threadID]; ok {
			result = append(result, cloneThread(thread))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result
}

// ThreadOrder returns the raw ordering list.
func (s *State) ThreadOrder() []schema.ThreadID {
	return slices.Clone(s.order)
}

// Thread returns the thread with the given id.
func (s *State) Thread(threadID schema.ThreadID) (schema.Thread, bool) {
	thread, ok := s.threads[threadID]
	if !ok {
		return schema.Thread{}, false
	}
	return cloneThread(thread), true
}

// MessagesForThread returns the thread's loaded messages sorted by
// CreatedAt ascending. Messages with equal timestamps keep their list
// order.
func (s *State) MessagesForThread(threadID schema.ThreadID) []schema.Message {
	handles := s.lists[threadID]
	result := make([]schema.Message, 0, len(handles))
	for _, h := range handles {
		if message, ok := s.records[h]; ok {
			result = append(result, message.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// MessageIDs returns the thread's message ids in list order (not
// sorted by time).
func (s *State) MessageIDs(threadID schema.ThreadID) []schema.MessageID {
	handles := s.lists[threadID]
	result := make([]schema.MessageID, 0, len(handles))
	for _, h := range handles {
		if message, ok := s.records[h]; ok {
			result = append(result, message.ID)
		}
	}
	return result
}

// Message returns the message with the given id.
func (s *State) Message(messageID schema.MessageID) (schema.Message, bool) {
	h, ok := s.byID[messageID]
	if !ok {
		return schema.Message{}, false
	}
	return s.records[h].Clone(), true
}

// MessageCount returns the number of messages in the arena.
func (s *State) MessageCount() int {
	return len(s.records)
}

// Cursor returns the pagination cursor for a thread; empty when the
// thread has not been paginated or has no further history.
func (s *State) Cursor(threadID schema.ThreadID) schema.Cursor {
	return s.cursors[threadID]
}

// Draft returns the thread's unsent compose content.
func (s *State) Draft(threadID schema.ThreadID) string {
	return s.drafts[threadID]
}

// Drafts returns a copy of every non-empty draft.
func (s *State) Drafts() map[schema.ThreadID]string {
	return maps.Clone(s.drafts)
}

// Typing returns the users currently typing in a thread.
func (s *State) Typing(threadID schema.ThreadID) []schema.UserID {
	return slices.Clone(s.typing[threadID])
}

// PendingSends returns the in-flight sends for a thread, keyed by
// client id.
func (s *State) PendingSends(threadID schema.ThreadID) map[schema.ClientID]schema.MessageID {
	return maps.Clone(s.pending[threadID])
}

func cloneThread(thread schema.Thread) schema.Thread {
	thread.ParticipantIDs = slices.Clone(thread.ParticipantIDs)
	return thread
}
