// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"maps"
	"slices"

	"github.com/bureau-foundation/threadsync/schema"
)

// Reduce applies action to state and returns the resulting state. The
// input is never modified. A nil state is treated as New(); a nil or
// unrecognized action returns state unchanged.
func Reduce(state *State, action Action) *State {
	if state == nil {
		state = New()
	}
	tx := begin(state)

	switch action := action.(type) {
	case ThreadsReceived:
		tx.threadsReceived(action)
	case ThreadUpdated:
		tx.threadUpdated(action.Patch)
	case ThreadArchived:
		if _, ok := state.threads[action.ThreadID]; ok {
			archived := action.Archived
			tx.threadUpdated(schema.ThreadPatch{ID: action.ThreadID, Archived: &archived})
		}
	case ThreadCreated:
		tx.threadCreated(action.Thread)
	case MessagesReceived:
		tx.messagesMerged(action.ThreadID, action.Messages, action.Cursor, placeBefore)
	case MessagesPrepended:
		tx.messagesMerged(action.ThreadID, action.Messages, action.Cursor, placeBefore)
	case MessagesAppended:
		tx.messagesMerged(action.ThreadID, action.Messages, nil, placeAfter)
	case MessageOptimistic:
		tx.messageOptimistic(action.Message)
	case MessageSucceeded:
		tx.messageSucceeded(action.TempID, action.Message)
	case MessageFailed:
		failed := schema.StatusFailed
		tx.messagePatched(action.MessageID, schema.MessagePatch{Status: &failed})
	case MessageStatusChanged:
		tx.messagePatched(action.MessageID, action.Patch)
	case DraftSaved:
		tx.draftSaved(action.ThreadID, action.Content)
	case DraftCleared:
		tx.draftSaved(action.ThreadID, "")
	case TypingUpdated:
		tx.typingUpdated(action.ThreadID, action.Users)
	default:
		return state
	}

	return tx.commit()
}

// placement says where incoming message handles go relative to the
// handles already listed for the thread.
type placement int

const (
	placeBefore placement = iota
	placeAfter
)

// txn accumulates copy-on-write changes to a State. Each map is cloned
// at most once, on first write.
type txn struct {
	base *State
	next State

	threadsCloned bool
	recordsCloned bool
	byIDCloned    bool
	listsCloned   bool
	cursorsCloned bool
	draftsCloned  bool
	typingCloned  bool
	pendingCloned bool
	innerCloned   map[schema.ThreadID]bool
	changed       bool
}

func begin(state *State) *txn {
	return &txn{base: state, next: *state}
}

func (tx *txn) commit() *State {
	if !tx.changed {
		return tx.base
	}
	next := tx.next
	return &next
}

func (tx *txn) threads() map[schema.ThreadID]schema.Thread {
	tx.changed = true
	if !tx.threadsCloned {
		tx.next.threads = maps.Clone(tx.base.threads)
		tx.threadsCloned = true
	}
	return tx.next.threads
}

func (tx *txn) records() map[handle]schema.Message {
	tx.changed = true
	if !tx.recordsCloned {
		tx.next.records = maps.Clone(tx.base.records)
		tx.recordsCloned = true
	}
	return tx.next.records
}

func (tx *txn) byID() map[schema.MessageID]handle {
	tx.changed = true
	if !tx.byIDCloned {
		tx.next.byID = maps.Clone(tx.base.byID)
		tx.byIDCloned = true
	}
	return tx.next.byID
}

func (tx *txn) lists() map[schema.ThreadID][]handle {
	tx.changed = true
	if !tx.listsCloned {
		tx.next.lists = maps.Clone(tx.base.lists)
		tx.listsCloned = true
	}
	return tx.next.lists
}

func (tx *txn) cursors() map[schema.ThreadID]schema.Cursor {
	tx.changed = true
	if !tx.cursorsCloned {
		tx.next.cursors = maps.Clone(tx.base.cursors)
		tx.cursorsCloned = true
	}
	return tx.next.cursors
}

func (tx *txn) drafts() map[schema.ThreadID]string {
	tx.changed = true
	if !tx.draftsCloned {
		tx.next.drafts = maps.Clone(tx.base.drafts)
		tx.draftsCloned = true
	}
	return tx.next.drafts
}

func (tx *txn) typing() map[schema.ThreadID][]schema.UserID {
	tx.changed = true
	if !tx.typingCloned {
		tx.next.typing = maps.Clone(tx.base.typing)
		tx.typingCloned = true
	}
	return tx.next.typing
}

// pendingFor returns a writable copy of one thread's pending map. The
// outer map is cloned once per transaction and each inner map on its
// first write.
func (tx *txn) pendingFor(threadID schema.ThreadID) map[schema.ClientID]schema.MessageID {
	tx.changed = true
	if !tx.pendingCloned {
		tx.next.pending = maps.Clone(tx.base.pending)
		tx.pendingCloned = true
	}
	inner, ok := tx.next.pending[threadID]
	if !ok || !tx.innerCloned[threadID] {
		inner = maps.Clone(inner)
		if inner == nil {
			inner = make(map[schema.ClientID]schema.MessageID)
		}
		tx.next.pending[threadID] = inner
		if tx.innerCloned == nil {
			tx.innerCloned = make(map[schema.ThreadID]bool)
		}
		tx.innerCloned[threadID] = true
	}
	return inner
}

func (tx *txn) setList(threadID schema.ThreadID, handles []handle) {
	tx.lists()[threadID] = handles
}

func (tx *txn) threadsReceived(action ThreadsReceived) {
	if len(action.Threads) == 0 && !action.ReplaceOrder {
		return
	}
	incoming := make([]schema.ThreadID, 0, len(action.Threads))
	for _, thread := range action.Threads {
		if thread.ID == "" {
			continue
		}
		tx.mergeThread(thread.Patch())
		if !slices.Contains(incoming, thread.ID) {
			incoming = append(incoming, thread.ID)
		}
	}

	if action.ReplaceOrder {
		tx.changed = true
		tx.next.order = incoming
		return
	}
	order := slices.Clone(tx.next.order)
	for _, threadID := range incoming {
		if !slices.Contains(order, threadID) {
			order = append(order, threadID)
		}
	}
	tx.changed = true
	tx.next.order = order
}

func (tx *txn) threadUpdated(patch schema.ThreadPatch) {
	if patch.ID == "" {
		return
	}
	if _, known := tx.next.threads[patch.ID]; !known {
		if !patch.IsSnapshot() {
			return
		}
		tx.changed = true
		tx.next.order = append(slices.Clone(tx.next.order), patch.ID)
	}
	tx.mergeThread(patch)
}

func (tx *txn) threadCreated(thread schema.Thread) {
	if thread.ID == "" {
		return
	}
	tx.mergeThread(thread.Patch())
	order := make([]schema.ThreadID, 0, len(tx.next.order)+1)
	order = append(order, thread.ID)
	for _, threadID := range tx.next.order {
		if threadID != thread.ID {
			order = append(order, threadID)
		}
	}
	tx.changed = true
	tx.next.order = order
}

func (tx *txn) mergeThread(patch schema.ThreadPatch) {
	existing := tx.next.threads[patch.ID]
	tx.threads()[patch.ID] = patch.Apply(existing)
}

// messagesMerged merges a batch into a known thread and splices the
// resulting handles into its list without duplicates.
func (tx *txn) messagesMerged(threadID schema.ThreadID, messages []schema.Message, cursor *schema.Cursor, where placement) {
	if _, known := tx.next.threads[threadID]; !known {
		return
	}

	var incoming []handle
	for _, message := range messages {
		h, ok := tx.mergeMessage(threadID, message)
		if ok && !slices.Contains(incoming, h) {
			incoming = append(incoming, h)
		}
	}

	if len(incoming) > 0 {
		existing := tx.next.lists[threadID]
		var combined []handle
		switch where {
		case placeBefore:
			combined = make([]handle, 0, len(incoming)+len(existing))
			combined = append(combined, incoming...)
			for _, h := range existing {
				if !slices.Contains(incoming, h) {
					combined = append(combined, h)
				}
			}
		case placeAfter:
			combined = slices.Clone(existing)
			for _, h := range incoming {
				if !slices.Contains(combined, h) {
					combined = append(combined, h)
				}
			}
		}
		tx.setList(threadID, combined)
	}

	if cursor != nil {
		if cursor.IsZero() {
			delete(tx.cursors(), threadID)
		} else {
			tx.cursors()[threadID] = *cursor
		}
	}
}

// mergeMessage stores message in the arena and returns its handle. A
// message whose id is already known is merged into the existing
// record. A message whose ClientID matches an in-flight send of the
// thread reconciles onto the optimistic record. Returns false when the
// message cannot belong to threadID.
func (tx *txn) mergeMessage(threadID schema.ThreadID, message schema.Message) (handle, bool) {
	if message.ID == "" {
		return 0, false
	}
	if message.ThreadID == "" {
		message.ThreadID = threadID
	}
	if message.ThreadID != threadID {
		return 0, false
	}

	if h, ok := tx.next.byID[message.ID]; ok {
		existing := tx.next.records[h]
		if existing.ThreadID != threadID {
			return 0, false
		}
		tx.records()[h] = mergeRecords(existing, message)
		tx.forgetPending(threadID, message.ClientID, message.ID)
		return h, true
	}

	if message.ClientID != "" {
		if tempID, ok := tx.next.pending[threadID][message.ClientID]; ok {
			if h, ok := tx.next.byID[tempID]; ok {
				tx.rekey(h, tempID, message)
				tx.forgetPending(threadID, message.ClientID, tempID)
				return h, true
			}
		}
	}

	return tx.insert(message), true
}

// mergeRecords is the shallow merge of a confirmed or re-delivered
// message over the record already stored. The incoming message wins,
// except that a client id and metadata already known are not lost.
func mergeRecords(existing, incoming schema.Message) schema.Message {
	merged := incoming.Clone()
	if merged.ClientID == "" {
		merged.ClientID = existing.ClientID
	}
	if merged.Metadata == nil && existing.Metadata != nil {
		merged.Metadata = maps.Clone(existing.Metadata)
	}
	return merged
}

func (tx *txn) insert(message schema.Message) handle {
	h := tx.next.nextHandle
	tx.next.nextHandle++
	tx.records()[h] = message.Clone()
	tx.byID()[message.ID] = h
	return h
}

// rekey moves the record at h from oldID to message.ID.
func (tx *txn) rekey(h handle, oldID schema.MessageID, message schema.Message) {
	existing := tx.next.records[h]
	byID := tx.byID()
	delete(byID, oldID)
	byID[message.ID] = h
	tx.records()[h] = mergeRecords(existing, message)
}

// forgetPending removes the pending entry for clientID, or any entry
// pointing at messageID when clientID is empty or stale.
func (tx *txn) forgetPending(threadID schema.ThreadID, clientID schema.ClientID, messageID schema.MessageID) {
	current := tx.next.pending[threadID]
	if len(current) == 0 {
		return
	}
	match := func(candidate schema.ClientID, id schema.MessageID) bool {
		return candidate == clientID || id == messageID
	}
	found := false
	for candidate, id := range current {
		if match(candidate, id) {
			found = true
			break
		}
	}
	if !found {
		return
	}
	pending := tx.pendingFor(threadID)
	for candidate, id := range pending {
		if match(candidate, id) {
			delete(pending, candidate)
		}
	}
	if len(pending) == 0 {
		delete(tx.next.pending, threadID)
	}
}

func (tx *txn) messageOptimistic(message schema.Message) {
	if message.ID == "" {
		return
	}
	if _, known := tx.next.threads[message.ThreadID]; !known {
		return
	}
	if _, exists := tx.next.byID[message.ID]; exists {
		return
	}
	if message.ClientID == "" {
		message.ClientID = schema.ClientID(message.ID)
	}

	h := tx.insert(message)
	tx.setList(message.ThreadID, append(slices.Clone(tx.next.lists[message.ThreadID]), h))
	tx.pendingFor(message.ThreadID)[message.ClientID] = message.ID
}

func (tx *txn) messageSucceeded(tempID schema.MessageID, confirmed schema.Message) {
	if confirmed.ID == "" {
		return
	}
	tempHandle, tempKnown := tx.next.byID[tempID]
	if tempKnown && confirmed.ThreadID == "" {
		confirmed.ThreadID = tx.next.records[tempHandle].ThreadID
	}
	threadID := confirmed.ThreadID
	if _, known := tx.next.threads[threadID]; !known {
		return
	}
	if tempKnown && confirmed.ClientID == "" {
		confirmed.ClientID = tx.next.records[tempHandle].ClientID
	}
	realHandle, realKnown := tx.next.byID[confirmed.ID]

	switch {
	case tempKnown && (!realKnown || realHandle == tempHandle):
		tx.rekey(tempHandle, tempID, confirmed)
	case tempKnown && realKnown:
		// The confirmed message already arrived through another path;
		// keep that record and drop the placeholder.
		tx.records()[realHandle] = mergeRecords(tx.next.records[realHandle], confirmed)
		tx.drop(tempHandle, tempID)
	case realKnown:
		tx.records()[realHandle] = mergeRecords(tx.next.records[realHandle], confirmed)
	default:
		h := tx.insert(confirmed)
		tx.setList(threadID, append(slices.Clone(tx.next.lists[threadID]), h))
	}

	tx.forgetPending(threadID, confirmed.ClientID, tempID)
}

// drop removes a record and its handle from its thread's list.
func (tx *txn) drop(h handle, messageID schema.MessageID) {
	threadID := tx.next.records[h].ThreadID
	delete(tx.records(), h)
	delete(tx.byID(), messageID)
	list := tx.next.lists[threadID]
	tx.setList(threadID, slices.DeleteFunc(slices.Clone(list), func(candidate handle) bool {
		return candidate == h
	}))
}

func (tx *txn) messagePatched(messageID schema.MessageID, patch schema.MessagePatch) {
	h, ok := tx.next.byID[messageID]
	if !ok {
		return
	}
	tx.records()[h] = patch.Apply(tx.next.records[h])
}

func (tx *txn) draftSaved(threadID schema.ThreadID, content string) {
	if threadID == "" {
		return
	}
	if content == "" {
		if _, ok := tx.next.drafts[threadID]; ok {
			delete(tx.drafts(), threadID)
		}
		return
	}
	if tx.next.drafts[threadID] == content {
		return
	}
	tx.drafts()[threadID] = content
}

func (tx *txn) typingUpdated(threadID schema.ThreadID, users []schema.UserID) {
	if _, known := tx.next.threads[threadID]; !known {
		return
	}
	unique := make([]schema.UserID, 0, len(users))
	for _, user := range users {
		if user != "" && !slices.Contains(unique, user) {
			unique = append(unique, user)
		}
	}
	if len(unique) == 0 {
		if _, ok := tx.next.typing[threadID]; ok {
			delete(tx.typing(), threadID)
		}
		return
	}
	tx.typing()[threadID] = unique
}
