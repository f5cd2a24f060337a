// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"slices"
	"time"
)

// Thread is a conversation among a fixed set of participants.
type Thread struct {
	ID             ThreadID  `json:"id"`
	Title          string    `json:"title,omitempty"`
	ParticipantIDs []UserID  `json:"participant_ids"`
	Archived       bool      `json:"archived"`
	UnreadCount    int       `json:"unread_count"`
	LastMessageID  MessageID `json:"last_message_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Patch converts a full thread snapshot into a ThreadPatch. Archived
// and UnreadCount are always present; Title, LastMessageID and
// UpdatedAt only when set. ParticipantIDs is always present (an empty,
// non-nil slice when the snapshot has none), which is what marks the
// patch as a snapshot.
func (t Thread) Patch() ThreadPatch {
	patch := ThreadPatch{
		ID:             t.ID,
		ParticipantIDs: uniqueUsers(t.ParticipantIDs),
		Archived:       &t.Archived,
		UnreadCount:    &t.UnreadCount,
	}
	if t.Title != "" {
		patch.Title = &t.Title
	}
	if t.LastMessageID != "" {
		patch.LastMessageID = &t.LastMessageID
	}
	if !t.UpdatedAt.IsZero() {
		patch.UpdatedAt = &t.UpdatedAt
	}
	return patch
}

// ThreadPatch is a presence-aware partial update to a thread. Nil
// fields are left untouched by Apply.
type ThreadPatch struct {
	ID             ThreadID   `json:"id"`
	Title          *string    `json:"title,omitempty"`
	ParticipantIDs []UserID   `json:"participant_ids,omitempty"`
	Archived       *bool      `json:"archived,omitempty"`
	UnreadCount    *int       `json:"unread_count,omitempty"`
	LastMessageID  *MessageID `json:"last_message_id,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// IsSnapshot reports whether the patch describes a whole thread (it
// names the participants) rather than a handful of fields. Only
// snapshots may introduce a thread the store has not seen.
func (p ThreadPatch) IsSnapshot() bool {
	return p.ParticipantIDs != nil
}

// Apply returns thread with the patch's present fields merged over it.
// UpdatedAt never moves backwards and UnreadCount never goes negative.
func (p ThreadPatch) Apply(thread Thread) Thread {
	merged := thread
	merged.ID = p.ID
	if p.Title != nil {
		merged.Title = *p.Title
	}
	if p.ParticipantIDs != nil {
		merged.ParticipantIDs = uniqueUsers(p.ParticipantIDs)
	}
	if p.Archived != nil {
		merged.Archived = *p.Archived
	}
	if p.UnreadCount != nil {
		merged.UnreadCount = max(*p.UnreadCount, 0)
	}
	if p.LastMessageID != nil {
		merged.LastMessageID = *p.LastMessageID
	}
	if p.UpdatedAt != nil && p.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = *p.UpdatedAt
	}
	return merged
}

// uniqueUsers returns a copy of ids with later duplicates removed,
// preserving first-occurrence order. Never returns nil.
func uniqueUsers(ids []UserID) []UserID {
	result := make([]UserID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(result, id) {
			result = append(result, id)
		}
	}
	return result
}
