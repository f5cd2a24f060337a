// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// MessageKind distinguishes ordinary text, system notices, and
// attachment-bearing messages.
type MessageKind string

const (
	KindText       MessageKind = "text"
	KindSystem     MessageKind = "system"
	KindAttachment MessageKind = "attachment"
)

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusRead    MessageStatus = "read"
	StatusFailed  MessageStatus = "failed"
)

// Attachment is a file or media item attached to a message.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message is a single entry in a thread.
type Message struct {
	ID          MessageID      `json:"id"`
	ThreadID    ThreadID       `json:"thread_id"`
	SenderID    UserID         `json:"sender_id"`
	Kind        MessageKind    `json:"kind"`
	Text        string         `json:"text,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Status      MessageStatus  `json:"status"`
	ClientID    ClientID       `json:"client_id,omitempty"`
	ReadBy      []UserID       `json:"read_by,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy of m that shares no slices or maps with it.
// Metadata is copied one level deep; values are treated as immutable.
func (m Message) Clone() Message {
	clone := m
	clone.Attachments = slices.Clone(m.Attachments)
	clone.ReadBy = slices.Clone(m.ReadBy)
	clone.Metadata = maps.Clone(m.Metadata)
	return clone
}

// MessagePatch is a partial update to a message delivered by status
// events. Nil fields are left untouched.
type MessagePatch struct {
	Status   *MessageStatus `json:"status,omitempty"`
	ReadBy   []UserID       `json:"read_by,omitempty"`
	Text     *string        `json:"text,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Apply returns message with the patch merged over it. Metadata keys
// are merged individually; ReadBy replaces the existing list.
func (p MessagePatch) Apply(message Message) Message {
	merged := message.Clone()
	if p.Status != nil {
		merged.Status = *p.Status
	}
	if p.ReadBy != nil {
		merged.ReadBy = uniqueUsers(p.ReadBy)
	}
	if p.Text != nil {
		merged.Text = *p.Text
	}
	if p.Metadata != nil {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]any, len(p.Metadata))
		}
		maps.Copy(merged.Metadata, p.Metadata)
	}
	return merged
}

// OutgoingDraft is what a caller asks the service to send. ClientID is
// filled by the engine before the draft reaches the service; backends
// echo it on the stored message so pushes can be matched to in-flight
// sends.
type OutgoingDraft struct {
	SenderID    UserID       `json:"sender_id"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ClientID    ClientID     `json:"client_id,omitempty"`
}

// Kind returns the kind an optimistic message built from the draft
// carries: attachment when anything is attached, text otherwise.
func (d OutgoingDraft) Kind() MessageKind {
	if len(d.Attachments) > 0 {
		return KindAttachment
	}
	return KindText
}

// IsEmpty reports whether the draft has neither text nor attachments.
func (d OutgoingDraft) IsEmpty() bool {
	return strings.TrimSpace(d.Text) == "" && len(d.Attachments) == 0
}
