// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/threadsync/schema"
)

// Wire names of the event types.
const (
	EventTypeThreadUpdated  = "thread.updated"
	EventTypeMessageCreated = "message.created"
	EventTypeTyping         = "typing"
	EventTypeMessageStatus  = "message.status"
)

// Event is a real-time push from the backend. The set is closed: the
// variants are the types in this file, and anything the decoder does
// not recognize arrives as UnknownEvent.
type Event interface {
	// EventType returns the wire name of the event.
	EventType() string

	isEvent()
}

// ThreadUpdatedEvent carries a full or partial thread. A patch naming
// the participants is a snapshot and may introduce a new thread.
type ThreadUpdatedEvent struct {
	Thread schema.ThreadPatch
}

// MessageCreatedEvent announces a new message, optionally with a
// snapshot of its thread as of that message.
type MessageCreatedEvent struct {
	Message schema.Message
	Thread  *schema.Thread
}

// TypingEvent replaces the set of users typing in a thread. An empty
// Users list means nobody is typing.
type TypingEvent struct {
	ThreadID schema.ThreadID
	Users    []schema.UserID
}

// MessageStatusEvent patches an existing message (delivery status,
// read receipts, edits).
type MessageStatusEvent struct {
	MessageID schema.MessageID
	Patch     schema.MessagePatch
}

// UnknownEvent is an event type this module does not understand. Raw
// holds the undecoded payload.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (ThreadUpdatedEvent) EventType() string  { return EventTypeThreadUpdated }
func (MessageCreatedEvent) EventType() string { return EventTypeMessageCreated }
func (TypingEvent) EventType() string         { return EventTypeTyping }
func (MessageStatusEvent) EventType() string  { return EventTypeMessageStatus }
func (e UnknownEvent) EventType() string      { return e.Type }

func (ThreadUpdatedEvent) isEvent()  {}
func (MessageCreatedEvent) isEvent() {}
func (TypingEvent) isEvent()         {}
func (MessageStatusEvent) isEvent()  {}
func (UnknownEvent) isEvent()        {}

// wireEvent is the JSON envelope. Ids are accepted in snake_case and,
// for compatibility with JavaScript producers, camelCase.
type wireEvent struct {
	Type          string               `json:"type"`
	Thread        json.RawMessage      `json:"thread,omitempty"`
	Message       *schema.Message      `json:"message,omitempty"`
	ThreadID      schema.ThreadID      `json:"thread_id,omitempty"`
	ThreadIDCamel schema.ThreadID      `json:"threadId,omitempty"`
	Users         []schema.UserID      `json:"users,omitempty"`
	MessageID     schema.MessageID     `json:"message_id,omitempty"`
	MessageCamel  schema.MessageID     `json:"messageId,omitempty"`
	Patch         *schema.MessagePatch `json:"patch,omitempty"`
}

// DecodeEvent parses the JSON wire form of an event:
//
//	{"type":"thread.updated","thread":{...}}
//	{"type":"message.created","message":{...},"thread":{...}}
//	{"type":"typing","thread_id":"...","users":["..."]}
//	{"type":"message.status","message_id":"...","patch":{...}}
//
// A well-formed payload with an unrecognized type decodes to
// UnknownEvent rather than an error.
func DecodeEvent(data []byte) (Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}

	switch wire.Type {
	case EventTypeThreadUpdated:
		if len(wire.Thread) == 0 {
			return nil, fmt.Errorf("decoding %s event: missing thread", wire.Type)
		}
		var patch schema.ThreadPatch
		if err := json.Unmarshal(wire.Thread, &patch); err != nil {
			return nil, fmt.Errorf("decoding %s event: %w", wire.Type, err)
		}
		if patch.ID == "" {
			return nil, fmt.Errorf("decoding %s event: thread has no id", wire.Type)
		}
		return ThreadUpdatedEvent{Thread: patch}, nil

	case EventTypeMessageCreated:
		if wire.Message == nil || wire.Message.ID == "" {
			return nil, fmt.Errorf("decoding %s event: missing message id", wire.Type)
		}
		event := MessageCreatedEvent{Message: *wire.Message}
		if len(wire.Thread) > 0 && string(wire.Thread) != "null" {
			var thread schema.Thread
			if err := json.Unmarshal(wire.Thread, &thread); err != nil {
				return nil, fmt.Errorf("decoding %s event: %w", wire.Type, err)
			}
			event.Thread = &thread
		}
		if event.Message.ThreadID == "" && event.Thread != nil {
			event.Message.ThreadID = event.Thread.ID
		}
		if event.Message.ThreadID == "" {
			return nil, fmt.Errorf("decoding %s event: message %s has no thread id", wire.Type, event.Message.ID)
		}
		return event, nil

	case EventTypeTyping:
		threadID := firstNonEmpty(wire.ThreadID, wire.ThreadIDCamel)
		if threadID == "" {
			return nil, fmt.Errorf("decoding %s event: missing thread id", wire.Type)
		}
		return TypingEvent{ThreadID: threadID, Users: wire.Users}, nil

	case EventTypeMessageStatus:
		messageID := firstNonEmpty(wire.MessageID, wire.MessageCamel)
		if messageID == "" {
			return nil, fmt.Errorf("decoding %s event: missing message id", wire.Type)
		}
		event := MessageStatusEvent{MessageID: messageID}
		if wire.Patch != nil {
			event.Patch = *wire.Patch
		}
		return event, nil

	default:
		return UnknownEvent{Type: wire.Type, Raw: json.RawMessage(append([]byte(nil), data...))}, nil
	}
}

func firstNonEmpty[T ~string](values ...T) T {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
