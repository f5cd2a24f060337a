// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/threadsync/schema"
)

// defaultStart is the fake clock's starting time when a scenario does
// not name one.
var defaultStart = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// scenario is a replay file: the backend's initial contents and the
// steps to drive the engine through. It is written as YAML, or as JSON
// with comments and trailing commas (.json, .jsonc).
type scenario struct {
	// Start is the fake clock's initial time.
	Start time.Time `yaml:"start" json:"start"`

	// Viewer overrides the configured viewer when its id or role is
	// set.
	Viewer viewerSeed `yaml:"viewer" json:"viewer"`

	Threads  []threadSeed  `yaml:"threads" json:"threads"`
	Messages []messageSeed `yaml:"messages" json:"messages"`
	Steps    []step        `yaml:"steps" json:"steps"`
}

type viewerSeed struct {
	ID   string `yaml:"id" json:"id"`
	Role string `yaml:"role" json:"role"`
}

type threadSeed struct {
	ID           string    `yaml:"id" json:"id"`
	Title        string    `yaml:"title" json:"title"`
	Participants []string  `yaml:"participants" json:"participants"`
	Unread       int       `yaml:"unread" json:"unread"`
	Archived     bool      `yaml:"archived" json:"archived"`
	UpdatedAt    time.Time `yaml:"updated_at" json:"updated_at"`
}

type messageSeed struct {
	ID        string         `yaml:"id" json:"id"`
	Thread    string         `yaml:"thread" json:"thread"`
	Sender    string         `yaml:"sender" json:"sender"`
	Kind      string         `yaml:"kind" json:"kind"`
	Text      string         `yaml:"text" json:"text"`
	CreatedAt time.Time      `yaml:"created_at" json:"created_at"`
	Metadata  map[string]any `yaml:"metadata" json:"metadata"`
}

// step is one engine operation. Exactly one action field is set.
type step struct {
	ListThreads  *listThreadsStep  `yaml:"list_threads" json:"list_threads"`
	ListMessages *listMessagesStep `yaml:"list_messages" json:"list_messages"`
	Send         *sendStep         `yaml:"send" json:"send"`
	CreateThread *createThreadStep `yaml:"create_thread" json:"create_thread"`
	MarkRead     *threadStep       `yaml:"mark_read" json:"mark_read"`
	Archive      *archiveStep      `yaml:"archive" json:"archive"`
	SaveDraft    *draftStep        `yaml:"save_draft" json:"save_draft"`
	ClearDraft   *threadStep       `yaml:"clear_draft" json:"clear_draft"`
	Fail         *failStep         `yaml:"fail" json:"fail"`

	// Publish is a raw event, in the backend's wire shape, pushed to
	// the engine's event stream.
	Publish map[string]any `yaml:"publish" json:"publish"`

	// Advance moves the fake clock forward by a Go duration.
	Advance string `yaml:"advance" json:"advance"`

	// ExpectError makes a failing step pass and a succeeding one fail.
	ExpectError bool `yaml:"expect_error" json:"expect_error"`
}

type listThreadsStep struct {
	Page     int    `yaml:"page" json:"page"`
	PageSize int    `yaml:"page_size" json:"page_size"`
	Search   string `yaml:"search" json:"search"`
	Filter   string `yaml:"filter" json:"filter"`
	Archived bool   `yaml:"archived" json:"archived"`
	Reset    bool   `yaml:"reset" json:"reset"`
}

type listMessagesStep struct {
	Thread string `yaml:"thread" json:"thread"`

	// Pages is how many pages to walk back from the newest. Default 1.
	Pages int `yaml:"pages" json:"pages"`
}

type sendStep struct {
	Thread      string           `yaml:"thread" json:"thread"`
	Sender      string           `yaml:"sender" json:"sender"`
	Text        string           `yaml:"text" json:"text"`
	Attachments []attachmentSeed `yaml:"attachments" json:"attachments"`
}

type attachmentSeed struct {
	Name     string `yaml:"name" json:"name"`
	URL      string `yaml:"url" json:"url"`
	MIMEType string `yaml:"mime_type" json:"mime_type"`
	Size     int64  `yaml:"size" json:"size"`
}

type createThreadStep struct {
	Title        string   `yaml:"title" json:"title"`
	Participants []string `yaml:"participants" json:"participants"`
	Text         string   `yaml:"text" json:"text"`
}

type threadStep struct {
	Thread  string `yaml:"thread" json:"thread"`
	Message string `yaml:"message" json:"message"`
}

type archiveStep struct {
	Thread   string `yaml:"thread" json:"thread"`
	Archived *bool  `yaml:"archived" json:"archived"`
}

type draftStep struct {
	Thread string `yaml:"thread" json:"thread"`
	Text   string `yaml:"text" json:"text"`
}

// failStep queues an error for the next call of a backend operation.
type failStep struct {
	Op      string `yaml:"op" json:"op"`
	Code    string `yaml:"code" json:"code"`
	Message string `yaml:"message" json:"message"`
}

// readScenario loads a scenario file, choosing the syntax from its
// extension.
func readScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var parsed scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		err = decoder.Decode(&parsed)
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		err = decoder.Decode(&parsed)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}

	if err := parsed.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &parsed, nil
}

func (s *scenario) validate() error {
	var errs []error
	for index, thread := range s.Threads {
		if thread.ID == "" {
			errs = append(errs, fmt.Errorf("threads[%d]: id is required", index))
		}
	}
	for index, message := range s.Messages {
		if message.ID == "" || message.Thread == "" {
			errs = append(errs, fmt.Errorf("messages[%d]: id and thread are required", index))
		}
	}
	for index, step := range s.Steps {
		if count := step.actionCount(); count != 1 {
			errs = append(errs, fmt.Errorf("steps[%d]: want exactly one action, found %d", index, count))
		}
		if step.Advance != "" {
			if _, err := time.ParseDuration(step.Advance); err != nil {
				errs = append(errs, fmt.Errorf("steps[%d]: advance: %w", index, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *scenario) start() time.Time {
	if s.Start.IsZero() {
		return defaultStart
	}
	return s.Start
}

func (s step) actionCount() int {
	count := 0
	for _, set := range []bool{
		s.ListThreads != nil,
		s.ListMessages != nil,
		s.Send != nil,
		s.CreateThread != nil,
		s.MarkRead != nil,
		s.Archive != nil,
		s.SaveDraft != nil,
		s.ClearDraft != nil,
		s.Fail != nil,
		s.Publish != nil,
		s.Advance != "",
	} {
		if set {
			count++
		}
	}
	return count
}

// name is the step's action as written in the file, for error
// messages and logs.
func (s step) name() string {
	switch {
	case s.ListThreads != nil:
		return "list_threads"
	case s.ListMessages != nil:
		return "list_messages"
	case s.Send != nil:
		return "send"
	case s.CreateThread != nil:
		return "create_thread"
	case s.MarkRead != nil:
		return "mark_read"
	case s.Archive != nil:
		return "archive"
	case s.SaveDraft != nil:
		return "save_draft"
	case s.ClearDraft != nil:
		return "clear_draft"
	case s.Fail != nil:
		return "fail"
	case s.Publish != nil:
		return "publish"
	default:
		return "advance"
	}
}

func (t threadSeed) thread(start time.Time) schema.Thread {
	updatedAt := t.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = start
	}
	return schema.Thread{
		ID:             schema.ThreadID(t.ID),
		Title:          t.Title,
		ParticipantIDs: userIDs(t.Participants),
		Archived:       t.Archived,
		UnreadCount:    t.Unread,
		UpdatedAt:      updatedAt,
	}
}

func (m messageSeed) message(start time.Time) schema.Message {
	kind := schema.MessageKind(m.Kind)
	if kind == "" {
		kind = schema.KindText
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = start
	}
	return schema.Message{
		ID:        schema.MessageID(m.ID),
		ThreadID:  schema.ThreadID(m.Thread),
		SenderID:  schema.UserID(m.Sender),
		Kind:      kind,
		Text:      m.Text,
		CreatedAt: createdAt,
		Status:    schema.StatusSent,
		Metadata:  m.Metadata,
	}
}

func (s sendStep) draft() schema.OutgoingDraft {
	draft := schema.OutgoingDraft{SenderID: schema.UserID(s.Sender), Text: s.Text}
	for _, attachment := range s.Attachments {
		draft.Attachments = append(draft.Attachments, schema.Attachment{
			Name:     attachment.Name,
			URL:      attachment.URL,
			MIMEType: attachment.MIMEType,
			Size:     attachment.Size,
		})
	}
	return draft
}

func userIDs(values []string) []schema.UserID {
	result := make([]schema.UserID, len(values))
	for index, value := range values {
		result[index] = schema.UserID(value)
	}
	return result
}
