// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package memservice is an in-memory implementation of
// [service.Service]. It backs the replay CLI and the engine tests:
// threads and messages live in maps, history pages are cut with opaque
// cursors, and sends are echoed to subscribers as message.created
// events the way a real backend pushes them.
//
// Tests steer it with [Service.FailNext] (inject the next error of an
// operation), [Service.HoldSends] (park sends until released),
// [Service.Publish] (push arbitrary events) and
// [Service.EndSubscriptions] (drop every open stream).
package memservice

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/threadsync/lib/clock"
	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/service"
)

// Operation names accepted by FailNext and Calls. They match the
// Service method names.
const (
	OpListThreads   = "ListThreads"
	OpGetThread     = "GetThread"
	OpListMessages  = "ListMessages"
	OpSendMessage   = "SendMessage"
	OpCreateThread  = "CreateThread"
	OpMarkRead      = "MarkRead"
	OpArchiveThread = "ArchiveThread"
	OpSubscribe     = "Subscribe"
)

const (
	defaultPageSize        = 20
	defaultMessagePageSize = 20
	subscriberBuffer       = 64
)

// Config controls a Service. The zero value is usable.
type Config struct {
	// Clock stamps created threads and sent messages. Defaults to
	// clock.Real().
	Clock clock.Clock

	// MessagePageSize is the number of messages per ListMessages page.
	MessagePageSize int

	// PreviewSize is the number of newest messages inlined with each
	// ListThreads entry. Zero inlines none.
	PreviewSize int

	// SilentSends suppresses the message.created echo normally
	// published for every successful send.
	SilentSends bool

	// Synchronous makes event streams unbuffered: Publish returns only
	// once every subscriber has taken the event, so a subscriber that
	// handles events one at a time has finished with everything
	// published before.
	Synchronous bool
}

// Service is an in-memory messaging backend. Safe for concurrent use.
type Service struct {
	clock           clock.Clock
	messagePageSize int
	previewSize     int
	silentSends     bool
	synchronous     bool

	mu          sync.Mutex
	threads     map[schema.ThreadID]schema.Thread
	messages    map[schema.ThreadID][]schema.Message
	located     map[schema.MessageID]schema.ThreadID
	nextThread  int
	nextMessage int
	failures    map[string][]error
	calls       map[string]int
	sendGate    chan struct{}
	subscribers map[*subscriber]struct{}

	// publishMu serializes fan-out against EndSubscriptions closing
	// subscriber channels.
	publishMu sync.Mutex
}

type subscriber struct {
	events   chan service.Event
	done     chan struct{}
	doneOnce sync.Once
}

func (s *subscriber) release() {
	s.doneOnce.Do(func() { close(s.done) })
}

var _ service.Service = (*Service)(nil)

// New returns an empty Service.
func New(config Config) *Service {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.MessagePageSize <= 0 {
		config.MessagePageSize = defaultMessagePageSize
	}
	return &Service{
		clock:           config.Clock,
		messagePageSize: config.MessagePageSize,
		previewSize:     config.PreviewSize,
		silentSends:     config.SilentSends,
		synchronous:     config.Synchronous,
		threads:         make(map[schema.ThreadID]schema.Thread),
		messages:        make(map[schema.ThreadID][]schema.Message),
		located:         make(map[schema.MessageID]schema.ThreadID),
		failures:        make(map[string][]error),
		calls:           make(map[string]int),
		subscribers:     make(map[*subscriber]struct{}),
	}
}

// PutThread stores or replaces a thread.
func (s *Service) PutThread(thread schema.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread.ParticipantIDs = slices.Clone(thread.ParticipantIDs)
	s.threads[thread.ID] = thread
}

// PutMessages stores messages in their threads' histories, replacing
// any stored message with the same id. Histories stay ordered by
// CreatedAt. The threads must already exist.
func (s *Service) PutMessages(messages ...schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range messages {
		if _, ok := s.threads[message.ThreadID]; !ok {
			return fmt.Errorf("message %s: thread %q does not exist", message.ID, message.ThreadID)
		}
		s.storeMessage(message)
	}
	return nil
}

// Thread returns the stored copy of a thread.
func (s *Service) Thread(threadID schema.ThreadID) (schema.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[threadID]
	thread.ParticipantIDs = slices.Clone(thread.ParticipantIDs)
	return thread, ok
}

// History returns a thread's stored messages, oldest first.
func (s *Service) History(threadID schema.ThreadID) []schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages[threadID])
}

// FailNext makes the next call to op return err. Multiple calls queue
// errors in order.
func (s *Service) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls returns how many times op has been invoked.
func (s *Service) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// HoldSends parks every SendMessage call, current and future, until
// the returned function is called. The release function is idempotent.
func (s *Service) HoldSends() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.sendGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.sendGate == gate {
				s.sendGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// SubscriberCount returns the number of open subscriptions.
func (s *Service) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Publish delivers event to every open subscription. It blocks until
// each subscriber has accepted the event or released its
// subscription.
func (s *Service) Publish(event service.Event) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	targets := make([]*subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		targets = append(targets, sub)
	}
	s.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.events <- event:
		case <-sub.done:
		}
	}
}

// EndSubscriptions closes every open event stream, as a backend does
// when it drops its connections.
func (s *Service) EndSubscriptions() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subscribers {
		delete(s.subscribers, sub)
		close(sub.events)
	}
}

// begin counts a call to op and returns its injected failure, if any.
// Caller must hold s.mu.
func (s *Service) begin(op string) error {
	s.calls[op]++
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	s.failures[op] = queue[1:]
	return queue[0]
}

func (s *Service) ListThreads(ctx context.Context, request service.ListThreadsRequest) (*service.ThreadPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpListThreads); err != nil {
		return nil, err
	}
	if request.Filter != service.FilterAll && request.Filter != service.FilterUnread {
		return nil, service.Errorf(service.CodeInvalid, OpListThreads, "unknown filter %q", request.Filter)
	}

	page := max(request.Page, 1)
	pageSize := request.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	search := strings.ToLower(strings.TrimSpace(request.Search))

	var matched []schema.Thread
	for _, thread := range s.threads {
		if thread.Archived != request.Archived {
			continue
		}
		if request.Filter == service.FilterUnread && thread.UnreadCount == 0 {
			continue
		}
		if search != "" && !matchesSearch(thread, search) {
			continue
		}
		matched = append(matched, thread)
	}
	slices.SortFunc(matched, func(a, b schema.Thread) int {
		if order := b.UpdatedAt.Compare(a.UpdatedAt); order != 0 {
			return order
		}
		return cmp.Compare(a.ID, b.ID)
	})

	result := &service.ThreadPage{
		Page:       page,
		PageSize:   pageSize,
		Total:      len(matched),
		TotalPages: (len(matched) + pageSize - 1) / pageSize,
	}
	start := min((page-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))
	for _, thread := range matched[start:end] {
		listing := service.ThreadListing{Thread: cloneThread(thread)}
		if s.previewSize > 0 {
			history := s.messages[thread.ID]
			listing.Preview = cloneMessages(history[max(len(history)-s.previewSize, 0):])
		}
		result.Items = append(result.Items, listing)
	}
	return result, nil
}

func matchesSearch(thread schema.Thread, search string) bool {
	if strings.Contains(strings.ToLower(thread.Title), search) {
		return true
	}
	for _, participant := range thread.ParticipantIDs {
		if strings.Contains(strings.ToLower(string(participant)), search) {
			return true
		}
	}
	return false
}

func (s *Service) GetThread(ctx context.Context, threadID schema.ThreadID) (schema.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpGetThread); err != nil {
		return schema.Thread{}, err
	}
	thread, ok := s.threads[threadID]
	if !ok {
		return schema.Thread{}, service.Errorf(service.CodeNotFound, OpGetThread, "thread %s", threadID)
	}
	return cloneThread(thread), nil
}

// ListMessages pages backwards through history. The cursor is the id
// of the oldest message of the previous page.
func (s *Service) ListMessages(ctx context.Context, threadID schema.ThreadID, cursor schema.Cursor) (*service.MessagePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpListMessages); err != nil {
		return nil, err
	}
	if _, ok := s.threads[threadID]; !ok {
		return nil, service.Errorf(service.CodeNotFound, OpListMessages, "thread %s", threadID)
	}

	history := s.messages[threadID]
	end := len(history)
	if !cursor.IsZero() {
		end = slices.IndexFunc(history, func(message schema.Message) bool {
			return string(message.ID) == string(cursor)
		})
		if end < 0 {
			return nil, service.Errorf(service.CodeInvalid, OpListMessages, "unknown cursor %q", cursor)
		}
	}
	start := max(end-s.messagePageSize, 0)

	page := &service.MessagePage{Items: cloneMessages(history[start:end])}
	if start > 0 {
		page.NextCursor = schema.Cursor(history[start].ID)
	}
	return page, nil
}

func (s *Service) SendMessage(ctx context.Context, threadID schema.ThreadID, draft schema.OutgoingDraft) (schema.Message, error) {
	s.mu.Lock()
	gate := s.sendGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return schema.Message{}, ctx.Err()
		}
	}

	s.mu.Lock()
	if err := s.begin(OpSendMessage); err != nil {
		s.mu.Unlock()
		return schema.Message{}, err
	}
	thread, ok := s.threads[threadID]
	if !ok {
		s.mu.Unlock()
		return schema.Message{}, service.Errorf(service.CodeNotFound, OpSendMessage, "thread %s", threadID)
	}
	if draft.IsEmpty() {
		s.mu.Unlock()
		return schema.Message{}, service.Errorf(service.CodeInvalid, OpSendMessage, "empty message")
	}

	message := schema.Message{
		ID:          s.newMessageID(),
		ThreadID:    threadID,
		SenderID:    draft.SenderID,
		Kind:        draft.Kind(),
		Text:        draft.Text,
		Attachments: slices.Clone(draft.Attachments),
		CreatedAt:   s.clock.Now(),
		Status:      schema.StatusSent,
		ClientID:    draft.ClientID,
	}
	s.storeMessage(message)
	thread = cloneThread(s.threads[threadID])
	s.mu.Unlock()

	if !s.silentSends {
		s.Publish(service.MessageCreatedEvent{Message: message.Clone(), Thread: &thread})
	}
	return message, nil
}

func (s *Service) CreateThread(ctx context.Context, request service.CreateThreadRequest) (schema.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpCreateThread); err != nil {
		return schema.Thread{}, err
	}
	if len(request.ParticipantIDs) == 0 {
		return schema.Thread{}, service.Errorf(service.CodeInvalid, OpCreateThread, "no participants")
	}

	thread := schema.Thread{
		Title:          request.Title,
		ParticipantIDs: uniqueUsers(request.ParticipantIDs),
		UpdatedAt:      s.clock.Now(),
	}
	// Seeded threads may already use the generated names.
	for {
		s.nextThread++
		thread.ID = schema.ThreadID(fmt.Sprintf("thread-%d", s.nextThread))
		if _, exists := s.threads[thread.ID]; !exists {
			break
		}
	}
	s.threads[thread.ID] = thread
	return cloneThread(thread), nil
}

func (s *Service) MarkRead(ctx context.Context, threadID schema.ThreadID, messageID schema.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpMarkRead); err != nil {
		return err
	}
	thread, ok := s.threads[threadID]
	if !ok {
		return service.Errorf(service.CodeNotFound, OpMarkRead, "thread %s", threadID)
	}
	if messageID != "" && !slices.ContainsFunc(s.messages[threadID], func(message schema.Message) bool {
		return message.ID == messageID
	}) {
		return service.Errorf(service.CodeNotFound, OpMarkRead, "message %s in thread %s", messageID, threadID)
	}
	thread.UnreadCount = 0
	s.threads[threadID] = thread
	return nil
}

func (s *Service) ArchiveThread(ctx context.Context, threadID schema.ThreadID, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpArchiveThread); err != nil {
		return err
	}
	thread, ok := s.threads[threadID]
	if !ok {
		return service.Errorf(service.CodeNotFound, OpArchiveThread, "thread %s", threadID)
	}
	thread.Archived = archived
	s.threads[threadID] = thread
	return nil
}

// Subscribe opens an event stream. The subscription is released when
// it is closed or when ctx is done, whichever comes first.
func (s *Service) Subscribe(ctx context.Context) (*service.Subscription, error) {
	s.mu.Lock()
	if err := s.begin(OpSubscribe); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	buffer := subscriberBuffer
	if s.synchronous {
		buffer = 0
	}
	sub := &subscriber{
		events: make(chan service.Event, buffer),
		done:   make(chan struct{}),
	}
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.subscribers, sub)
		s.mu.Unlock()
		sub.release()
	}
	stop := context.AfterFunc(ctx, release)
	return service.NewSubscription(sub.events, func() {
		stop()
		release()
	}), nil
}

// newMessageID returns an unused server-style message id. Caller must
// hold s.mu.
func (s *Service) newMessageID() schema.MessageID {
	for {
		s.nextMessage++
		id := schema.MessageID(fmt.Sprintf("msg-%d", s.nextMessage))
		if _, exists := s.located[id]; !exists {
			return id
		}
	}
}

// storeMessage inserts or replaces message in its thread's history and
// advances the thread's last-message pointer. Caller must hold s.mu.
func (s *Service) storeMessage(message schema.Message) {
	sameID := func(existing schema.Message) bool { return existing.ID == message.ID }
	if previous, ok := s.located[message.ID]; ok && previous != message.ThreadID {
		s.messages[previous] = slices.DeleteFunc(s.messages[previous], sameID)
	}
	s.located[message.ID] = message.ThreadID

	history := slices.DeleteFunc(s.messages[message.ThreadID], sameID)
	index, _ := slices.BinarySearchFunc(history, message, func(existing, target schema.Message) int {
		if existing.CreatedAt.After(target.CreatedAt) {
			return 1
		}
		return -1
	})
	s.messages[message.ThreadID] = slices.Insert(history, index, message.Clone())

	thread := s.threads[message.ThreadID]
	newest := s.messages[message.ThreadID][len(s.messages[message.ThreadID])-1]
	thread.LastMessageID = newest.ID
	if newest.CreatedAt.After(thread.UpdatedAt) {
		thread.UpdatedAt = newest.CreatedAt
	}
	s.threads[message.ThreadID] = thread
}

func cloneThread(thread schema.Thread) schema.Thread {
	thread.ParticipantIDs = slices.Clone(thread.ParticipantIDs)
	return thread
}

func cloneMessages(messages []schema.Message) []schema.Message {
	result := make([]schema.Message, len(messages))
	for index, message := range messages {
		result[index] = message.Clone()
	}
	return result
}

func uniqueUsers(ids []schema.UserID) []schema.UserID {
	result := make([]schema.UserID, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(result, id) {
			result = append(result, id)
		}
	}
	return result
}
