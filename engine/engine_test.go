// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/threadsync/drafts"
	"github.com/bureau-foundation/threadsync/lib/clock"
	"github.com/bureau-foundation/threadsync/lib/testutil"
	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/service"
	"github.com/bureau-foundation/threadsync/service/memservice"
	"github.com/bureau-foundation/threadsync/store"
)

var epoch = time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC)

type harness struct {
	backend  *memservice.Service
	engine   *Engine
	clock    *clock.FakeClock
	drafts   *drafts.Memory
	registry *prometheus.Registry
}

// harnessOption adjusts the backend before it is built or the engine
// configuration before New is called.
type harnessOption struct {
	backend func(*memservice.Config)
	engine  func(*Config, *memservice.Service)
}

func withRole(role schema.Role) harnessOption {
	return harnessOption{engine: func(config *Config, _ *memservice.Service) { config.Viewer.Role = role }}
}

func withService(wrap func(*memservice.Service) service.Service) harnessOption {
	return harnessOption{engine: func(config *Config, backend *memservice.Service) { config.Service = wrap(backend) }}
}

func withConfig(adjust func(*Config)) harnessOption {
	return harnessOption{engine: func(config *Config, _ *memservice.Service) { adjust(config) }}
}

func withBackend(adjust func(*memservice.Config)) harnessOption {
	return harnessOption{backend: adjust}
}

// newHarness builds an engine over an in-memory backend that holds
// thread-1 (u1 and u2, three unread) and thread-2 (u1 and u3). The
// engine's local state starts empty apart from persisted drafts.
func newHarness(t *testing.T, options ...harnessOption) *harness {
	t.Helper()
	fake := clock.Fake(epoch)
	backendConfig := memservice.Config{Clock: fake}
	for _, option := range options {
		if option.backend != nil {
			option.backend(&backendConfig)
		}
	}
	backend := memservice.New(backendConfig)
	backend.PutThread(schema.Thread{ID: "thread-1", Title: "Carpool", ParticipantIDs: []schema.UserID{"u1", "u2"}, UnreadCount: 3, UpdatedAt: epoch})
	backend.PutThread(schema.Thread{ID: "thread-2", Title: "Homework", ParticipantIDs: []schema.UserID{"u1", "u3"}, UpdatedAt: epoch.Add(-time.Hour)})

	var counter atomic.Int64
	draftStore := drafts.NewMemory()
	registry := prometheus.NewRegistry()
	config := Config{
		Service:    backend,
		Drafts:     draftStore,
		Viewer:     schema.Viewer{ID: "u1", Role: schema.RoleMember},
		Clock:      fake,
		Registerer: registry,
		NewClientID: func() schema.ClientID {
			return schema.ClientID(fmt.Sprintf("temp-%d", counter.Add(1)))
		},
	}
	for _, option := range options {
		if option.engine != nil {
			option.engine(&config, backend)
		}
	}

	engine, err := New(context.Background(), config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(engine.Close)
	return &harness{backend: backend, engine: engine, clock: fake, drafts: draftStore, registry: registry}
}

// loadThreads pulls the backend's thread list into the engine.
func (h *harness) loadThreads(t *testing.T) {
	t.Helper()
	if _, err := h.engine.ListThreads(context.Background(), ListThreadsParams{Reset: true}); err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
}

func aiRecommendation(id, threadID string, at time.Time) schema.Message {
	return schema.Message{
		ID:        schema.MessageID(id),
		ThreadID:  schema.ThreadID(threadID),
		SenderID:  "assistant",
		Kind:      schema.KindSystem,
		Text:      "Consider rescheduling",
		CreatedAt: at,
		Status:    schema.StatusSent,
		Metadata:  map[string]any{"source": "ai"},
	}
}

func TestNewRequiresService(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("New without a Service should fail")
	}
}

// Sending puts a "sending" placeholder in place before the call
// returns; once the service answers the placeholder has become the
// confirmed message and the draft is gone.
func TestSendMessageOptimisticRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	ctx := context.Background()
	if err := h.engine.SaveDraft(ctx, "thread-1", "hello"); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	release := h.backend.HoldSends()
	send, err := h.engine.SendMessage(ctx, "thread-1", schema.OutgoingDraft{SenderID: "u1", Text: "hello"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	messages := h.engine.MessagesForThread("thread-1")
	if len(messages) != 1 || messages[0].Status != schema.StatusSending {
		t.Fatalf("messages right after SendMessage = %+v, want one sending message", messages)
	}
	if messages[0].ID != send.TempID() || messages[0].ClientID != "temp-1" || !messages[0].CreatedAt.Equal(epoch) {
		t.Errorf("placeholder = %+v", messages[0])
	}

	release()
	confirmed, err := send.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	messages = h.engine.MessagesForThread("thread-1")
	if len(messages) != 1 {
		t.Fatalf("messages after confirmation = %+v, want exactly one", messages)
	}
	if messages[0].ID != confirmed.ID || messages[0].ID == send.TempID() || messages[0].Status != schema.StatusSent {
		t.Errorf("confirmed message = %+v (server id %s)", messages[0], confirmed.ID)
	}
	if got := h.engine.Draft("thread-1"); got != "" {
		t.Errorf("draft after send = %q, want empty", got)
	}
	persisted, err := h.drafts.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := persisted["thread-1"]; ok {
		t.Errorf("persisted drafts still hold thread-1: %v", persisted)
	}
	if len(h.engine.State().PendingSends("thread-1")) != 0 {
		t.Error("pending-send index not cleared")
	}
	if got := promtest.ToFloat64(h.engine.metrics.sends.WithLabelValues(outcomeSent)); got != 1 {
		t.Errorf("sends{outcome=sent} = %v, want 1", got)
	}
}

func TestListMessagesPaginationUnion(t *testing.T) {
	h := newHarness(t, withBackend(func(config *memservice.Config) { config.MessagePageSize = 3 }))
	for index := range 5 {
		err := h.backend.PutMessages(schema.Message{
			ID:        schema.MessageID(fmt.Sprintf("m%d", index)),
			ThreadID:  "thread-1",
			SenderID:  "u2",
			Kind:      schema.KindText,
			CreatedAt: epoch.Add(time.Duration(index) * time.Minute),
			Status:    schema.StatusSent,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	ctx := context.Background()

	first, err := h.engine.ListMessages(ctx, "thread-1", "")
	if err != nil {
		t.Fatalf("ListMessages page one: %v", err)
	}
	if first.NextCursor.IsZero() || h.engine.State().Cursor("thread-1") != first.NextCursor {
		t.Fatalf("page one cursor = %q, stored %q", first.NextCursor, h.engine.State().Cursor("thread-1"))
	}
	second, err := h.engine.ListMessages(ctx, "thread-1", first.NextCursor)
	if err != nil {
		t.Fatalf("ListMessages page two: %v", err)
	}
	if !second.NextCursor.IsZero() || !h.engine.State().Cursor("thread-1").IsZero() {
		t.Errorf("history should be exhausted, cursor = %q", second.NextCursor)
	}
	// Re-fetching the newest page overlaps what is loaded.
	if _, err := h.engine.ListMessages(ctx, "thread-1", ""); err != nil {
		t.Fatal(err)
	}

	messages := h.engine.MessagesForThread("thread-1")
	if len(messages) != 5 {
		t.Fatalf("loaded %d messages, want 5", len(messages))
	}
	for index, message := range messages {
		if want := schema.MessageID(fmt.Sprintf("m%d", index)); message.ID != want {
			t.Errorf("messages[%d] = %s, want %s", index, message.ID, want)
		}
	}
}

func TestMarkReadZeroesUnreadCount(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	if thread, _ := h.engine.Thread("thread-1"); thread.UnreadCount != 3 {
		t.Fatalf("precondition: unread = %d", thread.UnreadCount)
	}

	if err := h.engine.MarkRead(context.Background(), "thread-1", ""); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	thread, ok := h.engine.Thread("thread-1")
	if !ok || thread.UnreadCount != 0 {
		t.Errorf("unread after MarkRead = %d, want 0", thread.UnreadCount)
	}
}

func TestMarkReadFailureLeavesStateAlone(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	h.backend.FailNext(memservice.OpMarkRead, service.Errorf(service.CodeUnavailable, memservice.OpMarkRead, "down"))

	err := h.engine.MarkRead(context.Background(), "thread-1", "")
	if !service.IsError(err, service.CodeUnavailable) {
		t.Fatalf("MarkRead error = %v", err)
	}
	if thread, _ := h.engine.Thread("thread-1"); thread.UnreadCount != 3 {
		t.Errorf("unread = %d, want unchanged 3", thread.UnreadCount)
	}
}

func TestSendFailureMarksMessageFailed(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	ctx := context.Background()
	if err := h.engine.SaveDraft(ctx, "thread-1", "keep me"); err != nil {
		t.Fatal(err)
	}
	h.backend.FailNext(memservice.OpSendMessage, service.Errorf(service.CodeUnavailable, memservice.OpSendMessage, "gateway timeout"))

	send, err := h.engine.SendMessage(ctx, "thread-1", schema.OutgoingDraft{Text: "keep me"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	_, err = send.Wait(ctx)
	if !service.IsError(err, service.CodeUnavailable) {
		t.Fatalf("Wait error = %v, want the service error", err)
	}

	messages := h.engine.MessagesForThread("thread-1")
	if len(messages) != 1 || messages[0].ID != send.TempID() || messages[0].Status != schema.StatusFailed {
		t.Fatalf("messages = %+v, want the placeholder marked failed", messages)
	}
	if got := h.engine.Draft("thread-1"); got != "keep me" {
		t.Errorf("draft = %q, a failed send must not clear it", got)
	}
	if h.backend.Calls(memservice.OpSendMessage) != 1 {
		t.Error("failed sends must not be retried")
	}
	if got := promtest.ToFloat64(h.engine.metrics.sends.WithLabelValues(outcomeFailed)); got != 1 {
		t.Errorf("sends{outcome=failed} = %v, want 1", got)
	}
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		threadID schema.ThreadID
		draft    schema.OutgoingDraft
		check    func(error) bool
	}{
		{"empty text", "thread-1", schema.OutgoingDraft{Text: "   "}, IsValidation},
		{"nameless attachment", "thread-1", schema.OutgoingDraft{Attachments: []schema.Attachment{{}}}, IsValidation},
		{"unknown thread", "thread-404", schema.OutgoingDraft{Text: "hi"}, IsNotFound},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			send, err := h.engine.SendMessage(ctx, test.threadID, test.draft)
			if send != nil || !test.check(err) {
				t.Fatalf("SendMessage = (%v, %v)", send, err)
			}
		})
	}
	if n := h.engine.State().MessageCount(); n != 0 {
		t.Errorf("rejected sends inserted %d messages", n)
	}
	if h.backend.Calls(memservice.OpSendMessage) != 0 {
		t.Error("rejected sends reached the service")
	}
}

func TestSendWithoutViewerOrSender(t *testing.T) {
	backend := memservice.New(memservice.Config{})
	backend.PutThread(schema.Thread{ID: "t", ParticipantIDs: []schema.UserID{"u1"}})
	engine, err := New(context.Background(), Config{Service: backend})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()
	if _, err := engine.GetThread(context.Background(), "t"); err != nil {
		t.Fatal(err)
	}
	_, err = engine.SendMessage(context.Background(), "t", schema.OutgoingDraft{Text: "hi"})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "sender_id" {
		t.Errorf("error = %v, want sender_id validation error", err)
	}
}

type rewritingService struct {
	*memservice.Service
	rewrite func(schema.Message) schema.Message
}

func (s rewritingService) SendMessage(ctx context.Context, threadID schema.ThreadID, draft schema.OutgoingDraft) (schema.Message, error) {
	message, err := s.Service.SendMessage(ctx, threadID, draft)
	if err != nil {
		return message, err
	}
	return s.rewrite(message), nil
}

// A guardian sending a message that the backend stores as an AI
// recommendation keeps the placeholder, acknowledged as read, and the
// caller still receives the stored message.
func TestFilteredConfirmationMarksPlaceholderRead(t *testing.T) {
	h := newHarness(t,
		withRole(schema.RoleGuardian),
		withService(func(backend *memservice.Service) service.Service {
			return rewritingService{Service: backend, rewrite: func(message schema.Message) schema.Message {
				message.Kind = schema.KindSystem
				message.Metadata = map[string]any{"ai_recommendation": "true"}
				return message
			}}
		}),
	)
	h.loadThreads(t)
	ctx := context.Background()

	send, err := h.engine.SendMessage(ctx, "thread-1", schema.OutgoingDraft{Text: "what should we do?"})
	if err != nil {
		t.Fatal(err)
	}
	confirmed, err := send.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if confirmed.Kind != schema.KindSystem {
		t.Errorf("caller should get the unfiltered message, got kind %s", confirmed.Kind)
	}

	messages := h.engine.MessagesForThread("thread-1")
	if len(messages) != 1 || messages[0].ID != send.TempID() || messages[0].Status != schema.StatusRead {
		t.Errorf("messages = %+v, want the placeholder with status read", messages)
	}
	if got := promtest.ToFloat64(h.engine.metrics.sends.WithLabelValues(outcomeFiltered)); got != 1 {
		t.Errorf("sends{outcome=filtered} = %v, want 1", got)
	}
}

func TestConcurrentSendsReconcileIndependently(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	ctx := context.Background()
	const sendCount = 12

	sends := make([]*Send, sendCount)
	var group sync.WaitGroup
	for index := range sendCount {
		group.Go(func() {
			send, err := h.engine.SendMessage(ctx, "thread-1", schema.OutgoingDraft{Text: fmt.Sprintf("message %d", index)})
			if err != nil {
				t.Errorf("SendMessage %d: %v", index, err)
				return
			}
			sends[index] = send
		})
	}
	group.Wait()

	confirmedIDs := make(map[schema.MessageID]bool)
	for index, send := range sends {
		if send == nil {
			t.FailNow()
		}
		confirmed, err := send.Wait(ctx)
		if err != nil {
			t.Fatalf("send %d: %v", index, err)
		}
		confirmedIDs[confirmed.ID] = true
	}

	messages := h.engine.MessagesForThread("thread-1")
	if len(messages) != sendCount {
		t.Fatalf("thread holds %d messages, want %d", len(messages), sendCount)
	}
	for _, message := range messages {
		if !confirmedIDs[message.ID] || message.Status != schema.StatusSent {
			t.Errorf("unexpected message %s (%s)", message.ID, message.Status)
		}
	}
	if pending := h.engine.State().PendingSends("thread-1"); len(pending) != 0 {
		t.Errorf("pending sends left: %v", pending)
	}
}

// An abandoned Wait leaves the send running; its result still lands.
func TestAbandonedWaitStillApplies(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	release := h.backend.HoldSends()

	ctx, cancel := context.WithCancel(context.Background())
	send, err := h.engine.SendMessage(ctx, "thread-1", schema.OutgoingDraft{Text: "late"})
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := send.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait with cancelled context = %v", err)
	}

	release()
	testutil.RequireClosed(t, send.Done(), "send never completed")
	confirmed, err := send.Wait(context.Background())
	if err != nil {
		t.Fatalf("send failed after caller gave up: %v", err)
	}
	if _, ok := h.engine.State().Message(confirmed.ID); !ok {
		t.Error("late confirmation was not applied")
	}
}

type prefixBuilder struct{}

func (prefixBuilder) BuildOptimisticMessage(threadID schema.ThreadID, draft schema.OutgoingDraft, clientID schema.ClientID, now time.Time) schema.Message {
	return schema.Message{ID: "ignored", SenderID: draft.SenderID, Kind: draft.Kind(), Text: "(sending) " + draft.Text}
}

func TestCustomOptimisticBuilder(t *testing.T) {
	h := newHarness(t, withConfig(func(config *Config) { config.OptimisticBuilder = prefixBuilder{} }))
	h.loadThreads(t)
	release := h.backend.HoldSends()
	defer release()

	send, err := h.engine.SendMessage(context.Background(), "thread-1", schema.OutgoingDraft{Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	placeholder, ok := h.engine.State().Message(send.TempID())
	if !ok {
		t.Fatalf("placeholder %s not found", send.TempID())
	}
	if placeholder.Text != "(sending) hi" || placeholder.Status != schema.StatusSending || placeholder.ThreadID != "thread-1" {
		t.Errorf("placeholder = %+v", placeholder)
	}
	if placeholder.ID != "temp-1" || placeholder.ClientID != "temp-1" {
		t.Errorf("placeholder must be keyed by the client id, got id %s client %s", placeholder.ID, placeholder.ClientID)
	}
}

func TestCreateThreadWithInitialMessage(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	ctx := context.Background()

	thread, send, err := h.engine.CreateThread(ctx, CreateThreadParams{
		Title:          "Field trip",
		ParticipantIDs: []schema.UserID{"u1", "u4"},
		InitialMessage: &schema.OutgoingDraft{Text: "Who can drive?"},
	})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if send == nil {
		t.Fatal("CreateThread with an initial message returned no Send")
	}
	if order := h.engine.State().ThreadOrder(); len(order) != 3 || order[0] != thread.ID {
		t.Errorf("order = %v, want %s first", order, thread.ID)
	}
	confirmed, err := send.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	messages := h.engine.MessagesForThread(thread.ID)
	if len(messages) != 1 || messages[0].ID != confirmed.ID {
		t.Errorf("messages = %+v", messages)
	}

	if _, _, err := h.engine.CreateThread(ctx, CreateThreadParams{Title: "nobody"}); !IsValidation(err) {
		t.Errorf("CreateThread without participants = %v", err)
	}
	_, _, err = h.engine.CreateThread(ctx, CreateThreadParams{ParticipantIDs: []schema.UserID{"u1"}, InitialMessage: &schema.OutgoingDraft{}})
	if !IsValidation(err) {
		t.Errorf("CreateThread with an empty initial message = %v", err)
	}
	if h.backend.Calls(memservice.OpCreateThread) != 1 {
		t.Error("invalid CreateThread calls reached the service")
	}
}

func TestArchiveThread(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	if err := h.engine.ArchiveThread(context.Background(), "thread-2", true); err != nil {
		t.Fatal(err)
	}
	if thread, _ := h.engine.Thread("thread-2"); !thread.Archived {
		t.Error("thread-2 should be archived locally")
	}
	if stored, _ := h.backend.Thread("thread-2"); !stored.Archived {
		t.Error("thread-2 should be archived remotely")
	}
	if err := h.engine.ArchiveThread(context.Background(), "ghost", true); !IsNotFound(err) {
		t.Errorf("ArchiveThread(ghost) = %v, want not found", err)
	}
}

func TestListThreadsSanitizesPreviews(t *testing.T) {
	h := newHarness(t,
		withRole(schema.RoleParent),
		withBackend(func(config *memservice.Config) { config.PreviewSize = 2 }),
	)
	err := h.backend.PutMessages(
		schema.Message{ID: "m1", ThreadID: "thread-1", SenderID: "u2", Kind: schema.KindText, Text: "hi", CreatedAt: epoch.Add(time.Minute)},
		aiRecommendation("m2", "thread-1", epoch.Add(2*time.Minute)),
	)
	if err != nil {
		t.Fatal(err)
	}

	page, err := h.engine.ListThreads(context.Background(), ListThreadsParams{Reset: true})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || len(page.Items[0].Preview) != 1 {
		t.Fatalf("page = %+v", page)
	}
	messages := h.engine.MessagesForThread("thread-1")
	if len(messages) != 1 || messages[0].ID != "m1" {
		t.Errorf("messages = %+v, want only m1", messages)
	}
	if got := promtest.ToFloat64(h.engine.metrics.filtered); got != 1 {
		t.Errorf("filtered = %v, want 1", got)
	}
}

func TestListMessagesDiscoversUnknownThread(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.ListMessages(context.Background(), "thread-2", ""); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if _, ok := h.engine.Thread("thread-2"); !ok {
		t.Error("thread-2 should have been fetched")
	}
	if _, err := h.engine.ListMessages(context.Background(), "missing", ""); !IsNotFound(err) {
		t.Errorf("ListMessages(missing) = %v, want not found", err)
	}
}

func TestGetThreadKeepsNewerLocalTimestamp(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	ctx := context.Background()

	later := epoch.Add(time.Hour)
	if err := h.engine.dispatch(store.ThreadUpdated{Patch: schema.ThreadPatch{ID: "thread-1", UpdatedAt: &later}}); err != nil {
		t.Fatal(err)
	}
	thread, err := h.engine.GetThread(ctx, "thread-1")
	if err != nil {
		t.Fatal(err)
	}
	if !thread.UpdatedAt.Equal(later) {
		t.Errorf("updated_at = %v, want %v", thread.UpdatedAt, later)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	h.engine.Close()
	h.engine.Close()

	if err := h.engine.SaveDraft(context.Background(), "thread-1", "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("SaveDraft after Close = %v", err)
	}
	if _, err := h.engine.SendMessage(context.Background(), "thread-1", schema.OutgoingDraft{Text: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("SendMessage after Close = %v", err)
	}
	if len(h.engine.Threads()) != 2 {
		t.Error("reads should keep serving the last state")
	}
}

func TestActionMetrics(t *testing.T) {
	h := newHarness(t)
	h.loadThreads(t)
	if err := h.engine.MarkRead(context.Background(), "thread-1", ""); err != nil {
		t.Fatal(err)
	}
	if got := promtest.ToFloat64(h.engine.metrics.actions.WithLabelValues("threads-received")); got != 1 {
		t.Errorf("actions{kind=threads-received} = %v", got)
	}
	if got := promtest.ToFloat64(h.engine.metrics.actions.WithLabelValues("thread-updated")); got != 1 {
		t.Errorf("actions{kind=thread-updated} = %v", got)
	}
	count, err := promtest.GatherAndCount(h.registry, "threadsync_actions_total")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("threadsync_actions_total series = %d, want 2", count)
	}
}
