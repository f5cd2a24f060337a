// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memservice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/threadsync/lib/clock"
	"github.com/bureau-foundation/threadsync/lib/testutil"
	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/service"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newSeeded(t *testing.T, config Config, messageCount int) *Service {
	t.Helper()
	backend := New(config)
	backend.PutThread(schema.Thread{ID: "thread-1", Title: "Soccer practice", ParticipantIDs: []schema.UserID{"u1", "u2"}, UpdatedAt: epoch})
	for index := range messageCount {
		err := backend.PutMessages(schema.Message{
			ID:        schema.MessageID(fmt.Sprintf("seed-%02d", index)),
			ThreadID:  "thread-1",
			SenderID:  "u2",
			Kind:      schema.KindText,
			Text:      fmt.Sprintf("message %d", index),
			CreatedAt: epoch.Add(time.Duration(index) * time.Minute),
			Status:    schema.StatusSent,
		})
		if err != nil {
			t.Fatalf("PutMessages: %v", err)
		}
	}
	return backend
}

func TestListMessagesPagesBackwards(t *testing.T) {
	backend := newSeeded(t, Config{MessagePageSize: 4}, 10)
	ctx := context.Background()

	var collected []schema.MessageID
	var cursor schema.Cursor
	for pages := 0; ; pages++ {
		if pages > 5 {
			t.Fatal("pagination did not terminate")
		}
		page, err := backend.ListMessages(ctx, "thread-1", cursor)
		if err != nil {
			t.Fatalf("ListMessages(%q): %v", cursor, err)
		}
		ids := make([]schema.MessageID, len(page.Items))
		for index, message := range page.Items {
			ids[index] = message.ID
		}
		collected = append(ids, collected...)
		if page.NextCursor.IsZero() {
			break
		}
		cursor = page.NextCursor
	}

	if len(collected) != 10 || collected[0] != "seed-00" || collected[9] != "seed-09" {
		t.Errorf("collected = %v", collected)
	}
	if _, err := backend.ListMessages(ctx, "thread-1", "bogus"); !service.IsError(err, service.CodeInvalid) {
		t.Errorf("unknown cursor error = %v, want invalid", err)
	}
	if _, err := backend.ListMessages(ctx, "nope", ""); !service.IsError(err, service.CodeNotFound) {
		t.Errorf("unknown thread error = %v, want not_found", err)
	}
}

func TestListThreadsFiltersAndPages(t *testing.T) {
	backend := New(Config{PreviewSize: 1})
	for index := range 5 {
		backend.PutThread(schema.Thread{
			ID:             schema.ThreadID(fmt.Sprintf("t%d", index)),
			Title:          fmt.Sprintf("Topic %d", index),
			ParticipantIDs: []schema.UserID{"u1"},
			UnreadCount:    index % 2,
			Archived:       index == 4,
			UpdatedAt:      epoch.Add(time.Duration(index) * time.Hour),
		})
	}
	if err := backend.PutMessages(schema.Message{ID: "m", ThreadID: "t3", CreatedAt: epoch.Add(5 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	page, err := backend.ListThreads(ctx, service.ListThreadsRequest{PageSize: 3})
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if page.Total != 4 || page.TotalPages != 2 || len(page.Items) != 3 {
		t.Fatalf("page = total %d, pages %d, items %d", page.Total, page.TotalPages, len(page.Items))
	}
	if first := page.Items[0]; first.Thread.ID != "t3" || len(first.Preview) != 1 {
		t.Errorf("first listing = %+v, want t3 with one preview message", first)
	}

	unread, err := backend.ListThreads(ctx, service.ListThreadsRequest{Filter: service.FilterUnread})
	if err != nil {
		t.Fatal(err)
	}
	if got := unread.Threads(); len(got) != 2 {
		t.Errorf("unread threads = %v", got)
	}

	archived, _ := backend.ListThreads(ctx, service.ListThreadsRequest{Archived: true})
	if archived.Total != 1 || archived.Items[0].Thread.ID != "t4" {
		t.Errorf("archived page = %+v", archived)
	}

	searched, _ := backend.ListThreads(ctx, service.ListThreadsRequest{Search: "topic 2"})
	if searched.Total != 1 {
		t.Errorf("search matched %d threads, want 1", searched.Total)
	}

	if _, err := backend.ListThreads(ctx, service.ListThreadsRequest{Filter: "starred"}); !service.IsError(err, service.CodeInvalid) {
		t.Errorf("unknown filter error = %v", err)
	}
}

func TestSendMessageEchoesToSubscribers(t *testing.T) {
	fake := clock.Fake(epoch.Add(time.Hour))
	backend := newSeeded(t, Config{Clock: fake}, 1)
	ctx := context.Background()

	subscription, err := backend.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer subscription.Close()

	sent, err := backend.SendMessage(ctx, "thread-1", schema.OutgoingDraft{SenderID: "u1", Text: "hi", ClientID: "c-1"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if sent.ClientID != "c-1" || sent.Status != schema.StatusSent || !sent.CreatedAt.Equal(fake.Now()) {
		t.Errorf("sent = %+v", sent)
	}

	event := testutil.RequireReceive(t, subscription.Events(), "waiting for message.created echo")
	created, ok := event.(service.MessageCreatedEvent)
	if !ok {
		t.Fatalf("event = %T", event)
	}
	if created.Message.ID != sent.ID || created.Thread == nil || created.Thread.LastMessageID != sent.ID {
		t.Errorf("echo = %+v", created)
	}

	if _, err := backend.SendMessage(ctx, "thread-1", schema.OutgoingDraft{SenderID: "u1", Text: "  "}); !service.IsError(err, service.CodeInvalid) {
		t.Errorf("empty send error = %v", err)
	}
}

func TestSentIDsSkipSeededOnes(t *testing.T) {
	backend := newSeeded(t, Config{SilentSends: true}, 0)
	if err := backend.PutMessages(schema.Message{ID: "msg-1", ThreadID: "thread-1", CreatedAt: epoch}); err != nil {
		t.Fatal(err)
	}
	sent, err := backend.SendMessage(context.Background(), "thread-1", schema.OutgoingDraft{SenderID: "u1", Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if sent.ID == "msg-1" {
		t.Fatal("send reused a seeded id")
	}
	if history := backend.History("thread-1"); len(history) != 2 {
		t.Errorf("history has %d messages, want 2", len(history))
	}
}

func TestFailNextAndCalls(t *testing.T) {
	backend := newSeeded(t, Config{}, 0)
	ctx := context.Background()
	boom := errors.New("boom")
	backend.FailNext(OpMarkRead, boom)

	if err := backend.MarkRead(ctx, "thread-1", ""); !errors.Is(err, boom) {
		t.Fatalf("first MarkRead error = %v, want injected", err)
	}
	if err := backend.MarkRead(ctx, "thread-1", ""); err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if got := backend.Calls(OpMarkRead); got != 2 {
		t.Errorf("Calls = %d, want 2", got)
	}
	if err := backend.MarkRead(ctx, "thread-1", "missing"); !service.IsError(err, service.CodeNotFound) {
		t.Errorf("MarkRead with unknown message = %v", err)
	}
}

func TestHoldSendsParksUntilReleased(t *testing.T) {
	backend := newSeeded(t, Config{SilentSends: true}, 0)
	release := backend.HoldSends()

	result := make(chan error, 1)
	go func() {
		_, err := backend.SendMessage(context.Background(), "thread-1", schema.OutgoingDraft{SenderID: "u1", Text: "parked"})
		result <- err
	}()

	select {
	case err := <-result:
		t.Fatalf("send finished while held: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	release()
	release()
	if err := testutil.RequireReceive(t, result, "waiting for released send"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	backend := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())

	first, err := backend.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := backend.Subscribe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if backend.SubscriberCount() != 2 {
		t.Fatalf("SubscriberCount = %d, want 2", backend.SubscriberCount())
	}

	cancel()
	testutil.Eventually(t, func() bool { return backend.SubscriberCount() == 1 }, "cancelled subscription was not released")
	first.Close()

	backend.EndSubscriptions()
	if _, open := <-second.Events(); open {
		t.Error("EndSubscriptions should close the stream")
	}
	second.Close()

	backend.FailNext(OpSubscribe, service.Errorf(service.CodeUnavailable, OpSubscribe, "down"))
	if _, err := backend.Subscribe(context.Background()); !service.IsError(err, service.CodeUnavailable) {
		t.Errorf("Subscribe error = %v", err)
	}

	// Publishing with no subscribers, or to a released one, never blocks.
	backend.Publish(service.TypingEvent{ThreadID: "t"})
}

func TestCreateThreadAndArchive(t *testing.T) {
	backend := New(Config{Clock: clock.Fake(epoch)})
	backend.PutThread(schema.Thread{ID: "thread-1", ParticipantIDs: []schema.UserID{"u1"}})
	ctx := context.Background()

	created, err := backend.CreateThread(ctx, service.CreateThreadRequest{Title: "New", ParticipantIDs: []schema.UserID{"u1", "u3", "u1"}})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if created.ID == "thread-1" || !slices.Equal(created.ParticipantIDs, []schema.UserID{"u1", "u3"}) {
		t.Errorf("created = %+v", created)
	}
	if _, err := backend.CreateThread(ctx, service.CreateThreadRequest{}); !service.IsError(err, service.CodeInvalid) {
		t.Errorf("CreateThread without participants = %v", err)
	}

	if err := backend.ArchiveThread(ctx, created.ID, true); err != nil {
		t.Fatal(err)
	}
	if stored, _ := backend.Thread(created.ID); !stored.Archived {
		t.Error("thread not archived")
	}
	if err := backend.ArchiveThread(ctx, "nope", true); !service.IsError(err, service.CodeNotFound) {
		t.Errorf("ArchiveThread unknown = %v", err)
	}
}

func TestSynchronousPublishWaitsForSubscriber(t *testing.T) {
	backend := New(Config{Synchronous: true})
	subscription, err := backend.Subscribe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer subscription.Close()

	published := make(chan struct{})
	go func() {
		backend.Publish(service.TypingEvent{ThreadID: "thread-1"})
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("Publish returned before the event was taken")
	case <-time.After(20 * time.Millisecond): //nolint:realclock asserting a goroutine stays blocked
	}
	event := testutil.RequireReceive(t, subscription.Events(), "typing event")
	if event.EventType() != service.EventTypeTyping {
		t.Errorf("event = %T", event)
	}
	testutil.RequireClosed(t, published, "Publish did not return")

	// Closing the subscription unblocks a publisher with no reader.
	subscription.Close()
	backend.Publish(service.TypingEvent{ThreadID: "thread-1"})
}
