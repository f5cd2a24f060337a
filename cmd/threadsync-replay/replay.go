// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/threadsync/engine"
	"github.com/bureau-foundation/threadsync/lib/clock"
	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/service"
	"github.com/bureau-foundation/threadsync/service/memservice"
)

// settleEventType marks the barrier event published after every step.
// The backend delivers events synchronously, so once the barrier has
// been taken the bridge has applied everything published before it.
const settleEventType = "replay.settle"

const subscribeTimeout = 5 * time.Second

// replayer drives one engine through a scenario's steps.
type replayer struct {
	engine  *engine.Engine
	backend *memservice.Service
	clock   *clock.FakeClock
	logger  *slog.Logger
}

// seed loads the scenario's threads and messages into the backend.
func seed(backend *memservice.Service, scenario *scenario) error {
	start := scenario.start()
	for _, thread := range scenario.Threads {
		backend.PutThread(thread.thread(start))
	}
	messages := make([]schema.Message, len(scenario.Messages))
	for index, seed := range scenario.Messages {
		messages[index] = seed.message(start)
	}
	if err := backend.PutMessages(messages...); err != nil {
		return fmt.Errorf("seeding messages: %w", err)
	}
	return nil
}

// waitSubscribed blocks until the bridge holds a subscription.
func (r *replayer) waitSubscribed(ctx context.Context) error {
	deadline := time.Now().Add(subscribeTimeout)
	for r.backend.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("event bridge did not subscribe within %s", subscribeTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}

func (r *replayer) run(ctx context.Context, steps []step) error {
	for index, step := range steps {
		err := r.step(ctx, step)
		r.backend.Publish(service.UnknownEvent{Type: settleEventType})

		switch {
		case step.ExpectError && err == nil:
			return fmt.Errorf("step %d (%s): expected an error", index+1, step.name())
		case step.ExpectError:
			r.logger.Info("step failed as expected", "step", index+1, "action", step.name(), "error", err)
		case err != nil:
			return fmt.Errorf("step %d (%s): %w", index+1, step.name(), err)
		default:
			r.logger.Debug("step applied", "step", index+1, "action", step.name())
		}
	}
	return nil
}

func (r *replayer) step(ctx context.Context, step step) error {
	switch {
	case step.ListThreads != nil:
		request := step.ListThreads
		_, err := r.engine.ListThreads(ctx, engine.ListThreadsParams{
			Page:     request.Page,
			PageSize: request.PageSize,
			Search:   request.Search,
			Filter:   request.Filter,
			Archived: request.Archived,
			Reset:    request.Reset,
		})
		return err

	case step.ListMessages != nil:
		return r.listMessages(ctx, step.ListMessages)

	case step.Send != nil:
		send, err := r.engine.SendMessage(ctx, schema.ThreadID(step.Send.Thread), step.Send.draft())
		if err != nil {
			return err
		}
		_, err = send.Wait(ctx)
		return err

	case step.CreateThread != nil:
		request := step.CreateThread
		params := engine.CreateThreadParams{Title: request.Title, ParticipantIDs: userIDs(request.Participants)}
		if request.Text != "" {
			params.InitialMessage = &schema.OutgoingDraft{Text: request.Text}
		}
		_, send, err := r.engine.CreateThread(ctx, params)
		if err != nil {
			return err
		}
		if send != nil {
			_, err = send.Wait(ctx)
		}
		return err

	case step.MarkRead != nil:
		return r.engine.MarkRead(ctx, schema.ThreadID(step.MarkRead.Thread), schema.MessageID(step.MarkRead.Message))

	case step.Archive != nil:
		archived := true
		if step.Archive.Archived != nil {
			archived = *step.Archive.Archived
		}
		return r.engine.ArchiveThread(ctx, schema.ThreadID(step.Archive.Thread), archived)

	case step.SaveDraft != nil:
		return r.engine.SaveDraft(ctx, schema.ThreadID(step.SaveDraft.Thread), step.SaveDraft.Text)

	case step.ClearDraft != nil:
		return r.engine.ClearDraft(ctx, schema.ThreadID(step.ClearDraft.Thread))

	case step.Fail != nil:
		code := service.ErrorCode(step.Fail.Code)
		if code == "" {
			code = service.CodeUnavailable
		}
		r.backend.FailNext(step.Fail.Op, service.Errorf(code, step.Fail.Op, "%s", step.Fail.Message))
		return nil

	case step.Publish != nil:
		data, err := json.Marshal(step.Publish)
		if err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
		event, err := service.DecodeEvent(data)
		if err != nil {
			return err
		}
		r.backend.Publish(event)
		return nil

	default:
		duration, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		r.clock.Advance(duration)
		return nil
	}
}

// listMessages walks back through a thread's history one page at a
// time, stopping early when the history is exhausted.
func (r *replayer) listMessages(ctx context.Context, request *listMessagesStep) error {
	pages := max(request.Pages, 1)
	var cursor schema.Cursor
	for range pages {
		page, err := r.engine.ListMessages(ctx, schema.ThreadID(request.Thread), cursor)
		if err != nil {
			return err
		}
		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
	return nil
}
