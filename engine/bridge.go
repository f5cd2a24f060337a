// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"time"

	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/service"
	"github.com/bureau-foundation/threadsync/store"
)

const initialBackoff = time.Second

// RunEvents subscribes to the service's event stream and applies every
// event to the local state until ctx is done or the engine is closed.
// A failed subscription or an ended stream is retried after a delay
// that starts at one second and doubles up to the configured maximum;
// the delay resets once a stream delivers an event. The subscription
// is closed on every exit path.
//
// RunEvents returns ctx.Err() when cancelled and ErrClosed when the
// engine is closed.
func (e *Engine) RunEvents(ctx context.Context) error {
	backoff := initialBackoff
	for {
		if err := e.runError(ctx); err != nil {
			return err
		}

		subscription, err := e.service.Subscribe(ctx)
		if err != nil {
			if stopErr := e.runError(ctx); stopErr != nil {
				return stopErr
			}
			e.logger.Error("event subscription failed, retrying", "error", err, "backoff", backoff)
		} else {
			received, err := e.consume(ctx, subscription)
			if err != nil {
				return err
			}
			if received > 0 {
				backoff = initialBackoff
			}
			e.logger.Warn("event stream ended, resubscribing", "events", received, "backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopped:
			return ErrClosed
		case <-e.clock.After(backoff):
		}
		backoff = min(backoff*2, e.maxBackoff)
	}
}

// runError reports why RunEvents must stop, or nil to keep going.
func (e *Engine) runError(ctx context.Context) error {
	select {
	case <-e.stopped:
		return ErrClosed
	default:
	}
	return ctx.Err()
}

// consume applies events from one subscription until the stream ends
// (nil error) or RunEvents must stop.
func (e *Engine) consume(ctx context.Context, subscription *service.Subscription) (int, error) {
	defer subscription.Close()
	e.metrics.streamConnected.Set(1)
	defer e.metrics.streamConnected.Set(0)
	e.logger.Info("event stream connected")

	received := 0
	for {
		select {
		case <-ctx.Done():
			return received, ctx.Err()
		case <-e.stopped:
			return received, ErrClosed
		case event, ok := <-subscription.Events():
			if !ok {
				return received, nil
			}
			received++
			e.metrics.events.WithLabelValues(eventLabel(event)).Inc()
			e.handleEvent(ctx, event)
		}
	}
}

// handleEvent maps one event onto actions. Dispatch errors mean the
// engine is closing; consume notices that on its next iteration.
func (e *Engine) handleEvent(ctx context.Context, event service.Event) {
	switch event := event.(type) {
	case service.ThreadUpdatedEvent:
		e.dispatch(store.ThreadUpdated{Patch: event.Thread})
	case service.MessageCreatedEvent:
		e.messageCreated(ctx, event)
	case service.TypingEvent:
		e.dispatch(store.TypingUpdated{ThreadID: event.ThreadID, Users: event.Users})
	case service.MessageStatusEvent:
		e.dispatch(store.MessageStatusChanged{MessageID: event.MessageID, Patch: event.Patch})
	case service.UnknownEvent:
		e.logger.Debug("ignoring unknown event", "type", event.Type)
	default:
		e.logger.Debug("ignoring unsupported event", "type", event.EventType())
	}
}

func (e *Engine) messageCreated(ctx context.Context, event service.MessageCreatedEvent) {
	message := event.Message
	if message.ThreadID == "" && event.Thread != nil {
		message.ThreadID = event.Thread.ID
	}
	if len(e.sanitize([]schema.Message{message})) == 0 {
		e.logger.Debug("pushed message filtered for viewer", "thread_id", message.ThreadID, "message_id", message.ID)
		return
	}

	if event.Thread != nil {
		if err := e.dispatch(store.ThreadUpdated{Patch: event.Thread.Patch()}); err != nil {
			return
		}
	}
	if _, known := e.State().Thread(message.ThreadID); !known {
		if _, err := e.GetThread(ctx, message.ThreadID); err != nil {
			e.logger.Warn("dropping pushed message for unknown thread",
				"thread_id", message.ThreadID,
				"message_id", message.ID,
				"error", err,
			)
			return
		}
	}
	e.dispatch(store.MessagesAppended{ThreadID: message.ThreadID, Messages: []schema.Message{message}})
}
