// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import "sync"

// Subscription is an open real-time event stream. The events channel
// is closed by the producer when the stream ends; Close releases the
// producer side and is safe to call more than once and concurrently.
type Subscription struct {
	events    <-chan Event
	release   func()
	closeOnce sync.Once
}

// NewSubscription wraps an event channel and the function that tears
// the stream down. release may be nil.
func NewSubscription(events <-chan Event, release func()) *Subscription {
	return &Subscription{events: events, release: release}
}

// Events returns the stream. A closed channel means the stream ended
// and the consumer should resubscribe if it still wants events.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close releases the subscription. Only the first call has an effect.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
