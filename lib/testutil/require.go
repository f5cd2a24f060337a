// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides helpers shared by threadsync tests.
//
// [RequireReceive] and [RequireClosed] are the only place tests wait
// on real wall-clock time: they bound how long a test blocks on a
// channel so a broken engine fails fast instead of hanging the run.
// Everything else that involves time goes through lib/clock.
package testutil

import (
	"fmt"
	"testing"
	"time"
)

// DefaultTimeout is how long helpers wait before failing the test.
const DefaultTimeout = 5 * time.Second

// RequireReceive reads one value from ch within DefaultTimeout or fails
// the test.
//
//	event := testutil.RequireReceive(t, events, "waiting for typing event")
func RequireReceive[T any](t testing.TB, ch <-chan T, msgAndArgs ...any) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed without sending a value: %s", formatMessage(msgAndArgs))
		}
		return value
	case <-time.After(DefaultTimeout): //nolint:realclock test hang prevention
		t.Fatalf("timed out after %v: %s", DefaultTimeout, formatMessage(msgAndArgs))
	}
	panic("unreachable")
}

// RequireClosed waits for ch to be closed within DefaultTimeout or
// fails the test.
func RequireClosed(t testing.TB, ch <-chan struct{}, msgAndArgs ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(DefaultTimeout): //nolint:realclock test hang prevention
		t.Fatalf("timed out after %v waiting for channel close: %s", DefaultTimeout, formatMessage(msgAndArgs))
	}
}

// Eventually polls condition until it returns true or DefaultTimeout
// passes. Use it for state published by another goroutine when no
// channel signals the change.
func Eventually(t testing.TB, condition func() bool, msgAndArgs ...any) {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout) //nolint:realclock test hang prevention
	for !condition() {
		if time.Now().After(deadline) { //nolint:realclock test hang prevention
			t.Fatalf("condition not met after %v: %s", DefaultTimeout, formatMessage(msgAndArgs))
		}
		time.Sleep(time.Millisecond) //nolint:realclock test polling interval
	}
}

func formatMessage(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return "(no message)"
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
