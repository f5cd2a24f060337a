// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsError(t *testing.T) {
	err := fmt.Errorf("loading thread: %w", Errorf(CodeNotFound, "GetThread", "thread %s", "t-9"))

	if !IsError(err, CodeNotFound) {
		t.Error("IsError should see through wrapping")
	}
	if IsError(err, CodeUnavailable) {
		t.Error("IsError matched the wrong code")
	}
	if IsError(errors.New("connection reset"), CodeNotFound) {
		t.Error("IsError matched a plain error")
	}

	want := "service: GetThread: not_found: thread t-9"
	var serviceErr *Error
	if !errors.As(err, &serviceErr) || serviceErr.Error() != want {
		t.Errorf("Error() = %q, want %q", serviceErr.Error(), want)
	}
}
