// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/threadsync/service"
)

var (
	// ErrNotFound reports that a referenced thread or message is not
	// present in the local state.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by operations on a closed Engine.
	ErrClosed = errors.New("engine closed")
)

// ValidationError reports a malformed draft or payload. It is returned
// before anything is dispatched or sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsNotFound reports whether err means the thread or message does not
// exist, either locally or according to the service.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || service.IsError(err, service.CodeNotFound)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
