// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a backend failure.
type ErrorCode string

const (
	// CodeNotFound means the referenced thread or message does not exist.
	CodeNotFound ErrorCode = "not_found"
	// CodeInvalid means the request was rejected as malformed.
	CodeInvalid ErrorCode = "invalid"
	// CodeUnavailable means the backend could not be reached or is
	// temporarily refusing work.
	CodeUnavailable ErrorCode = "unavailable"
	// CodeConflict means the request conflicts with current server state.
	CodeConflict ErrorCode = "conflict"
)

// Error is a structured failure reported by a Service. Callers can use
// errors.As to extract it:
//
//	var serviceErr *service.Error
//	if errors.As(err, &serviceErr) {
//	    if serviceErr.Code == service.CodeNotFound { ... }
//	}
type Error struct {
	// Code classifies the failure.
	Code ErrorCode `json:"code"`
	// Op is the Service method that failed (e.g., "GetThread").
	Op string `json:"op,omitempty"`
	// Message is the human-readable description from the backend.
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("service: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("service: %s: %s: %s", e.Op, e.Code, e.Message)
}

// Errorf builds an *Error with a formatted message.
func Errorf(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// IsError checks whether err is a *Error with the given code.
func IsError(err error, code ErrorCode) bool {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Code == code
	}
	return false
}
