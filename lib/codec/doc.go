// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration used for everything
// threadsync writes to durable storage.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): map
// keys are sorted and integers take their smallest form, so the same
// draft map always produces identical bytes regardless of Go's map
// iteration order. Backends can therefore compare blobs byte-for-byte
// to skip redundant writes.
//
// JSON remains the format for the service wire shapes (see package
// service); CBOR is only used for local persistence.
package codec
