// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the threadsync data model: threads, messages,
// the partial updates applied to them, drafts, cursors, and viewer
// roles.
//
// Full records ([Thread], [Message]) are what the service returns.
// Partial updates ([ThreadPatch], [MessagePatch]) carry presence
// explicitly through pointer and nil-slice fields so that "set
// unread_count to 0" is distinguishable from "unread_count not
// mentioned". [Thread.Patch] converts a server snapshot into a patch
// with the same field-presence rules a JSON object spread would have:
// optional fields that are empty are treated as absent.
//
// All types carry json tags; they are the wire shapes of the service
// events decoded by package service.
package schema
