// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sanitize filters messages by viewer role before they reach
// the store.
//
// Guardian and parent viewers never see system messages that were
// written by an AI or that carry an AI recommendation. Every other
// message, and every message for every other role, passes through
// unchanged. Filtering is silent: a removed message is not an error.
package sanitize

import (
	"strings"

	"github.com/bureau-foundation/threadsync/schema"
)

// aiSources are the metadata "source" values that mark a message as
// AI-originated.
var aiSources = map[string]bool{
	"ai":                true,
	"ai_recommendation": true,
	"ai-recommendation": true,
}

// aiFlags are boolean metadata keys that mark a message as AI-authored
// or as an AI recommendation.
var aiFlags = []string{
	"ai_generated",
	"ai_authored",
	"ai_recommendation",
	"aiGenerated",
	"aiAuthored",
	"aiRecommendation",
}

// Visible reports whether message may be shown to a viewer with role.
func Visible(message schema.Message, role schema.Role) bool {
	if !role.IsGuardian() {
		return true
	}
	return !isAIMessage(message)
}

// Messages returns the subset of messages visible to role, in their
// original order. The input slice is never modified; when nothing is
// filtered the input is returned as is.
func Messages(messages []schema.Message, role schema.Role) []schema.Message {
	if !role.IsGuardian() {
		return messages
	}
	for index, message := range messages {
		if isAIMessage(message) {
			return filterFrom(messages, index, role)
		}
	}
	return messages
}

// filterFrom copies the visible messages, knowing messages[first] is
// the first one to drop.
func filterFrom(messages []schema.Message, first int, role schema.Role) []schema.Message {
	result := make([]schema.Message, first, len(messages)-1)
	copy(result, messages[:first])
	for _, message := range messages[first+1:] {
		if Visible(message, role) {
			result = append(result, message)
		}
	}
	return result
}

func isAIMessage(message schema.Message) bool {
	if message.Kind != schema.KindSystem || len(message.Metadata) == 0 {
		return false
	}
	if source, ok := message.Metadata["source"].(string); ok {
		if aiSources[strings.ToLower(strings.TrimSpace(source))] {
			return true
		}
	}
	for _, key := range aiFlags {
		if truthy(message.Metadata[key]) {
			return true
		}
	}
	return false
}

// truthy accepts true and "true"; metadata arrives from JSON producers
// that do not agree on boolean encoding.
func truthy(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		return strings.EqualFold(strings.TrimSpace(typed), "true")
	}
	return false
}
