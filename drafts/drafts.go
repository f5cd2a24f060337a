// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package drafts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/threadsync/lib/codec"
	"github.com/bureau-foundation/threadsync/lib/config"
	"github.com/bureau-foundation/threadsync/schema"
)

// Key is the durable key every backend stores the draft map under.
const Key = "threadsync/drafts"

// Store loads and saves the complete draft map. Implementations must
// be safe for concurrent use; callers serialize saves themselves when
// ordering matters.
type Store interface {
	// Load returns the persisted drafts, or an empty map when nothing
	// has been saved yet.
	Load(ctx context.Context) (map[schema.ThreadID]string, error)

	// Save replaces the persisted drafts with drafts.
	Save(ctx context.Context, drafts map[schema.ThreadID]string) error

	// Close releases the backend's resources.
	Close() error
}

// Open returns the backend named by backend (one of the config.Backend*
// constants). path is ignored by the memory backend.
func Open(backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendFile:
		return NewFile(path), nil
	case config.BackendSQLite:
		return OpenSQLite(path, logger)
	case config.BackendPebble:
		return OpenPebble(path, logger)
	default:
		return nil, fmt.Errorf("unknown drafts backend %q", backend)
	}
}

// encode produces the stored value. Empty drafts are omitted.
func encode(drafts map[schema.ThreadID]string) ([]byte, error) {
	wire := make(map[string]string, len(drafts))
	for threadID, content := range drafts {
		if content != "" {
			wire[string(threadID)] = content
		}
	}
	data, err := codec.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding drafts: %w", err)
	}
	return data, nil
}

// decode parses a stored value. Empty input is an empty map.
func decode(data []byte) (map[schema.ThreadID]string, error) {
	result := make(map[schema.ThreadID]string)
	if len(data) == 0 {
		return result, nil
	}
	var wire map[string]string
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decoding drafts: %w", err)
	}
	for threadID, content := range wire {
		if content != "" {
			result[schema.ThreadID(threadID)] = content
		}
	}
	return result, nil
}
