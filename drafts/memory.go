// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package drafts

import (
	"context"
	"slices"
	"sync"

	"github.com/bureau-foundation/threadsync/schema"
)

// Memory keeps the encoded draft map in process memory.
type Memory struct {
	mu    sync.Mutex
	value []byte
	saves int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) (map[schema.ThreadID]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	value := slices.Clone(m.value)
	m.mu.Unlock()
	return decode(value)
}

func (m *Memory) Save(ctx context.Context, drafts map[schema.ThreadID]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(drafts)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = data
	m.saves++
	return nil
}

// Saves returns the number of successful Save calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
