// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package drafts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"github.com/bureau-foundation/threadsync/schema"
)

// Pebble stores the draft map under Key in a Pebble store.
type Pebble struct {
	db     *pebble.DB
	logger *slog.Logger
	path   string
}

// OpenPebble opens (creating if needed) the store directory at path.
func OpenPebble(path string, logger *slog.Logger) (*Pebble, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating drafts directory: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening drafts store %s: %w", path, err)
	}
	logger.Debug("pebble drafts store opened", "path", path)
	return &Pebble{db: db, logger: logger, path: path}, nil
}

func (p *Pebble) Load(ctx context.Context) (map[schema.ThreadID]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, closer, err := p.db.Get([]byte(Key))
	if errors.Is(err, pebble.ErrNotFound) {
		return make(map[schema.ThreadID]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading drafts: %w", err)
	}
	defer closer.Close()
	// value is only valid until closer is closed; decode copies it.
	return decode(value)
}

func (p *Pebble) Save(ctx context.Context, drafts map[schema.ThreadID]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(drafts)
	if err != nil {
		return err
	}
	if err := p.db.Set([]byte(Key), data, pebble.Sync); err != nil {
		return fmt.Errorf("saving drafts: %w", err)
	}
	return nil
}

func (p *Pebble) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing drafts store %s: %w", p.path, err)
	}
	p.logger.Debug("pebble drafts store closed", "path", p.path)
	return nil
}
