// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package drafts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bureau-foundation/threadsync/schema"
)

// File stores the draft map in a single file. Saves write a temporary
// sibling, sync it, and rename it over the target, so readers see
// either the old map or the new one.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a File store at path. Missing parent directories are
// created on the first Save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

func (f *File) Load(ctx context.Context) (map[schema.ThreadID]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[schema.ThreadID]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading drafts file: %w", err)
	}
	return decode(data)
}

func (f *File) Save(ctx context.Context, drafts map[schema.ThreadID]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(drafts)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating drafts directory: %w", err)
	}
	temporaryPath := f.path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary drafts file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary drafts file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary drafts file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary drafts file: %w", err)
	}
	if err := os.Rename(temporaryPath, f.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming drafts file into place: %w", err)
	}
	return nil
}

func (f *File) Close() error { return nil }
