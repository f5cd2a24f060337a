// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/store"
)

// SaveDraft records a thread's compose content and persists the full
// draft map. Empty content removes the draft.
func (e *Engine) SaveDraft(ctx context.Context, threadID schema.ThreadID, content string) error {
	if threadID == "" {
		return &ValidationError{Field: "thread_id", Reason: "required"}
	}
	if err := e.dispatch(store.DraftSaved{ThreadID: threadID, Content: content}); err != nil {
		return err
	}
	return e.persistDrafts(ctx)
}

// ClearDraft removes a thread's draft and persists the full draft map.
func (e *Engine) ClearDraft(ctx context.Context, threadID schema.ThreadID) error {
	if threadID == "" {
		return &ValidationError{Field: "thread_id", Reason: "required"}
	}
	if err := e.dispatch(store.DraftCleared{ThreadID: threadID}); err != nil {
		return err
	}
	return e.persistDrafts(ctx)
}

// persistDrafts writes the current draft map. The snapshot is taken
// after acquiring draftMu, so the last write to complete always
// carries the newest drafts.
func (e *Engine) persistDrafts(ctx context.Context) error {
	e.draftMu.Lock()
	defer e.draftMu.Unlock()

	snapshot := e.State().Drafts()
	if err := e.drafts.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("persisting drafts: %w", err)
	}
	return nil
}
