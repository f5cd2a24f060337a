// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/store"
)

// report is the engine's final state as printed by the replay.
type report struct {
	Viewer  schema.Viewer  `json:"viewer"`
	Threads []threadReport `json:"threads"`
}

type threadReport struct {
	schema.Thread
	Messages []schema.Message `json:"messages"`
	Draft    string           `json:"draft,omitempty"`
	Typing   []schema.UserID  `json:"typing,omitempty"`
}

func buildReport(viewer schema.Viewer, state *store.State) report {
	threads := state.Threads()
	result := report{Viewer: viewer, Threads: make([]threadReport, 0, len(threads))}
	for _, thread := range threads {
		messages := state.MessagesForThread(thread.ID)
		if messages == nil {
			messages = []schema.Message{}
		}
		result.Threads = append(result.Threads, threadReport{
			Thread:   thread,
			Messages: messages,
			Draft:    state.Draft(thread.ID),
			Typing:   state.Typing(thread.ID),
		})
	}
	return result
}

func writeReport(w io.Writer, result report, indent bool) error {
	var data []byte
	var err error
	if indent {
		data, err = json.MarshalIndent(result, "", "  ")
	} else {
		data, err = json.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
