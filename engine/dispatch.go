// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/bureau-foundation/threadsync/store"
)

type dispatchRequest struct {
	action store.Action
	done   chan struct{}
}

// dispatch applies action through the dispatcher goroutine and returns
// once the resulting state is published.
func (e *Engine) dispatch(action store.Action) error {
	request := dispatchRequest{action: action, done: make(chan struct{})}
	select {
	case e.mailbox <- request:
	case <-e.stopped:
		return ErrClosed
	}
	<-request.done
	return nil
}

// run is the dispatcher: the only goroutine that writes e.state.
func (e *Engine) run() {
	defer close(e.stopped)
	for {
		select {
		case request := <-e.mailbox:
			e.apply(request.action)
			close(request.done)
		case <-e.stop:
			return
		}
	}
}

func (e *Engine) apply(action store.Action) {
	current := e.state.Load()
	next := store.Reduce(current, action)
	e.metrics.actions.WithLabelValues(action.Kind()).Inc()
	if next == current {
		e.logger.Debug("action left state unchanged", "action", action.Kind())
		return
	}
	e.state.Store(next)
}
