// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/threadsync/drafts"
	"github.com/bureau-foundation/threadsync/lib/clock"
	"github.com/bureau-foundation/threadsync/sanitize"
	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/service"
	"github.com/bureau-foundation/threadsync/store"
)

// DefaultMaxBackoff caps the delay between event resubscription
// attempts when Config.MaxBackoff is zero.
const DefaultMaxBackoff = 30 * time.Second

// Config holds an Engine's collaborators. Service is required.
type Config struct {
	// Service is the remote backend.
	Service service.Service

	// Drafts persists compose content. Defaults to an in-memory store.
	Drafts drafts.Store

	// Viewer is the signed-in user. Its role drives the sanitizer, and
	// its id is the sender of drafts that name none.
	Viewer schema.Viewer

	// Clock stamps optimistic messages and paces resubscription.
	// Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// Registerer receives the engine's metrics. Nil leaves them
	// unregistered. Engines sharing a registerer collide; give each its
	// own registry.
	Registerer prometheus.Registerer

	// OptimisticBuilder overrides how placeholder messages are built.
	// When nil, the Service is used if it implements
	// service.OptimisticBuilder, and the built-in builder otherwise.
	OptimisticBuilder service.OptimisticBuilder

	// NewClientID generates client ids for sends. Defaults to a random
	// UUID with a "local-" prefix.
	NewClientID func() schema.ClientID

	// MaxBackoff caps the event resubscription delay. Defaults to
	// DefaultMaxBackoff.
	MaxBackoff time.Duration
}

// Engine is the sync engine. Create one with New and release it with
// Close. All methods are safe for concurrent use.
type Engine struct {
	service     service.Service
	drafts      drafts.Store
	viewer      schema.Viewer
	clock       clock.Clock
	logger      *slog.Logger
	metrics     *metrics
	builder     service.OptimisticBuilder
	newClientID func() schema.ClientID
	maxBackoff  time.Duration

	state   atomic.Pointer[store.State]
	mailbox chan dispatchRequest

	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// draftMu serializes draft persistence so writes reach the store in
	// the order their snapshots were taken.
	draftMu sync.Mutex
}

// New creates an Engine, seeds its state with the persisted drafts and
// starts the dispatcher. Drafts that cannot be loaded are logged and
// treated as empty.
func New(ctx context.Context, config Config) (*Engine, error) {
	if config.Service == nil {
		return nil, errors.New("engine: Service is required")
	}
	if config.Drafts == nil {
		config.Drafts = drafts.NewMemory()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.OptimisticBuilder == nil {
		if builder, ok := config.Service.(service.OptimisticBuilder); ok {
			config.OptimisticBuilder = builder
		}
	}
	if config.NewClientID == nil {
		config.NewClientID = func() schema.ClientID {
			return schema.ClientID("local-" + uuid.NewString())
		}
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}

	e := &Engine{
		service:     config.Service,
		drafts:      config.Drafts,
		viewer:      config.Viewer,
		clock:       config.Clock,
		logger:      config.Logger,
		metrics:     newMetrics(config.Registerer),
		builder:     config.OptimisticBuilder,
		newClientID: config.NewClientID,
		maxBackoff:  config.MaxBackoff,
		mailbox:     make(chan dispatchRequest),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	initial := store.New()
	persisted, err := e.drafts.Load(ctx)
	if err != nil {
		e.logger.Warn("loading drafts failed, starting without them", "error", err)
	} else {
		initial = initial.WithDrafts(persisted)
		e.logger.Debug("drafts loaded", "count", len(persisted))
	}
	e.state.Store(initial)

	go e.run()
	return e, nil
}

// Close stops the dispatcher. Operations still in flight finish their
// service calls but can no longer change the state. Close does not
// close the drafts store.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.stop)
		<-e.stopped
	})
}

// State returns the current immutable state.
func (e *Engine) State() *store.State {
	return e.state.Load()
}

// Viewer returns the configured viewer.
func (e *Engine) Viewer() schema.Viewer {
	return e.viewer
}

// Threads returns the known threads, most recently updated first.
func (e *Engine) Threads() []schema.Thread {
	return e.State().Threads()
}

// Thread returns one thread from the local state.
func (e *Engine) Thread(threadID schema.ThreadID) (schema.Thread, bool) {
	return e.State().Thread(threadID)
}

// MessagesForThread returns a thread's loaded messages, oldest first.
func (e *Engine) MessagesForThread(threadID schema.ThreadID) []schema.Message {
	return e.State().MessagesForThread(threadID)
}

// Draft returns a thread's unsent compose content.
func (e *Engine) Draft(threadID schema.ThreadID) string {
	return e.State().Draft(threadID)
}

// Typing returns the users currently typing in a thread.
func (e *Engine) Typing(threadID schema.ThreadID) []schema.UserID {
	return e.State().Typing(threadID)
}

// sanitize filters an inbound batch for the viewer and counts what it
// removed.
func (e *Engine) sanitize(messages []schema.Message) []schema.Message {
	visible := sanitize.Messages(messages, e.viewer.Role)
	if dropped := len(messages) - len(visible); dropped > 0 {
		e.metrics.filtered.Add(float64(dropped))
	}
	return visible
}
