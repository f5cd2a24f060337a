// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// engine for optimistic message timestamps and for the event bridge's
// reconnect backoff.
//
// Production code receives Real(). Tests receive Fake(), which stands
// still until Advance or Set is called, so timestamps and backoff
// waits are deterministic:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	engine, _ := engine.New(engine.Config{Clock: fake, ...})
//	// ... start the event bridge ...
//	fake.WaitForTimers(1)          // bridge is waiting out a backoff
//	fake.Advance(time.Second)      // release it
package clock
