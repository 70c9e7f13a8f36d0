// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events is the trace event bus backing internal/adminhttp's
// websocket stream: execute stdout/stderr, relay calls, and capability
// lifecycle events published by internal/hostruntime as they occur, so an
// attach client can watch a session live instead of polling state.
package events

import (
	"context"
	"time"
)

// Event represents an immutable trace record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Session   string                 `json:"session"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types   []string  // Event types to match (supports wildcards)
	Session string    // Filter by session
	Since   time.Time // Events after this time
	Until   time.Time // Events before this time
	Limit   int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel, used
	// by a websocket connection's writer goroutine so a slow client can't
	// block Publish.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// SetDefaultSession sets the session id for events that don't specify one.
	SetDefaultSession(session string)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Trace event types published during a session (spec.md §4.5/§4.9 and
// SPEC_FULL.md's websocket-streaming domain-stack addition).
const (
	EventExecuteStarted   = "execute.started"
	EventExecuteStdout    = "execute.stdout"
	EventExecuteCompleted = "execute.completed"
	EventExecuteFailed    = "execute.failed"

	EventRelayCallStarted   = "relay.call.started"
	EventRelayCallCompleted = "relay.call.completed"
	EventRelayCallFailed    = "relay.call.failed"

	EventCapabilityInstalled   = "capability.installed"
	EventCapabilityUninstalled = "capability.uninstalled"

	EventWorkerReset = "worker.reset"
)
