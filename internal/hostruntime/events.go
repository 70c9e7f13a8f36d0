// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package hostruntime

import (
	"context"

	"github.com/groupsio/capharness/internal/events"
	"github.com/groupsio/capharness/internal/worker"
)

// eventingInvoker wraps a worker.RelayInvoker (internal/relay.Hub) so every
// relay call publishes start/completion events, the way internal/adminhttp's
// websocket stream expects (SPEC_FULL.md's websocket-streaming addition,
// grounded on the teacher's internal/api/handlers/events.go consumer side).
type eventingInvoker struct {
	inner worker.RelayInvoker
	bus   events.EventBus
}

func (e *eventingInvoker) Invoke(capability, method string, args map[string]interface{}) (interface{}, error) {
	e.publish(events.EventRelayCallStarted, map[string]interface{}{"capability": capability, "method": method})

	result, err := e.inner.Invoke(capability, method, args)
	if err != nil {
		e.publish(events.EventRelayCallFailed, map[string]interface{}{"capability": capability, "method": method, "error": err.Error()})
		return result, err
	}
	e.publish(events.EventRelayCallCompleted, map[string]interface{}{"capability": capability, "method": method})
	return result, nil
}

func (e *eventingInvoker) publish(eventType string, payload map[string]interface{}) {
	_ = e.bus.Publish(context.Background(), events.Event{Type: eventType, Payload: payload})
}
