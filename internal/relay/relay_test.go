// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSchemaRejectsInvalidSchema(t *testing.T) {
	_, err := compileSchema("bad-tool", map[string]interface{}{"type": 123})
	assert.Error(t, err)
}

func TestCompileSchemaAcceptsValidSchema(t *testing.T) {
	schema, err := compileSchema("good-tool", map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"query"},
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, schema)

	assert.NoError(t, schema.Validate(map[string]interface{}{"query": "hi"}))
	assert.Error(t, schema.Validate(map[string]interface{}{}))
}

func TestInstallSurfacesSpawnFailure(t *testing.T) {
	_, err := Install(context.Background(), "broken", SpawnSpec{Command: "/nonexistent/binary-for-test"})
	assert.Error(t, err)
}

func TestHubUninstallUnknownIsNoOp(t *testing.T) {
	h := NewHub()
	assert.NoError(t, h.Uninstall("never-installed"))
	assert.Empty(t, h.Names())
}

func TestHubCallUnknownCapabilityFails(t *testing.T) {
	h := NewHub()
	_, err := h.Call("missing", "anything", nil)
	assert.Error(t, err)
}

func TestHubCloseWithNoBackendsReturns(t *testing.T) {
	h := NewHub()
	done := make(chan struct{})
	go func() {
		_ = h.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}
