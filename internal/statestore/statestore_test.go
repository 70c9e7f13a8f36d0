// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package statestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupsio/capharness/internal/worker"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	snap := worker.Snapshot{
		Variables: []worker.VariableSnapshot{{Name: "counter", Kind: "value", Value: float64(5), Type: "int"}},
	}
	_, err = store.Save("my session!!", snap, "2026-07-31T00:00:00Z")
	require.NoError(t, err)

	rec, err := store.Load("my session!!")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.SchemaVersion)
	require.Len(t, rec.Snapshot.Variables, 1)
	assert.Equal(t, "counter", rec.Snapshot.Variables[0].Name)
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("never-saved")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("alpha", worker.Snapshot{}, "")
	require.NoError(t, err)
	_, err = store.Save("beta", worker.Snapshot{}, "")
	require.NoError(t, err)

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)

	require.NoError(t, store.Delete("alpha"))
	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names)

	assert.NoError(t, store.Delete("never-existed"))
}

func TestSanitizeStripsUnsafeCharacters(t *testing.T) {
	assert.Equal(t, "my_session", Sanitize("my/session"))
	assert.Equal(t, "session", Sanitize("???"))
}
