// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package filecap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupsio/capharness/internal/policy"
)

func TestContainmentDeniesSibling(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	sibling := filepath.Join(dir, "root2")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(sibling, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sibling, "x"), []byte("data"), 0o644))

	cap, err := New("fs", []string{root}, false)
	require.NoError(t, err)

	_, err = cap.Read(filepath.Join(sibling, "x"))
	require.Error(t, err)
	perr, ok := policy.AsPolicyError(err)
	require.True(t, ok)
	assert.Equal(t, policy.OutsideRoots, perr.Kind)
	assert.Contains(t, perr.Error(), "outside allowed paths")
}

func TestReadOnlyDerivationWins(t *testing.T) {
	root := t.TempDir()
	cap, err := New("fs", []string{root}, false)
	require.NoError(t, err)

	ro, err := cap.Derive("fs-ro", DeriveRestrictions{ReadOnly: true})
	require.NoError(t, err)

	err = ro.Write(filepath.Join(root, "a"), []byte("x"))
	require.Error(t, err)
	perr, ok := policy.AsPolicyError(err)
	require.True(t, ok)
	assert.Equal(t, policy.ReadOnly, perr.Kind)
}

func TestWriteCreatesParentDirs(t *testing.T) {
	root := t.TempDir()
	cap, err := New("fs", []string{root}, false)
	require.NoError(t, err)

	target := filepath.Join(root, "a", "b", "c.txt")
	require.NoError(t, cap.Write(target, []byte("hi")))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestExistsFalseOnDenied(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	require.NoError(t, os.MkdirAll(root, 0o755))
	cap, err := New("fs", []string{root}, false)
	require.NoError(t, err)

	assert.False(t, cap.Exists(filepath.Join(dir, "other")))
}

func TestListSortsAcrossRoots(t *testing.T) {
	dir := t.TempDir()
	rootA := filepath.Join(dir, "a")
	rootB := filepath.Join(dir, "b")
	require.NoError(t, os.MkdirAll(rootA, 0o755))
	require.NoError(t, os.MkdirAll(rootB, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rootA, "z.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rootB, "a.txt"), []byte("2"), 0o644))

	cap, err := New("fs", []string{rootA, rootB}, false)
	require.NoError(t, err)

	got, err := cap.List("*.txt")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Less(t, got[0], got[1])
}

func TestDeriveCannotBroadenRoots(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	other := filepath.Join(dir, "other")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(other, 0o755))

	cap, err := New("fs", []string{root}, false)
	require.NoError(t, err)

	_, err = cap.Derive("fs2", DeriveRestrictions{Roots: []string{other}})
	assert.ErrorIs(t, err, ErrBroadensRoots)
}

func TestDerivationMonotonicity(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	cap, err := New("fs", []string{root}, false)
	require.NoError(t, err)

	derived, err := cap.Derive("fs-sub", DeriveRestrictions{Roots: []string{sub}, ReadOnly: true})
	require.NoError(t, err)

	assert.True(t, derived.Contract().IsSubsetOf(cap.Contract()))
}
