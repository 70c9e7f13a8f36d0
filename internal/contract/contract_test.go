// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobMatch(t *testing.T) {
	assert.True(t, GlobMatch("/tmp/root/**", "/tmp/root/a/b/c"))
	assert.True(t, GlobMatch("/tmp/root/**", "/tmp/root"))
	assert.True(t, GlobMatch("/tmp/*/b", "/tmp/root/b"))
	assert.False(t, GlobMatch("/tmp/*/b", "/tmp/root/sub/b"))
	assert.False(t, GlobMatch("/tmp/root/**", "/tmp/other/a"))
}

func TestGlobSubsumes(t *testing.T) {
	assert.True(t, GlobSubsumes("**", "/tmp/root/**"))
	assert.True(t, GlobSubsumes("/tmp/root/**", "/tmp/root/**"))
	assert.True(t, GlobSubsumes("/tmp/root/**", "/tmp/root/sub/**"))
	assert.False(t, GlobSubsumes("/tmp/root/**", "/tmp/other/**"))
	assert.False(t, GlobSubsumes("/tmp/root/sub/**", "/tmp/root/**"))
	assert.True(t, GlobSubsumes("*", "a"))
	assert.False(t, GlobSubsumes("a", "*"))
}

func TestContractCovers(t *testing.T) {
	ct := New()
	ct.Reads = NewSet(NewPattern(ClassFile, "/tmp/root/**"))

	assert.True(t, ct.Covers(ClassFile, "/tmp/root/a.txt"))
	assert.False(t, ct.Covers(ClassFile, "/tmp/other/a.txt"))
}

func TestContractMergeAndSubset(t *testing.T) {
	a := New()
	a.Reads = NewSet(NewPattern(ClassFile, "/tmp/a/**"))
	b := New()
	b.Reads = NewSet(NewPattern(ClassFile, "/tmp/b/**"))
	b.Spawns = true

	merged := a.Merge(b)
	assert.True(t, merged.Reads.Covers(ClassFile, "/tmp/a/x"))
	assert.True(t, merged.Reads.Covers(ClassFile, "/tmp/b/x"))
	assert.True(t, merged.Spawns)

	assert.True(t, a.IsSubsetOf(merged))
	assert.True(t, b.IsSubsetOf(merged))
	assert.False(t, merged.IsSubsetOf(a))
}

func TestContractIsSubsetOfSpawns(t *testing.T) {
	parent := New()
	child := New()
	child.Spawns = true

	assert.False(t, child.IsSubsetOf(parent))
	parent.Spawns = true
	assert.True(t, child.IsSubsetOf(parent))
}
