// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package contract implements the declarative effect description every
// capability publishes (spec.md §3, §4.4): a set of resource patterns per
// effect class, glob matching over those patterns, and the merge/subset
// operations used to check derivation monotonicity.
package contract

import (
	"fmt"
	"sort"
	"strings"
)

// Class is one of the five effect classes a resource pattern belongs to.
type Class string

const (
	ClassFile    Class = "file"
	ClassShell   Class = "shell"
	ClassNetwork Class = "network"
	ClassMemory  Class = "memory"
	ClassSelf    Class = "self"
	ClassUser    Class = "user"
)

// Pattern is a resource pattern of the form "<class>:<glob>".
type Pattern string

// NewPattern builds a Pattern from a class and glob body.
func NewPattern(class Class, glob string) Pattern {
	return Pattern(fmt.Sprintf("%s:%s", class, glob))
}

// Split returns the class and glob body of a pattern. ok is false if the
// pattern has no ":" separator.
func (p Pattern) Split() (class Class, glob string, ok bool) {
	idx := strings.IndexByte(string(p), ':')
	if idx < 0 {
		return "", "", false
	}
	return Class(p[:idx]), string(p[idx+1:]), true
}

// Set is an unordered collection of resource patterns, represented as a
// map for set semantics (union, containment checks).
type Set map[Pattern]struct{}

// NewSet builds a Set from a list of patterns.
func NewSet(patterns ...Pattern) Set {
	s := make(Set, len(patterns))
	for _, p := range patterns {
		s[p] = struct{}{}
	}
	return s
}

// Union returns a new Set containing every pattern in s or other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Sorted returns the patterns in lexicographic order, for stable
// pretty-printing.
func (s Set) Sorted() []Pattern {
	out := make([]Pattern, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Covers reports whether some pattern in s matches the concrete resource
// string within class.
func (s Set) Covers(class Class, resource string) bool {
	for p := range s {
		pc, glob, ok := p.Split()
		if !ok || pc != class {
			continue
		}
		if GlobMatch(glob, resource) {
			return true
		}
	}
	return false
}

// IsSubsetOf reports whether every resource string matched by some pattern
// in s is also matched by some pattern in other — i.e. s's patterns are
// each individually subsumed by at least one pattern in other. This is
// pattern-aware (see GlobSubsumes), not literal set containment.
func (s Set) IsSubsetOf(other Set) bool {
	for p := range s {
		if !subsumedByAny(p, other) {
			return false
		}
	}
	return true
}

func subsumedByAny(p Pattern, other Set) bool {
	pc, pg, ok := p.Split()
	if !ok {
		return false
	}
	for q := range other {
		qc, qg, ok := q.Split()
		if !ok || qc != pc {
			continue
		}
		if GlobSubsumes(qg, pg) {
			return true
		}
	}
	return false
}

// Contract is the declarative effect statement a capability publishes.
type Contract struct {
	Reads    Set
	Writes   Set
	Executes Set
	Network  Set
	Spawns   bool
}

// New builds an empty Contract with initialized (possibly empty) sets.
func New() Contract {
	return Contract{
		Reads:    Set{},
		Writes:   Set{},
		Executes: Set{},
		Network:  Set{},
	}
}

// Covers reports whether this contract's class set covers resource.
func (c Contract) Covers(class Class, resource string) bool {
	switch class {
	case ClassFile:
		return c.Reads.Covers(class, resource) || c.Writes.Covers(class, resource)
	case ClassShell:
		return c.Executes.Covers(class, resource)
	case ClassNetwork:
		return c.Network.Covers(class, resource)
	default:
		return false
	}
}

// Merge returns the set-union of c and other, with Spawns as a logical OR.
func (c Contract) Merge(other Contract) Contract {
	return Contract{
		Reads:    c.Reads.Union(other.Reads),
		Writes:   c.Writes.Union(other.Writes),
		Executes: c.Executes.Union(other.Executes),
		Network:  c.Network.Union(other.Network),
		Spawns:   c.Spawns || other.Spawns,
	}
}

// IsSubsetOf reports whether every pattern class of c is subsumed by the
// corresponding class of other, and c.Spawns implies other.Spawns.
func (c Contract) IsSubsetOf(other Contract) bool {
	if c.Spawns && !other.Spawns {
		return false
	}
	return c.Reads.IsSubsetOf(other.Reads) &&
		c.Writes.IsSubsetOf(other.Writes) &&
		c.Executes.IsSubsetOf(other.Executes) &&
		c.Network.IsSubsetOf(other.Network)
}

// String pretty-prints the contract for display in describe()-style output.
func (c Contract) String() string {
	var b strings.Builder
	writeClass := func(label string, s Set) {
		if len(s) == 0 {
			return
		}
		fmt.Fprintf(&b, "  %s:\n", label)
		for _, p := range s.Sorted() {
			fmt.Fprintf(&b, "    %s\n", p)
		}
	}
	b.WriteString("contract:\n")
	writeClass("reads", c.Reads)
	writeClass("writes", c.Writes)
	writeClass("executes", c.Executes)
	writeClass("network", c.Network)
	fmt.Fprintf(&b, "  spawns: %v\n", c.Spawns)
	return b.String()
}
