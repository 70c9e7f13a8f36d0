// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package filecap implements the file capability (spec.md §4.2): read,
// write, list, exists, and mkdir operations scoped to a set of allowed
// roots, with an optional read-only flag.
package filecap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/groupsio/capharness/internal/contract"
	"github.com/groupsio/capharness/internal/pathguard"
	"github.com/groupsio/capharness/internal/policy"
)

// Capability grants read/write/list/mkdir access to a fixed set of
// canonical roots.
type Capability struct {
	name      string
	roots     []string // canonical, ordered
	unlimited bool     // true when constructed with no roots: file:** everywhere
	readOnly  bool
}

// New builds a file capability over roots (expanded and canonicalized). A
// nil or empty roots list means unrestricted access (file:** contract).
func New(name string, roots []string, readOnly bool) (*Capability, error) {
	canon, err := canonicalizeAll(roots)
	if err != nil {
		return nil, err
	}
	return &Capability{
		name:      name,
		roots:     canon,
		unlimited: len(roots) == 0,
		readOnly:  readOnly,
	}, nil
}

func canonicalizeAll(roots []string) ([]string, error) {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		c, err := pathguard.Canonicalize(r)
		if err != nil {
			return nil, fmt.Errorf("canonicalize root %q: %w", r, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Name implements capability.Capability.
func (c *Capability) Name() string { return c.name }

// Description implements capability.Capability.
func (c *Capability) Description() string {
	if c.readOnly {
		return "Read files within configured roots (read-only)."
	}
	return "Read/write files within configured roots."
}

// Contract implements capability.Capability. Reads and writes are the same
// set of "file:<root>/**" patterns (or "file:**" when unrestricted); writes
// is empty when read-only.
func (c *Capability) Contract() contract.Contract {
	ct := contract.New()
	if c.unlimited {
		ct.Reads = contract.NewSet(contract.NewPattern(contract.ClassFile, "**"))
	} else {
		patterns := make([]contract.Pattern, 0, len(c.roots))
		for _, r := range c.roots {
			patterns = append(patterns, contract.NewPattern(contract.ClassFile, r+"/**"))
		}
		ct.Reads = contract.NewSet(patterns...)
	}
	if !c.readOnly {
		ct.Writes = ct.Reads
	}
	return ct
}

// Describe implements capability.Capability.
func (c *Capability) Describe() string {
	ops := []capabilityOp{
		{"read(path string) ([]byte, error)", "Read a file's contents."},
		{"write(path string, data []byte) error", "Write (create or replace) a file, creating parent directories."},
		{"list(pattern string) ([]string, error)", "List files matching a glob pattern, sorted across roots."},
		{"exists(path string) bool", "Report whether a path exists and is accessible."},
		{"mkdir(path string) error", "Create a directory, recursively."},
	}
	out := c.name + ": " + c.Description() + "\n\nMethods:\n"
	for _, op := range ops {
		out += "  - " + op.sig + "\n      " + op.doc + "\n"
	}
	return out
}

type capabilityOp struct{ sig, doc string }

// check verifies p is inside the capability's roots, returning the
// canonical form.
func (c *Capability) check(p string) (string, error) {
	canon, err := pathguard.Canonicalize(p)
	if err != nil {
		return "", err
	}
	if c.unlimited || pathguard.Contains(c.roots, canon) {
		return canon, nil
	}
	return "", policy.New(policy.OutsideRoots, fmt.Sprintf("%q is outside allowed paths", p))
}

// Read reads a file's contents. Fails with an outside-roots policy error if
// canonicalization escapes the roots; filesystem errors pass through
// unchanged.
func (c *Capability) Read(path string) ([]byte, error) {
	canon, err := c.check(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(canon)
}

// Write creates or replaces a file, creating parent directories as needed.
// Fails with a read-only policy error when the capability is read-only.
func (c *Capability) Write(path string, data []byte) error {
	canon, err := c.check(path)
	if err != nil {
		return err
	}
	if c.readOnly {
		return policy.New(policy.ReadOnly, fmt.Sprintf("%q is read-only", c.name))
	}
	if err := os.MkdirAll(filepath.Dir(canon), 0o755); err != nil {
		return err
	}
	return os.WriteFile(canon, data, 0o644)
}

// Mkdir recursively creates a directory. Fails under read-only.
func (c *Capability) Mkdir(path string) error {
	canon, err := c.check(path)
	if err != nil {
		return err
	}
	if c.readOnly {
		return policy.New(policy.ReadOnly, fmt.Sprintf("%q is read-only", c.name))
	}
	return os.MkdirAll(canon, 0o755)
}

// Exists reports whether path exists. Access-denied (outside roots) is
// reported as false rather than as an error.
func (c *Capability) Exists(path string) bool {
	canon, err := c.check(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(canon)
	return err == nil
}

// List enumerates files matching pattern under every root, returning
// absolute paths sorted lexicographically across roots.
func (c *Capability) List(pattern string) ([]string, error) {
	roots := c.roots
	if c.unlimited {
		roots = []string{""}
	}

	var out []string
	for _, root := range roots {
		full := pattern
		if root != "" {
			full = filepath.Join(root, pattern)
		}
		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, err
			}
			out = append(out, abs)
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeriveRestrictions narrows a derived file capability: a subset of roots
// (filtered to those inside the parent's roots) and a monotonically
// stronger read-only flag.
type DeriveRestrictions struct {
	Roots    []string // optional: if nil, all parent roots are kept
	ReadOnly bool      // ORed with the parent's read-only flag
}

// Derive returns a strictly-weaker instance per spec.md §4.2: the new
// read-only flag is parent-flag OR requested-flag, and roots are
// intersected with the parent's. Requesting a root outside the parent's
// roots is a programming error (ErrBroadensRoots), since it would break
// the contract subset invariant.
var ErrBroadensRoots = errors.New("filecap: derive would broaden roots")

func (c *Capability) Derive(name string, r DeriveRestrictions) (*Capability, error) {
	readOnly := c.readOnly || r.ReadOnly

	if r.Roots == nil {
		return &Capability{name: name, roots: c.roots, unlimited: c.unlimited, readOnly: readOnly}, nil
	}

	canon, err := canonicalizeAll(r.Roots)
	if err != nil {
		return nil, err
	}
	for _, root := range canon {
		if c.unlimited {
			continue
		}
		if !pathguard.Contains(c.roots, root) {
			return nil, ErrBroadensRoots
		}
	}
	return &Capability{name: name, roots: canon, unlimited: false, readOnly: readOnly}, nil
}
