// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package capability defines the common shape every capability
// implementation (file, shell, and worker-registered native capabilities)
// satisfies: a name, a contract, and a human-readable description of its
// operations. Enforcement lives in each concrete capability, never here —
// this package is the declarative surface.
package capability

import "github.com/groupsio/capharness/internal/contract"

// Capability is the interface every in-worker capability object satisfies.
// It mirrors original_source/capabilities/base.py's Capability ABC: a name
// used as the object's identifier inside the session, a one-line
// description, and a self-documenting Describe().
type Capability interface {
	Name() string
	Description() string
	Contract() contract.Contract
	Describe() string
}

// Operation documents a single method a capability exposes, for use by
// Describe() implementations.
type Operation struct {
	Signature string
	Doc       string
}

// DescribeOperations renders a capability's name, description, and
// operation list in the style original_source/capabilities/base.py's
// Capability.describe() uses: a header line followed by one block per
// method.
func DescribeOperations(name, description string, ops []Operation) string {
	out := name + ": " + description + "\n\nMethods:\n"
	for _, op := range ops {
		out += "  - " + op.Signature + "\n"
		doc := op.Doc
		if doc == "" {
			doc = "No description."
		}
		out += "      " + doc + "\n"
	}
	return out
}
