// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"

	"github.com/groupsio/capharness/internal/worker"
)

// Ping checks that the host is reachable and the runtime mutex is not
// permanently stuck.
func (c *Client) Ping(ctx context.Context, opts ...CallOption) error {
	req := request{Op: "ping"}
	applyOptions(&req, opts)
	return c.call(ctx, req, nil)
}

// Execute submits code to the session worker and returns its result.
func (c *Client) Execute(ctx context.Context, code string, opts ...CallOption) (worker.ExecuteResponse, error) {
	req := request{Op: "execute", Code: code}
	applyOptions(&req, opts)
	var resp worker.ExecuteResponse
	err := c.call(ctx, req, &resp)
	return resp, err
}

// State returns a best-effort summary of the worker's namespace.
func (c *Client) State(ctx context.Context, opts ...CallOption) (worker.StateResponse, error) {
	req := request{Op: "state"}
	applyOptions(&req, opts)
	var resp worker.StateResponse
	err := c.call(ctx, req, &resp)
	return resp, err
}

// ListCapabilities returns the names of all bound capabilities.
func (c *Client) ListCapabilities(ctx context.Context, opts ...CallOption) (worker.ListCapabilitiesResponse, error) {
	req := request{Op: "list_capabilities"}
	applyOptions(&req, opts)
	var resp worker.ListCapabilitiesResponse
	err := c.call(ctx, req, &resp)
	return resp, err
}

// DescribeCapability returns a bound capability's own Describe() text.
func (c *Client) DescribeCapability(ctx context.Context, name string, opts ...CallOption) (worker.DescribeCapabilityResponse, error) {
	req := request{Op: "describe_capability", Name: name}
	applyOptions(&req, opts)
	var resp worker.DescribeCapabilityResponse
	err := c.call(ctx, req, &resp)
	return resp, err
}

// ExportState snapshots the worker's namespace without persisting it.
func (c *Client) ExportState(ctx context.Context, opts ...CallOption) (worker.Snapshot, error) {
	req := request{Op: "export_state"}
	applyOptions(&req, opts)
	var resp worker.Snapshot
	err := c.call(ctx, req, &resp)
	return resp, err
}

// ImportState loads a snapshot directly into the worker.
func (c *Client) ImportState(ctx context.Context, snap worker.Snapshot, opts ...CallOption) (worker.ImportResponse, error) {
	req := request{Op: "import_state", State: snap}
	applyOptions(&req, opts)
	var resp worker.ImportResponse
	err := c.call(ctx, req, &resp)
	return resp, err
}

// InstallFileCapability installs a file capability scoped to roots.
func (c *Client) InstallFileCapability(ctx context.Context, name string, roots []string, opts ...CallOption) error {
	req := request{Op: "install-capability", Name: name, CapKind: "file", Roots: roots}
	applyOptions(&req, opts)
	return c.call(ctx, req, nil)
}

// InstallShellCapability installs a shell capability from a JSON-encoded
// hostruntime.ShellCapConfig.
func (c *Client) InstallShellCapability(ctx context.Context, name, configJSON string, opts ...CallOption) error {
	req := request{Op: "install-capability", Name: name, CapKind: "shell", Config: configJSON}
	applyOptions(&req, opts)
	return c.call(ctx, req, nil)
}

// InstallRelayCapability installs a relay capability backed by a spawned
// tool-server process.
func (c *Client) InstallRelayCapability(ctx context.Context, name, command string, args []string, opts ...CallOption) error {
	req := request{Op: "install-capability", Name: name, CapKind: "relay", Command: command, Args: args}
	applyOptions(&req, opts)
	return c.call(ctx, req, nil)
}

// UninstallCapability removes a relay capability's backend.
func (c *Client) UninstallCapability(ctx context.Context, name string, opts ...CallOption) error {
	req := request{Op: "uninstall-capability", Name: name}
	applyOptions(&req, opts)
	return c.call(ctx, req, nil)
}

// SaveState persists the worker's current namespace under name.
func (c *Client) SaveState(ctx context.Context, name string, opts ...CallOption) error {
	req := request{Op: "save-state", Name: name}
	applyOptions(&req, opts)
	return c.call(ctx, req, nil)
}

// RestoreState loads a previously saved snapshot by name.
func (c *Client) RestoreState(ctx context.Context, name string, opts ...CallOption) (worker.ImportResponse, error) {
	req := request{Op: "restore-state", Name: name}
	applyOptions(&req, opts)
	var resp worker.ImportResponse
	err := c.call(ctx, req, &resp)
	return resp, err
}

// ListStates returns the names of every saved session snapshot.
func (c *Client) ListStates(ctx context.Context, opts ...CallOption) ([]string, error) {
	req := request{Op: "list_states"}
	applyOptions(&req, opts)
	var resp struct {
		States []string `json:"states"`
	}
	err := c.call(ctx, req, &resp)
	return resp.States, err
}

// Reset terminates and respawns the session worker, discarding all state.
func (c *Client) Reset(ctx context.Context, opts ...CallOption) error {
	req := request{Op: "reset"}
	applyOptions(&req, opts)
	return c.call(ctx, req, nil)
}
