// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client is a Go client library for capharness's attach endpoint.
//
// capharnessd exposes a local Unix socket where each line is one JSON
// request and the reply is one JSON response line (spec.md §6). This
// package wraps that protocol in typed methods:
//
//	c, err := client.Dial("/tmp/capharness.sock")
//	if err != nil { ... }
//	defer c.Close()
//
//	resp, err := c.Execute(ctx, "2 + 2")
//
// # Acquisition mode
//
// Every call blocks for the runtime mutex by default. Use [WithWait](false)
// for a non-blocking attempt, or [WithTimeout] for a bounded wait:
//
//	resp, err := c.Execute(ctx, code, client.WithTimeout(2*time.Second))
//	if errors.Is(err, client.ErrBusy) { ... }
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrBusy is returned when the runtime mutex could not be acquired under a
// non-blocking or timed request.
var ErrBusy = errors.New("client: runtime busy")

// Client is an attach-endpoint connection. A Client serializes its calls
// internally (the wire protocol is one request in flight per connection at
// a time); open additional Clients for concurrent callers.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// Dial opens a connection to the attach socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", path, err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// CallOption adjusts the acquisition hint sent with a request.
type CallOption func(*request)

// WithWait selects blocking (true, the default) or non-blocking (false)
// acquisition of the runtime mutex.
func WithWait(wait bool) CallOption {
	return func(r *request) { r.Wait = &wait }
}

// WithTimeout selects timed acquisition of the runtime mutex.
func WithTimeout(d time.Duration) CallOption {
	return func(r *request) { r.Timeout = d.Seconds() }
}

type request struct {
	Op string `json:"op"`

	Code    string            `json:"code,omitempty"`
	Name    string            `json:"name,omitempty"`
	CapKind string            `json:"cap_kind,omitempty"`
	Roots   []string          `json:"roots,omitempty"`
	Config  string            `json:"config,omitempty"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	State   interface{}       `json:"state,omitempty"`

	Wait    *bool   `json:"wait,omitempty"`
	Timeout float64 `json:"timeout,omitempty"`
}

// call sends req and decodes the single response line into out. out may be
// nil when the caller only cares about the error/busy outcome.
func (c *Client) call(ctx context.Context, req request, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("client: encode request: %w", err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("client: write request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	var probe struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(line, &probe); err == nil && probe.Success != nil && !*probe.Success {
		if probe.Error == "busy" {
			return ErrBusy
		}
		return errors.New(probe.Error)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(line, out)
}

func applyOptions(req *request, opts []CallOption) {
	for _, opt := range opts {
		opt(req)
	}
}
