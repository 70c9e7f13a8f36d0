// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package relay is the host-side client for external tool-server backend
// processes (C5 Relay Backend, C6 Relay Hub in spec.md's component table).
package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const handshakeTimeout = 30 * time.Second

// Tool describes one tool a backend advertises, validated against its
// parameter_schema at install time.
type Tool struct {
	Name            string
	Description     string
	ParameterSchema map[string]interface{}
	schema          *jsonschema.Schema
}

// SpawnSpec is how to start a backend child process.
type SpawnSpec struct {
	Command string
	Args    []string
	Env     map[string]string
	Cwd     string
}

// Backend is one installed tool-server session: a child process speaking
// the same line-delimited JSON protocol as the session worker, except the
// host is the client here.
type Backend struct {
	Name string
	Spec SpawnSpec

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	out     *bufio.Scanner
	mu      sync.Mutex
	nextID  int64
	pending chan struct{} // closed when the in-flight call's Scan goroutine finishes

	tools map[string]Tool
}

type backendRequest struct {
	ID     int64       `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type backendResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`
}

type listToolsResult struct {
	Tools []struct {
		Name            string                 `json:"name"`
		Description     string                 `json:"description"`
		ParameterSchema map[string]interface{} `json:"parameter_schema"`
	} `json:"tools"`
}

// Install spawns spec's command, performs the initialize + list_tools
// handshake within handshakeTimeout, and returns a ready Backend.
func Install(ctx context.Context, name string, spec SpawnSpec) (*Backend, error) {
	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Cwd
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("backend %s: stdin pipe: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("backend %s: stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("backend %s: spawn: %w", name, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	b := &Backend{
		Name:  name,
		Spec:  spec,
		cmd:   cmd,
		stdin: stdin,
		out:   scanner,
		tools: make(map[string]Tool),
	}

	if _, err := b.call(hctx, "initialize", nil); err != nil {
		_ = b.shutdown()
		return nil, fmt.Errorf("backend %s: initialize handshake: %w", name, err)
	}

	raw, err := b.call(hctx, "list_tools", nil)
	if err != nil {
		_ = b.shutdown()
		return nil, fmt.Errorf("backend %s: list_tools handshake: %w", name, err)
	}
	var lt listToolsResult
	if err := json.Unmarshal(raw, &lt); err != nil {
		_ = b.shutdown()
		return nil, fmt.Errorf("backend %s: decode list_tools: %w", name, err)
	}
	for _, t := range lt.Tools {
		tool := Tool{Name: t.Name, Description: t.Description, ParameterSchema: t.ParameterSchema}
		if len(t.ParameterSchema) > 0 {
			compiled, err := compileSchema(t.Name, t.ParameterSchema)
			if err != nil {
				_ = b.shutdown()
				return nil, fmt.Errorf("backend %s: tool %q: %w", name, t.Name, err)
			}
			tool.schema = compiled
		}
		b.tools[t.Name] = tool
	}

	return b, nil
}

func compileSchema(name string, schema map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal parameter_schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid parameter_schema for tool %q: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("invalid parameter_schema for tool %q: %w", name, err)
	}
	return c.Compile(url)
}

// Tools lists the backend's advertised tool names.
func (b *Backend) Tools() []string {
	out := make([]string, 0, len(b.tools))
	for name := range b.tools {
		out = append(out, name)
	}
	return out
}

// ToolTable exposes the full tool table, used to re-inject a relay
// capability's tools after a restore (spec.md §4.7).
func (b *Backend) ToolTable() map[string]Tool {
	out := make(map[string]Tool, len(b.tools))
	for k, v := range b.tools {
		out[k] = v
	}
	return out
}

// Call invokes one method on the backend, validating arguments against the
// tool's parameter_schema when one was advertised.
func (b *Backend) Call(ctx context.Context, method string, arguments map[string]interface{}) (interface{}, error) {
	tool, ok := b.tools[method]
	if !ok {
		return nil, fmt.Errorf("backend %s: unknown tool %q", b.Name, method)
	}
	if tool.schema != nil {
		if err := tool.schema.Validate(toGenericMap(arguments)); err != nil {
			return nil, fmt.Errorf("backend %s: tool %q: arguments failed schema validation: %w", b.Name, method, err)
		}
	}

	raw, err := b.call(ctx, method, arguments)
	if err != nil {
		return nil, err
	}
	var result interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("backend %s: decode result: %w", b.Name, err)
		}
	}
	return result, nil
}

// call writes one request and waits for the matching response, preserving
// the FIFO request/response pairing (spec.md §8) by never letting two Scan
// goroutines read the same scanner concurrently: if an earlier call timed
// out or was cancelled while its Scan goroutine was still blocked waiting
// on the backend, this call waits for that goroutine to finish before
// issuing its own Scan.
func (b *Backend) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending != nil {
		<-b.pending
	}

	id := atomic.AddInt64(&b.nextID, 1)
	line, err := json.Marshal(backendRequest{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	if _, err := b.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("write to backend: %w", err)
	}

	type result struct {
		resp backendResponse
		err  error
	}
	done := make(chan struct{})
	b.pending = done
	ch := make(chan result, 1)
	go func() {
		defer close(done)
		if !b.out.Scan() {
			if err := b.out.Err(); err != nil {
				ch <- result{err: err}
				return
			}
			ch <- result{err: fmt.Errorf("backend closed its output stream")}
			return
		}
		var resp backendResponse
		if err := json.Unmarshal(b.out.Bytes(), &resp); err != nil {
			ch <- result{err: fmt.Errorf("decode backend response: %w", err)}
			return
		}
		ch <- result{resp: resp}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, fmt.Errorf("backend error: %s", *r.resp.Error)
		}
		return r.resp.Result, nil
	}
}

// Uninstall performs a best-effort shutdown of the backend session.
func (b *Backend) Uninstall() error {
	return b.shutdown()
}

func (b *Backend) shutdown() error {
	_ = b.stdin.Close()
	if b.cmd.Process == nil {
		return nil
	}
	pid := b.cmd.Process.Pid
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_ = b.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		<-done
	}
	return nil
}

func toGenericMap(m map[string]interface{}) interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
