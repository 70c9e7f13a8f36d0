// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command capharness-sessionworker is the child process spawned by the
// capharness host for each session: it reads length-delimited JSON
// commands from stdin, runs them against a persistent internal/script
// interpreter, and writes one JSON response per line to stdout (spec.md
// §4.5). Relay capability calls made from inside `execute` are emitted as
// relay_request lines on the same stdout stream and block for a matching
// relay_response line on stdin — see internal/worker for the host side of
// this protocol.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/groupsio/capharness/internal/script"
	"github.com/groupsio/capharness/internal/worker"
)

func main() {
	w := newWorkerState()
	w.run(os.Stdin, os.Stdout)
}

type workerState struct {
	interp  *script.Interpreter
	in      *bufio.Reader
	out     *bufio.Writer
	relayID int64
}

func newWorkerState() *workerState {
	ns := script.NewNamespace()
	interp := script.NewInterpreter(ns)
	w := &workerState{interp: interp}
	interp.RelayInvoke = w.relayInvoke
	return w
}

// run drives the command loop against in/out. Both the command protocol and
// the relay sub-protocol read from the same `in` and write to the same
// `out` (spec.md §4.5) — a single buffered reader is shared between
// dispatch's line scanning and relayInvoke's blocking read so no bytes are
// dropped between the two.
func (w *workerState) run(in io.Reader, out io.Writer) {
	w.in = bufio.NewReaderSize(in, 64*1024)
	w.out = bufio.NewWriter(out)
	defer w.out.Flush()

	for {
		line, err := w.in.ReadBytes('\n')
		if len(line) > 0 {
			if err2 := w.handleLine(line); err2 != nil {
				w.writeLine(worker.SimpleResponse{Success: false, Error: err2.Error()})
			}
			w.out.Flush()
		}
		if err != nil {
			return
		}
	}
}

func (w *workerState) handleLine(line []byte) error {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	var req worker.Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return fmt.Errorf("malformed request: %w", err)
	}
	w.dispatch(req)
	return nil
}

// relayInvoke is called by the interpreter when script code calls a relay
// capability's method. It emits relay_request on stdout and blocks reading
// relay_response off the shared stdin reader — both multiplexed onto the
// same streams the command protocol uses.
func (w *workerState) relayInvoke(backend, method string, kwargs map[string]script.Value) (script.Value, error) {
	id := atomic.AddInt64(&w.relayID, 1)
	args := make(map[string]interface{}, len(kwargs))
	for k, v := range kwargs {
		args[k] = v
	}
	w.writeLine(worker.RelayRequest{Type: "relay_request", ID: id, Capability: backend, Method: method, Arguments: args})
	w.out.Flush()

	for {
		line, err := w.in.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("relay channel closed: %w", err)
		}
		var resp worker.RelayResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.ID != id {
			continue
		}
		if !resp.Success {
			return nil, fmt.Errorf("relay error: %s", resp.Error)
		}
		return resp.Result, nil
	}
}

func (w *workerState) writeLine(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	w.out.Write(data)
	w.out.WriteByte('\n')
}

func (w *workerState) dispatch(req worker.Request) {
	switch req.Op {
	case "ping":
		w.writeLine(worker.PongResponse{Pong: true})
	case "execute":
		w.writeLine(w.handleExecute(req.Code))
	case "state":
		w.writeLine(w.handleState())
	case "inject":
		w.writeLine(w.handleInject(req.Name, req.Code))
	case "inject_capability":
		w.writeLine(w.handleInjectCapability(req.Name, req.CapKind, req.Config))
	case "inject_relay_capability":
		w.writeLine(w.handleInjectRelayCapability(req.Name, req.Tools))
	case "register_capability":
		w.writeLine(w.handleRegisterCapability(req.Name))
	case "list_capabilities":
		w.writeLine(w.handleListCapabilities())
	case "describe_capability":
		w.writeLine(w.handleDescribeCapability(req.Name))
	case "export_state":
		w.writeLine(toWireSnapshot(w.interp.Export()))
	case "import_state":
		w.writeLine(w.handleImportState(req.State))
	default:
		w.writeLine(worker.SimpleResponse{Success: false, Error: fmt.Sprintf("unknown op %q", req.Op)})
	}
}
