// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"bufio"
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

	gops "github.com/mitchellh/go-ps"
)

const killPollInterval = 20 * time.Millisecond
const killPollTimeout = 2 * time.Second

// RelayInvoker routes a relay_request emitted by the worker to the
// appropriate backend (internal/relay.Hub implements this).
type RelayInvoker interface {
	Invoke(capability, method string, args map[string]interface{}) (interface{}, error)
}

// Worker drives one session-worker subprocess for the lifetime of a
// session. It is not safe for concurrent Send calls — internal/hostruntime
// holds the single mutex that serializes access (spec.md §4.9).
type Worker struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdin  io.WriteCloser
	out    *bufio.Scanner

	mu      sync.Mutex
	relayID int64
	invoker RelayInvoker
}

// Spawn starts binPath as the session worker subprocess.
func Spawn(ctx context.Context, binPath string, invoker RelayInvoker) (*Worker, error) {
	runCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(runCtx, binPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("worker stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("worker stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("spawn session worker: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	return &Worker{
		cmd:     cmd,
		cancel:  cancel,
		stdin:   stdin,
		out:     scanner,
		invoker: invoker,
	}, nil
}

// Pid reports the worker subprocess's PID, used for worker-identity logging.
func (w *Worker) Pid() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

// send writes req as one JSON line and reads lines from the worker until it
// sees one that isn't a relay_request, servicing each relay_request via the
// invoker along the way. It returns the raw bytes of the final response
// line.
func (w *Worker) send(req Request) (json.RawMessage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := w.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("write to worker: %w", err)
	}

	for {
		if !w.out.Scan() {
			if err := w.out.Err(); err != nil {
				return nil, fmt.Errorf("read from worker: %w", err)
			}
			return nil, fmt.Errorf("worker closed its output stream")
		}
		raw := append([]byte(nil), w.out.Bytes()...)

		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Type == "relay_request" {
			var rr RelayRequest
			if err := json.Unmarshal(raw, &rr); err != nil {
				return nil, fmt.Errorf("decode relay_request: %w", err)
			}
			w.serviceRelay(rr)
			continue
		}
		return raw, nil
	}
}

func (w *Worker) serviceRelay(rr RelayRequest) {
	resp := RelayResponse{Type: "relay_response", ID: rr.ID}
	if w.invoker == nil {
		resp.Success = false
		resp.Error = "no relay hub is attached to this worker"
	} else {
		result, err := w.invoker.Invoke(rr.Capability, rr.Method, rr.Arguments)
		if err != nil {
			resp.Success = false
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Result = result
		}
	}
	line, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_, _ = w.stdin.Write(append(line, '\n'))
}

func (w *Worker) nextRelayID() int64 { return atomic.AddInt64(&w.relayID, 1) }

// Ping sends a liveness check.
func (w *Worker) Ping() error {
	raw, err := w.send(Request{Op: "ping"})
	if err != nil {
		return err
	}
	var resp PongResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode ping response: %w", err)
	}
	if !resp.Pong {
		return fmt.Errorf("worker did not respond with pong")
	}
	return nil
}

// Execute submits code for evaluation.
func (w *Worker) Execute(code string) (ExecuteResponse, error) {
	raw, err := w.send(Request{Op: "execute", Code: code})
	if err != nil {
		return ExecuteResponse{}, err
	}
	var resp ExecuteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ExecuteResponse{}, fmt.Errorf("decode execute response: %w", err)
	}
	return resp, nil
}

// State requests a namespace summary.
func (w *Worker) State() (StateResponse, error) {
	raw, err := w.send(Request{Op: "state"})
	if err != nil {
		return StateResponse{}, err
	}
	var resp StateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return StateResponse{}, fmt.Errorf("decode state response: %w", err)
	}
	return resp, nil
}

// Inject defines a name via arbitrary script source (spec.md §4.5: `inject`).
func (w *Worker) Inject(name, code string) (SimpleResponse, error) {
	raw, err := w.send(Request{Op: "inject", Name: name, Code: code})
	if err != nil {
		return SimpleResponse{}, err
	}
	var resp SimpleResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return SimpleResponse{}, fmt.Errorf("decode inject response: %w", err)
	}
	return resp, nil
}

// InjectCapability constructs and binds a host-native capability. This is a
// capharness addition to spec.md's command table (see DESIGN.md): our
// interpreter has no class syntax, so a native capability's constructor
// configuration is passed as a typed descriptor instead of literal source.
func (w *Worker) InjectCapability(name, capKind, configJSON string) (SimpleResponse, error) {
	raw, err := w.send(Request{Op: "inject_capability", Name: name, CapKind: capKind, Config: configJSON})
	if err != nil {
		return SimpleResponse{}, err
	}
	var resp SimpleResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return SimpleResponse{}, fmt.Errorf("decode inject_capability response: %w", err)
	}
	return resp, nil
}

// InjectRelayCapability binds name to a relay capability exposing tools.
func (w *Worker) InjectRelayCapability(name string, tools map[string]ToolSpec) (SimpleResponse, error) {
	raw, err := w.send(Request{Op: "inject_relay_capability", Name: name, Tools: tools})
	if err != nil {
		return SimpleResponse{}, err
	}
	var resp SimpleResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return SimpleResponse{}, fmt.Errorf("decode inject_relay_capability response: %w", err)
	}
	return resp, nil
}

// RegisterCapability promotes a namespace binding into the capability
// registry.
func (w *Worker) RegisterCapability(name string) (RegisterCapabilityResponse, error) {
	raw, err := w.send(Request{Op: "register_capability", Name: name})
	if err != nil {
		return RegisterCapabilityResponse{}, err
	}
	var resp RegisterCapabilityResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return RegisterCapabilityResponse{}, fmt.Errorf("decode register_capability response: %w", err)
	}
	return resp, nil
}

// ListCapabilities lists registered capability names.
func (w *Worker) ListCapabilities() (ListCapabilitiesResponse, error) {
	raw, err := w.send(Request{Op: "list_capabilities"})
	if err != nil {
		return ListCapabilitiesResponse{}, err
	}
	var resp ListCapabilitiesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ListCapabilitiesResponse{}, fmt.Errorf("decode list_capabilities response: %w", err)
	}
	return resp, nil
}

// DescribeCapability fetches a bound capability's own Describe() text.
func (w *Worker) DescribeCapability(name string) (DescribeCapabilityResponse, error) {
	raw, err := w.send(Request{Op: "describe_capability", Name: name})
	if err != nil {
		return DescribeCapabilityResponse{}, err
	}
	var resp DescribeCapabilityResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return DescribeCapabilityResponse{}, fmt.Errorf("decode describe_capability response: %w", err)
	}
	return resp, nil
}

// ExportState snapshots the worker's namespace.
func (w *Worker) ExportState() (Snapshot, error) {
	raw, err := w.send(Request{Op: "export_state"})
	if err != nil {
		return Snapshot{}, err
	}
	var resp Snapshot
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Snapshot{}, fmt.Errorf("decode export_state response: %w", err)
	}
	return resp, nil
}

// ImportState restores a previously exported snapshot.
func (w *Worker) ImportState(state Snapshot) (ImportResponse, error) {
	raw, err := w.send(Request{Op: "import_state", State: &state})
	if err != nil {
		return ImportResponse{}, err
	}
	var resp ImportResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ImportResponse{}, fmt.Errorf("decode import_state response: %w", err)
	}
	return resp, nil
}

// Terminate kills the worker's whole process group and waits (bounded) for
// it to die, mirroring internal/service's process-group teardown.
func (w *Worker) Terminate() error {
	_ = w.stdin.Close()
	pid := w.Pid()
	if pid == 0 {
		w.cancel()
		return nil
	}
	_ = syscall.Kill(-pid, syscall.SIGTERM)

	deadline := time.Now().Add(killPollTimeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			w.cancel()
			return nil
		}
		time.Sleep(killPollInterval)
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	w.cancel()
	return nil
}

func processAlive(pid int) bool {
	proc, err := gops.FindProcess(pid)
	return err == nil && proc != nil
}

// Wait blocks until the worker subprocess exits.
func (w *Worker) Wait() error {
	return w.cmd.Wait()
}
