// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package hostruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/groupsio/capharness/internal/events"
	"github.com/groupsio/capharness/internal/relay"
	"github.com/groupsio/capharness/internal/statestore"
	"github.com/groupsio/capharness/internal/worker"
)

// AcquireMode selects how Runtime.WithLock should wait for the runtime
// mutex (spec.md §4.7: non-blocking, blocking, or timed).
type AcquireMode int

const (
	Blocking AcquireMode = iota
	NonBlocking
	Timed
)

// ErrBusy is returned by WithLock when NonBlocking or Timed acquisition
// fails to obtain the mutex.
var ErrBusy = fmt.Errorf("hostruntime: busy")

// Runtime is the host-runtime singleton: one worker, one hub, one store,
// serialized by a single mutex (C9).
type Runtime struct {
	mu *runtimeMutex

	workerBin string
	spawnCtx  context.Context

	worker *worker.Worker
	hub    *relay.Hub
	store  *statestore.Store
	bus    events.EventBus

	installedRelay map[string]relay.SpawnSpec
}

// New wires a fresh Runtime: it spawns the first worker, connects it to a
// new hub wrapped for event publishing, and opens the state store directory.
func New(ctx context.Context, workerBin, stateDir string) (*Runtime, error) {
	store, err := statestore.New(stateDir)
	if err != nil {
		return nil, err
	}
	hub := relay.NewHub()
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	bus.SetDefaultSession("default")

	w, err := worker.Spawn(ctx, workerBin, &eventingInvoker{inner: hub, bus: bus})
	if err != nil {
		return nil, fmt.Errorf("hostruntime: spawn worker: %w", err)
	}

	return &Runtime{
		mu:             newRuntimeMutex(),
		workerBin:      workerBin,
		spawnCtx:       ctx,
		worker:         w,
		hub:            hub,
		store:          store,
		bus:            bus,
		installedRelay: make(map[string]relay.SpawnSpec),
	}, nil
}

// Events returns the runtime's event bus, for internal/adminhttp's
// websocket stream and history endpoint.
func (r *Runtime) Events() events.EventBus {
	return r.bus
}

func (r *Runtime) publish(eventType string, payload map[string]interface{}) {
	_ = r.bus.Publish(context.Background(), events.Event{Type: eventType, Payload: payload})
}

// WithLock acquires the runtime mutex per mode, runs fn, and releases it.
func (r *Runtime) WithLock(mode AcquireMode, timeout time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	switch mode {
	case NonBlocking:
		if !r.mu.TryLock() {
			return nil, ErrBusy
		}
	case Timed:
		if !r.mu.LockTimeout(timeout) {
			return nil, ErrBusy
		}
	default:
		r.mu.Lock()
	}
	defer r.mu.Unlock()
	return fn()
}

// Execute submits code to the worker.
func (r *Runtime) Execute(code string) (worker.ExecuteResponse, error) {
	r.publish(events.EventExecuteStarted, map[string]interface{}{"code": code})

	resp, err := r.worker.Execute(code)
	if err != nil {
		r.publish(events.EventExecuteFailed, map[string]interface{}{"error": err.Error()})
		return resp, err
	}
	if !resp.Success {
		r.publish(events.EventExecuteFailed, map[string]interface{}{"error": resp.ErrorMessage, "stdout": resp.Stdout, "stderr": resp.Stderr})
		return resp, err
	}
	r.publish(events.EventExecuteCompleted, map[string]interface{}{"stdout": resp.Stdout, "stderr": resp.Stderr})
	return resp, err
}

// State requests the worker's namespace summary.
func (r *Runtime) State() (worker.StateResponse, error) {
	return r.worker.State()
}

// InstallFileCapability constructs a file capability inside the worker.
func (r *Runtime) InstallFileCapability(name string, roots []string, readOnly bool) error {
	cfg := fileCapConfig{Roots: roots, ReadOnly: readOnly}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return r.installNative(name, "file", string(data))
}

// InstallShellCapability constructs a shell capability inside the worker.
func (r *Runtime) InstallShellCapability(name string, cfg ShellCapConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return r.installNative(name, "shell", string(data))
}

func (r *Runtime) installNative(name, capKind, configJSON string) error {
	resp, err := r.worker.InjectCapability(name, capKind, configJSON)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("inject_capability %s: %s", name, resp.Error)
	}
	reg, err := r.worker.RegisterCapability(name)
	if err != nil {
		return err
	}
	if !reg.Success {
		return fmt.Errorf("register_capability %s: %s", name, reg.Error)
	}
	r.publish(events.EventCapabilityInstalled, map[string]interface{}{"name": name, "kind": capKind})
	return nil
}

// InstallRelayCapability installs a backend via the hub, then registers a
// relay capability in the worker's namespace wired to it.
func (r *Runtime) InstallRelayCapability(ctx context.Context, name string, spec relay.SpawnSpec) error {
	backend, err := r.hub.Install(ctx, name, spec)
	if err != nil {
		return err
	}
	r.installedRelay[name] = spec

	tools := make(map[string]worker.ToolSpec, len(backend.ToolTable()))
	for toolName, tool := range backend.ToolTable() {
		tools[toolName] = worker.ToolSpec{Description: tool.Description, ParameterSchema: tool.ParameterSchema}
	}
	resp, err := r.worker.InjectRelayCapability(name, tools)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("inject_relay_capability %s: %s", name, resp.Error)
	}
	reg, err := r.worker.RegisterCapability(name)
	if err != nil {
		return err
	}
	if !reg.Success {
		return fmt.Errorf("register_capability %s: %s", name, reg.Error)
	}
	r.publish(events.EventCapabilityInstalled, map[string]interface{}{"name": name, "kind": "relay"})
	return nil
}

// UninstallCapability removes a relay capability's backend, if any; native
// capabilities live only in the worker's namespace and are cleared by
// Reset.
func (r *Runtime) UninstallCapability(name string) error {
	delete(r.installedRelay, name)
	err := r.hub.Uninstall(name)
	r.publish(events.EventCapabilityUninstalled, map[string]interface{}{"name": name})
	return err
}

// ListCapabilities returns the names of all capabilities bound in the
// worker's namespace.
func (r *Runtime) ListCapabilities() (worker.ListCapabilitiesResponse, error) {
	return r.worker.ListCapabilities()
}

// DescribeCapability returns a bound capability's own Describe() text
// (SUPPLEMENTED FEATURES, grounded on original_source's describe()).
func (r *Runtime) DescribeCapability(name string) (worker.DescribeCapabilityResponse, error) {
	return r.worker.DescribeCapability(name)
}

// ExportState returns the worker's namespace as a snapshot without
// persisting it, for the attach endpoint's export_state op.
func (r *Runtime) ExportState() (worker.Snapshot, error) {
	return r.worker.ExportState()
}

// ImportState loads a snapshot directly into the worker, reconnecting any
// relay capabilities it references, for the attach endpoint's import_state
// op. Unlike RestoreState it does not read from the state store.
func (r *Runtime) ImportState(ctx context.Context, snap worker.Snapshot) (worker.ImportResponse, error) {
	resp, err := r.worker.ImportState(snap)
	if err != nil {
		return worker.ImportResponse{}, err
	}
	for _, relayName := range resp.RelayCapabilitiesToRestore {
		spec, ok := r.installedRelay[relayName]
		if !ok {
			continue
		}
		if err := r.InstallRelayCapability(ctx, relayName, spec); err != nil {
			resp.CapabilitiesFailed = append(resp.CapabilitiesFailed, relayName)
		}
	}
	return resp, nil
}

// SaveState exports the worker's namespace and persists it under name.
func (r *Runtime) SaveState(name string, savedAt string) (statestore.Record, error) {
	snap, err := r.worker.ExportState()
	if err != nil {
		return statestore.Record{}, err
	}
	return r.store.Save(name, snap, savedAt)
}

// ListStates returns the names of every saved session snapshot
// (`original_source/harness/server.py`'s `list_saved_states` tool).
func (r *Runtime) ListStates() ([]string, error) {
	return r.store.List()
}

// RestoreState loads a saved snapshot, imports it into the worker, and
// reconnects any relay capabilities it references.
func (r *Runtime) RestoreState(ctx context.Context, name string) (worker.ImportResponse, error) {
	rec, err := r.store.Load(name)
	if err != nil {
		return worker.ImportResponse{}, err
	}
	resp, err := r.worker.ImportState(rec.Snapshot)
	if err != nil {
		return worker.ImportResponse{}, err
	}
	for _, relayName := range resp.RelayCapabilitiesToRestore {
		spec, ok := r.installedRelay[relayName]
		if !ok {
			continue
		}
		if err := r.InstallRelayCapability(ctx, relayName, spec); err != nil {
			resp.CapabilitiesFailed = append(resp.CapabilitiesFailed, relayName)
		}
	}
	return resp, nil
}

// Reset uninstalls all backends (asynchronously), terminates the current
// worker, and spawns a fresh one. State is not saved — spec.md §4.7:
// "the user's responsibility to save first."
func (r *Runtime) Reset(ctx context.Context) error {
	go func() { _ = r.hub.Close() }()
	r.installedRelay = make(map[string]relay.SpawnSpec)

	if err := r.worker.Terminate(); err != nil {
		return fmt.Errorf("hostruntime: terminate worker: %w", err)
	}

	w, err := worker.Spawn(ctx, r.workerBin, &eventingInvoker{inner: r.hub, bus: r.bus})
	if err != nil {
		return fmt.Errorf("hostruntime: respawn worker: %w", err)
	}
	r.worker = w
	r.publish(events.EventWorkerReset, nil)
	return nil
}

// Close tears down the worker and all backends. Meant for host shutdown.
func (r *Runtime) Close() error {
	hubErr := r.hub.Close()
	workerErr := r.worker.Terminate()
	if workerErr != nil {
		return workerErr
	}
	return hubErr
}

type fileCapConfig struct {
	Roots    []string `json:"roots"`
	ReadOnly bool     `json:"read_only"`
}

// ShellCapConfig mirrors shellcap.Config for the wire, kept local to avoid
// hostruntime importing shellcap just for a struct tag set that
// cmd/sessionworker and internal/attach also need to decode independently.
type ShellCapConfig struct {
	AllowedCmds   []string `json:"allowed_cmds"`
	AllowedCwds   []string `json:"allowed_cwds"`
	AllowedPaths  []string `json:"allowed_paths"`
	TimeoutMillis int64    `json:"timeout_millis"`
	DenyOperators bool     `json:"deny_operators"`
	Interactive   bool     `json:"interactive"`
}
