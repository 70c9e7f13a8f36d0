// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package attach

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupsio/capharness/internal/hostruntime"
	"github.com/groupsio/capharness/internal/relay"
	"github.com/groupsio/capharness/internal/statestore"
	"github.com/groupsio/capharness/internal/worker"
)

// fakeRuntime is a capRuntime double so dispatch logic can be exercised
// without spawning a real session-worker subprocess.
type fakeRuntime struct {
	executeCode string
	executeResp worker.ExecuteResponse
	executeErr  error

	installedFile  string
	installedShell string
	installedRelay string

	uninstalled string
	resetCalled bool

	describeResp worker.DescribeCapabilityResponse
}

func (f *fakeRuntime) WithLock(_ hostruntime.AcquireMode, _ time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	return fn()
}

func (f *fakeRuntime) Execute(code string) (worker.ExecuteResponse, error) {
	f.executeCode = code
	return f.executeResp, f.executeErr
}

func (f *fakeRuntime) State() (worker.StateResponse, error) {
	return worker.StateResponse{}, nil
}

func (f *fakeRuntime) ListCapabilities() (worker.ListCapabilitiesResponse, error) {
	return worker.ListCapabilitiesResponse{Capabilities: []string{"fs"}}, nil
}

func (f *fakeRuntime) DescribeCapability(name string) (worker.DescribeCapabilityResponse, error) {
	return f.describeResp, nil
}

func (f *fakeRuntime) ExportState() (worker.Snapshot, error) {
	return worker.Snapshot{}, nil
}

func (f *fakeRuntime) ImportState(ctx context.Context, snap worker.Snapshot) (worker.ImportResponse, error) {
	return worker.ImportResponse{VariablesRestored: len(snap.Variables)}, nil
}

func (f *fakeRuntime) InstallFileCapability(name string, roots []string, readOnly bool) error {
	f.installedFile = name
	return nil
}

func (f *fakeRuntime) InstallShellCapability(name string, cfg hostruntime.ShellCapConfig) error {
	f.installedShell = name
	return nil
}

func (f *fakeRuntime) InstallRelayCapability(ctx context.Context, name string, spec relay.SpawnSpec) error {
	f.installedRelay = name
	return nil
}

func (f *fakeRuntime) UninstallCapability(name string) error {
	f.uninstalled = name
	return nil
}

func (f *fakeRuntime) SaveState(name, savedAt string) (statestore.Record, error) {
	return statestore.Record{ID: name, SavedAt: savedAt}, nil
}

func (f *fakeRuntime) RestoreState(ctx context.Context, name string) (worker.ImportResponse, error) {
	return worker.ImportResponse{}, nil
}

func (f *fakeRuntime) ListStates() ([]string, error) {
	return []string{"checkpoint-1"}, nil
}

func (f *fakeRuntime) Reset(ctx context.Context) error {
	f.resetCalled = true
	return nil
}

func newTestServer(rt *fakeRuntime) *Server {
	return &Server{socketPath: "", runtime: rt, background: context.Background()}
}

func TestDispatchPing(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	resp, err := s.dispatch(Request{Op: "ping"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"success": true, "pong": true}, resp)
}

func TestDispatchExecute(t *testing.T) {
	fr := &fakeRuntime{executeResp: worker.ExecuteResponse{Success: true, ReturnValue: 42}}
	s := newTestServer(fr)
	resp, err := s.dispatch(Request{Op: "execute", Code: "1 + 1"})
	require.NoError(t, err)
	assert.Equal(t, "1 + 1", fr.executeCode)
	assert.Equal(t, worker.ExecuteResponse{Success: true, ReturnValue: 42}, resp)
}

func TestDispatchUnknownOp(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	_, err := s.dispatch(Request{Op: "bogus"})
	assert.Error(t, err)
}

func TestDispatchInstallCapabilityFile(t *testing.T) {
	fr := &fakeRuntime{}
	s := newTestServer(fr)
	resp, err := s.dispatch(Request{Op: "install-capability", Name: "fs", CapKind: "file", Roots: []string{"/tmp"}})
	require.NoError(t, err)
	assert.Equal(t, "fs", fr.installedFile)
	assert.Equal(t, simpleOK(), resp)
}

func TestDispatchInstallCapabilityUnknownKind(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	_, err := s.dispatch(Request{Op: "install-capability", Name: "x", CapKind: "bogus"})
	assert.Error(t, err)
}

func TestDispatchUninstallCapability(t *testing.T) {
	fr := &fakeRuntime{}
	s := newTestServer(fr)
	_, err := s.dispatch(Request{Op: "uninstall-capability", Name: "docs"})
	require.NoError(t, err)
	assert.Equal(t, "docs", fr.uninstalled)
}

func TestDispatchReset(t *testing.T) {
	fr := &fakeRuntime{}
	s := newTestServer(fr)
	_, err := s.dispatch(Request{Op: "reset"})
	require.NoError(t, err)
	assert.True(t, fr.resetCalled)
}

func TestDispatchImportStateRequiresState(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	_, err := s.dispatch(Request{Op: "import_state"})
	assert.Error(t, err)
}

func TestDispatchImportStateCountsVariables(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	snap := worker.Snapshot{Variables: []worker.VariableSnapshot{{Name: "x"}}}
	resp, err := s.dispatch(Request{Op: "import_state", State: &snap})
	require.NoError(t, err)
	assert.Equal(t, worker.ImportResponse{VariablesRestored: 1}, resp)
}

func TestDispatchSaveState(t *testing.T) {
	fr := &fakeRuntime{}
	s := newTestServer(fr)
	resp, err := s.dispatch(Request{Op: "save-state", Name: "checkpoint-1"})
	require.NoError(t, err)
	rec, ok := resp.(statestore.Record)
	require.True(t, ok)
	assert.Equal(t, "checkpoint-1", rec.ID)
}

func TestDispatchDescribeCapability(t *testing.T) {
	fr := &fakeRuntime{describeResp: worker.DescribeCapabilityResponse{Success: true, Description: "fs.read(path), fs.write(path, data)"}}
	s := newTestServer(fr)
	resp, err := s.dispatch(Request{Op: "describe_capability", Name: "fs"})
	require.NoError(t, err)
	assert.Equal(t, fr.describeResp, resp)
}

func TestDispatchListStates(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	resp, err := s.dispatch(Request{Op: "list_states"})
	require.NoError(t, err)
	m := resp.(map[string]interface{})
	assert.Equal(t, []string{"checkpoint-1"}, m["states"])
}

func TestHandleLineMalformedJSON(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	resp := s.handleLine([]byte("not json"))
	assert.Equal(t, false, resp.(map[string]interface{})["success"])
}

func TestHandleLineBusyIsReported(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	s.runtime = &busyRuntime{}
	resp := s.handleLine([]byte(`{"op":"ping","wait":false}`))
	m := resp.(map[string]interface{})
	assert.Equal(t, false, m["success"])
	assert.Equal(t, "busy", m["error"])
}

// busyRuntime always fails non-blocking/timed acquisition, so handleLine's
// NonBlocking/Timed path can be exercised without a real mutex contest.
type busyRuntime struct{ fakeRuntime }

func (b *busyRuntime) WithLock(mode hostruntime.AcquireMode, _ time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	if mode != hostruntime.Blocking {
		return nil, hostruntime.ErrBusy
	}
	return fn()
}
