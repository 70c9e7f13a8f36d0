// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package attach

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupsio/capharness/internal/worker"
)

func startTestServer(t *testing.T, rt *fakeRuntime) (*Server, string) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "attach.sock")
	s := &Server{socketPath: sock, runtime: rt, background: context.Background()}
	go s.Serve()
	t.Cleanup(func() { s.Close() })

	// Wait for the socket file to appear instead of sleeping a fixed delay.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", sock); err == nil {
			conn.Close()
			return s, sock
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("attach socket never came up at %s", sock)
	return nil, ""
}

func TestServeAcceptsLineRequests(t *testing.T) {
	fr := &fakeRuntime{executeResp: worker.ExecuteResponse{Success: true, ReturnValue: "ok"}}
	_, sock := startTestServer(t, fr)

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	req, _ := json.Marshal(Request{Op: "execute", Code: "1"})
	_, err = conn.Write(append(req, '\n'))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)

	var resp worker.ExecuteResponse
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.ReturnValue)
}

func TestServeHandlesConcurrentConnections(t *testing.T) {
	fr := &fakeRuntime{executeResp: worker.ExecuteResponse{Success: true}}
	_, sock := startTestServer(t, fr)

	const clients = 5
	done := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func() {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()
			req, _ := json.Marshal(Request{Op: "ping"})
			if _, err := conn.Write(append(req, '\n')); err != nil {
				done <- err
				return
			}
			reader := bufio.NewReader(conn)
			_, err = reader.ReadString('\n')
			done <- err
		}()
	}
	for i := 0; i < clients; i++ {
		require.NoError(t, <-done)
	}
}

func TestCloseStopsAcceptLoop(t *testing.T) {
	s, sock := startTestServer(t, &fakeRuntime{})
	require.NoError(t, s.Close())

	_, err := net.Dial("unix", sock)
	assert.Error(t, err)
}
