// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "capharness.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}

func TestLoaderParsesHJSONWithBackends(t *testing.T) {
	cfg := loadFromString(t, `{
		host: { socket: "/tmp/ch.sock" }
		state_dir: "/var/lib/capharness"
		backends: {
			search: {
				command: "./bin/search-backend"
				args: ["--quiet"]
			}
		}
	}`)

	assert.Equal(t, "/tmp/ch.sock", cfg.Host.Socket)
	assert.Equal(t, "/var/lib/capharness", cfg.StateDir)
	require.Contains(t, cfg.Backends, "search")
	assert.Equal(t, "./bin/search-backend", cfg.Backends["search"].Command)
}

func TestLoaderExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("CAPHARNESS_SOCKET", "/tmp/from-env.sock")
	cfg := loadFromString(t, `{
		host: { socket: "${CAPHARNESS_SOCKET}" }
	}`)
	assert.Equal(t, "/tmp/from-env.sock", cfg.Host.Socket)
}

func TestLoaderRejectsUnsupportedTransport(t *testing.T) {
	cfg := loadFromString(t, `{
		backends: {
			remote: { command: "x", transport: "sse" }
		}
	}`)
	assert.True(t, cfg.Backends["remote"].Disabled)
}

func TestLoadWithDefaultsFillsInHostAndWorker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capharness.hjson")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	cfg, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Host.Socket)
	assert.NotEmpty(t, cfg.StateDir)
	assert.NotEmpty(t, cfg.Worker.Binary)
}

func TestFindConfigReturnsErrorWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	_, err = NewLoader().FindConfig()
	assert.Error(t, err)
}
