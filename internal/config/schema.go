// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for the capharness
// host: where to listen, where to persist state, and which relay backends
// to make installable.
package config

// Config is the root host configuration.
type Config struct {
	Host     HostConfig                `json:"host"`
	StateDir string                    `json:"state_dir"`
	Worker   WorkerConfig              `json:"worker"`
	Backends map[string]BackendConfig  `json:"backends"`
}

// HostConfig configures the attach/admin surfaces.
type HostConfig struct {
	Socket   string `json:"socket"`    // Unix socket path for the attach endpoint
	HTTPAddr string `json:"http_addr"` // loopback HTTP admin surface, e.g. "127.0.0.1:8090"
}

// WorkerConfig configures the session-worker subprocess.
type WorkerConfig struct {
	Binary string `json:"binary"` // path to the cmd/sessionworker executable
}

// BackendConfig is one entry of the backend-install configuration map
// (spec.md §4.9: "a map of {name → {command, args, env, cwd, disabled?,
// transport?}}").
type BackendConfig struct {
	Command   string            `json:"command"`
	Args      []string          `json:"args"`
	Env       map[string]string `json:"env"`
	Cwd       string            `json:"cwd"`
	Disabled  bool              `json:"disabled"`
	Transport string            `json:"transport"` // only "stdio" is in scope
}

func applyDefaults(cfg *Config) {
	if cfg.Host.Socket == "" {
		cfg.Host.Socket = "/tmp/capharness.sock"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = "./capharness-state"
	}
	if cfg.Worker.Binary == "" {
		cfg.Worker.Binary = "capharness-sessionworker"
	}
	for name, b := range cfg.Backends {
		if b.Transport == "" {
			b.Transport = "stdio"
			cfg.Backends[name] = b
		}
	}
}
