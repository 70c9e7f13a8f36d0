// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/groupsio/capharness/internal/filecap"
	"github.com/groupsio/capharness/internal/script"
	"github.com/groupsio/capharness/internal/shellcap"
)

func durationFromMillis(ms int64) time.Duration {
	if ms <= 0 {
		return 30 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// fileCapConfig/shellCapConfig mirror internal/hostruntime's wire structs
// for constructing native capabilities from a JSON descriptor (there is no
// source text for a host-native object — see DESIGN.md).
type fileCapConfig struct {
	Roots    []string `json:"roots"`
	ReadOnly bool     `json:"read_only"`
}

type shellCapConfig struct {
	AllowedCmds   []string `json:"allowed_cmds"`
	AllowedCwds   []string `json:"allowed_cwds"`
	AllowedPaths  []string `json:"allowed_paths"`
	TimeoutMillis int64    `json:"timeout_millis"`
	DenyOperators bool     `json:"deny_operators"`
	Interactive   bool     `json:"interactive"`
}

// fileDispatcher adapts filecap.Capability to script.NativeDispatcher.
type fileDispatcher struct {
	cap *filecap.Capability
}

func newFileDispatcher(name, configJSON string) (*fileDispatcher, error) {
	var cfg fileCapConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("decode file capability config: %w", err)
	}
	c, err := filecap.New(name, cfg.Roots, cfg.ReadOnly)
	if err != nil {
		return nil, err
	}
	return &fileDispatcher{cap: c}, nil
}

func (d *fileDispatcher) Name() string     { return d.cap.Name() }
func (d *fileDispatcher) Describe() string { return d.cap.Describe() }

func (d *fileDispatcher) Call(method string, kwargs map[string]script.Value) (script.Value, error) {
	switch method {
	case "read":
		path, err := stringArg(kwargs, "path", 0)
		if err != nil {
			return nil, err
		}
		data, err := d.cap.Read(path)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case "write":
		path, err := stringArg(kwargs, "path", 0)
		if err != nil {
			return nil, err
		}
		data, err := stringArg(kwargs, "data", 1)
		if err != nil {
			return nil, err
		}
		if err := d.cap.Write(path, []byte(data)); err != nil {
			return nil, err
		}
		return nil, nil
	case "mkdir":
		path, err := stringArg(kwargs, "path", 0)
		if err != nil {
			return nil, err
		}
		if err := d.cap.Mkdir(path); err != nil {
			return nil, err
		}
		return nil, nil
	case "exists":
		path, err := stringArg(kwargs, "path", 0)
		if err != nil {
			return nil, err
		}
		return d.cap.Exists(path), nil
	case "list":
		pattern, _ := stringArg(kwargs, "pattern", 0)
		matches, err := d.cap.List(pattern)
		if err != nil {
			return nil, err
		}
		out := make([]script.Value, len(matches))
		for i, m := range matches {
			out[i] = m
		}
		return out, nil
	default:
		return nil, fmt.Errorf("file capability has no method %q", method)
	}
}

// shellDispatcher adapts shellcap.Capability to script.NativeDispatcher.
type shellDispatcher struct {
	cap *shellcap.Capability
}

func newShellDispatcher(name, configJSON string) (*shellDispatcher, error) {
	var cfg shellCapConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("decode shell capability config: %w", err)
	}
	c, err := shellcap.New(name, shellcap.Config{
		AllowedCmds:   cfg.AllowedCmds,
		AllowedCwds:   cfg.AllowedCwds,
		AllowedPaths:  cfg.AllowedPaths,
		Timeout:       durationFromMillis(cfg.TimeoutMillis),
		DenyOperators: cfg.DenyOperators,
		Interactive:   cfg.Interactive,
	})
	if err != nil {
		return nil, err
	}
	return &shellDispatcher{cap: c}, nil
}

func (d *shellDispatcher) Name() string     { return d.cap.Name() }
func (d *shellDispatcher) Describe() string { return d.cap.Describe() }

func (d *shellDispatcher) Call(method string, kwargs map[string]script.Value) (script.Value, error) {
	command, err := stringArg(kwargs, "command", 0)
	if err != nil {
		return nil, err
	}
	cwd, _ := stringArg(kwargs, "cwd", 1)

	switch method {
	case "run":
		result, err := d.cap.Run(command, cwd)
		if err != nil {
			return nil, err
		}
		return map[string]script.Value{
			"exit_code": int64(result.ExitCode),
			"stdout":    result.Stdout,
			"stderr":    result.Stderr,
		}, nil
	case "run_interactive":
		return d.cap.RunInteractive(command, cwd), nil
	default:
		return nil, fmt.Errorf("shell capability has no method %q", method)
	}
}

func stringArg(kwargs map[string]script.Value, name string, posIndex int) (string, error) {
	if v, ok := kwargs[name]; ok {
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("argument %q must be a string", name)
		}
		return s, nil
	}
	if pos, ok := kwargs["__positional"].([]script.Value); ok && posIndex < len(pos) {
		s, ok := pos[posIndex].(string)
		if !ok {
			return "", fmt.Errorf("argument %d must be a string", posIndex)
		}
		return s, nil
	}
	return "", fmt.Errorf("missing required argument %q", name)
}
