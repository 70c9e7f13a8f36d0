// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import "log"

// Validate checks a loaded Config for problems that should stop startup,
// and logs a warning for anything that's merely ignored (spec.md §4.9:
// "other transports are rejected with a warning at load time").
func Validate(cfg *Config) error {
	for name, b := range cfg.Backends {
		if b.Transport != "" && b.Transport != "stdio" {
			log.Printf("config: backend %q requests unsupported transport %q, ignoring (stdio only)", name, b.Transport)
			b.Disabled = true
			cfg.Backends[name] = b
			continue
		}
		if !b.Disabled && b.Command == "" {
			log.Printf("config: backend %q has no command, ignoring", name)
			b.Disabled = true
			cfg.Backends[name] = b
		}
	}
	return nil
}
