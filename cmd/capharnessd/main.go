// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// capharnessd is the host process: it owns the runtime mutex, spawns the
// session worker, installs configured relay backends, and exposes the
// attach endpoint (C9/C10 in spec.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/groupsio/capharness/internal/adminhttp"
	"github.com/groupsio/capharness/internal/attach"
	"github.com/groupsio/capharness/internal/config"
	"github.com/groupsio/capharness/internal/hostruntime"
	"github.com/groupsio/capharness/internal/relay"
)

var version = "0.1"

func main() {
	var (
		configPath  string
		socket      string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "path to config file (short)")
	flag.StringVar(&socket, "socket", "", "attach socket path (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "show version")
	flag.Parse()

	if showVersion {
		fmt.Printf("capharnessd %s\n", version)
		return
	}

	if configPath == "" {
		loader := config.NewLoader()
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("capharnessd: %v", err)
		}
		configPath = found
	}
	log.Printf("capharnessd: using config %s", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(ctx, configPath)
	if err != nil {
		log.Fatalf("capharnessd: load config: %v", err)
	}
	if socket != "" {
		cfg.Host.Socket = socket
	}

	rt, err := hostruntime.New(ctx, cfg.Worker.Binary, cfg.StateDir)
	if err != nil {
		log.Fatalf("capharnessd: start runtime: %v", err)
	}
	defer rt.Close()

	installBackends(ctx, rt, cfg.Backends)
	if err := config.WatchBackends(ctx, configPath, func(backends map[string]config.BackendConfig) {
		installBackends(ctx, rt, backends)
	}); err != nil {
		log.Printf("capharnessd: config watch disabled: %v", err)
	}

	server := attach.New(cfg.Host.Socket, rt, ctx)
	go func() {
		if err := server.Serve(); err != nil {
			log.Printf("capharnessd: attach server: %v", err)
		}
	}()
	defer server.Close()

	var httpServer *adminhttp.Server
	if cfg.Host.HTTPAddr != "" {
		httpServer = adminhttp.NewServer(cfg.Host.HTTPAddr, rt)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("capharnessd: admin HTTP server: %v", err)
			}
		}()
		defer httpServer.Shutdown(context.Background())
	}

	log.Printf("capharnessd: ready, attach socket %s", cfg.Host.Socket)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("capharnessd: received %v, shutting down", sig)
}

// installBackends installs or refreshes relay capabilities from config.
// Every enabled entry is installed again, replacing a backend already
// running under the same name; already-running backends are not skipped.
// Every entry with disabled: true is uninstalled (relay.Hub.Uninstall is a
// no-op for unknown names).
func installBackends(ctx context.Context, rt *hostruntime.Runtime, backends map[string]config.BackendConfig) {
	for name, b := range backends {
		if b.Disabled {
			if err := rt.UninstallCapability(name); err != nil {
				log.Printf("capharnessd: uninstall %s: %v", name, err)
			}
			continue
		}
		spec := relay.SpawnSpec{Command: b.Command, Args: b.Args, Env: b.Env, Cwd: b.Cwd}
		if err := rt.InstallRelayCapability(ctx, name, spec); err != nil {
			log.Printf("capharnessd: install backend %s: %v", name, err)
		}
	}
}
