// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// capharness-ctl attaches to a running capharnessd's attach endpoint: a
// single -exec invocation for scripting, or an interactive REPL with
// colon-commands (:state, :caps, :desc, :block, :quit) for exploring a
// session by hand (SUPPLEMENTED FEATURES, grounded on
// original_source/harness/attach.py).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/groupsio/capharness/internal/worker"
	"github.com/groupsio/capharness/pkg/client"
)

func main() {
	var (
		socketPath string
		wait       bool
		execCode   string
	)
	flag.StringVar(&socketPath, "socket", defaultSocket(), "attach socket path")
	flag.BoolVar(&wait, "wait", true, "block for the runtime mutex if busy")
	flag.StringVar(&execCode, "exec", "", "execute code and exit (\"-\" reads from stdin)")
	flag.Parse()

	c, err := client.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capharness-ctl: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx := context.Background()

	if execCode != "" {
		code := execCode
		if code == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "capharness-ctl: read stdin: %v\n", err)
				os.Exit(1)
			}
			code = string(data)
		}
		resp, err := c.Execute(ctx, code, client.WithWait(wait))
		printExecuteResult(resp, err)
		return
	}

	runInteractive(ctx, c, wait)
}

func defaultSocket() string {
	if env := os.Getenv("CAPHARNESS_ATTACH_SOCKET"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/capharness.sock"
	}
	return home + "/.capharness/attach.sock"
}

func runInteractive(ctx context.Context, c *client.Client, wait bool) {
	fmt.Println("Attached. Commands: :state, :caps, :desc <name>, :block, :quit")
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("capharness> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimRight(line, "\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case trimmed == ":q" || trimmed == ":quit" || trimmed == ":exit":
			return

		case trimmed == ":state":
			resp, err := c.State(ctx, client.WithWait(wait))
			printJSONResult(resp, err)

		case trimmed == ":caps":
			resp, err := c.ListCapabilities(ctx, client.WithWait(wait))
			printJSONResult(resp, err)

		case strings.HasPrefix(trimmed, ":desc "):
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, ":desc "))
			resp, err := c.DescribeCapability(ctx, name, client.WithWait(wait))
			printJSONResult(resp, err)

		case trimmed == ":block":
			code := readBlock(reader)
			resp, err := c.Execute(ctx, code, client.WithWait(wait))
			printExecuteResult(resp, err)

		default:
			resp, err := c.Execute(ctx, line, client.WithWait(wait))
			printExecuteResult(resp, err)
		}
	}
}

// readBlock accumulates lines until :end, for multi-line code entry. This
// is a client-side convenience only — it does not add a wire operation.
func readBlock(reader *bufio.Reader) string {
	fmt.Println("Enter code, finish with :end")
	var lines []string
	for {
		fmt.Print("... ")
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if strings.TrimSpace(line) == ":end" || err != nil {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// printExecuteResult mirrors original_source/harness/attach.py's
// _print_result: an error prints as "[error] ...", otherwise stdout/stderr
// stream through and a non-nil return value prints on its own line.
func printExecuteResult(resp worker.ExecuteResponse, err error) {
	if err != nil {
		fmt.Printf("[error] %v\n", err)
		return
	}
	if !resp.Success {
		fmt.Printf("[error] %s\n", resp.ErrorMessage)
		return
	}
	if resp.Stdout != "" {
		fmt.Print(resp.Stdout)
	}
	if resp.Stderr != "" {
		fmt.Fprint(os.Stderr, resp.Stderr)
	}
	if resp.ReturnValue != nil {
		fmt.Println(resp.ReturnValue)
	}
}

// printJSONResult pretty-prints any other response, or the error.
func printJSONResult(v interface{}, err error) {
	if err != nil {
		fmt.Printf("[error] %v\n", err)
		return
	}
	data, marshalErr := json.MarshalIndent(v, "", "  ")
	if marshalErr != nil {
		fmt.Printf("[error] %v\n", marshalErr)
		return
	}
	fmt.Println(string(data))
}
