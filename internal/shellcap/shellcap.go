// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package shellcap implements the shell capability (spec.md §4.3): spawns
// child processes subject to a command allowlist, a cwd allowlist, a
// path-argument allowlist, optional shell-operator rejection, and a
// timeout.
package shellcap

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	gops "github.com/mitchellh/go-ps"

	"github.com/groupsio/capharness/internal/contract"
	"github.com/groupsio/capharness/internal/pathguard"
	"github.com/groupsio/capharness/internal/policy"
)

// shellOperators lists the shell metacharacters rejected when DenyOperators
// is set. This is a hardening heuristic, not a full shell parser — see
// spec.md §4.3 and the Open Questions in §9.
var shellOperators = []string{"&&", "||", ";", "|", "`", "$(", ">", "<", "\n"}

// Capability executes shell commands under an allowlist.
type Capability struct {
	name          string
	allowedCmds   []string // nil means unrestricted; non-nil (possibly empty) is an allowlist
	allowedCwds   []string // canonical
	allowedPaths  []string // canonical
	timeout       time.Duration
	denyOperators bool
	interactive   bool // when true, Run uses a pty instead of plain pipes
}

// Config configures a new shell capability.
type Config struct {
	AllowedCmds   []string
	AllowedCwds   []string
	AllowedPaths  []string
	Timeout       time.Duration
	DenyOperators bool
	Interactive   bool
}

func New(name string, cfg Config) (*Capability, error) {
	cwds, err := canonicalizeAll(cfg.AllowedCwds)
	if err != nil {
		return nil, err
	}
	paths, err := canonicalizeAll(cfg.AllowedPaths)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Capability{
		name:          name,
		allowedCmds:   cfg.AllowedCmds,
		allowedCwds:   cwds,
		allowedPaths:  paths,
		timeout:       timeout,
		denyOperators: cfg.DenyOperators,
		interactive:   cfg.Interactive,
	}, nil
}

func canonicalizeAll(paths []string) ([]string, error) {
	if paths == nil {
		return nil, nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		c, err := pathguard.Canonicalize(p)
		if err != nil {
			return nil, fmt.Errorf("canonicalize %q: %w", p, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (c *Capability) Name() string { return c.name }

func (c *Capability) Description() string {
	return "Execute shell commands (with optional allowlist)."
}

// Contract implements capability.Capability. Executes is one
// "shell:<cmd> *" per allowed command, or "shell:*" if unrestricted; reads
// and writes mirror the cwd/path allowlists.
func (c *Capability) Contract() contract.Contract {
	ct := contract.New()
	if c.allowedCmds == nil {
		ct.Executes = contract.NewSet(contract.NewPattern(contract.ClassShell, "*"))
	} else {
		patterns := make([]contract.Pattern, 0, len(c.allowedCmds))
		for _, cmd := range c.allowedCmds {
			patterns = append(patterns, contract.NewPattern(contract.ClassShell, cmd+" *"))
		}
		ct.Executes = contract.NewSet(patterns...)
	}

	roots := append(append([]string{}, c.allowedCwds...), c.allowedPaths...)
	patterns := make([]contract.Pattern, 0, len(roots))
	for _, r := range roots {
		patterns = append(patterns, contract.NewPattern(contract.ClassFile, r+"/**"))
	}
	ct.Reads = contract.NewSet(patterns...)
	ct.Writes = ct.Reads
	return ct
}

func (c *Capability) Describe() string {
	out := c.name + ": " + c.Description() + "\n\nMethods:\n"
	out += "  - run(command string, cwd string) (Result, error)\n      Run a shell command, enforcing the allowlists and timeout.\n"
	out += "  - run_interactive(command string, cwd string) string\n      Run a command, returning stdout or a formatted error string.\n"
	return out
}

// Result is the outcome of a shell command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (c *Capability) commandAllowed(line string) (string, bool) {
	tokens := pathguard.Tokenize(line)
	if len(tokens) == 0 {
		return "", false
	}
	name := tokens[0]
	if c.allowedCmds == nil {
		return name, true
	}
	for _, allowed := range c.allowedCmds {
		if name == allowed {
			return name, true
		}
	}
	return name, false
}

func (c *Capability) hasOperator(line string) (string, bool) {
	for _, op := range shellOperators {
		if strings.Contains(line, op) {
			return op, true
		}
	}
	return "", false
}

func (c *Capability) cwdAllowed(cwd string) (string, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		cwd = wd
	}
	canon, err := pathguard.Canonicalize(cwd)
	if err != nil {
		return "", err
	}
	if c.allowedCwds == nil || pathguard.Contains(c.allowedCwds, canon) {
		return canon, nil
	}
	return "", policy.New(policy.CwdNotAllowed, fmt.Sprintf("cwd %q is outside allowed paths", cwd))
}

func (c *Capability) pathArgsAllowed(line, cwd string) error {
	if len(c.allowedPaths) == 0 {
		return nil
	}
	tokens := pathguard.Tokenize(line)
	for _, arg := range pathguard.ExtractPathArgs(tokens[1:]) {
		resolved, err := pathguard.ResolveArg(arg, cwd)
		if err != nil {
			return err
		}
		if !pathguard.Contains(c.allowedPaths, resolved) {
			return policy.New(policy.PathNotAllowed, fmt.Sprintf("path argument %q is outside allowed paths", arg))
		}
	}
	return nil
}

// Run executes command, enforcing the command-name, operator, cwd, and
// path-argument checks before spawning, and the configured timeout while
// running. A timed-out or failed-to-spawn command reports ExitCode -1.
func (c *Capability) Run(command string, cwd string) (Result, error) {
	if _, ok := c.commandAllowed(command); !ok {
		allowed := strings.Join(c.allowedCmds, ", ")
		return Result{}, policy.New(policy.CommandNotAllowed, fmt.Sprintf("command not allowed. Allowed commands: %s", allowed))
	}
	if c.denyOperators {
		if op, found := c.hasOperator(command); found {
			return Result{}, policy.New(policy.OperatorDenied, fmt.Sprintf("shell operator %q is not allowed", op))
		}
	}
	resolvedCwd, err := c.cwdAllowed(cwd)
	if err != nil {
		return Result{}, err
	}
	if err := c.pathArgsAllowed(command, resolvedCwd); err != nil {
		return Result{}, err
	}

	return c.spawn(command, resolvedCwd)
}

func (c *Capability) spawn(command, cwd string) (Result, error) {
	if c.interactive {
		return c.spawnPTY(command, cwd)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = cwd
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1, Stderr: err.Error()}, nil
	}

	waitErr := cmd.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd.Process.Pid)
		return Result{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   fmt.Sprintf("command timed out after %s", c.timeout),
		}, nil
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{ExitCode: -1, Stdout: stdout.String(), Stderr: waitErr.Error()}, nil
		}
	}

	return Result{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// killProcessGroup sends SIGKILL to the process group and uses go-ps to
// confirm the leader has actually exited before returning, so the host
// doesn't report a timeout while the child is still tearing down.
func killProcessGroup(pid int) {
	syscall.Kill(-pid, syscall.SIGKILL)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		proc, err := gops.FindProcess(pid)
		if err != nil || proc == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// RunInteractive runs command and returns stdout on success, or a
// formatted "Error (exit N): ..." string on failure — a convenience
// facade with no distinct permission surface of its own, carried verbatim
// in spirit from original_source/capabilities/command_line.py.
func (c *Capability) RunInteractive(command, cwd string) string {
	result, err := c.Run(command, cwd)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if result.ExitCode == 0 {
		return result.Stdout
	}
	msg := result.Stderr
	if msg == "" {
		msg = result.Stdout
	}
	return fmt.Sprintf("Error (exit %d): %s", result.ExitCode, msg)
}

// DeriveRestrictions narrows a derived shell capability.
type DeriveRestrictions struct {
	AllowedCmds  []string // intersected with parent's; nil keeps parent's set
	AllowedCwds  []string // intersected with parent's; nil keeps parent's set
	Timeout      time.Duration
	DenyOperators bool
}

// Derive returns a strictly-weaker instance: command and cwd sets are
// intersected with the parent's, timeout clamps to <= parent's, and
// DenyOperators is OR'd (monotonically hardens).
func (c *Capability) Derive(name string, r DeriveRestrictions) *Capability {
	cmds := intersectOrKeep(c.allowedCmds, r.AllowedCmds)
	cwds := intersectOrKeep(c.allowedCwds, r.AllowedCwds)

	timeout := c.timeout
	if r.Timeout > 0 && r.Timeout < timeout {
		timeout = r.Timeout
	}

	return &Capability{
		name:          name,
		allowedCmds:   cmds,
		allowedCwds:   cwds,
		allowedPaths:  c.allowedPaths,
		timeout:       timeout,
		denyOperators: c.denyOperators || r.DenyOperators,
		interactive:   c.interactive,
	}
}

// intersectOrKeep returns the parent's set narrowed to requested: nil
// requested keeps the parent's set unchanged, and a disjoint requested set
// against a restricted (non-nil) parent returns a non-nil empty slice — a
// deny-all allowlist, never the nil that means "unrestricted". If parent is
// itself unrestricted (nil), requested becomes the new allowlist as-is.
func intersectOrKeep(parent, requested []string) []string {
	if requested == nil {
		return parent
	}
	if parent == nil {
		return requested
	}
	set := make(map[string]struct{}, len(parent))
	for _, p := range parent {
		set[p] = struct{}{}
	}
	out := make([]string, 0, len(requested))
	for _, r := range requested {
		if _, ok := set[r]; ok {
			out = append(out, r)
		}
	}
	return out
}
