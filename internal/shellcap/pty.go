// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package shellcap

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/creack/pty"
)

// spawnPTY is used instead of plain pipes when the capability was
// constructed with Interactive: true, so that command-line tools invoked
// by agent code that detect an interactive terminal (progress bars,
// colorized output, line-editing prompts) behave the way they would run
// by a human operator, matching the teacher's pty-backed session driver
// (internal/terminal in the teacher repo used creack/pty for its tmux
// panes; here it backs the shell capability's Run instead of a persistent
// terminal window).
func (c *Capability) spawnPTY(command, cwd string) (Result, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = cwd

	f, err := pty.Start(cmd)
	if err != nil {
		return Result{ExitCode: -1, Stderr: err.Error()}, nil
	}
	defer f.Close()

	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		io.Copy(&buf, f)
		close(done)
	}()

	timer := time.AfterFunc(c.timeout, func() {
		cmd.Process.Kill()
	})
	defer timer.Stop()

	waitErr := cmd.Wait()
	<-done

	if timer.Stop() == false && waitErr != nil {
		return Result{ExitCode: -1, Stdout: buf.String(), Stderr: fmt.Sprintf("command timed out after %s", c.timeout)}, nil
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{ExitCode: -1, Stdout: buf.String(), Stderr: waitErr.Error()}, nil
		}
	}
	return Result{ExitCode: exitCode, Stdout: buf.String()}, nil
}
