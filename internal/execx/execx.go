// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package execx wraps external command invocation with captured output and
// exit codes. Every interaction with git, conda and the downloaded installers
// goes through this package so the rest of the installer only ever sees a
// Result and an error.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// =============================================================================
// RESULT
// =============================================================================

// Result holds the outcome of a single external command invocation.
type Result struct {
	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string

	// ExitCode is the process exit code. -1 means the process never started.
	ExitCode int
}

// Ok returns true if the command exited with code zero.
func (r Result) Ok() bool {
	return r.ExitCode == 0
}

// =============================================================================
// COMMAND ERROR
// =============================================================================

// CommandError describes a failed external command, carrying enough context
// (arguments, captured output, exit code) to surface a useful diagnostic.
type CommandError struct {
	// Name is the command that was invoked.
	Name string

	// Args are the arguments it was invoked with.
	Args []string

	// Result is the captured outcome.
	Result Result

	// Err is the underlying error when the process could not be started
	// (e.g. binary not found). Nil for plain non-zero exits.
	Err error
}

// Error returns a human-readable description of the failure.
func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	msg := strings.TrimSpace(e.Result.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Result.Stdout)
	}
	if msg == "" {
		return fmt.Sprintf("%s exited with code %d", e.Name, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Name, e.Result.ExitCode, msg)
}

// Unwrap returns the underlying start error, if any.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCode extracts a process exit code from an error. A nil error maps to
// zero; a CommandError yields the recorded code; anything else maps to -1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Result.ExitCode
	}
	return -1
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes external commands. The single-method interface exists so
// callers can substitute a recording fake in tests instead of spawning real
// tools.
type Runner interface {
	// Run executes name with args, blocking until the process exits.
	// The returned error is non-nil exactly when the exit code is non-zero
	// (or the process could not be started); it is always a *CommandError.
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

type execRunner struct{}

// New returns a Runner backed by os/exec.
func New() Runner {
	return execRunner{}
}

// Run executes the command synchronously with captured stdout/stderr.
func (execRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &CommandError{Name: name, Args: args, Result: res}
	}

	// Process never started (binary missing, permission denied, ...).
	res.ExitCode = -1
	return res, &CommandError{Name: name, Args: args, Result: res, Err: err}
}
