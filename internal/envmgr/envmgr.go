// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package envmgr drives the conda environment manager through its command
// line: creating the isolated runtime environment, installing the staged
// wheel into it, and running the downstream application's own setup.
package envmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeranaias/faceforge-installer/internal/execx"
	"github.com/jeranaias/faceforge-installer/internal/probe"
)

// =============================================================================
// MANAGER
// =============================================================================

// Manager wraps one conda install root. All invocations are synchronous and
// their exit codes are checked; a non-zero exit surfaces as an error.
type Manager struct {
	runner execx.Runner
	root   string
}

// New creates a Manager for the conda install under root.
func New(runner execx.Runner, root string) *Manager {
	return &Manager{runner: runner, root: root}
}

// Root returns the conda install root this manager operates on.
func (m *Manager) Root() string {
	return m.root
}

// EnvExists reports whether a named environment exists under the root.
func (m *Manager) EnvExists(envName string) bool {
	_, err := os.Stat(filepath.Join(m.root, "envs", envName))
	return err == nil
}

// =============================================================================
// ENVIRONMENT LIFECYCLE
// =============================================================================

// Ensure creates the named environment pinned to pythonSpec, removing any
// existing environment with the same name first. Removal and creation are
// both synchronous external invocations; a failed removal aborts before
// creation is attempted.
func (m *Manager) Ensure(ctx context.Context, envName, pythonSpec string) error {
	if m.EnvExists(envName) {
		if err := m.remove(ctx, envName); err != nil {
			return fmt.Errorf("remove existing environment %q: %w", envName, err)
		}
	}
	if err := m.create(ctx, envName, pythonSpec); err != nil {
		return fmt.Errorf("create environment %q: %w", envName, err)
	}
	return nil
}

func (m *Manager) remove(ctx context.Context, envName string) error {
	_, err := m.runner.Run(ctx, probe.CondaBinary(m.root),
		"env", "remove", "-n", envName, "-y")
	return err
}

func (m *Manager) create(ctx context.Context, envName, pythonSpec string) error {
	_, err := m.runner.Run(ctx, probe.CondaBinary(m.root),
		"create", "-n", envName, "python="+pythonSpec, "-y")
	return err
}

// =============================================================================
// IN-ENVIRONMENT OPERATIONS
// =============================================================================

// InstallPackage installs a wheel file into the named environment via pip.
func (m *Manager) InstallPackage(ctx context.Context, envName, wheelPath string) error {
	_, err := m.runner.Run(ctx, probe.CondaBinary(m.root),
		"run", "-n", envName, "python", "-m", "pip", "install", wheelPath)
	if err != nil {
		return fmt.Errorf("install %s into %q: %w", filepath.Base(wheelPath), envName, err)
	}
	return nil
}

// RunSetup invokes the downstream application's setup entry point inside the
// environment, from the cloned source directory, passing the GPU flag the
// plan decided on.
func (m *Manager) RunSetup(ctx context.Context, envName, sourceDir, entryPoint string, gpu bool) error {
	args := []string{"run", "--cwd", sourceDir, "-n", envName, "python", entryPoint, "--installer"}
	if gpu {
		args = append(args, "--gpu")
	}
	if _, err := m.runner.Run(ctx, probe.CondaBinary(m.root), args...); err != nil {
		return fmt.Errorf("run %s in %q: %w", entryPoint, envName, err)
	}
	return nil
}
