// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plan merges host probe results with user overrides into the
// immutable installation plan that drives the whole pipeline.
//
// A Plan is built exactly once per run. Every pipeline step receives it
// read-only; no step mutates shared state to communicate decisions.
package plan

import (
	"context"
	"fmt"

	"github.com/jeranaias/faceforge-installer/internal/execx"
	"github.com/jeranaias/faceforge-installer/internal/probe"
)

// =============================================================================
// PLAN
// =============================================================================

// Plan is the immutable decision record produced before any installation
// action is taken. Fields are unexported so a built plan cannot be modified
// by a pipeline step.
type Plan struct {
	installGit   bool
	installConda bool
	condaRoot    string
	targetDir    string
	useGpu       bool
	notes        []string
}

// InstallTool reports whether the named tool must be installed by the
// prerequisites step. Unknown names report false.
func (p *Plan) InstallTool(name string) bool {
	switch name {
	case probe.ToolGit:
		return p.installGit
	case probe.ToolConda:
		return p.installConda
	default:
		return false
	}
}

// CondaRoot returns the environment manager install root the run will use.
func (p *Plan) CondaRoot() string {
	return p.condaRoot
}

// TargetDir returns the directory the downstream application is installed to.
func (p *Plan) TargetDir() string {
	return p.targetDir
}

// UseGpuArtifact reports whether the GPU-accelerated artifact was selected.
func (p *Plan) UseGpuArtifact() bool {
	return p.useGpu
}

// Notes returns diagnostic notes recorded while building the plan, such as a
// rejected custom conda path. Notes are informational, never errors.
func (p *Plan) Notes() []string {
	out := make([]string, len(p.notes))
	copy(out, p.notes)
	return out
}

// =============================================================================
// OVERRIDES
// =============================================================================

// Overrides carries the user's choices collected by the presentation layer.
type Overrides struct {
	// TargetDir is the install directory chosen by the user.
	TargetDir string

	// NoGpu is true if the user declared the machine has no dedicated GPU.
	NoGpu bool

	// CustomCondaPath optionally points at an existing conda install root.
	// Empty means "use whatever was probed or install fresh".
	CustomCondaPath string
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder constructs plans. It owns the validation probe used to vet a
// user-supplied conda path.
type Builder struct {
	runner      execx.Runner
	defaultRoot string
}

// NewBuilder creates a Builder. defaultRoot is where conda will be installed
// when no existing install is found or accepted.
func NewBuilder(runner execx.Runner, defaultRoot string) *Builder {
	return &Builder{runner: runner, defaultRoot: defaultRoot}
}

// ValidateCustomPath runs the version query of the conda binary under the
// given root and reports whether it succeeded. This is the only probe the
// builder performs; it is synchronous and side-effect free.
func (b *Builder) ValidateCustomPath(ctx context.Context, root string) bool {
	if root == "" {
		return false
	}
	_, err := b.runner.Run(ctx, probe.CondaBinary(root), "--version")
	return err == nil
}

// Build merges probe results and user overrides into a Plan.
//
// Invariant: if the custom conda path validates, the plan uses that root and
// does not install conda. If validation fails, the default (or probed) root
// is retained and a diagnostic note is recorded; the failure never escalates.
func (b *Builder) Build(ctx context.Context, flags probe.Flags, ov Overrides) *Plan {
	p := &Plan{
		installGit:   !flags.HasTool(probe.ToolGit),
		installConda: !flags.HasTool(probe.ToolConda),
		condaRoot:    b.defaultRoot,
		targetDir:    ov.TargetDir,
		useGpu:       !ov.NoGpu,
	}

	if info, ok := flags.Tools[probe.ToolConda]; ok && info.Present {
		p.condaRoot = info.Path
	}

	if ov.CustomCondaPath != "" {
		if b.ValidateCustomPath(ctx, ov.CustomCondaPath) {
			p.condaRoot = ov.CustomCondaPath
			p.installConda = false
		} else {
			p.notes = append(p.notes, fmt.Sprintf(
				"custom environment manager path %q failed its version query; using %s",
				ov.CustomCondaPath, p.condaRoot))
		}
	}

	return p
}
