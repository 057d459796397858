// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package probe inspects the host for the tooling and CPU capabilities the
// installer cares about.
//
// Probing is strictly read-only: the only side effects are short-lived
// diagnostic subprocesses ("git --version", "conda --version", "nvidia-smi").
// A probe never fails the run; an undetected tool is simply reported absent.
package probe

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/klauspost/cpuid/v2"

	"github.com/jeranaias/faceforge-installer/internal/execx"
)

// probeTimeout bounds each diagnostic subprocess. Install steps are never
// subject to this; only detection is.
// CANCELLATION: Context enables timeout and cancellation
const probeTimeout = 10 * time.Second

// Well-known tool names used as keys into Flags.Tools.
const (
	ToolGit   = "git"
	ToolConda = "conda"
)

// =============================================================================
// CAPABILITY FLAGS
// =============================================================================

// ToolInfo describes one detected (or undetected) external tool.
type ToolInfo struct {
	// Present is true if the tool answered its version query.
	Present bool

	// Version is the parsed version string (e.g. "2.45.2"), empty if absent.
	Version string

	// Path is where the tool was found. For conda this is the install root,
	// not the binary.
	Path string
}

// Flags is the immutable result of a host probe.
type Flags struct {
	// Tools maps tool name to detection result.
	Tools map[string]ToolInfo

	// HasAVX is true if the CPU supports AVX instructions.
	HasAVX bool

	// HasSSE4 is true if the CPU supports SSE4.1 instructions.
	HasSSE4 bool

	// GpuHint is true if a dedicated GPU was observed. This only preselects
	// the wizard default; the user's choice is what ends up in the plan.
	GpuHint bool
}

// HasTool returns true if the named tool was detected.
func (f Flags) HasTool(name string) bool {
	return f.Tools[name].Present
}

// ToolVersion returns the detected version of the named tool.
func (f Flags) ToolVersion(name string) (string, bool) {
	info, ok := f.Tools[name]
	if !ok || !info.Present {
		return "", false
	}
	return info.Version, true
}

// =============================================================================
// PROBER
// =============================================================================

// Prober performs host inspection through an execx.Runner.
type Prober struct {
	runner     execx.Runner
	condaRoots []string
}

// New creates a Prober that checks the well-known conda install locations.
func New(runner execx.Runner) *Prober {
	return &Prober{
		runner:     runner,
		condaRoots: DefaultCondaRoots(),
	}
}

// NewWithRoots creates a Prober with an explicit conda search order.
func NewWithRoots(runner execx.Runner, roots []string) *Prober {
	return &Prober{runner: runner, condaRoots: roots}
}

// Probe inspects the host and returns capability flags. It never returns an
// error: anything that cannot be detected is reported as absent. Each probe
// runs under its own timeout so one hung tool cannot starve the others.
func (p *Prober) Probe(ctx context.Context) Flags {
	flags := Flags{
		Tools:   make(map[string]ToolInfo, 2),
		HasAVX:  cpuid.CPU.Supports(cpuid.AVX),
		HasSSE4: cpuid.CPU.Supports(cpuid.SSE4),
	}

	flags.Tools[ToolGit] = p.probeGit(ctx)
	flags.Tools[ToolConda] = p.probeConda(ctx)
	flags.GpuHint = p.probeGpu(ctx)

	return flags
}

// probeGit detects a git client on PATH via its version query.
func (p *Prober) probeGit(ctx context.Context) ToolInfo {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	path, err := exec.LookPath("git")
	if err != nil {
		return ToolInfo{}
	}

	res, err := p.runner.Run(ctx, path, "--version")
	if err != nil {
		return ToolInfo{}
	}

	return ToolInfo{
		Present: true,
		Version: ParseVersionOutput(res.Stdout),
		Path:    path,
	}
}

// probeConda checks the well-known install roots in order. The first root
// whose conda binary answers its version query wins and is recorded as the
// tool path.
func (p *Prober) probeConda(ctx context.Context) ToolInfo {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	for _, root := range p.condaRoots {
		res, err := p.runner.Run(ctx, CondaBinary(root), "--version")
		if err != nil {
			continue
		}
		return ToolInfo{
			Present: true,
			Version: ParseVersionOutput(res.Stdout),
			Path:    root,
		}
	}
	return ToolInfo{}
}

// probeGpu looks for a dedicated GPU. NVIDIA first (most common for this
// workload), then AMD. Absence of both means CPU-only.
func (p *Prober) probeGpu(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := p.runner.Run(ctx, "nvidia-smi", "-L"); err == nil {
		return true
	}
	if runtime.GOOS == "linux" {
		if _, err := p.runner.Run(ctx, "rocm-smi", "--showid"); err == nil {
			return true
		}
	}
	return false
}

// =============================================================================
// VERSION HELPERS
// =============================================================================

// ParseVersionOutput extracts the version number from a tool's version query
// output, e.g. "git version 2.45.2" -> "2.45.2", "conda 24.1.2" -> "24.1.2".
func ParseVersionOutput(out string) string {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// MeetsMinVersion reports whether the detected tool version is at least min.
// Unparsable versions report false so callers can surface a warning.
func MeetsMinVersion(info ToolInfo, min string) bool {
	if !info.Present {
		return false
	}
	have, err := goversion.NewVersion(info.Version)
	if err != nil {
		return false
	}
	want, err := goversion.NewVersion(min)
	if err != nil {
		return false
	}
	return have.GreaterThanOrEqual(want)
}

// =============================================================================
// CONDA LOCATIONS
// =============================================================================

// CondaBinary returns the conda executable path under an install root.
func CondaBinary(root string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(root, "Scripts", "conda.exe")
	}
	return filepath.Join(root, "bin", "conda")
}

// DefaultCondaRoots returns the well-known install roots in detection order:
// miniconda first, then anaconda.
func DefaultCondaRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, "miniconda3"),
		filepath.Join(home, "anaconda3"),
	}
}
