// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"context"
	"strings"
	"testing"

	"github.com/jeranaias/faceforge-installer/internal/execx"
	"github.com/jeranaias/faceforge-installer/internal/probe"
)

// validatingRunner succeeds only for binaries under the allowed root.
type validatingRunner struct {
	allowedRoot string
}

func (r *validatingRunner) Run(ctx context.Context, name string, args ...string) (execx.Result, error) {
	if r.allowedRoot != "" && strings.HasPrefix(name, r.allowedRoot) {
		return execx.Result{Stdout: "conda 24.1.2\n"}, nil
	}
	res := execx.Result{ExitCode: 1}
	return res, &execx.CommandError{Name: name, Args: args, Result: res}
}

func flagsWith(git, conda bool, condaRoot string) probe.Flags {
	f := probe.Flags{Tools: make(map[string]probe.ToolInfo)}
	if git {
		f.Tools[probe.ToolGit] = probe.ToolInfo{Present: true, Version: "2.45.2", Path: "/usr/bin/git"}
	}
	if conda {
		f.Tools[probe.ToolConda] = probe.ToolInfo{Present: true, Version: "24.1.2", Path: condaRoot}
	}
	return f
}

// =============================================================================
// BUILD TESTS
// =============================================================================

func TestBuild_MissingToolsAreScheduledForInstall(t *testing.T) {
	b := NewBuilder(&validatingRunner{}, "/home/u/miniconda3")

	p := b.Build(context.Background(), flagsWith(false, false, ""), Overrides{TargetDir: "/home/u/faceforge"})

	if !p.InstallTool(probe.ToolGit) {
		t.Error("git should be scheduled for install")
	}
	if !p.InstallTool(probe.ToolConda) {
		t.Error("conda should be scheduled for install")
	}
	if p.CondaRoot() != "/home/u/miniconda3" {
		t.Errorf("CondaRoot = %q, want default root", p.CondaRoot())
	}
}

func TestBuild_ProbedCondaClearsInstall(t *testing.T) {
	b := NewBuilder(&validatingRunner{}, "/home/u/miniconda3")

	p := b.Build(context.Background(), flagsWith(false, true, "/opt/anaconda3"), Overrides{})

	if !p.InstallTool(probe.ToolGit) {
		t.Error("git should still be scheduled for install")
	}
	if p.InstallTool(probe.ToolConda) {
		t.Error("conda install should be cleared when probed")
	}
	if p.CondaRoot() != "/opt/anaconda3" {
		t.Errorf("CondaRoot = %q, want probed root", p.CondaRoot())
	}
}

func TestBuild_ValidCustomPathOverridesProbe(t *testing.T) {
	b := NewBuilder(&validatingRunner{allowedRoot: "/custom/conda"}, "/home/u/miniconda3")

	p := b.Build(context.Background(), flagsWith(true, false, ""), Overrides{
		CustomCondaPath: "/custom/conda",
	})

	if p.InstallTool(probe.ToolConda) {
		t.Error("valid custom path must clear the conda install requirement")
	}
	if p.CondaRoot() != "/custom/conda" {
		t.Errorf("CondaRoot = %q, want custom path", p.CondaRoot())
	}
	if len(p.Notes()) != 0 {
		t.Errorf("Notes = %v, want none for a valid path", p.Notes())
	}
}

func TestBuild_InvalidCustomPathFallsBackToDefault(t *testing.T) {
	b := NewBuilder(&validatingRunner{}, "/home/u/miniconda3")

	p := b.Build(context.Background(), flagsWith(true, false, ""), Overrides{
		CustomCondaPath: "/bogus/conda",
	})

	if !p.InstallTool(probe.ToolConda) {
		t.Error("invalid custom path must keep the conda install requirement")
	}
	if p.CondaRoot() != "/home/u/miniconda3" {
		t.Errorf("CondaRoot = %q, want default root", p.CondaRoot())
	}
	if len(p.Notes()) != 1 {
		t.Fatalf("Notes = %v, want one diagnostic note", p.Notes())
	}
	if !strings.Contains(p.Notes()[0], "/bogus/conda") {
		t.Errorf("note %q should name the rejected path", p.Notes()[0])
	}
}

func TestBuild_NoGpuChoiceFoldsIntoPlan(t *testing.T) {
	b := NewBuilder(&validatingRunner{}, "/home/u/miniconda3")

	gpu := b.Build(context.Background(), flagsWith(true, true, "/opt/conda"), Overrides{})
	if !gpu.UseGpuArtifact() {
		t.Error("UseGpuArtifact should default to true")
	}

	cpu := b.Build(context.Background(), flagsWith(true, true, "/opt/conda"), Overrides{NoGpu: true})
	if cpu.UseGpuArtifact() {
		t.Error("NoGpu override must disable the GPU artifact")
	}
}

func TestNotes_ReturnsCopy(t *testing.T) {
	b := NewBuilder(&validatingRunner{}, "/d")
	p := b.Build(context.Background(), flagsWith(true, true, "/d"), Overrides{CustomCondaPath: "/bad"})

	notes := p.Notes()
	if len(notes) == 0 {
		t.Fatal("expected a note")
	}
	notes[0] = "mutated"
	if p.Notes()[0] == "mutated" {
		t.Error("Notes must return a copy, not the backing slice")
	}
}
