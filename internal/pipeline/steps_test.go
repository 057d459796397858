// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/faceforge-installer/internal/config"
	"github.com/jeranaias/faceforge-installer/internal/download"
	"github.com/jeranaias/faceforge-installer/internal/execx"
	"github.com/jeranaias/faceforge-installer/internal/plan"
	"github.com/jeranaias/faceforge-installer/internal/probe"
)

// recordingRunner accepts every command and records it.
type recordingRunner struct {
	calls [][]string
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) (execx.Result, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return execx.Result{}, nil
}

func (r *recordingRunner) joined() []string {
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}

func installerServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func depsFor(t *testing.T, runner execx.Runner, flags probe.Flags, srvURL string) Deps {
	t.Helper()
	cfg := config.Default()
	if srvURL != "" {
		cfg.Downloads.GitLinux = srvURL + "/git-installer.run"
		cfg.Downloads.GitMacOS = srvURL + "/git-installer.pkg"
		cfg.Downloads.GitWindows = srvURL + "/git-installer.exe"
		cfg.Downloads.CondaLinux = srvURL + "/Miniconda3.sh"
		cfg.Downloads.CondaMacOS = srvURL + "/Miniconda3-osx.sh"
		cfg.Downloads.CondaWindows = srvURL + "/Miniconda3.exe"
	}
	return Deps{
		Config:     cfg,
		Flags:      flags,
		Runner:     runner,
		Download:   download.New(),
		StagingDir: t.TempDir(),
	}
}

func buildPlan(t *testing.T, flags probe.Flags, ov plan.Overrides) *plan.Plan {
	t.Helper()
	return plan.NewBuilder(failingRunner{}, "/home/u/miniconda3").
		Build(context.Background(), flags, ov)
}

// =============================================================================
// PREREQUISITES STEP TESTS
// =============================================================================

func TestInstallPrerequisites_OnlyMissingToolsAreInstalled(t *testing.T) {
	// Git missing, conda detected at its default root: only git gets fetched.
	flags := probe.Flags{Tools: map[string]probe.ToolInfo{
		probe.ToolConda: {Present: true, Path: "/home/u/miniconda3"},
	}}
	runner := &recordingRunner{}
	d := depsFor(t, runner, flags, installerServer(t).URL)
	p := buildPlan(t, flags, plan.Overrides{TargetDir: t.TempDir()})

	if !p.InstallTool(probe.ToolGit) || p.InstallTool(probe.ToolConda) {
		t.Fatalf("plan decisions wrong: git=%v conda=%v",
			p.InstallTool(probe.ToolGit), p.InstallTool(probe.ToolConda))
	}

	res := d.installPrerequisites(context.Background(), p)
	if res.Failed() {
		t.Fatalf("step failed: %+v", res)
	}

	calls := runner.joined()
	if len(calls) != 1 {
		t.Fatalf("calls = %v, want exactly one installer launch", calls)
	}
	if !strings.Contains(calls[0], "git-installer") {
		t.Errorf("launched %q, want the git installer", calls[0])
	}

	// The downloaded payload must land in the staging directory.
	entries, err := os.ReadDir(d.StagingDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("staging dir = %v, err %v", entries, err)
	}
}

func TestInstallPrerequisites_NothingMissingIsANoOp(t *testing.T) {
	flags := probe.Flags{Tools: map[string]probe.ToolInfo{
		probe.ToolGit:   {Present: true},
		probe.ToolConda: {Present: true, Path: "/opt/conda"},
	}}
	runner := &recordingRunner{}
	d := depsFor(t, runner, flags, "")
	p := buildPlan(t, flags, plan.Overrides{})

	res := d.installPrerequisites(context.Background(), p)
	if res.Failed() {
		t.Fatalf("step failed: %+v", res)
	}
	if len(runner.calls) != 0 {
		t.Errorf("no subprocess should run when nothing is missing: %v", runner.calls)
	}
}

func TestInstallPrerequisites_DownloadFailureIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	flags := probe.Flags{Tools: map[string]probe.ToolInfo{}}
	runner := &recordingRunner{}
	d := depsFor(t, runner, flags, srv.URL)
	p := buildPlan(t, flags, plan.Overrides{})

	res := d.installPrerequisites(context.Background(), p)
	if !res.Failed() {
		t.Fatal("download failure must abort the step")
	}
	if len(runner.calls) != 0 {
		t.Errorf("installer must not launch after a failed download: %v", runner.calls)
	}
}

// =============================================================================
// CLONE STEP TESTS
// =============================================================================

func TestCloneSource_UsesFreshlyInstalledGit(t *testing.T) {
	// The process PATH is fixed at startup, so a clone right after a mid-run
	// git install must use the installed binary's absolute path.
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	binDir := filepath.Join(home, ".local", "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "git"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	flags := probe.Flags{Tools: map[string]probe.ToolInfo{
		probe.ToolConda: {Present: true, Path: "/opt/conda"},
	}}
	runner := &recordingRunner{}
	d := depsFor(t, runner, flags, installerServer(t).URL)
	p := buildPlan(t, flags, plan.Overrides{TargetDir: filepath.Join(home, "faceforge")})

	if res := d.installPrerequisites(context.Background(), p); res.Failed() {
		t.Fatalf("prerequisites failed: %+v", res)
	}
	if res := d.cloneSource(context.Background(), p); res.Failed() {
		t.Fatalf("clone failed: %+v", res)
	}

	clone := runner.calls[len(runner.calls)-1]
	if !filepath.IsAbs(clone[0]) {
		t.Errorf("clone invoked %q, want an absolute path to the installed git", clone[0])
	}
	if clone[1] != "clone" {
		t.Errorf("unexpected git invocation: %v", clone)
	}
}

func TestCloneSource_InvokesGitClone(t *testing.T) {
	flags := probe.Flags{Tools: map[string]probe.ToolInfo{}}
	runner := &recordingRunner{}
	d := depsFor(t, runner, flags, "")
	target := t.TempDir()
	p := buildPlan(t, flags, plan.Overrides{TargetDir: target})

	res := d.cloneSource(context.Background(), p)
	if res.Failed() {
		t.Fatalf("step failed: %+v", res)
	}

	call := runner.joined()[0]
	if !strings.Contains(call, "git clone "+d.Config.Repo.URL+" "+target) {
		t.Errorf("unexpected clone invocation: %s", call)
	}
}

// =============================================================================
// ARTIFACT STEP TESTS
// =============================================================================

func TestInstallArtifact_StagesAndInstallsMatchedWheel(t *testing.T) {
	flags := probe.Flags{
		HasAVX: true,
		Tools: map[string]probe.ToolInfo{
			probe.ToolConda: {Present: true, Path: "/opt/conda"},
		},
	}
	runner := &recordingRunner{}
	d := depsFor(t, runner, flags, "")
	p := buildPlan(t, flags, plan.Overrides{TargetDir: t.TempDir()})

	naming := d.Config.Artifact.Naming()
	if err := os.WriteFile(filepath.Join(d.StagingDir, naming.GenericName()), []byte("wheel"), 0644); err != nil {
		t.Fatal(err)
	}

	res := d.installArtifact(context.Background(), p)
	if res.Failed() {
		t.Fatalf("step failed: %+v", res)
	}

	// GPU plan + AVX host selects the gpu_avx wheel.
	want := filepath.Join(d.StagingDir, "dlib_gpu_avx.whl")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("staged wheel missing: %v", err)
	}
	if !strings.Contains(runner.joined()[0], "pip install "+want) {
		t.Errorf("pip should install the staged wheel: %s", runner.joined()[0])
	}
}

// =============================================================================
// FULL PIPELINE TEST
// =============================================================================

func TestDefaultSteps_EndToEndAgainstFakes(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	flags := probe.Flags{
		HasAVX: true,
		Tools: map[string]probe.ToolInfo{
			probe.ToolGit:   {Present: true},
			probe.ToolConda: {Present: true, Path: filepath.Join(home, "miniconda3")},
		},
	}
	runner := &recordingRunner{}
	d := depsFor(t, runner, flags, "")
	p := buildPlan(t, flags, plan.Overrides{TargetDir: filepath.Join(home, "faceforge")})

	naming := d.Config.Artifact.Naming()
	if err := os.WriteFile(filepath.Join(d.StagingDir, naming.GenericName()), []byte("wheel"), 0644); err != nil {
		t.Fatal(err)
	}

	res := New(DefaultSteps(d)).Run(context.Background(), p)
	if res.Failed() {
		t.Fatalf("pipeline failed: %+v", res)
	}

	// Launcher artifacts exist.
	if _, err := os.Stat(filepath.Join(home, "faceforge", "faceforge.sh")); err != nil {
		if _, werr := os.Stat(filepath.Join(home, "faceforge", "faceforge.bat")); werr != nil {
			t.Errorf("launcher script missing: %v", err)
		}
	}

	// Environment was created for the configured name and python pin.
	foundCreate := false
	for _, call := range runner.joined() {
		if strings.Contains(call, "create -n faceforge python=3.10") {
			foundCreate = true
		}
	}
	if !foundCreate {
		t.Errorf("environment creation not observed in %v", runner.joined())
	}
}
