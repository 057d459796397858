// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jeranaias/faceforge-installer/internal/artifact"
	"github.com/jeranaias/faceforge-installer/internal/config"
	"github.com/jeranaias/faceforge-installer/internal/download"
	"github.com/jeranaias/faceforge-installer/internal/envmgr"
	"github.com/jeranaias/faceforge-installer/internal/execx"
	"github.com/jeranaias/faceforge-installer/internal/launcher"
	"github.com/jeranaias/faceforge-installer/internal/plan"
	"github.com/jeranaias/faceforge-installer/internal/probe"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Deps bundles the collaborators the standard pipeline steps need. Flags are
// the probe results the plan was built from; the artifact selector consumes
// them alongside the plan.
type Deps struct {
	Config     config.Config
	Flags      probe.Flags
	Runner     execx.Runner
	Download   *download.Client
	StagingDir string

	// OnDownload receives transfer progress for the prerequisites step.
	// May be nil.
	OnDownload download.ProgressFunc

	// gitBinary is recorded by the prerequisites step when it installs git.
	// The process environment predates a mid-run install, so later steps
	// cannot rely on PATH to find the fresh binary. Empty means git was
	// already present and PATH resolution is fine.
	gitBinary string
}

// DefaultStagingDir returns the pkg directory next to the installer
// executable, where the generic artifact is shipped and downloads land.
func DefaultStagingDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "pkg"
	}
	return filepath.Join(filepath.Dir(exe), "pkg")
}

// DefaultSteps returns the fixed installation pipeline, in execution order.
// An empty StagingDir falls back to the directory next to the executable; a
// configured artifact staging_dir overrides it.
func DefaultSteps(d Deps) []Step {
	if d.StagingDir == "" {
		d.StagingDir = d.Config.Artifact.StagingDir
	}
	if d.StagingDir == "" {
		d.StagingDir = DefaultStagingDir()
	}
	// The steps share one Deps instance so the prerequisites step can hand
	// its resolved git path to the clone step.
	dd := &d
	return []Step{
		{Name: "InstallPrerequisites", Run: dd.installPrerequisites},
		{Name: "CloneSource", Run: dd.cloneSource},
		{Name: "ProvisionEnvironment", Run: dd.provisionEnvironment},
		{Name: "InstallArtifact", Run: dd.installArtifact},
		{Name: "RunSetup", Run: dd.runSetup},
		{Name: "CreateLauncher", Run: dd.createLauncher},
	}
}

// =============================================================================
// STEP 1: INSTALL PREREQUISITES
// =============================================================================

// installPrerequisites downloads and silently installs the tools the plan
// marked missing. Tools already on the host are left untouched.
func (d *Deps) installPrerequisites(ctx context.Context, p *plan.Plan) StepResult {
	var installed []string

	if p.InstallTool(probe.ToolGit) {
		path, err := d.Download.Fetch(ctx, d.Config.Downloads.GitURL(), d.StagingDir, d.OnDownload)
		if err != nil {
			return failure(fmt.Errorf("download git installer: %w", err))
		}
		if err := d.runInstaller(ctx, path, gitInstallArgs()); err != nil {
			return failure(fmt.Errorf("install git: %w", err))
		}
		d.gitBinary = installedGitBinary()
		installed = append(installed, "git")
	}

	if p.InstallTool(probe.ToolConda) {
		path, err := d.Download.Fetch(ctx, d.Config.Downloads.CondaURL(), d.StagingDir, d.OnDownload)
		if err != nil {
			return failure(fmt.Errorf("download environment manager installer: %w", err))
		}
		if err := d.runInstaller(ctx, path, condaInstallArgs(p.CondaRoot())); err != nil {
			return failure(fmt.Errorf("install environment manager: %w", err))
		}
		installed = append(installed, "conda")
	}

	if len(installed) == 0 {
		return success("all prerequisites already present")
	}
	return success("installed %s", strings.Join(installed, ", "))
}

// runInstaller launches a downloaded installer and waits for it. Windows
// installers are self-executing; elsewhere they are shell payloads.
func (d *Deps) runInstaller(ctx context.Context, path string, args []string) error {
	if runtime.GOOS == "windows" {
		_, err := d.Runner.Run(ctx, path, args...)
		return err
	}
	_, err := d.Runner.Run(ctx, "sh", append([]string{path}, args...)...)
	return err
}

func gitInstallArgs() []string {
	if runtime.GOOS == "windows" {
		return []string{"/VERYSILENT", "/NORESTART"}
	}
	home, _ := os.UserHomeDir()
	return []string{"--prefix", filepath.Join(home, ".local")}
}

func condaInstallArgs(root string) []string {
	if runtime.GOOS == "windows" {
		// /D must be last and unquoted per the Miniconda installer.
		return []string{"/S", "/InstallationType=JustMe", "/D=" + root}
	}
	return []string{"-b", "-p", root}
}

// installedGitBinary locates the git binary a just-finished install put on
// the host. PATH is tried first in case the install landed in an already
// listed directory, then the silent installers' known destinations.
func installedGitBinary() string {
	if path, err := exec.LookPath("git"); err == nil {
		return path
	}
	if runtime.GOOS == "windows" {
		for _, path := range []string{
			`C:\Program Files\Git\cmd\git.exe`,
			`C:\Program Files (x86)\Git\cmd\git.exe`,
		} {
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		return "git"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "git"
	}
	path := filepath.Join(home, ".local", "bin", "git")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return "git"
}

// =============================================================================
// STEP 2: CLONE SOURCE
// =============================================================================

func (d *Deps) cloneSource(ctx context.Context, p *plan.Plan) StepResult {
	git := d.gitBinary
	if git == "" {
		git = "git"
	}
	if _, err := d.Runner.Run(ctx, git, "clone", d.Config.Repo.URL, p.TargetDir()); err != nil {
		return failure(fmt.Errorf("clone %s: %w", d.Config.Repo.URL, err))
	}
	return success("cloned %s into %s", d.Config.Repo.URL, p.TargetDir())
}

// =============================================================================
// STEP 3: PROVISION ENVIRONMENT
// =============================================================================

func (d *Deps) provisionEnvironment(ctx context.Context, p *plan.Plan) StepResult {
	m := envmgr.New(d.Runner, p.CondaRoot())
	if err := m.Ensure(ctx, d.Config.Env.Name, d.Config.Env.Python); err != nil {
		return failure(err)
	}
	return success("environment %q ready (python %s)", d.Config.Env.Name, d.Config.Env.Python)
}

// =============================================================================
// STEP 4: INSTALL ARTIFACT
// =============================================================================

func (d *Deps) installArtifact(ctx context.Context, p *plan.Plan) StepResult {
	naming := d.Config.Artifact.Naming()
	name := naming.Select(d.Flags, p)

	wheelPath, err := artifact.Stage(d.StagingDir, naming.GenericName(), name)
	if err != nil {
		return failure(err)
	}

	m := envmgr.New(d.Runner, p.CondaRoot())
	if err := m.InstallPackage(ctx, d.Config.Env.Name, wheelPath); err != nil {
		return failure(err)
	}
	return success("installed %s", name)
}

// =============================================================================
// STEP 5: RUN SETUP
// =============================================================================

func (d *Deps) runSetup(ctx context.Context, p *plan.Plan) StepResult {
	m := envmgr.New(d.Runner, p.CondaRoot())
	if err := m.RunSetup(ctx, d.Config.Env.Name, p.TargetDir(), d.Config.Repo.SetupEntry, p.UseGpuArtifact()); err != nil {
		return failure(err)
	}
	mode := "CPU"
	if p.UseGpuArtifact() {
		mode = "GPU"
	}
	return success("application setup finished (%s mode)", mode)
}

// =============================================================================
// STEP 6: CREATE LAUNCHER
// =============================================================================

func (d *Deps) createLauncher(ctx context.Context, p *plan.Plan) StepResult {
	script, err := launcher.WriteScript(p, d.Config.Env.Name, d.Config.Repo.AppEntry)
	if err != nil {
		return failure(err)
	}
	shortcut, err := launcher.WriteDesktopShortcut(script)
	if err != nil {
		return failure(err)
	}
	return success("launcher at %s, shortcut at %s", script, shortcut)
}
