// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides the installer's configuration: where to fetch
// prerequisite installers from, how the runtime environment is named and
// pinned, and the artifact naming table.
//
// Configuration is TOML. Built-in defaults cover the normal case; a config
// file is only needed for mirrored downloads or renamed artifacts.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/faceforge-installer/internal/artifact"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete installer configuration.
type Config struct {
	// Repo describes the downstream application source.
	Repo RepoConfig `toml:"repo"`

	// Env describes the runtime environment to provision.
	Env EnvConfig `toml:"env"`

	// Artifact is the capability-suffix naming table.
	Artifact ArtifactConfig `toml:"artifact"`

	// Downloads holds per-platform prerequisite installer URLs.
	Downloads DownloadsConfig `toml:"downloads"`
}

// RepoConfig describes the downstream application.
type RepoConfig struct {
	// URL is the clone URL of the application source.
	URL string `toml:"url"`

	// SetupEntry is the setup entry point run inside the environment.
	SetupEntry string `toml:"setup_entry"`

	// AppEntry is the entry point the launcher script invokes.
	AppEntry string `toml:"app_entry"`
}

// EnvConfig describes the isolated runtime environment.
type EnvConfig struct {
	// Name of the environment to create.
	Name string `toml:"name"`

	// Python is the runtime version spec the environment is pinned to.
	Python string `toml:"python"`
}

// ArtifactConfig mirrors artifact.Naming in TOML form.
type ArtifactConfig struct {
	Base       string `toml:"base"`
	GpuSuffix  string `toml:"gpu_suffix"`
	AVXSuffix  string `toml:"avx_suffix"`
	SSE4Suffix string `toml:"sse4_suffix"`
	NoneSuffix string `toml:"none_suffix"`
	Extension  string `toml:"extension"`

	// StagingDir overrides the default staging directory (the pkg directory
	// next to the installer executable).
	StagingDir string `toml:"staging_dir"`
}

// Naming converts the TOML table into the selector's naming table.
func (a ArtifactConfig) Naming() artifact.Naming {
	return artifact.Naming{
		Base:       a.Base,
		GpuSuffix:  a.GpuSuffix,
		AVXSuffix:  a.AVXSuffix,
		SSE4Suffix: a.SSE4Suffix,
		NoneSuffix: a.NoneSuffix,
		Extension:  a.Extension,
	}
}

// DownloadsConfig holds per-platform installer URLs.
type DownloadsConfig struct {
	GitWindows string `toml:"git_windows"`
	GitMacOS   string `toml:"git_macos"`
	GitLinux   string `toml:"git_linux"`

	CondaWindows string `toml:"conda_windows"`
	CondaMacOS   string `toml:"conda_macos"`
	CondaLinux   string `toml:"conda_linux"`
}

// GitURL returns the git installer URL for the current platform.
func (d DownloadsConfig) GitURL() string {
	switch runtime.GOOS {
	case "windows":
		return d.GitWindows
	case "darwin":
		return d.GitMacOS
	default:
		return d.GitLinux
	}
}

// CondaURL returns the Miniconda installer URL for the current platform.
func (d DownloadsConfig) CondaURL() string {
	switch runtime.GOOS {
	case "windows":
		return d.CondaWindows
	case "darwin":
		return d.CondaMacOS
	default:
		return d.CondaLinux
	}
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

// Default returns the built-in configuration.
func Default() Config {
	naming := artifact.DefaultNaming()
	return Config{
		Repo: RepoConfig{
			URL:        "https://github.com/jeranaias/faceforge.git",
			SetupEntry: "setup.py",
			AppEntry:   "faceforge.py",
		},
		Env: EnvConfig{
			Name:   "faceforge",
			Python: "3.10",
		},
		Artifact: ArtifactConfig{
			Base:       naming.Base,
			GpuSuffix:  naming.GpuSuffix,
			AVXSuffix:  naming.AVXSuffix,
			SSE4Suffix: naming.SSE4Suffix,
			NoneSuffix: naming.NoneSuffix,
			Extension:  naming.Extension,
		},
		Downloads: DownloadsConfig{
			GitWindows: "https://github.com/git-for-windows/git/releases/download/v2.45.2.windows.1/Git-2.45.2-64-bit.exe",
			GitMacOS:   "https://downloads.faceforge.dev/git/git-2.45.2-macos.pkg",
			GitLinux:   "https://downloads.faceforge.dev/git/git-2.45.2-linux-x86_64.run",

			CondaWindows: "https://repo.anaconda.com/miniconda/Miniconda3-latest-Windows-x86_64.exe",
			CondaMacOS:   "https://repo.anaconda.com/miniconda/Miniconda3-latest-MacOSX-x86_64.sh",
			CondaLinux:   "https://repo.anaconda.com/miniconda/Miniconda3-latest-Linux-x86_64.sh",
		},
	}
}

// Load reads a TOML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
