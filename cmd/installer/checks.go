// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/jeranaias/faceforge-installer/internal/probe"
)

// minGitVersion is the oldest git the clone step is known to work with.
const minGitVersion = "2.20.0"

// minDiskBytes is the space the environment plus artifact realistically need.
const minDiskBytes = 10 << 30 // 10 GB

// CheckResult represents a system check result
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warn", "checking"
	Message string
	Fix     string
}

// =============================================================================
// SYSTEM CHECKS
// =============================================================================

func checkOS() CheckResult {
	return CheckResult{
		Name:    "Operating System",
		Status:  "pass",
		Message: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func checkCPU(flags probe.Flags) CheckResult {
	switch {
	case flags.HasAVX:
		return CheckResult{Name: "CPU Features", Status: "pass", Message: "AVX supported"}
	case flags.HasSSE4:
		return CheckResult{Name: "CPU Features", Status: "pass", Message: "SSE4.1 supported (no AVX)"}
	default:
		return CheckResult{
			Name:    "CPU Features",
			Status:  "warn",
			Message: "No AVX or SSE4.1 support",
			Fix:     "The unoptimized build will be installed; expect slow processing",
		}
	}
}

func checkGit(flags probe.Flags) CheckResult {
	info := flags.Tools[probe.ToolGit]
	if !info.Present {
		return CheckResult{
			Name:    "Git",
			Status:  "warn",
			Message: "Not found",
			Fix:     "Will be downloaded and installed",
		}
	}
	if !probe.MeetsMinVersion(info, minGitVersion) {
		return CheckResult{
			Name:    "Git",
			Status:  "warn",
			Message: fmt.Sprintf("Version %s is older than %s", info.Version, minGitVersion),
			Fix:     "Consider updating git before continuing",
		}
	}
	return CheckResult{Name: "Git", Status: "pass", Message: "Version " + info.Version}
}

func checkConda(flags probe.Flags) CheckResult {
	info := flags.Tools[probe.ToolConda]
	if !info.Present {
		return CheckResult{
			Name:    "Environment Manager",
			Status:  "warn",
			Message: "No conda install found",
			Fix:     "Miniconda will be downloaded and installed",
		}
	}
	return CheckResult{
		Name:    "Environment Manager",
		Status:  "pass",
		Message: fmt.Sprintf("conda %s at %s", info.Version, info.Path),
	}
}

func checkGpu(flags probe.Flags) CheckResult {
	if flags.GpuHint {
		return CheckResult{Name: "GPU", Status: "pass", Message: "Dedicated GPU detected"}
	}
	return CheckResult{
		Name:    "GPU",
		Status:  "warn",
		Message: "No dedicated GPU detected",
		Fix:     "CPU-only mode will be preselected",
	}
}

func checkDisk() CheckResult {
	home, err := os.UserHomeDir()
	if err != nil {
		return CheckResult{Name: "Disk Space", Status: "warn", Message: "Could not determine home directory"}
	}
	free, err := freeDiskSpace(home)
	if err != nil {
		return CheckResult{Name: "Disk Space", Status: "warn", Message: "Could not determine free space"}
	}
	if free < minDiskBytes {
		return CheckResult{
			Name:    "Disk Space",
			Status:  "fail",
			Message: fmt.Sprintf("%.1f GB free, %d GB needed", float64(free)/(1<<30), minDiskBytes>>30),
			Fix:     "Free up disk space before installing",
		}
	}
	return CheckResult{
		Name:    "Disk Space",
		Status:  "pass",
		Message: fmt.Sprintf("%.1f GB free", float64(free)/(1<<30)),
	}
}

// checkNetwork probes the download server with a HEAD request. Offline hosts
// warn rather than fail: nothing needs downloading when every tool and the
// artifact are already present.
func checkNetwork(url string) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return CheckResult{Name: "Network", Status: "warn", Message: "Could not build connectivity probe"}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return CheckResult{
			Name:    "Network",
			Status:  "warn",
			Message: "Download server unreachable",
			Fix:     "Downloads of missing tools will fail while offline",
		}
	}
	resp.Body.Close()
	return CheckResult{Name: "Network", Status: "pass", Message: "Download server reachable"}
}
