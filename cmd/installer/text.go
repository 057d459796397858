// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/muesli/termenv"
	"github.com/peterh/liner"

	"github.com/jeranaias/faceforge-installer/internal/config"
	"github.com/jeranaias/faceforge-installer/internal/download"
	"github.com/jeranaias/faceforge-installer/internal/execx"
	"github.com/jeranaias/faceforge-installer/internal/journal"
	"github.com/jeranaias/faceforge-installer/internal/launcher"
	"github.com/jeranaias/faceforge-installer/internal/pipeline"
	"github.com/jeranaias/faceforge-installer/internal/plan"
	"github.com/jeranaias/faceforge-installer/internal/probe"
)

// =============================================================================
// TEXT MODE INSTALLER (Copy/Paste Friendly)
// =============================================================================

// textOutput colors status tags when the terminal supports it.
var textOutput = termenv.NewOutput(os.Stdout)

func tag(kind string) string {
	switch kind {
	case "ok":
		return textOutput.String("[OK]").Foreground(textOutput.Color("2")).String()
	case "warn":
		return textOutput.String("[!!]").Foreground(textOutput.Color("3")).String()
	case "fail":
		return textOutput.String("[FAIL]").Foreground(textOutput.Color("1")).String()
	}
	return "[??]"
}

func printCheck(c CheckResult) {
	status := map[string]string{"pass": "ok", "warn": "warn", "fail": "fail"}[c.Status]
	fmt.Printf("  %s %s: %s\n", tag(status), c.Name, c.Message)
	if c.Fix != "" {
		fmt.Printf("       -> %s\n", c.Fix)
	}
}

// runTextInstaller drives the whole pipeline from plain prompts. Returns the
// process exit code.
func runTextInstaller(cfg config.Config) int {
	fmt.Println()
	fmt.Println("================================================================================")
	fmt.Println("                            FACEFORGE INSTALLER")
	fmt.Println("                 Deep learning face swapping, set up in one pass")
	fmt.Println("================================================================================")
	fmt.Println()

	fmt.Println("This installer will:")
	fmt.Println("  [1] Check your system and CPU capabilities")
	fmt.Println("  [2] Install git and Miniconda if they are missing")
	fmt.Println("  [3] Fetch the faceforge source")
	fmt.Println("  [4] Create an isolated Python environment")
	fmt.Println("  [5] Install the build matched to your hardware")
	fmt.Println("  [6] Put a launcher on your desktop")
	fmt.Println()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if input, err := line.Prompt("Press Enter to continue (or 'q' to quit): "); err != nil || strings.TrimSpace(input) == "q" {
		fmt.Println("Installation cancelled.")
		return 0
	}

	fmt.Println()
	fmt.Println("--------------------------------------------------------------------------------")
	fmt.Println("                                 SYSTEM CHECK")
	fmt.Println("--------------------------------------------------------------------------------")
	fmt.Println()

	flags := probe.New(execx.New()).Probe(context.Background())

	checks := []CheckResult{
		checkOS(),
		checkCPU(flags),
		checkGpu(flags),
		checkGit(flags),
		checkConda(flags),
		checkDisk(),
		checkNetwork(cfg.Downloads.CondaURL()),
	}
	for _, c := range checks {
		printCheck(c)
	}
	fmt.Println()

	for _, c := range checks {
		if c.Status == "fail" {
			fmt.Println("A required check failed. Fix the issue above and re-run the installer.")
			return 1
		}
	}

	// Gather choices.
	homeDir, _ := os.UserHomeDir()
	defaultTarget := filepath.Join(homeDir, "faceforge")

	target, err := line.PromptWithSuggestion("Install directory: ", defaultTarget, -1)
	if err != nil {
		fmt.Println("\nInstallation cancelled.")
		return 0
	}
	target = strings.TrimSpace(target)
	if target == "" {
		target = defaultTarget
	}

	gpuDefault := "y"
	if !flags.GpuHint {
		gpuDefault = "n"
	}
	gpuAnswer, err := line.PromptWithSuggestion("Use GPU acceleration? [y/n]: ", gpuDefault, -1)
	if err != nil {
		fmt.Println("\nInstallation cancelled.")
		return 0
	}
	noGpu := !strings.HasPrefix(strings.ToLower(strings.TrimSpace(gpuAnswer)), "y")

	condaPath, err := line.Prompt("Existing conda root (Enter to auto-detect): ")
	if err != nil {
		fmt.Println("\nInstallation cancelled.")
		return 0
	}

	fmt.Println()
	fmt.Println("--------------------------------------------------------------------------------")
	fmt.Println("                                  INSTALLING")
	fmt.Println("--------------------------------------------------------------------------------")
	fmt.Println()

	runner := execx.New()

	defaultRoot := filepath.Join(homeDir, "miniconda3")
	if roots := probe.DefaultCondaRoots(); len(roots) > 0 {
		defaultRoot = roots[0]
	}
	p := plan.NewBuilder(runner, defaultRoot).Build(context.Background(), flags, plan.Overrides{
		TargetDir:       target,
		NoGpu:           noGpu,
		CustomCondaPath: strings.TrimSpace(condaPath),
	})
	for _, note := range p.Notes() {
		fmt.Printf("  %s %s\n", tag("warn"), note)
	}

	deps := pipeline.Deps{
		Config:   cfg,
		Flags:    flags,
		Runner:   runner,
		Download: download.New(),
	}

	o := pipeline.New(pipeline.DefaultSteps(deps))
	o.SetProgressCallback(func(step, total int, status string) {
		fmt.Printf("  %s\n", status)
	})

	if j, jerr := journal.Open(filepath.Join(homeDir, ".faceforge", "installer.db")); jerr == nil {
		o.SetJournal(j)
		defer j.Close()
	}

	res := o.Run(context.Background(), p)

	fmt.Println()
	if res.Failed() {
		fmt.Println("================================================================================")
		fmt.Println("                            INSTALLATION FAILED")
		fmt.Println("================================================================================")
		fmt.Println()
		fmt.Printf("  %s %s\n", tag("fail"), res.Message)
		fmt.Println()
		fmt.Println("Already-completed steps were not undone; re-run the installer after fixing")
		fmt.Println("the problem.")
		return exitCodeFor(res)
	}

	fmt.Println("================================================================================")
	fmt.Println("                          INSTALLATION COMPLETE!")
	fmt.Println("================================================================================")
	fmt.Println()
	fmt.Println("To start faceforge, use the desktop shortcut or run:")
	fmt.Println()
	fmt.Printf("    %s\n", filepath.Join(target, launcher.ScriptName()))
	fmt.Println()
	return 0
}
