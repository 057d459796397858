// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main provides the faceforge installer - a guided, one-shot setup
// that provisions a machine to run faceforge.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/faceforge-installer/internal/config"
	"github.com/jeranaias/faceforge-installer/internal/pipeline"
)

const version = "1.2.0"

func main() {
	textMode := false
	configPath := ""

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--text", "-t", "--simple":
			textMode = true
		case "--config", "-c":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a path")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		case "--help", "-h":
			printHelp()
			return
		case "--version", "-v":
			fmt.Printf("faceforge installer v%s\n", version)
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			printHelp()
			os.Exit(2)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if textMode {
		os.Exit(runTextInstaller(cfg))
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println("The faceforge installer requires an interactive terminal.")
		fmt.Println("Run with --text for a simple text-based install.")
		os.Exit(1)
	}

	// Mouse capture disabled to allow terminal text selection/copy
	p := tea.NewProgram(
		NewInstaller(cfg),
		tea.WithAltScreen(),
	)

	model, err := p.Run()
	if err != nil {
		fmt.Printf("Error running installer: %v\n", err)
		os.Exit(1)
	}

	// Propagate the failing step's exit code so scripts can tell a failed
	// provisioning run from a user cancel.
	if inst, ok := model.(*Installer); ok && inst.result.Failed() {
		os.Exit(exitCodeFor(inst.result))
	}
}

// exitCodeFor maps a terminal step result to a process exit code. Start
// failures carry -1, which maps to 1.
func exitCodeFor(res pipeline.StepResult) int {
	if res.ExitCode > 0 {
		return res.ExitCode & 0xff
	}
	return 1
}

// printHelp shows usage information
func printHelp() {
	fmt.Println(`faceforge installer v` + version + `

Usage: faceforge-installer [OPTIONS]

Options:
  --text, -t         Run in text mode (copy/paste friendly)
  --config, -c PATH  Load installer settings from a TOML file
  --help, -h         Show this help
  --version, -v      Show version

The default mode is an interactive TUI installer. The installer checks the
host, asks a few questions (install directory, GPU, existing conda), then
provisions everything in one pass.`)
}
