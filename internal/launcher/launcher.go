// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package launcher writes the activation script and desktop shortcut that
// start the installed application. Pure file output, no subprocesses.
package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/jeranaias/faceforge-installer/internal/plan"
	"github.com/jeranaias/faceforge-installer/internal/util"
)

// AppName is the display name used for shortcuts.
const AppName = "FaceForge"

// =============================================================================
// ACTIVATION SCRIPT
// =============================================================================

// ScriptName returns the platform launcher script filename.
func ScriptName() string {
	if runtime.GOOS == "windows" {
		return "faceforge.bat"
	}
	return "faceforge.sh"
}

// WriteScript writes the activation launcher into the target directory:
// activate the environment manager, activate the named environment, then
// hand off to the application's entry point. Returns the script path.
func WriteScript(p *plan.Plan, envName, entryPoint string) (string, error) {
	scriptPath := filepath.Join(p.TargetDir(), ScriptName())

	var content string
	if runtime.GOOS == "windows" {
		content = fmt.Sprintf("@echo off\r\n"+
			"call \"%s\" %s\r\n"+
			"cd /d \"%s\"\r\n"+
			"python %s %%*\r\n",
			filepath.Join(p.CondaRoot(), "Scripts", "activate.bat"),
			envName, p.TargetDir(), entryPoint)
	} else {
		content = fmt.Sprintf("#!/bin/sh\n"+
			". \"%s\"\n"+
			"conda activate %s\n"+
			"cd \"%s\"\n"+
			"exec python %s \"$@\"\n",
			filepath.Join(p.CondaRoot(), "etc", "profile.d", "conda.sh"),
			envName, p.TargetDir(), entryPoint)
	}

	if err := util.AtomicWriteFile(scriptPath, []byte(content), 0755); err != nil {
		return "", fmt.Errorf("write launcher script: %w", err)
	}
	return scriptPath, nil
}

// =============================================================================
// DESKTOP SHORTCUT
// =============================================================================

// WriteDesktopShortcut writes a desktop entry pointing at the launcher
// script and returns the shortcut path.
func WriteDesktopShortcut(scriptPath string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	desktop := filepath.Join(home, "Desktop")

	var shortcutPath, content string
	var perm os.FileMode

	switch runtime.GOOS {
	case "windows":
		shortcutPath = filepath.Join(desktop, AppName+".bat")
		content = fmt.Sprintf("@echo off\r\ncall \"%s\"\r\n", scriptPath)
		perm = 0644
	case "darwin":
		shortcutPath = filepath.Join(desktop, AppName+".command")
		content = fmt.Sprintf("#!/bin/sh\nexec \"%s\"\n", scriptPath)
		perm = 0755
	default:
		shortcutPath = filepath.Join(desktop, AppName+".desktop")
		content = fmt.Sprintf("[Desktop Entry]\n"+
			"Type=Application\n"+
			"Name=%s\n"+
			"Comment=Deep learning face swapping\n"+
			"Exec=%s\n"+
			"Terminal=true\n"+
			"Categories=Graphics;\n",
			AppName, scriptPath)
		perm = 0755
	}

	if err := util.AtomicWriteFile(shortcutPath, []byte(content), perm); err != nil {
		return "", fmt.Errorf("write desktop shortcut: %w", err)
	}
	return shortcutPath, nil
}
