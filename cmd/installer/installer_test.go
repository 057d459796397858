// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"testing"

	"github.com/jeranaias/faceforge-installer/internal/config"
	"github.com/jeranaias/faceforge-installer/internal/pipeline"
)

// =============================================================================
// PHASE TRANSITION TESTS
// =============================================================================

func checkedInstaller(t *testing.T, checks []CheckResult) *Installer {
	t.Helper()
	inst := NewInstaller(config.Default())
	inst.phase = PhaseSystemCheck
	inst.flagsReady = true
	inst.checks = checks
	inst.currentCheck = len(checks)
	return inst
}

func TestHandleSelect_FailedRequiredCheckBlocksOptions(t *testing.T) {
	inst := checkedInstaller(t, []CheckResult{
		{Name: "CPU Features", Status: "pass", Message: "AVX supported"},
		{Name: "Disk Space", Status: "fail", Message: "1.0 GB free, 10 GB needed"},
	})

	model, _ := inst.handleSelect()
	if model.(*Installer).phase != PhaseSystemCheck {
		t.Errorf("phase = %v, want PhaseSystemCheck: a failed required check must not advance", model.(*Installer).phase)
	}
}

func TestHandleSelect_WarningsDoNotBlockOptions(t *testing.T) {
	inst := checkedInstaller(t, []CheckResult{
		{Name: "Git", Status: "warn", Message: "Not found"},
		{Name: "Disk Space", Status: "pass", Message: "120.0 GB free"},
	})

	model, _ := inst.handleSelect()
	if model.(*Installer).phase != PhaseOptions {
		t.Errorf("phase = %v, want PhaseOptions: warnings alone must not block", model.(*Installer).phase)
	}
}

// =============================================================================
// EXIT CODE TESTS
// =============================================================================

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		code int
		want int
	}{
		{7, 7},
		{128, 128},
		{-1, 1}, // subprocess never started
		{300, 300 & 0xff},
	}
	for _, c := range cases {
		res := pipeline.StepResult{ExitCode: c.code, Message: "step failed"}
		if got := exitCodeFor(res); got != c.want {
			t.Errorf("exitCodeFor(%d) = %d, want %d", c.code, got, c.want)
		}
	}
}
