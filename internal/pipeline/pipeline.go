// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline executes the ordered installation steps with
// abort-on-failure semantics.
//
// The orchestrator owns the run: it drives each step in a fixed order,
// appends human-readable progress lines to an append-only log, and halts on
// the first step whose result carries a non-zero exit code. Completed steps
// are never rolled back; a failed run may leave the host partially
// provisioned, and a re-run starts from the beginning.
package pipeline

import (
	"context"
	"fmt"

	"github.com/jeranaias/faceforge-installer/internal/execx"
	"github.com/jeranaias/faceforge-installer/internal/journal"
	"github.com/jeranaias/faceforge-installer/internal/plan"
)

// =============================================================================
// STEP RESULT
// =============================================================================

// StepResult is the outcome of one pipeline step. A non-zero exit code is
// terminal for the whole run.
type StepResult struct {
	// ExitCode is zero on success. On failure it carries the exit code of
	// the underlying subprocess where one exists, -1 otherwise.
	ExitCode int

	// Message is a human-readable summary surfaced to the user.
	Message string
}

// Failed reports whether this result aborts the run.
func (r StepResult) Failed() bool {
	return r.ExitCode != 0
}

// success builds a passing result.
func success(format string, a ...any) StepResult {
	return StepResult{Message: fmt.Sprintf(format, a...)}
}

// failure builds a terminal result from an error, preserving the subprocess
// exit code when the error carries one.
func failure(err error) StepResult {
	code := execx.ExitCode(err)
	if code == 0 {
		code = 1
	}
	return StepResult{ExitCode: code, Message: err.Error()}
}

// =============================================================================
// STEPS
// =============================================================================

// Step is one named unit of the installation pipeline. Run receives the
// immutable plan and must not retain or mutate it.
type Step struct {
	Name string
	Run  func(ctx context.Context, p *plan.Plan) StepResult
}

// ProgressFunc is called as the pipeline advances. step is zero-based.
type ProgressFunc func(step, total int, status string)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs the pipeline strictly in order.
type Orchestrator struct {
	steps      []Step
	onProgress ProgressFunc
	journal    *journal.Journal
	log        []string
}

// New creates an orchestrator for the given steps.
func New(steps []Step) *Orchestrator {
	return &Orchestrator{steps: steps}
}

// SetProgressCallback sets the callback that receives progress updates.
// Must be called before Run.
func (o *Orchestrator) SetProgressCallback(cb ProgressFunc) {
	o.onProgress = cb
}

// SetJournal attaches an install journal. Journal write errors are recorded
// in the progress log but never fail the run.
func (o *Orchestrator) SetJournal(j *journal.Journal) {
	o.journal = j
}

// Log returns a copy of the progress log accumulated so far. The log is
// presentation-only; no pipeline logic ever reads it.
func (o *Orchestrator) Log() []string {
	out := make([]string, len(o.log))
	copy(out, o.log)
	return out
}

// Run executes every step in order and returns the first failing result, or
// a passing result once all steps completed. Steps after a failure never
// execute.
func (o *Orchestrator) Run(ctx context.Context, p *plan.Plan) StepResult {
	total := len(o.steps)

	for _, note := range p.Notes() {
		o.logf("note: %s", note)
	}

	for i, step := range o.steps {
		o.report(i, total, fmt.Sprintf("Step %d/%d: %s", i+1, total, step.Name))

		res := step.Run(ctx, p)
		o.logf("[%s] %s", step.Name, res.Message)
		o.record(i+1, step.Name, res)

		if res.Failed() {
			o.report(i, total, fmt.Sprintf("%s failed: %s", step.Name, res.Message))
			o.finish(false)
			return StepResult{
				ExitCode: res.ExitCode,
				Message:  fmt.Sprintf("%s failed: %s", step.Name, res.Message),
			}
		}
	}

	o.report(total, total, "Installation complete")
	o.finish(true)
	return success("all %d steps completed", total)
}

func (o *Orchestrator) report(step, total int, status string) {
	o.logf("%s", status)
	if o.onProgress != nil {
		o.onProgress(step, total, status)
	}
}

func (o *Orchestrator) logf(format string, a ...any) {
	o.log = append(o.log, fmt.Sprintf(format, a...))
}

func (o *Orchestrator) record(seq int, name string, res StepResult) {
	if o.journal == nil {
		return
	}
	if err := o.journal.RecordStep(seq, name, res.ExitCode, res.Message); err != nil {
		o.logf("journal: %v", err)
	}
}

func (o *Orchestrator) finish(ok bool) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Finish(ok); err != nil {
		o.logf("journal: %v", err)
	}
}
