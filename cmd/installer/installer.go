// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

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
// STYLES
// =============================================================================

var (
	// Colors
	brandPrimary   = lipgloss.Color("#7C3AED") // Purple
	brandSecondary = lipgloss.Color("#06B6D4") // Cyan
	brandAccent    = lipgloss.Color("#10B981") // Emerald
	brandWarning   = lipgloss.Color("#F59E0B") // Amber
	brandError     = lipgloss.Color("#EF4444") // Red
	textMuted      = lipgloss.Color("#6B7280") // Gray

	// Styles
	titleStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(textMuted).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(brandAccent).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(brandError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(brandWarning)

	highlightStyle = lipgloss.NewStyle().
			Foreground(brandSecondary).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(textMuted)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(brandPrimary).
			Padding(1, 2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true)

	unselectedStyle = lipgloss.NewStyle().
			Foreground(textMuted)
)

// =============================================================================
// ASCII ART
// =============================================================================

const logo = `
    ███████╗ █████╗  ██████╗███████╗███████╗ ██████╗ ██████╗  ██████╗ ███████╗
    ██╔════╝██╔══██╗██╔════╝██╔════╝██╔════╝██╔═══██╗██╔══██╗██╔════╝ ██╔════╝
    █████╗  ███████║██║     █████╗  █████╗  ██║   ██║██████╔╝██║  ███╗█████╗
    ██╔══╝  ██╔══██║██║     ██╔══╝  ██╔══╝  ██║   ██║██╔══██╗██║   ██║██╔══╝
    ██║     ██║  ██║╚██████╗███████╗██║     ╚██████╔╝██║  ██║╚██████╔╝███████╗
    ╚═╝     ╚═╝  ╚═╝ ╚═════╝╚══════╝╚═╝      ╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚══════╝
`

const tagline = "Deep learning face swapping, set up in one pass"

// =============================================================================
// INSTALLER MODEL
// =============================================================================

// Phase represents the current installation phase
type Phase int

const (
	PhaseWelcome Phase = iota
	PhaseSystemCheck
	PhaseOptions
	PhaseInstalling
	PhaseComplete
	PhaseFailed
)

// Option form rows, top to bottom.
const (
	rowTargetDir = iota
	rowGpu
	rowCondaPath
	rowCount
)

// Installer is the main installer model
type Installer struct {
	cfg    config.Config
	phase  Phase
	width  int
	height int

	spinner spinner.Model

	// System check state
	flags        probe.Flags
	flagsReady   bool
	checks       []CheckResult
	currentCheck int

	// Options form
	targetInput textinput.Model
	condaInput  textinput.Model
	noGpu       bool
	optionRow   int

	// Pipeline state
	progressCh  chan tea.Msg
	statusLines []string
	stepIndex   int
	stepTotal   int
	result      pipeline.StepResult

	// Animation state
	typingText   string
	typingTarget string
	typingIndex  int
}

// NewInstaller creates a new installer instance
func NewInstaller(cfg config.Config) *Installer {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(brandPrimary)

	homeDir, _ := os.UserHomeDir()

	target := textinput.New()
	target.Placeholder = "install directory"
	target.SetValue(filepath.Join(homeDir, "faceforge"))
	target.CharLimit = 256

	conda := textinput.New()
	conda.Placeholder = "existing conda root (leave empty to auto-detect)"
	conda.CharLimit = 256

	return &Installer{
		cfg:         cfg,
		phase:       PhaseWelcome,
		spinner:     s,
		targetInput: target,
		condaInput:  conda,
	}
}

// Init initializes the installer
func (i *Installer) Init() tea.Cmd {
	return tea.Batch(
		i.spinner.Tick,
		i.typeWriter(logo, 5*time.Millisecond),
	)
}

// =============================================================================
// MESSAGES
// =============================================================================

// typeWriterMsg updates the typing animation
type typeWriterMsg struct {
	target string
	index  int
}

// probeDoneMsg carries the host capability flags
type probeDoneMsg struct {
	flags probe.Flags
}

// checkCompleteMsg signals a system check is complete
type checkCompleteMsg struct {
	index  int
	result CheckResult
}

// installProgressMsg is one progress update from the pipeline
type installProgressMsg struct {
	step   int
	total  int
	status string
}

// installDoneMsg signals the pipeline finished
type installDoneMsg struct {
	result pipeline.StepResult
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages
func (i *Installer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return i.handleKey(msg)

	case tea.WindowSizeMsg:
		i.width = msg.Width
		i.height = msg.Height
		boxWidth := msg.Width - 16
		if boxWidth < 40 {
			boxWidth = 40
		}
		if boxWidth > 78 {
			boxWidth = 78
		}
		boxStyle = boxStyle.Width(boxWidth)
		return i, i.spinner.Tick

	case spinner.TickMsg:
		var cmd tea.Cmd
		i.spinner, cmd = i.spinner.Update(msg)
		return i, cmd

	case typeWriterMsg:
		if msg.target == i.typingTarget && msg.index <= len(msg.target) {
			i.typingText = msg.target[:msg.index]
			i.typingIndex = msg.index
			if msg.index < len(msg.target) {
				return i, i.typeWriterTick(msg.target, msg.index+1, 5*time.Millisecond)
			}
		}
		return i, nil

	case probeDoneMsg:
		i.flags = msg.flags
		i.flagsReady = true
		i.checks = []CheckResult{
			{Name: "Operating System", Status: "checking"},
			{Name: "CPU Features", Status: "checking"},
			{Name: "GPU", Status: "checking"},
			{Name: "Git", Status: "checking"},
			{Name: "Environment Manager", Status: "checking"},
			{Name: "Disk Space", Status: "checking"},
			{Name: "Network", Status: "checking"},
		}
		i.currentCheck = 0
		return i, i.runCheck(0)

	case checkCompleteMsg:
		i.checks[msg.index] = msg.result
		i.currentCheck++
		if i.currentCheck < len(i.checks) {
			return i, i.runCheck(i.currentCheck)
		}
		return i, nil

	case installProgressMsg:
		i.stepIndex = msg.step
		i.stepTotal = msg.total
		i.statusLines = append(i.statusLines, msg.status)
		return i, i.waitForProgress()

	case installDoneMsg:
		i.result = msg.result
		if msg.result.Failed() {
			i.phase = PhaseFailed
		} else {
			i.phase = PhaseComplete
		}
		return i, nil
	}

	return i, nil
}

// handleKey processes key presses
func (i *Installer) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Text inputs swallow most keys while the options form is up.
	if i.phase == PhaseOptions {
		return i.handleOptionsKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		return i, tea.Quit

	case "q":
		if i.phase != PhaseInstalling {
			return i, tea.Quit
		}
		return i, nil

	case "enter", " ":
		return i.handleSelect()
	}

	return i, nil
}

// handleSelect processes selection/enter
func (i *Installer) handleSelect() (tea.Model, tea.Cmd) {
	switch i.phase {
	case PhaseWelcome:
		i.phase = PhaseSystemCheck
		return i, i.probeHost()

	case PhaseSystemCheck:
		if i.currentCheck >= len(i.checks) && i.flagsReady {
			// A failed required check blocks the install; the view already
			// told the user to fix it and restart.
			for _, check := range i.checks {
				if check.Status == "fail" {
					return i, nil
				}
			}
			i.noGpu = !i.flags.GpuHint
			i.phase = PhaseOptions
			i.optionRow = rowTargetDir
			return i, i.targetInput.Focus()
		}
		return i, nil

	case PhaseComplete, PhaseFailed:
		return i, tea.Quit
	}

	return i, nil
}

// handleOptionsKey drives the three-row options form.
func (i *Installer) handleOptionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return i, tea.Quit

	case "up":
		return i, i.focusRow(i.optionRow - 1)

	case "down", "tab":
		return i, i.focusRow(i.optionRow + 1)

	case "enter":
		if i.optionRow < rowCount-1 {
			return i, i.focusRow(i.optionRow + 1)
		}
		i.phase = PhaseInstalling
		i.targetInput.Blur()
		i.condaInput.Blur()
		return i, tea.Batch(i.startInstall(), i.spinner.Tick)

	case " ", "left", "right":
		if i.optionRow == rowGpu {
			i.noGpu = !i.noGpu
			return i, nil
		}
	}

	// Route remaining keys to the focused text input.
	var cmd tea.Cmd
	switch i.optionRow {
	case rowTargetDir:
		i.targetInput, cmd = i.targetInput.Update(msg)
	case rowCondaPath:
		i.condaInput, cmd = i.condaInput.Update(msg)
	}
	return i, cmd
}

// focusRow moves form focus, clamping to the valid range.
func (i *Installer) focusRow(row int) tea.Cmd {
	if row < 0 {
		row = 0
	}
	if row >= rowCount {
		row = rowCount - 1
	}
	i.optionRow = row

	i.targetInput.Blur()
	i.condaInput.Blur()
	switch row {
	case rowTargetDir:
		return i.targetInput.Focus()
	case rowCondaPath:
		return i.condaInput.Focus()
	}
	return nil
}

// =============================================================================
// COMMANDS
// =============================================================================

// typeWriter starts a typing animation
func (i *Installer) typeWriter(text string, delay time.Duration) tea.Cmd {
	i.typingTarget = text
	i.typingIndex = 0
	i.typingText = ""
	return i.typeWriterTick(text, 1, delay)
}

// typeWriterTick sends the next typewriter tick
func (i *Installer) typeWriterTick(target string, index int, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return typeWriterMsg{target: target, index: index}
	})
}

// probeHost inspects the machine once, up front.
func (i *Installer) probeHost() tea.Cmd {
	return func() tea.Msg {
		flags := probe.New(execx.New()).Probe(context.Background())
		return probeDoneMsg{flags: flags}
	}
}

// runCheck evaluates one system check against the probed flags.
func (i *Installer) runCheck(index int) tea.Cmd {
	flags := i.flags
	condaURL := i.cfg.Downloads.CondaURL()
	return func() tea.Msg {
		var result CheckResult
		switch index {
		case 0:
			result = checkOS()
		case 1:
			result = checkCPU(flags)
		case 2:
			result = checkGpu(flags)
		case 3:
			result = checkGit(flags)
		case 4:
			result = checkConda(flags)
		case 5:
			result = checkDisk()
		case 6:
			result = checkNetwork(condaURL)
		}

		time.Sleep(200 * time.Millisecond) // Let the spinner breathe
		return checkCompleteMsg{index: index, result: result}
	}
}

// startInstall builds the plan and launches the pipeline in the background.
// Progress flows back through progressCh.
func (i *Installer) startInstall() tea.Cmd {
	i.progressCh = make(chan tea.Msg, 16)

	flags := i.flags
	cfg := i.cfg
	overrides := plan.Overrides{
		TargetDir:       strings.TrimSpace(i.targetInput.Value()),
		NoGpu:           i.noGpu,
		CustomCondaPath: strings.TrimSpace(i.condaInput.Value()),
	}
	ch := i.progressCh

	go func() {
		runner := execx.New()

		defaultRoot := "miniconda3"
		if roots := probe.DefaultCondaRoots(); len(roots) > 0 {
			defaultRoot = roots[0]
		}
		p := plan.NewBuilder(runner, defaultRoot).Build(context.Background(), flags, overrides)

		deps := pipeline.Deps{
			Config:   cfg,
			Flags:    flags,
			Runner:   runner,
			Download: download.New(),
		}

		o := pipeline.New(pipeline.DefaultSteps(deps))
		o.SetProgressCallback(func(step, total int, status string) {
			ch <- installProgressMsg{step: step, total: total, status: status}
		})

		if home, err := os.UserHomeDir(); err == nil {
			if j, jerr := journal.Open(filepath.Join(home, ".faceforge", "installer.db")); jerr == nil {
				o.SetJournal(j)
				defer j.Close()
			}
		}

		ch <- installDoneMsg{result: o.Run(context.Background(), p)}
	}()

	return i.waitForProgress()
}

// waitForProgress relays the next pipeline message into the update loop.
func (i *Installer) waitForProgress() tea.Cmd {
	ch := i.progressCh
	return func() tea.Msg {
		return <-ch
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the installer
func (i *Installer) View() string {
	switch i.phase {
	case PhaseWelcome:
		return i.center(i.viewWelcome())
	case PhaseSystemCheck:
		return i.center(i.viewSystemCheck())
	case PhaseOptions:
		return i.center(i.viewOptions())
	case PhaseInstalling:
		return i.center(i.viewInstalling())
	case PhaseComplete:
		return i.center(i.viewComplete())
	case PhaseFailed:
		return i.center(i.viewFailed())
	}
	return ""
}

func (i *Installer) viewWelcome() string {
	var s strings.Builder

	logoStyle := lipgloss.NewStyle().Foreground(brandPrimary).Bold(true)
	if i.typingTarget == logo {
		s.WriteString(logoStyle.Render(i.typingText))
	} else {
		s.WriteString(logoStyle.Render(logo))
	}

	s.WriteString("\n")
	s.WriteString(subtitleStyle.Render("    " + tagline))
	s.WriteString("\n\n")
	s.WriteString(dimStyle.Render(fmt.Sprintf("    Installer v%s", version)))
	s.WriteString("\n\n")

	welcomeText := `
Welcome to the faceforge installer!

This installer will:

  * Check your system and CPU capabilities
  * Install git and Miniconda if they are missing
  * Fetch the faceforge source
  * Create an isolated Python environment
  * Install the build matched to your hardware
  * Put a launcher on your desktop

`
	s.WriteString(boxStyle.Render(welcomeText))
	s.WriteString("\n\n")

	s.WriteString(highlightStyle.Render("  Press ENTER to begin"))
	s.WriteString(dimStyle.Render("  |  Press Q to quit"))

	return s.String()
}

func (i *Installer) viewSystemCheck() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  System Check"))
	s.WriteString("\n\n")

	for idx, check := range i.checks {
		var icon, status string
		var style lipgloss.Style

		switch check.Status {
		case "checking":
			if idx == i.currentCheck {
				icon = i.spinner.View()
			} else {
				icon = "[ ]"
			}
			status = "Checking..."
			style = dimStyle
		case "pass":
			icon = "[OK]"
			status = check.Message
			style = successStyle
		case "fail":
			icon = "[FAIL]"
			status = check.Message
			style = errorStyle
		case "warn":
			icon = "[!!]"
			status = check.Message
			style = warningStyle
		}

		s.WriteString(fmt.Sprintf("  %s %s", style.Render(icon), check.Name))
		s.WriteString(dimStyle.Render(fmt.Sprintf(" - %s", status)))
		s.WriteString("\n")

		if check.Fix != "" {
			s.WriteString(dimStyle.Render(fmt.Sprintf("      -> %s", check.Fix)))
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")

	if i.currentCheck >= len(i.checks) {
		blocked := false
		for _, check := range i.checks {
			if check.Status == "fail" {
				blocked = true
				break
			}
		}

		if blocked {
			s.WriteString(errorStyle.Render("  A required check failed"))
			s.WriteString("\n\n")
			s.WriteString(dimStyle.Render("  Fix the issue above and restart the installer  |  Q to quit"))
		} else {
			s.WriteString(successStyle.Render("  Ready to configure"))
			s.WriteString("\n\n")
			s.WriteString(highlightStyle.Render("  Press ENTER to continue"))
		}
	}

	return s.String()
}

func (i *Installer) viewOptions() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  Installation Options"))
	s.WriteString("\n\n")

	rowLabel := func(row int, label string) string {
		if i.optionRow == row {
			return selectedStyle.Render("> " + label)
		}
		return unselectedStyle.Render("  " + label)
	}

	s.WriteString("  " + rowLabel(rowTargetDir, "Install directory"))
	s.WriteString("\n    " + i.targetInput.View())
	s.WriteString("\n\n")

	gpuChoice := "GPU build (dedicated graphics card)"
	if i.noGpu {
		gpuChoice = "CPU-only build (no dedicated graphics card)"
	}
	s.WriteString("  " + rowLabel(rowGpu, "Acceleration"))
	s.WriteString("\n    " + highlightStyle.Render(gpuChoice))
	s.WriteString(dimStyle.Render("  (space to toggle)"))
	s.WriteString("\n\n")

	s.WriteString("  " + rowLabel(rowCondaPath, "Existing conda install"))
	s.WriteString("\n    " + i.condaInput.View())
	s.WriteString("\n\n")

	s.WriteString(dimStyle.Render("  Up/Down to move  |  ENTER on the last field to install"))

	return s.String()
}

func (i *Installer) viewInstalling() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("  Installing"))
	s.WriteString("\n\n")

	if i.stepTotal > 0 {
		s.WriteString(fmt.Sprintf("  %s Step %d of %d\n\n", i.spinner.View(), min(i.stepIndex+1, i.stepTotal), i.stepTotal))
	} else {
		s.WriteString(fmt.Sprintf("  %s Preparing...\n\n", i.spinner.View()))
	}

	// Last few status lines, width-trimmed so long paths do not wrap.
	maxLines := 8
	start := len(i.statusLines) - maxLines
	if start < 0 {
		start = 0
	}
	lineWidth := i.width - 6
	if lineWidth < 20 {
		lineWidth = 20
	}
	for _, line := range i.statusLines[start:] {
		s.WriteString(dimStyle.Render("  " + runewidth.Truncate(line, lineWidth, "...")))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(dimStyle.Render("  This can take a while on the environment and setup steps"))

	return s.String()
}

func (i *Installer) viewComplete() string {
	var s strings.Builder

	successArt := `
    +------------------------------------------+
    |                                          |
    |      *** Installation Complete! ***      |
    |                                          |
    +------------------------------------------+
`
	s.WriteString(successStyle.Render(successArt))
	s.WriteString("\n")

	s.WriteString("  faceforge is installed.\n\n")
	s.WriteString("  Start it from the desktop shortcut, or run:\n\n")
	s.WriteString(highlightStyle.Render(fmt.Sprintf("      %s\n", filepath.Join(strings.TrimSpace(i.targetInput.Value()), launcher.ScriptName()))))
	s.WriteString("\n")
	s.WriteString(dimStyle.Render("  Press ENTER to close"))

	return s.String()
}

func (i *Installer) viewFailed() string {
	var s strings.Builder

	s.WriteString(errorStyle.Render("  Installation Failed"))
	s.WriteString("\n\n")
	s.WriteString(boxStyle.Render(i.result.Message))
	s.WriteString("\n\n")
	s.WriteString(dimStyle.Render("  Already-completed steps were not undone; re-run the installer after\n"))
	s.WriteString(dimStyle.Render("  fixing the problem.\n\n"))
	s.WriteString(highlightStyle.Render("  Press ENTER to close"))

	return s.String()
}

// center centers content on screen
func (i *Installer) center(content string) string {
	if i.width == 0 || i.height == 0 {
		return content
	}

	lines := strings.Split(content, "\n")
	height := len(lines)

	topPadding := (i.height - height) / 3
	if topPadding < 0 {
		topPadding = 0
	}

	var s strings.Builder
	for j := 0; j < topPadding; j++ {
		s.WriteString("\n")
	}
	s.WriteString(content)

	return s.String()
}
