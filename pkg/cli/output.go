package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/executor"
	"github.com/devicelab-dev/virtual-pointer/pkg/report"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Slow step threshold in milliseconds
const slowThresholdMs = 1000

// colorsEnabled determines if styles are rendered
var colorsEnabled = true

func detectColors() bool {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			return false
		}
	}
	return true
}

func setColors(enabled bool) {
	colorsEnabled = enabled
}

// paint renders s with st when colors are enabled.
func paint(st lipgloss.Style, s string) string {
	if !colorsEnabled {
		return s
	}
	return st.Render(s)
}

// progress prints live flow results as the runner reports them.
type progress struct {
	w io.Writer
}

func (p progress) onFlowStart(flowIdx, totalFlows int, name, file string) {
	fmt.Fprintf(p.w, "\n  %s %s (%s)\n",
		paint(infoStyle, fmt.Sprintf("[%d/%d]", flowIdx+1, totalFlows)),
		paint(titleStyle, name), file)
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p progress) onStepComplete(idx int, desc string, status core.StepStatus, durationMs int64, errMsg string) {
	durStr := formatDuration(durationMs)

	switch status {
	case core.StatusPassed:
		if durationMs >= slowThresholdMs && !strings.HasPrefix(desc, "repeat") {
			fmt.Fprintf(p.w, "    %s %s %s\n", paint(warnStyle, "⚠"), desc, paint(warnStyle, "("+durStr+")"))
			return
		}
		fmt.Fprintf(p.w, "    %s %s (%s)\n", paint(successStyle, "✓"), desc, durStr)
	case core.StatusWarned:
		fmt.Fprintf(p.w, "    %s %s (%s)\n", paint(warnStyle, "⚠"), desc, durStr)
		if errMsg != "" {
			fmt.Fprintf(p.w, "      %s %s\n", paint(dimStyle, "╰─"), errMsg)
		}
	case core.StatusSkipped:
		fmt.Fprintf(p.w, "    %s %s\n", paint(dimStyle, "-"), paint(dimStyle, desc))
	default:
		fmt.Fprintf(p.w, "    %s %s (%s)\n", paint(errorStyle, "✗"), desc, durStr)
		if errMsg != "" {
			fmt.Fprintf(p.w, "      %s %s\n", paint(dimStyle, "╰─"), errMsg)
		}
	}
}

func (p progress) onFlowEnd(name string, status core.StepStatus, durationMs int64) {
	symbol := paint(successStyle, "✓")
	if !status.IsSuccess() {
		symbol = paint(errorStyle, "✗")
	}
	fmt.Fprintf(p.w, "%s %s %s\n", symbol, name, paint(dimStyle, formatDuration(durationMs)))
}

// printUnifiedOutput prints failure details and the summary table from the
// written report, falling back to the in-memory result when it cannot be read.
func printUnifiedOutput(w io.Writer, outputDir string, result *executor.RunResult) {
	r, err := report.Load(outputDir)
	if err != nil {
		fmt.Fprintf(w, "Warning: Could not load report for summary: %v\n", err)
		printSummary(w, result)
		return
	}
	printFailures(w, r)
	printSummaryTable(w, r)
}

// printFailures lists every failed step with the events it saw.
func printFailures(w io.Writer, r *report.Report) {
	var failed []report.Flow
	for _, f := range r.Flows {
		if f.Status == report.StatusFailed || f.Status == report.StatusErrored {
			failed = append(failed, f)
		}
	}
	if len(failed) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%s\n", paint(titleStyle, "Failures"))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, f := range failed {
		fmt.Fprintf(w, "  %s %s\n", paint(errorStyle, "✗"), f.Name)
		for _, s := range f.Steps {
			if s.Error == nil {
				continue
			}
			fmt.Fprintf(w, "    step %d %s: %s\n", s.Index+1, s.YAML, paint(errorStyle, s.Error.Message))
			fmt.Fprintf(w, "      %s %d event(s) dispatched\n", paint(dimStyle, "╰─"), s.Events)
		}
		if f.Error != "" && !hasStepError(f) {
			fmt.Fprintf(w, "    %s\n", paint(errorStyle, f.Error))
		}
	}
}

func hasStepError(f report.Flow) bool {
	for _, s := range f.Steps {
		if s.Error != nil {
			return true
		}
	}
	return false
}

func printSummaryTable(w io.Writer, r *report.Report) {
	tableWidth := 80
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-40s %-8s %6s %7s %10s\n", "Flow", "Status", "Steps", "Events", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	var totalSteps, totalEvents int
	var totalMs int64
	for _, f := range r.Flows {
		name := f.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(w, "  %-40s %s %6d %7d %10s\n",
			name, paint(statusStyle(f.Status), fmt.Sprintf("%-8s", statusLabel(f.Status))),
			len(f.Steps), len(f.Events), formatDuration(f.Duration))
		totalSteps += len(f.Steps)
		totalEvents += len(f.Events)
		totalMs += f.Duration
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	passed := fmt.Sprintf("%d/%d", r.Summary.Passed+r.Summary.Warned, r.Summary.Total)
	st := successStyle
	if r.Summary.Failed > 0 {
		st = errorStyle
	}
	fmt.Fprintf(w, "  %-40s %s %6d %7d %10s\n",
		"TOTAL", paint(st, fmt.Sprintf("%-8s", passed)), totalSteps, totalEvents, formatDuration(totalMs))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

// printSummary prints flow counts from the in-memory run result.
func printSummary(w io.Writer, result *executor.RunResult) {
	fmt.Fprintln(w)
	if result.PassedFlows > 0 {
		fmt.Fprintf(w, "  %s (%s)\n", paint(successStyle, fmt.Sprintf("%d flows passing", result.PassedFlows)),
			formatDuration(result.Duration.Milliseconds()))
	}
	if result.FailedFlows > 0 {
		fmt.Fprintf(w, "  %s\n", paint(errorStyle, fmt.Sprintf("%d flows failing", result.FailedFlows)))
	}
	if result.SkippedFlows > 0 {
		fmt.Fprintf(w, "  %s\n", paint(infoStyle, fmt.Sprintf("%d flows skipped", result.SkippedFlows)))
	}
}

func statusLabel(s report.Status) string {
	switch s {
	case report.StatusPassed:
		return "✓ PASS"
	case report.StatusWarned:
		return "⚠ WARN"
	case report.StatusSkipped:
		return "- SKIP"
	default:
		return "✗ FAIL"
	}
}

func statusStyle(s report.Status) lipgloss.Style {
	switch s {
	case report.StatusPassed:
		return successStyle
	case report.StatusWarned:
		return warnStyle
	case report.StatusSkipped:
		return infoStyle
	default:
		return errorStyle
	}
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
