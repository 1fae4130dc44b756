package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/jnicheck"
	"github.com/fyrsmithlabs/jnicheck/internal/replay"
	"github.com/fyrsmithlabs/jnicheck/internal/resources"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	checkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	siteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	cleanStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// renderResult formats one replay run for a terminal.
func renderResult(res *replay.Result) string {
	status := cleanStyle.Render("✓ clean")
	if !res.Clean() {
		status = errorStyle.Render(fmt.Sprintf("✗ %d diagnostics", len(res.Diagnostics)))
	}
	lines := []string{
		titleStyle.Render(res.Script) + "  " + status,
		dimStyle.Render(fmt.Sprintf("run %s · %d events · %s", res.RunID, res.Events, res.Duration.Round(time.Microsecond))),
	}

	if len(res.Diagnostics) > 0 {
		lines = append(lines, sectionStyle.Render("Diagnostics"))
		lines = append(lines, renderDiagnostics(res.Diagnostics)...)
	}
	if len(res.Leaks) > 0 {
		lines = append(lines, sectionStyle.Render("Leaks"))
		lines = append(lines, renderLeaks(res.Leaks)...)
	}
	if len(res.Stats) > 0 {
		lines = append(lines, sectionStyle.Render("Calls"))
		lines = append(lines, renderCalls(res.Stats)...)
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderDiagnostics(diags []diag.Diagnostic) []string {
	width := 0
	for _, d := range diags {
		width = max(width, len(d.Check))
	}
	out := make([]string, len(diags))
	for i, d := range diags {
		site := d.Site
		if d.Index > 0 {
			site = fmt.Sprintf("%s#%d", site, d.Index)
		}
		out[i] = fmt.Sprintf("%s  %s  %s",
			checkStyle.Render(fmt.Sprintf("%-*s", width, d.Check)),
			siteStyle.Render(site),
			d.Message)
	}
	return out
}

func renderLeaks(leaks []resources.Leak) []string {
	out := make([]string, len(leaks))
	for i, l := range leaks {
		out[i] = fmt.Sprintf("%s  acquired by %s", checkStyle.Render(fmt.Sprintf("%#x", l.Resource)), siteStyle.Render(l.Site))
	}
	return out
}

// renderCalls lists call sites, busiest first, with a total line.
func renderCalls(calls []jnicheck.CallStat) []string {
	sorted := append([]jnicheck.CallStat(nil), calls...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Site < sorted[j].Site
	})

	var total uint64
	out := make([]string, 0, len(sorted)+1)
	for _, c := range sorted {
		total += c.Count
		out = append(out, fmt.Sprintf("%8d  %s", c.Count, siteStyle.Render(c.Site)))
	}
	out = append(out, dimStyle.Render(fmt.Sprintf("%8d  total", total)))
	return out
}

// renderStats formats call statistics fetched from a server.
func renderStats(runID string, calls []jnicheck.CallStat) string {
	if len(calls) == 0 {
		return dimStyle.Render("no calls recorded (is checker.method_count enabled?)")
	}
	lines := append([]string{titleStyle.Render("Calls") + "  " + dimStyle.Render("run "+runID)}, renderCalls(calls)...)
	return boxStyle.Render(strings.Join(lines, "\n"))
}
