package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/addonctl/addonctl/internal/report"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)
	renderResources(&b, m)
	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	title := fmt.Sprintf("addonctl %s: %s", m.Mode, m.ClusterName)
	if m.Region != "" {
		title += fmt.Sprintf(" (%s)", m.Region)
	}
	b.WriteString(titleStyle.Render(title))

	status := " "
	switch {
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.Done:
		status += readyStyle.Render("Done")
	case m.Cancelling:
		status += warningStyle.Render("Cancelling, finishing in-flight work")
	default:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame)+" ") +
			warningStyle.Render(fmt.Sprintf("%d/%d", m.Completed, m.Total))
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	progress := 0.0
	if m.Total > 0 {
		progress = float64(m.Completed) / float64(m.Total)
	}
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = m.Width - 30
		if barWidth < 10 {
			barWidth = 10
		}
	}
	filled := int(float64(barWidth) * progress)
	if filled > barWidth {
		filled = barWidth
	}

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	fmt.Fprintf(b, "  %s %d%%\n", bar, int(progress*100))
}

func renderResources(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Resources"))
	b.WriteString("\n")

	for _, row := range m.Rows {
		icon, style, detail := rowDisplay(row, m.SpinnerFrame)
		line := fmt.Sprintf("    %s %s", style(icon), style(row.ID))
		if detail != "" {
			line += " " + dimStyle.Render(detail)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func rowDisplay(row Row, frame int) (string, styleFunc, string) {
	switch row.Status {
	case RowRunning:
		return currentSpinner(frame), sf(activeStyle), string(row.State)
	case RowDone:
		detail := string(row.Action)
		if row.Action == report.ActionSkipped {
			return checkMark, sf(dimStyle), detail
		}
		return checkMark, sf(readyStyle), detail
	case RowBlocked:
		return blockMark, sf(warningStyle), "blocked: " + errDetail(row.Err)
	case RowFailed:
		return crossMark, sf(failedStyle), errDetail(row.Err)
	default:
		return pending, sf(dimStyle), ""
	}
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 60 {
		msg = msg[:57] + "..."
	}
	return msg
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := time.Since(m.StartTime).Round(time.Second)
	hint := "press q to cancel"
	if m.Done || m.Err != nil {
		hint = "press q to quit"
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed %s  %s", elapsed, hint)))
	b.WriteString("\n")
}
