package handlers

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/addonctl/addonctl/internal/report"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	boldStyle = lipgloss.NewStyle().Bold(true)
)

func isInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printSummary writes the human-readable run outcome. Styled output is used
// on a terminal, plain text otherwise.
func printSummary(w io.Writer, rep *report.RunReport, styled bool) {
	status := string(rep.Status)
	if styled {
		switch rep.Status {
		case report.StatusSuccess:
			status = okStyle.Render(status)
		case report.StatusAborted:
			status = warnStyle.Render(status)
		default:
			status = failStyle.Render(status)
		}
	}

	header := fmt.Sprintf("%s %s: %s", rep.Mode, rep.Cluster, status)
	if styled {
		header = boldStyle.Render(fmt.Sprintf("%s %s: ", rep.Mode, rep.Cluster)) + status
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, header)

	for _, res := range rep.Results {
		line := fmt.Sprintf("  %-12s %s", res.Action, res.ID)
		if res.Error != "" {
			line += "  " + res.Error
		}
		if styled {
			line = styleResult(res, line)
		}
		fmt.Fprintln(w, line)
	}

	s := rep.Summarize()
	fmt.Fprintf(w, "\n%d created, %d updated, %d deleted, %d skipped, %d failed, %d not attempted\n",
		s.Created, s.Updated, s.Deleted, s.Skipped, s.Failed, s.NotAttempted)
}

func styleResult(res report.Result, line string) string {
	switch res.Action {
	case report.ActionFailed:
		return failStyle.Render(line)
	case report.ActionNotAttempted:
		return warnStyle.Render(line)
	case report.ActionSkipped:
		if res.Error != "" {
			// Skipped with an error means blocked by a failed dependency.
			return warnStyle.Render(line)
		}
		return dimStyle.Render(line)
	default:
		return okStyle.Render(line)
	}
}
