package deploy

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/debdeploy/internal/ui"
)

// RenderSummary prints one line per host, a totals line, and for failures a
// retry command that targets only the failed hosts.
func RenderSummary(w io.Writer, sum *Summary) {
	if sum == nil {
		return
	}

	successStyle := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	warnStyle := lipgloss.NewStyle().Foreground(ui.ColorWarning)
	errorStyle := lipgloss.NewStyle().Foreground(ui.ColorError)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)
	headerStyle := lipgloss.NewStyle().Foreground(ui.ColorSecondary).Bold(true)

	width := 0
	for i := range sum.Results {
		if n := len(sum.Results[i].Host.Alias); n > width {
			width = n
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.FormatDivider(ui.DividerWidth))
	fmt.Fprintln(w)

	var retry []string
	for i := range sum.Results {
		r := &sum.Results[i]
		name := fmt.Sprintf("%-*s", width, r.Host.Alias)
		target := mutedStyle.Render(r.Host.String())

		switch {
		case r.Skipped:
			fmt.Fprintf(w, "  %s %s %s %s\n", mutedStyle.Render(ui.SymbolSkipped), name, target,
				mutedStyle.Render("skipped"))
			retry = append(retry, r.Host.String())
		case r.Success() && r.Unverified:
			fmt.Fprintf(w, "  %s %s %s %s\n", warnStyle.Render(ui.SymbolWarning), name, target,
				mutedStyle.Render(fmt.Sprintf("(%s, unverified)", ui.FormatDuration(r.Duration))))
		case r.Success():
			detail := ui.FormatDuration(r.Duration)
			if r.Fallback {
				detail += ", dependencies fixed"
			}
			fmt.Fprintf(w, "  %s %s %s %s\n", successStyle.Render(ui.SymbolSuccess), name, target,
				mutedStyle.Render("("+detail+")"))
		default:
			fmt.Fprintf(w, "  %s %s %s %s\n", errorStyle.Render(ui.SymbolFail), name, target,
				mutedStyle.Render(fmt.Sprintf("(%s)", ui.FormatDuration(r.Duration))))
			fmt.Fprintf(w, "    %s\n", errorStyle.Render(Headline(r.Err)))
			retry = append(retry, r.Host.String())
		}
	}

	fmt.Fprintln(w)

	failedStyle := mutedStyle
	if sum.Failed > 0 {
		failedStyle = errorStyle
	}
	fmt.Fprintf(w, "  %s %d done  %s %d failed  %s %d skipped  %s\n",
		successStyle.Render(ui.SymbolSuccess), sum.Done,
		failedStyle.Render(ui.SymbolFail), sum.Failed,
		mutedStyle.Render(ui.SymbolSkipped), sum.Skipped,
		mutedStyle.Render(fmt.Sprintf("(%s)", ui.FormatDuration(sum.Duration))),
	)
	fmt.Fprintln(w)

	if len(retry) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Retry:"))
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s debdeploy deploy -H %s\n", mutedStyle.Render("$"), strings.Join(retry, " -H "))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, ui.FormatDivider(ui.DividerWidth))
}

// BriefSummary returns a one-line summary string.
func BriefSummary(sum *Summary) string {
	if sum == nil {
		return "No results"
	}
	total := len(sum.Results)
	if sum.Success() {
		return fmt.Sprintf("%d/%d %s deployed (%s)",
			sum.Done, total, ui.Plural(total, "host"), ui.FormatDuration(sum.Duration))
	}
	return fmt.Sprintf("%d done, %d failed, %d skipped of %d %s (%s)",
		sum.Done, sum.Failed, sum.Skipped, total, ui.Plural(total, "host"), ui.FormatDuration(sum.Duration))
}
