// Package ui provides the terminal building blocks for debdeploy's output.
//
// Styling goes through lipgloss with an ANSI palette (ColorSuccess, ColorError,
// ColorMuted and friends). DisableColors switches everything to plain text for
// --no-color and for output that isn't a terminal.
//
// PhaseDisplay prints one status line per pipeline phase:
//
//	pd := ui.NewPhaseDisplay(os.Stderr)
//	pd.RenderProgress("fakeroot debian/rules binary")
//	pd.RenderSuccess("binary", 41*time.Second)
//
// RenderSimpleTable lays out static tables (the hosts command) with the
// bubbles table component, and Confirm wraps a huh confirmation form.
package ui
