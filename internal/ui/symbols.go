package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Host or step finished
	SymbolFail     = "✗" // Failed
	SymbolPending  = "○" // Not started yet
	SymbolProgress = "◐" // In progress
	SymbolComplete = "●" // Step done
	SymbolSkipped  = "⊘" // Skipped
	SymbolWarning  = "!" // Done with a caveat
)

// SpinnerFrames is the animation used by every live display.
var SpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10,
}
