package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/rileyhilliard/debdeploy/internal/artifact"
	"github.com/rileyhilliard/debdeploy/internal/build"
	"github.com/rileyhilliard/debdeploy/internal/ui"
)

// phaseObserver prints a status line around every build step.
type phaseObserver struct {
	pd *ui.PhaseDisplay
}

func newPhaseObserver(w io.Writer) *phaseObserver {
	return &phaseObserver{pd: ui.NewPhaseDisplay(w)}
}

func (o *phaseObserver) StepStarted(step build.Step) {
	if step.Command != "" {
		o.pd.CommandPrompt(step.Command)
		return
	}
	o.pd.RenderProgress(step.Name)
}

func (o *phaseObserver) StepFinished(step build.Step, d time.Duration, err error) {
	if err != nil {
		o.pd.RenderFailed(step.Name, d)
		return
	}
	o.pd.RenderSuccess(step.Name, d)
}

// renderArtifact prints the selected package under the build phases.
func renderArtifact(w io.Writer, art *artifact.Artifact) {
	if art == nil {
		return
	}
	ui.NewPhaseDisplay(w).RenderSubStatus(ui.SymbolSuccess, art.Name, fmt.Sprintf("%d bytes", art.Size))
}
