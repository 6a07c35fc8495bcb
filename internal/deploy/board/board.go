// Package board shows a live, one-line-per-host view of a deploy using
// Bubble Tea. It is the default output on a terminal.
package board

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/debdeploy/internal/deploy"
)

// DeployFunc runs a deploy, reporting through r.
type DeployFunc func(ctx context.Context, r deploy.Reporter) (*deploy.Summary, error)

type deployResult struct {
	sum *deploy.Summary
	err error
}

// Run starts the board on out and runs fn in the background. It returns when
// both have finished. Pressing q cancels fn's context.
func Run(ctx context.Context, out io.Writer, title string, fn DeployFunc) (*deploy.Summary, error) {
	return run(ctx, title, fn, tea.WithOutput(out))
}

func run(ctx context.Context, title string, fn DeployFunc, opts ...tea.ProgramOption) (*deploy.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(NewModel(title, cancel), opts...)
	bridge := NewBridge(program)

	resultChan := make(chan deployResult, 1)
	go func() {
		sum, err := fn(ctx, bridge)
		resultChan <- deployResult{sum: sum, err: err}
		bridge.deployDone(err)
	}()

	if _, err := program.Run(); err != nil {
		// The board failed to start or crashed; stop the deploy and surface it.
		cancel()
		r := <-resultChan
		if r.err != nil {
			return r.sum, r.err
		}
		return r.sum, err
	}

	r := <-resultChan
	return r.sum, r.err
}
