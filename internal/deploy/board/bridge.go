package board

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/debdeploy/internal/deploy"
	"github.com/rileyhilliard/debdeploy/internal/host"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge implements deploy.Reporter by forwarding every event to the board.
// Send is goroutine-safe, so the bridge is too.
type Bridge struct {
	program Sender
}

var _ deploy.Reporter = (*Bridge)(nil)

// NewBridge creates a bridge that forwards events to program.
func NewBridge(program Sender) *Bridge {
	return &Bridge{program: program}
}

// HostsPlanned forwards the host list.
func (b *Bridge) HostsPlanned(hosts host.List) {
	b.program.Send(HostsPlannedMsg{Hosts: hosts})
}

// StateChanged forwards a state transition.
func (b *Bridge) StateChanged(h host.Spec, state deploy.State) {
	b.program.Send(StateChangedMsg{Alias: h.Alias, State: state})
}

// Output forwards a remote output line. The line is copied; the caller may
// reuse its buffer.
func (b *Bridge) Output(alias string, line []byte, isStderr bool) {
	b.program.Send(OutputMsg{Alias: alias, Line: string(line), IsStderr: isStderr})
}

// HostFinished forwards a host's result.
func (b *Bridge) HostFinished(res deploy.HostResult) {
	b.program.Send(HostFinishedMsg{Result: res})
}

// Finished forwards the summary.
func (b *Bridge) Finished(sum *deploy.Summary) {
	b.program.Send(FinishedMsg{Summary: sum})
}

// deployDone tells the board the deploy has returned and it can exit.
func (b *Bridge) deployDone(err error) {
	b.program.Send(deployDoneMsg{err: err})
}
