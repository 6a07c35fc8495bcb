package board

import (
	"github.com/rileyhilliard/debdeploy/internal/deploy"
	"github.com/rileyhilliard/debdeploy/internal/host"
)

// HostsPlannedMsg lists the hosts about to be deployed, in order.
type HostsPlannedMsg struct {
	Hosts host.List
}

// StateChangedMsg signals a host moved to a new state.
type StateChangedMsg struct {
	Alias string
	State deploy.State
}

// OutputMsg carries one line of remote output.
type OutputMsg struct {
	Alias    string
	Line     string
	IsStderr bool
}

// HostFinishedMsg carries a host's final result.
type HostFinishedMsg struct {
	Result deploy.HostResult
}

// FinishedMsg carries the run's summary.
type FinishedMsg struct {
	Summary *deploy.Summary
}

// deployDoneMsg signals the deploy goroutine has returned.
type deployDoneMsg struct {
	err error
}
