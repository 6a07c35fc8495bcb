package board

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/debdeploy/internal/deploy"
	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHosts() host.List {
	return host.List{
		{Alias: "jenkins", User: "root", Hostname: "jenkins.example.org"},
		{Alias: "jenkins-slave1", User: "ci", Hostname: "10.0.0.5"},
	}
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestModel_HostsPlanned(t *testing.T) {
	m := update(t, NewModel("foo_1.0_all.deb", nil), HostsPlannedMsg{Hosts: testHosts()})

	require.Len(t, m.rows, 2)
	assert.Equal(t, "jenkins", m.rows[0].Alias)
	assert.Equal(t, "ci@10.0.0.5", m.rows[1].Target)
	for _, r := range m.rows {
		assert.Equal(t, deploy.StatePending, r.State)
	}

	view := m.View()
	assert.Contains(t, view, "Deploying foo_1.0_all.deb")
	assert.Contains(t, view, "2 hosts")
	assert.Contains(t, view, "ci@10.0.0.5")
}

func TestModel_StateAndOutput(t *testing.T) {
	m := update(t, NewModel("foo", nil),
		HostsPlannedMsg{Hosts: testHosts()},
		StateChangedMsg{Alias: "jenkins", State: deploy.StateUploading},
		StateChangedMsg{Alias: "jenkins", State: deploy.StateInstalling},
		OutputMsg{Alias: "jenkins", Line: "Unpacking foo (1.0) ..."},
		OutputMsg{Alias: "jenkins", Line: "   "},
	)

	row := m.rows[0]
	assert.Equal(t, deploy.StateInstalling, row.State)
	assert.False(t, row.StartTime.IsZero())
	assert.Equal(t, "Unpacking foo (1.0) ...", row.LastLine, "blank lines don't replace the last line")
	assert.Equal(t, deploy.StatePending, m.rows[1].State)

	view := m.View()
	assert.Contains(t, view, "installing")
	assert.Contains(t, view, "Unpacking foo (1.0) ...")
	assert.Contains(t, view, "1 active")

	// A new state clears the previous step's output.
	m = update(t, m, StateChangedMsg{Alias: "jenkins", State: deploy.StateFixing})
	assert.Empty(t, m.rows[0].LastLine)
	assert.Contains(t, m.View(), "fixing dependencies")
}

func TestModel_UnknownAliasIgnored(t *testing.T) {
	m := update(t, NewModel("foo", nil),
		HostsPlannedMsg{Hosts: testHosts()},
		StateChangedMsg{Alias: "nope", State: deploy.StateUploading},
		OutputMsg{Alias: "nope", Line: "x"},
	)
	for _, r := range m.rows {
		assert.Equal(t, deploy.StatePending, r.State)
	}
}

func TestModel_HostFinished(t *testing.T) {
	hosts := testHosts()
	m := update(t, NewModel("foo", nil),
		HostsPlannedMsg{Hosts: hosts},
		HostFinishedMsg{Result: deploy.HostResult{Host: hosts[0], State: deploy.StateDone, Duration: 2 * time.Second}},
		HostFinishedMsg{Result: deploy.HostResult{Host: hosts[1], State: deploy.StateFailed,
			Err: errors.New(errors.ErrInstallFailed, "Install on jenkins-slave1 failed", "")}},
	)

	view := m.View()
	assert.Contains(t, view, "done")
	assert.Contains(t, view, "2.0s")
	assert.Contains(t, view, "Install on jenkins-slave1 failed")
	assert.Contains(t, view, "1 done")
	assert.Contains(t, view, "1 failed")
}

func TestModel_Unverified(t *testing.T) {
	hosts := testHosts()
	m := update(t, NewModel("foo", nil),
		HostsPlannedMsg{Hosts: hosts},
		HostFinishedMsg{Result: deploy.HostResult{Host: hosts[0], State: deploy.StateDone, Unverified: true}},
		HostFinishedMsg{Result: deploy.HostResult{Host: hosts[1], Skipped: true}},
	)

	view := m.View()
	assert.Contains(t, view, "done, unverified")
	assert.Contains(t, view, "skipped")
}

func TestModel_QuitCancelsButWaitsForDeploy(t *testing.T) {
	cancelled := false
	m := NewModel("foo", func() { cancelled = true })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(Model)
	assert.True(t, cancelled)
	assert.False(t, m.quitting)
	assert.Nil(t, cmd)

	next, cmd = m.Update(deployDoneMsg{})
	m = next.(Model)
	assert.True(t, m.completed)
	assert.NotNil(t, cmd)
	assert.NotContains(t, m.View(), "q: cancel")
}

func TestModel_QuitAfterCompletion(t *testing.T) {
	m := update(t, NewModel("foo", nil), deployDoneMsg{})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestModel_Truncate(t *testing.T) {
	m := update(t, NewModel("foo", nil), tea.WindowSizeMsg{Width: 20, Height: 10})

	assert.Equal(t, "short", m.truncate("short", 2))
	got := m.truncate("a very long line of dpkg output", 2)
	assert.Len(t, []rune(got), 14)
	assert.Equal(t, '…', []rune(got)[13])

	wide := update(t, NewModel("foo", nil))
	assert.Equal(t, "a very long line", wide.truncate("a very long line", 2), "unknown width leaves lines alone")
}

func TestModel_SpinnerTick(t *testing.T) {
	m := NewModel("foo", nil)
	tick := m.spinner.Tick()

	next, cmd := m.Update(tick)
	assert.NotNil(t, cmd)
	assert.NotNil(t, next)
}
