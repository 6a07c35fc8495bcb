package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/debdeploy/internal/deploy"
	"github.com/rileyhilliard/debdeploy/internal/ui"
)

// hostRow is one line of the board.
type hostRow struct {
	Alias     string
	Target    string
	State     deploy.State
	LastLine  string
	StartTime time.Time
	Result    *deploy.HostResult
}

// Model is the Bubble Tea model for the deploy board.
type Model struct {
	title      string
	rows       []hostRow
	index      map[string]int
	spinner    spinner.Model
	width      int
	summary    *deploy.Summary
	completed  bool
	quitting   bool
	cancelFunc context.CancelFunc
}

// NewModel creates a board titled with the package being deployed.
// cancelFunc is called when the user presses q or ctrl+c.
func NewModel(title string, cancelFunc context.CancelFunc) Model {
	return Model{
		title:      title,
		index:      make(map[string]int),
		spinner:    spinner.New(spinner.WithSpinner(ui.SpinnerFrames), spinner.WithStyle(activeStyle)),
		cancelFunc: cancelFunc,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelFunc != nil {
				m.cancelFunc()
			}
			// Keep running until the deploy unwinds so the final states show.
			if m.completed {
				m.quitting = true
				return m, tea.Quit
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case HostsPlannedMsg:
		m.rows = make([]hostRow, len(msg.Hosts))
		m.index = make(map[string]int, len(msg.Hosts))
		for i, h := range msg.Hosts {
			m.rows[i] = hostRow{Alias: h.Alias, Target: h.String(), State: deploy.StatePending}
			m.index[h.Alias] = i
		}
		return m, nil

	case StateChangedMsg:
		if row := m.row(msg.Alias); row != nil {
			if row.StartTime.IsZero() {
				row.StartTime = time.Now()
			}
			row.State = msg.State
			row.LastLine = ""
		}
		return m, nil

	case OutputMsg:
		if row := m.row(msg.Alias); row != nil && strings.TrimSpace(msg.Line) != "" {
			row.LastLine = msg.Line
		}
		return m, nil

	case HostFinishedMsg:
		if row := m.row(msg.Result.Host.Alias); row != nil {
			res := msg.Result
			row.Result = &res
			row.State = res.State
		}
		return m, nil

	case FinishedMsg:
		m.summary = msg.Summary
		return m, nil

	case deployDoneMsg:
		m.completed = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) row(alias string) *hostRow {
	i, ok := m.index[alias]
	if !ok {
		return nil
	}
	return &m.rows[i]
}

// View renders the board.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")

	aliasWidth := 0
	for _, r := range m.rows {
		if len(r.Alias) > aliasWidth {
			aliasWidth = len(r.Alias)
		}
	}
	for _, r := range m.rows {
		sb.WriteString(m.renderRow(r, aliasWidth))
		sb.WriteString("\n")
	}

	if !m.completed {
		sb.WriteString(mutedStyle.Render("q: cancel"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderHeader() string {
	var done, failed, active int
	for _, r := range m.rows {
		switch {
		case r.Result != nil && r.Result.Success():
			done++
		case r.Result != nil && !r.Result.Skipped:
			failed++
		case r.Result == nil && r.State != deploy.StatePending:
			active++
		}
	}

	parts := []string{}
	if active > 0 {
		parts = append(parts, activeStyle.Render(fmt.Sprintf("%d active", active)))
	}
	if done > 0 {
		parts = append(parts, doneStyle.Render(fmt.Sprintf("%d done", done)))
	}
	if failed > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	status := strings.Join(parts, mutedStyle.Render(" | "))
	if status == "" {
		status = mutedStyle.Render(fmt.Sprintf("%d %s", len(m.rows), ui.Plural(len(m.rows), "host")))
	}
	return headerStyle.Render("Deploying "+m.title) + " " + status
}

func (m Model) renderRow(r hostRow, aliasWidth int) string {
	name := fmt.Sprintf("%-*s", aliasWidth, r.Alias)

	if res := r.Result; res != nil {
		d := mutedStyle.Render(ui.FormatDuration(res.Duration))
		switch {
		case res.Skipped:
			return fmt.Sprintf("%s %s %s", pendingStyle.Render(ui.SymbolSkipped), name, mutedStyle.Render("skipped"))
		case res.Success() && res.Unverified:
			return fmt.Sprintf("%s %s %s %s", warnStyle.Render(ui.SymbolWarning), name, warnStyle.Render("done, unverified"), d)
		case res.Success():
			return fmt.Sprintf("%s %s %s %s", doneStyle.Render(ui.SymbolSuccess), name, doneStyle.Render("done"), d)
		default:
			return fmt.Sprintf("%s %s %s %s", failedStyle.Render(ui.SymbolFail), name,
				failedStyle.Render(m.truncate(deploy.Headline(res.Err), aliasWidth)), d)
		}
	}

	if r.State == deploy.StatePending {
		return fmt.Sprintf("%s %s %s", pendingStyle.Render(ui.SymbolPending), name, mutedStyle.Render(r.Target))
	}

	line := fmt.Sprintf("%s %s %s", m.spinner.View(), name, activeStyle.Render(stateLabel(r.State)))
	if !r.StartTime.IsZero() {
		line += " " + mutedStyle.Render(ui.FormatDuration(time.Since(r.StartTime)))
	}
	if r.LastLine != "" {
		line += "\n  " + strings.Repeat(" ", aliasWidth) + mutedStyle.Render(m.truncate(r.LastLine, aliasWidth+2))
	}
	return line
}

// truncate shortens s so that, after indent columns, it fits the terminal.
func (m Model) truncate(s string, indent int) string {
	if m.width == 0 {
		return s
	}
	limit := m.width - indent - 4
	runes := []rune(s)
	if limit < 1 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func stateLabel(s deploy.State) string {
	switch s {
	case deploy.StateUploading:
		return "uploading"
	case deploy.StateInstalling:
		return "installing"
	case deploy.StateFixing:
		return "fixing dependencies"
	default:
		return s.String()
	}
}
