package deploy

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/debdeploy/internal/errors"
	"github.com/rileyhilliard/debdeploy/internal/host"
	"github.com/rileyhilliard/debdeploy/internal/ui"
)

// Reporter receives deploy events. Methods are called from worker goroutines
// and must be safe for concurrent use.
type Reporter interface {
	HostsPlanned(hosts host.List)
	StateChanged(h host.Spec, state State)
	Output(alias string, line []byte, isStderr bool)
	HostFinished(res HostResult)
	Finished(sum *Summary)
}

// QuietReporter discards every event.
type QuietReporter struct{}

func (QuietReporter) HostsPlanned(host.List) {}
func (QuietReporter) StateChanged(host.Spec, State) {}
func (QuietReporter) Output(string, []byte, bool) {}
func (QuietReporter) HostFinished(HostResult) {}
func (QuietReporter) Finished(*Summary) {}

// StreamReporter writes remote output and state changes as they happen,
// every line prefixed with [alias].
type StreamReporter struct {
	mu    sync.Mutex
	w     io.Writer
	width int

	successStyle lipgloss.Style
	errorStyle   lipgloss.Style
	mutedStyle   lipgloss.Style
	hostStyle    lipgloss.Style
}

// NewStreamReporter creates a StreamReporter writing to w.
func NewStreamReporter(w io.Writer) *StreamReporter {
	return &StreamReporter{
		w:            w,
		successStyle: lipgloss.NewStyle().Foreground(ui.ColorSuccess),
		errorStyle:   lipgloss.NewStyle().Foreground(ui.ColorError),
		mutedStyle:   lipgloss.NewStyle().Foreground(ui.ColorMuted),
		hostStyle:    lipgloss.NewStyle().Foreground(ui.ColorSecondary),
	}
}

// HostsPlanned sizes the prefix column so output lines up.
func (r *StreamReporter) HostsPlanned(hosts host.List) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range hosts {
		if n := len(h.Alias) + 2; n > r.width {
			r.width = n
		}
	}
}

// StateChanged prints the new state.
func (r *StreamReporter) StateChanged(h host.Spec, state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s\n", r.prefix(h.Alias), r.mutedStyle.Render(stateLabel(state, h)))
}

// Output prints one remote line.
func (r *StreamReporter) Output(alias string, line []byte, isStderr bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text := string(line)
	if isStderr {
		text = r.errorStyle.Render(text)
	}
	fmt.Fprintf(r.w, "%s %s\n", r.prefix(alias), text)
}

// HostFinished prints the host's outcome.
func (r *StreamReporter) HostFinished(res HostResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.prefix(res.Host.Alias)
	d := r.mutedStyle.Render(ui.FormatDuration(res.Duration))
	switch {
	case res.Skipped:
		fmt.Fprintf(r.w, "%s %s skipped\n", p, r.mutedStyle.Render(ui.SymbolSkipped))
	case res.Success() && res.Unverified:
		fmt.Fprintf(r.w, "%s %s done (unverified) %s\n", p, r.successStyle.Render(ui.SymbolSuccess), d)
	case res.Success():
		fmt.Fprintf(r.w, "%s %s done %s\n", p, r.successStyle.Render(ui.SymbolSuccess), d)
	default:
		fmt.Fprintf(r.w, "%s %s failed: %s %s\n", p, r.errorStyle.Render(ui.SymbolFail), Headline(res.Err), d)
	}
}

// Finished is a no-op; the caller renders the summary.
func (r *StreamReporter) Finished(*Summary) {}

func (r *StreamReporter) prefix(alias string) string {
	p := "[" + alias + "]"
	var pad string
	if n := r.width - len(p); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	return r.hostStyle.Render(p) + pad
}

func stateLabel(state State, h host.Spec) string {
	switch state {
	case StateUploading:
		return "uploading to " + h.String()
	case StateInstalling:
		return "installing"
	case StateFixing:
		return "install failed, fixing dependencies"
	default:
		return state.String()
	}
}

// Headline returns the one-line summary of err: the message of a structured
// error, or the first line of anything else.
func Headline(err error) string {
	if err == nil {
		return ""
	}
	var dErr *errors.Error
	if stderrors.As(err, &dErr) {
		return dErr.Message
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// lineWriter splits a byte stream into lines and hands each to emit.
type lineWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	emit func(line []byte)
}

func newLineWriter(emit func(line []byte)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := make([]byte, i)
		copy(line, w.buf.Bytes()[:i])
		w.buf.Next(i + 1)
		w.emit(bytes.TrimRight(line, "\r"))
	}
	return len(p), nil
}

// Flush emits a trailing partial line, if any.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		line := make([]byte, w.buf.Len())
		copy(line, w.buf.Bytes())
		w.buf.Reset()
		w.emit(line)
	}
}
