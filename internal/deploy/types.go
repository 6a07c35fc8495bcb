package deploy

import (
	"encoding/json"
	"time"

	"github.com/rileyhilliard/debdeploy/internal/host"
)

// State is where a host is in its deploy sequence.
type State int

const (
	StatePending State = iota
	StateUploading
	StateInstalling
	StateFixing // install failed; fix-dependencies (and verify) running
	StateDone
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateUploading:
		return "uploading"
	case StateInstalling:
		return "installing"
	case StateFixing:
		return "fixing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// OutputMode controls how per-host progress is displayed.
type OutputMode string

const (
	// OutputProgress shows a live board (default on a TTY).
	OutputProgress OutputMode = "progress"
	// OutputStream prints remote output as it arrives, prefixed with [alias].
	OutputStream OutputMode = "stream"
	// OutputQuiet prints nothing until the summary.
	OutputQuiet OutputMode = "quiet"
)

// ParseOutputMode validates a --output value.
func ParseOutputMode(s string) (OutputMode, bool) {
	switch OutputMode(s) {
	case OutputProgress, OutputStream, OutputQuiet:
		return OutputMode(s), true
	}
	return "", false
}

// HostResult is the outcome of deploying to one host.
type HostResult struct {
	Host  host.Spec `json:"host"`
	State State     `json:"state"`

	// RemotePath is where the artifact landed, relative to the login directory.
	RemotePath string `json:"remote_path,omitempty"`

	InstallExit int `json:"install_exit"`
	// Fallback is set when fix-dependencies ran.
	Fallback bool `json:"fallback"`
	FixExit  int  `json:"fix_exit,omitempty"`
	// Verified is set when the verify command ran and passed.
	Verified bool `json:"verified"`
	// Unverified marks a best-effort success whose install never confirmed.
	Unverified bool `json:"unverified"`

	// Skipped is set when the host never started (fail-fast or cancellation).
	Skipped bool `json:"skipped"`

	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Success reports whether the host ended in StateDone.
func (r HostResult) Success() bool {
	return r.State == StateDone && r.Err == nil
}

// MarshalJSON adds the error text, which error values don't encode on their own.
func (r HostResult) MarshalJSON() ([]byte, error) {
	type alias HostResult
	var errText string
	if r.Err != nil {
		errText = r.Err.Error()
	}
	return json.Marshal(struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias(r), errText})
}

// Summary is the aggregate outcome of a deploy run.
type Summary struct {
	Results  []HostResult  `json:"results"`
	Duration time.Duration `json:"duration"`
	Done     int           `json:"done"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
}

// Success reports whether every host is done.
func (s *Summary) Success() bool {
	return s.Failed == 0 && s.Skipped == 0
}

func summarize(results []HostResult, d time.Duration) *Summary {
	s := &Summary{Results: results, Duration: d}
	for i := range results {
		switch {
		case results[i].Skipped:
			s.Skipped++
		case results[i].Success():
			s.Done++
		default:
			s.Failed++
		}
	}
	return s
}
