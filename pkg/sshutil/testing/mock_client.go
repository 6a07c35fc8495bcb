// Package testing provides an in-memory SSHClient for deployment tests.
package testing

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"

	"github.com/rileyhilliard/debdeploy/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates an SSH connection for testing.
// Uploads are stored in memory keyed by remote path; commands return canned
// responses (exit 0 with no output by default) and are recorded in order.
type MockClient struct {
	mu        sync.Mutex
	host      string
	closed    bool
	responses []patternResponse
	uploads   map[string][]byte
	commands  []string

	// UploadErr, when set, fails every Upload call.
	UploadErr error
}

type patternResponse struct {
	re   *regexp.Regexp
	resp CommandResponse
}

// NewMockClient creates a new mock SSH client.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:    host,
		uploads: make(map[string][]byte),
	}
}

// SetCommandResponse registers a canned response for a command regex.
// Later registrations take precedence over earlier ones.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append([]patternResponse{{re: regexp.MustCompile(pattern), resp: resp}}, m.responses...)
}

// ExecStream records cmd and writes the matching canned output.
func (m *MockClient) ExecStream(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	default:
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return -1, errors.New("connection closed")
	}
	m.commands = append(m.commands, cmd)
	resp := CommandResponse{}
	for _, pr := range m.responses {
		if pr.re.MatchString(cmd) {
			resp = pr.resp
			break
		}
	}
	m.mu.Unlock()

	if resp.Error != nil {
		return -1, resp.Error
	}
	if stdout != nil && len(resp.Stdout) > 0 {
		_, _ = stdout.Write(resp.Stdout)
	}
	if stderr != nil && len(resp.Stderr) > 0 {
		_, _ = stderr.Write(resp.Stderr)
	}
	return resp.ExitCode, nil
}

// Upload reads content and stores it under the remote path.
func (m *MockClient) Upload(ctx context.Context, content io.Reader, name, remoteDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", errors.New("connection closed")
	}
	if m.UploadErr != nil {
		return "", m.UploadErr
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	remote := sshutil.RemoteFilePath(remoteDir, name)
	m.uploads[remote] = data
	return remote, nil
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Commands returns the executed commands in order.
func (m *MockClient) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.commands))
	copy(out, m.commands)
	return out
}

// Uploads returns a copy of the uploaded files keyed by remote path.
func (m *MockClient) Uploads() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.uploads))
	for k, v := range m.uploads {
		out[k] = v
	}
	return out
}

var _ sshutil.SSHClient = (*MockClient)(nil)
