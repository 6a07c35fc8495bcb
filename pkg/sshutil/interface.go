package sshutil

import (
	"context"
	"io"
)

// SSHClient defines the remote operations a deployment needs.
// Both the real Client and the mock in sshutil/testing satisfy this interface.
type SSHClient interface {
	// ExecStream runs a command and streams output to the provided writers.
	// Exit code is -1 if the command couldn't be executed at all.
	ExecStream(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// Upload writes content to a file called name in remoteDir and returns
	// its remote path.
	Upload(ctx context.Context, content io.Reader, name, remoteDir string) (remotePath string, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the alias used to connect.
	GetHost() string
}

var _ SSHClient = (*Client)(nil)
