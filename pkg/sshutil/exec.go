package sshutil

import (
	"context"
	"fmt"
	"io"

	"github.com/rileyhilliard/debdeploy/internal/errors"
	"golang.org/x/crypto/ssh"
)

// ExecStream runs a command and streams output to the provided writers.
// Exit code is -1 if the command couldn't be executed at all. A non-zero exit
// code with nil error means the command ran but failed.
// Cancelling ctx signals the remote process and closes the session.
func (c *Client) ExecStream(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	stop := closeOnCancel(ctx, session)
	defer stop()

	err = session.Run(cmd)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, errors.WrapWithCode(ctxErr, errors.ErrExec,
			fmt.Sprintf("Command interrupted: %s", cmd),
			"The per-host timeout may be too short. Raise it with --timeout.")
	}
	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			return exitErr.ExitStatus(), nil
		}
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command: %s", cmd),
			"Check if the command exists on the remote host.")
	}

	return 0, nil
}

// closeOnCancel signals and closes session when ctx is cancelled.
// The returned func releases the watcher.
func closeOnCancel(ctx context.Context, session *ssh.Session) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGTERM)
			_ = session.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
